package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/props"
)

func TestNewUnknownType(t *testing.T) {
	_, err := New("spaceship")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spaceship")
}

func TestSetCoercesAndRenames(t *testing.T) {
	o, err := New("host")
	require.NoError(t, err)

	require.NoError(t, o.Set("object_name", props.Null{}))
	assert.Equal(t, props.String(""), o.Get("object_name"))

	require.NoError(t, o.Set("object_name", props.String("www1")))
	assert.Equal(t, "www1", o.Name())

	require.NoError(t, o.Set("disabled", props.String("y")))
	assert.Equal(t, props.Bool(true), o.Get("disabled"))

	require.NoError(t, o.Set("check_interval", props.String(" 60 ")))
	assert.Equal(t, props.Int(60), o.Get("check_interval"))
}

func TestSetRejectsUnknownProperty(t *testing.T) {
	o, err := New("host")
	require.NoError(t, err)

	assert.Error(t, o.Set("id", props.Int(1)))
	assert.Error(t, o.Set("check_command_id", props.Int(1)), "foreign keys are set by relation name")
	assert.NoError(t, o.Set("check_command", props.String("ping4")))
}

func TestCapabilitiesAreEnforced(t *testing.T) {
	zone, err := New("zone")
	require.NoError(t, err)

	assert.Error(t, zone.SetVar("os", props.String("Linux")))
	assert.Error(t, zone.SetGroups([]string{"a"}))
	assert.Error(t, zone.SetDictEntry(KeyArguments, "-H", props.String("$address$")))

	cmd, err := New("command")
	require.NoError(t, err)
	assert.NoError(t, cmd.SetDictEntry(KeyArguments, "-H", props.String("$address$")))
}

func TestAddImportsDeduplicates(t *testing.T) {
	o, err := New("host")
	require.NoError(t, err)

	n, err := o.AddImports("generic-host", "linux-host", "generic-host")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = o.AddImports("linux-host")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"generic-host", "linux-host"}, o.Imports())
}

func TestLoadRoundTripsAndTracksModification(t *testing.T) {
	stored := props.Dict{
		"object_name": props.String("www1"),
		"address":     props.String("10.0.0.1"),
		"imports":     props.Strings("generic-host"),
		"vars":        props.Dict{"os": props.String("Linux")},
	}

	o, err := Load("host", "www1", stored)
	require.NoError(t, err)

	assert.True(t, o.HasBeenLoaded())
	assert.False(t, o.HasBeenModified())
	assert.Equal(t, stored, o.Properties())
	assert.Equal(t, stored, o.UnmodifiedProperties())

	require.NoError(t, o.SetVar("os", props.String("Windows")))
	assert.True(t, o.HasBeenModified())
	assert.Equal(t, props.String("Linux"), o.UnmodifiedProperties()["vars"].(props.Dict)["os"])
}

func TestLoadRejectsNonDictVars(t *testing.T) {
	_, err := Load("host", "www1", props.Dict{"vars": props.String("oops")})
	require.Error(t, err)
}

func TestNewObjectIsModifiedAndHasNoSnapshot(t *testing.T) {
	o, err := New("host")
	require.NoError(t, err)

	assert.True(t, o.HasBeenModified())
	assert.Nil(t, o.UnmodifiedProperties())
}

func TestPropertiesOmitEmptyCollections(t *testing.T) {
	o, err := New("user")
	require.NoError(t, err)
	require.NoError(t, o.Set("object_name", props.String("alice")))
	require.NoError(t, o.SetList("states", []string{"OK", "Critical", "OK"}))

	assert.Equal(t, props.Dict{
		"object_name": props.String("alice"),
		"states":      props.Strings("OK", "Critical"),
	}, o.Properties())
}

func TestCloneIsIndependent(t *testing.T) {
	o, err := Load("host", "www1", props.Dict{"vars": props.Dict{"os": props.String("Linux")}})
	require.NoError(t, err)

	cp := o.Clone()
	require.NoError(t, cp.SetVar("os", props.String("BSD")))

	assert.Equal(t, props.String("Linux"), o.Var("os"))
	assert.False(t, o.HasBeenModified())
	assert.True(t, cp.HasBeenModified())
}
