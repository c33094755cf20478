package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/compiler"
	"github.com/roach88/dirsync/internal/source"
)

func TestFieldsHost(t *testing.T) {
	opts := &RootOptions{Format: "json"}

	out, err := execute(t, NewFieldsCommand(opts), "host")
	require.NoError(t, err)

	var resp struct {
		Data FieldsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "host", resp.Data.ObjectType)

	names := make([]string, 0, len(resp.Data.Fields))
	for _, f := range resp.Data.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"vars.*", "vars", "import", "groups"}, names[:4])
	assert.Contains(t, names, "address")
	assert.Contains(t, names, "zone")
	assert.NotContains(t, names, "id")
	assert.NotContains(t, names, "arguments")
}

func TestFieldsText(t *testing.T) {
	out, err := execute(t, NewFieldsCommand(&RootOptions{Format: "text"}), "command")
	require.NoError(t, err)
	assert.Contains(t, out, "Destination fields for command:")
	assert.Contains(t, out, "* arguments")
}

func TestFieldsUnknownType(t *testing.T) {
	out, err := execute(t, NewFieldsCommand(&RootOptions{Format: "text"}), "printer")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+compiler.ErrUnknownObjectType+"]")
}

func TestColumns(t *testing.T) {
	f := newFixture(t, "json")

	out, err := execute(t, NewColumnsCommand(f.opts), "cmdb")
	require.NoError(t, err)

	var resp struct {
		Data source.Introspection `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "cmdb", resp.Data.Source)
	require.Len(t, resp.Data.Columns, 2)
	assert.Equal(t, "${hostname}", resp.Data.Columns[0].Expression)
	assert.Equal(t, "${ip}", resp.Data.Columns[1].Expression)
	assert.False(t, resp.Data.Failed())
}

func TestColumnsWithTemplates(t *testing.T) {
	f := newFixture(t, "text")
	writeTestFile(t, filepath.Join(f.rulesDir, "templates.yaml"), "templates:\n  host: [generic-host, linux-host]\n")

	out, err := execute(t, NewColumnsCommand(f.opts), "--object-type", "host", "cmdb")
	require.NoError(t, err)
	assert.Contains(t, out, "cmdb: Source columns")
	assert.Contains(t, out, "Templates")
	assert.Contains(t, out, "generic-host")
}

func TestColumnsSourceFailure(t *testing.T) {
	f := newFixture(t, "json")
	f.setHosts(t, "hostname: [unclosed\n")

	out, err := execute(t, NewColumnsCommand(f.opts), "cmdb")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data source.Introspection `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Failed())
	assert.Contains(t, resp.Data.Title, "failed to fetch")
	assert.Empty(t, resp.Data.Columns)
}

func TestColumnsUnknownSource(t *testing.T) {
	f := newFixture(t, "text")

	_, err := execute(t, NewColumnsCommand(f.opts), "ldap")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
