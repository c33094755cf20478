package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/syncrule"
)

func validBundle() *Bundle {
	return &Bundle{
		Sources: []source.Definition{
			{ID: 1, Name: "cmdb", Kind: source.KindStatic, KeyColumn: "hostname"},
		},
		Rules: []syncrule.SyncRule{
			{
				ID:         1,
				Name:       "hosts",
				ObjectType: "host",
				Properties: []syncrule.SyncProperty{
					{ID: 1, SourceID: 1, DestinationField: "object_name", SourceExpression: "${hostname}", Priority: 1},
					{ID: 2, SourceID: 1, DestinationField: "vars.location", SourceExpression: "${site}", Priority: 2},
				},
			},
		},
		Templates: source.Templates{},
	}
}

func TestValidateValidBundle(t *testing.T) {
	errs := Validate(validBundle())
	assert.Empty(t, errs)
}

func TestPlansReturnsCompiledRules(t *testing.T) {
	plans, errs := Plans(validBundle())
	require.Empty(t, errs)
	require.Contains(t, plans, "hosts")

	plan := plans["hosts"]
	assert.Equal(t, "host", plan.Descriptor.Type)
	require.Len(t, plan.Properties, 2)
	assert.Equal(t, syncrule.DestScalar, plan.Properties[0].Destination.Kind)
	assert.Equal(t, syncrule.DestVar, plan.Properties[1].Destination.Kind)
}

func TestValidateUnknownObjectType(t *testing.T) {
	b := validBundle()
	b.Rules[0].ObjectType = "printer"

	errs := Validate(b)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownObjectType, errs[0].Code)
	assert.Equal(t, "hosts", errs[0].Rule)
	assert.Contains(t, errs[0].Message, "printer")
}

func TestValidateUnknownSource(t *testing.T) {
	b := validBundle()
	b.Rules[0].Properties[1].SourceID = 9

	errs := Validate(b)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownSource, errs[0].Code)
	assert.Equal(t, "properties[1].source", errs[0].Field)
}

func TestValidateInvalidFilter(t *testing.T) {
	b := validBundle()
	b.Rules[0].Properties[1].FilterExpression = "(site=ber"

	errs := Validate(b)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidFilter, errs[0].Code)
	assert.Equal(t, "vars.location", errs[0].Field)
}

func TestValidateInvalidDestination(t *testing.T) {
	b := validBundle()
	b.Rules[0].Properties[1].DestinationField = "arguments"

	errs := Validate(b)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidDestination, errs[0].Code)
	assert.Contains(t, errs[0].Message, "does not support arguments")
}

func TestValidateCollectsAllPropertyErrors(t *testing.T) {
	b := validBundle()
	b.Rules[0].Properties[0].FilterExpression = "a=1&"
	b.Rules[0].Properties[1].DestinationField = "no_such_field"

	plans, errs := Plans(b)
	assert.Empty(t, plans)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrInvalidFilter, errs[0].Code)
	assert.Equal(t, ErrInvalidDestination, errs[1].Code)
}

func TestValidateInvalidSource(t *testing.T) {
	b := validBundle()
	b.Sources = append(b.Sources, source.Definition{ID: 2, Name: "ldap", Kind: "ldap", KeyColumn: "uid"})

	errs := Validate(b)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidSource, errs[0].Code)
	assert.Equal(t, "source.ldap", errs[0].Field)
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "object_type", Message: "unknown", Code: ErrUnknownObjectType, Rule: "hosts"}
	assert.Equal(t, `[E111] rule "hosts": object_type: unknown`, err.Error())

	err.Rule = ""
	assert.Equal(t, "[E111] object_type: unknown", err.Error())
}
