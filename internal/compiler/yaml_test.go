package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/props"
	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/syncrule"
)

func TestParseYAMLRulesFile(t *testing.T) {
	data := []byte(`
source:
  cmdb:
    kind: static
    key_column: hostname
    rows:
      - hostname: www1
        port: 8080
  inventory:
    id: 7
    kind: yaml
    key_column: name
    path: hosts.yaml
rule:
  hosts:
    object_type: host
    purge: true
    properties:
      - source: cmdb
        destination: object_name
        expression: ${hostname}
      - source_id: 7
        destination: vars.port
        expression: ${port}
        merge_policy: override
        priority: 5
templates:
  host: [generic-host]
`)

	parsed, err := ParseYAML(data, "rules.yaml")
	require.NoError(t, err)

	require.Len(t, parsed.Sources, 2)
	cmdb := parsed.Sources[0]
	assert.Equal(t, "cmdb", cmdb.Name)
	assert.Equal(t, source.KindStatic, cmdb.Kind)
	require.Len(t, cmdb.Rows, 1)
	assert.Equal(t, props.Int(8080), cmdb.Rows[0]["port"])

	inv := parsed.Sources[1]
	assert.Equal(t, int64(7), inv.ID)
	assert.Equal(t, "hosts.yaml", inv.Path)

	require.Len(t, parsed.Rules, 1)
	rule := parsed.Rules[0]
	assert.Equal(t, "hosts", rule.Rule.Name)
	assert.True(t, rule.Rule.Purge)
	assert.Equal(t, []string{"cmdb", ""}, rule.Sources)
	require.Len(t, rule.Rule.Properties, 2)
	assert.Equal(t, syncrule.MergePolicyOverride, rule.Rule.Properties[1].MergePolicy)
	assert.Equal(t, 5, rule.Rule.Properties[1].Priority)

	assert.Equal(t, []string{"generic-host"}, parsed.Templates.Templates("host"))
}

func TestParseYAMLRowData(t *testing.T) {
	data := []byte(`
- name: www1
- name: www2
`)
	parsed, err := ParseYAML(data, "hosts.yaml")
	require.NoError(t, err)
	assert.Empty(t, parsed.Sources)
	assert.Empty(t, parsed.Rules)
}

func TestParseYAMLEmpty(t *testing.T) {
	parsed, err := ParseYAML(nil, "empty.yaml")
	require.NoError(t, err)
	assert.Empty(t, parsed.Rules)
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantMsg string
	}{
		{
			name:    "malformed",
			data:    "rule: [unclosed",
			wantMsg: "yaml",
		},
		{
			name:    "source without key column",
			data:    "source:\n  cmdb:\n    kind: static\n",
			wantMsg: "key_column is required",
		},
		{
			name:    "rule without object type",
			data:    "rule:\n  hosts:\n    properties:\n      - source: cmdb\n        destination: object_name\n",
			wantMsg: "object_type is required",
		},
		{
			name:    "rule without properties",
			data:    "rule:\n  hosts:\n    object_type: host\n",
			wantMsg: "at least one property",
		},
		{
			name:    "property without source",
			data:    "rule:\n  hosts:\n    object_type: host\n    properties:\n      - destination: object_name\n",
			wantMsg: "source or source_id",
		},
		{
			name:    "property without destination",
			data:    "rule:\n  hosts:\n    object_type: host\n    properties:\n      - source: cmdb\n",
			wantMsg: "destination is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.data), "rules.yaml")
			require.Error(t, err)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, ErrCodeParseFailed, le.Code)
			assert.Equal(t, "rules.yaml", le.File)
			assert.Contains(t, le.Message, tt.wantMsg)
		})
	}
}
