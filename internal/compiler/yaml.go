package compiler

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dirsync/internal/props"
	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/syncrule"
)

// yamlFile is the YAML form of a rules file. It mirrors the CUE layout:
//
//	source:
//	  cmdb:
//	    kind: sql
//	    key_column: hostname
//	rule:
//	  hosts:
//	    object_type: host
//	    properties:
//	      - source: cmdb
//	        destination: object_name
//	        expression: ${hostname}
//	templates:
//	  host: [generic-host]
type yamlFile struct {
	Source    map[string]yamlSource `yaml:"source"`
	Rule      map[string]yamlRule   `yaml:"rule"`
	Templates map[string][]string   `yaml:"templates"`
}

type yamlSource struct {
	ID        int64            `yaml:"id"`
	Kind      string           `yaml:"kind"`
	KeyColumn string           `yaml:"key_column"`
	Path      string           `yaml:"path"`
	Driver    string           `yaml:"driver"`
	DSN       string           `yaml:"dsn"`
	Query     string           `yaml:"query"`
	Encoding  string           `yaml:"encoding"`
	Rows      []map[string]any `yaml:"rows"`
}

type yamlRule struct {
	ID         int64          `yaml:"id"`
	ObjectType string         `yaml:"object_type"`
	Purge      bool           `yaml:"purge"`
	Properties []yamlProperty `yaml:"properties"`
}

type yamlProperty struct {
	Source      string `yaml:"source"`
	SourceID    int64  `yaml:"source_id"`
	Destination string `yaml:"destination"`
	Expression  string `yaml:"expression"`
	Filter      string `yaml:"filter"`
	MergePolicy string `yaml:"merge_policy"`
	Priority    int    `yaml:"priority"`
}

// ParseYAML decodes one YAML rules file. filename is used in errors.
//
// A document whose top level is a list holds rows for a yaml source, not
// rules; it yields nothing.
func ParseYAML(data []byte, filename string) (*Parsed, error) {
	out := &Parsed{Templates: source.Templates{}}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), File: filename}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind == yaml.SequenceNode {
		return out, nil
	}

	var f yamlFile
	if err := doc.Decode(&f); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), File: filename}
	}

	for _, name := range sortedKeys(f.Source) {
		s := f.Source[name]
		if s.KeyColumn == "" {
			return nil, &LoadError{Code: ErrCodeParseFailed, File: filename,
				Message: fmt.Sprintf("source %q: key_column is required", name)}
		}
		def := source.Definition{
			ID:        s.ID,
			Name:      name,
			Kind:      source.Kind(s.Kind),
			KeyColumn: s.KeyColumn,
			Path:      s.Path,
			Driver:    s.Driver,
			DSN:       s.DSN,
			Query:     s.Query,
			Encoding:  s.Encoding,
		}
		for i, raw := range s.Rows {
			v, err := props.FromAny(raw)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeParseFailed, File: filename,
					Message: fmt.Sprintf("source %q: row %d: %v", name, i, err)}
			}
			row, _ := v.(props.Dict)
			def.Rows = append(def.Rows, row)
		}
		out.Sources = append(out.Sources, def)
	}

	for _, name := range sortedKeys(f.Rule) {
		r := f.Rule[name]
		if r.ObjectType == "" {
			return nil, &LoadError{Code: ErrCodeParseFailed, File: filename,
				Message: fmt.Sprintf("rule %q: object_type is required", name)}
		}
		if len(r.Properties) == 0 {
			return nil, &LoadError{Code: ErrCodeParseFailed, File: filename,
				Message: fmt.Sprintf("rule %q: at least one property is required", name)}
		}
		def := RuleDef{Rule: syncrule.SyncRule{
			ID:         r.ID,
			Name:       name,
			ObjectType: r.ObjectType,
			Purge:      r.Purge,
		}}
		for i, p := range r.Properties {
			if p.Source == "" && p.SourceID == 0 {
				return nil, &LoadError{Code: ErrCodeParseFailed, File: filename,
					Message: fmt.Sprintf("rule %q: property %d: source or source_id is required", name, i)}
			}
			if p.Destination == "" {
				return nil, &LoadError{Code: ErrCodeParseFailed, File: filename,
					Message: fmt.Sprintf("rule %q: property %d: destination is required", name, i)}
			}
			def.Rule.Properties = append(def.Rule.Properties, syncrule.SyncProperty{
				SourceID:         p.SourceID,
				DestinationField: p.Destination,
				SourceExpression: p.Expression,
				FilterExpression: p.Filter,
				MergePolicy:      syncrule.MergePolicy(p.MergePolicy),
				Priority:         p.Priority,
			})
			def.Sources = append(def.Sources, p.Source)
		}
		out.Rules = append(out.Rules, def)
	}

	for objectType, names := range f.Templates {
		out.Templates.Add(objectType, names...)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
