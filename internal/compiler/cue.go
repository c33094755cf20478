package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/dirsync/internal/props"
	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/syncrule"
)

// CompileSource parses a CUE value into a source definition.
//
// The CUE value should be the source struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`source: hosts: { kind: "yaml", key_column: "name", path: "hosts.yaml" }`)
//	def, err := CompileSource(v.LookupPath(cue.ParsePath("source.hosts")))
func CompileSource(v cue.Value) (*source.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &source.Definition{Name: labelOf(v)}

	var err error
	if def.ID, err = optionalInt(v, "id"); err != nil {
		return nil, err
	}
	kind, err := optionalString(v, "kind")
	if err != nil {
		return nil, err
	}
	def.Kind = source.Kind(kind)
	if def.KeyColumn, err = requiredString(v, "key_column"); err != nil {
		return nil, err
	}

	for field, dst := range map[string]*string{
		"path":     &def.Path,
		"driver":   &def.Driver,
		"dsn":      &def.DSN,
		"query":    &def.Query,
		"encoding": &def.Encoding,
	} {
		if *dst, err = optionalString(v, field); err != nil {
			return nil, err
		}
	}

	rowsVal := v.LookupPath(cue.ParsePath("rows"))
	if rowsVal.Exists() {
		iter, err := rowsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			row, err := cueRow(iter.Value())
			if err != nil {
				return nil, err
			}
			def.Rows = append(def.Rows, row)
		}
	}

	return def, nil
}

// cueRow converts one inline row through its JSON form, which keeps integers
// exact.
func cueRow(v cue.Value) (props.Dict, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	row, err := props.ParseDict(string(data))
	if err != nil {
		return nil, &CompileError{Field: "rows", Message: err.Error(), Pos: v.Pos()}
	}
	return row, nil
}

// CompileRule parses a CUE value into a rule definition whose properties
// still name their sources.
//
//	rule: hosts: {
//	    object_type: "host"
//	    properties: [{
//	        source:      "cmdb"
//	        destination: "object_name"
//	        expression:  "${hostname}"
//	    }]
//	}
func CompileRule(v cue.Value) (*RuleDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &RuleDef{Rule: syncrule.SyncRule{Name: labelOf(v)}, Pos: v.Pos()}

	var err error
	if def.Rule.ID, err = optionalInt(v, "id"); err != nil {
		return nil, err
	}
	if def.Rule.ObjectType, err = requiredString(v, "object_type"); err != nil {
		return nil, err
	}
	if purgeVal := v.LookupPath(cue.ParsePath("purge")); purgeVal.Exists() {
		if def.Rule.Purge, err = purgeVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, &CompileError{
			Field:   "properties",
			Message: "properties is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := propsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		p, sourceName, err := compileProperty(iter.Value())
		if err != nil {
			return nil, err
		}
		def.Rule.Properties = append(def.Rule.Properties, p)
		def.Sources = append(def.Sources, sourceName)
	}
	if len(def.Rule.Properties) == 0 {
		return nil, &CompileError{
			Field:   "properties",
			Message: "at least one property is required",
			Pos:     propsVal.Pos(),
		}
	}

	return def, nil
}

func compileProperty(v cue.Value) (syncrule.SyncProperty, string, error) {
	var (
		p   syncrule.SyncProperty
		err error
	)

	sourceName, err := optionalString(v, "source")
	if err != nil {
		return p, "", err
	}
	if p.SourceID, err = optionalInt(v, "source_id"); err != nil {
		return p, "", err
	}
	if sourceName == "" && p.SourceID == 0 {
		return p, "", &CompileError{
			Field:   "properties.source",
			Message: "source or source_id is required",
			Pos:     v.Pos(),
		}
	}

	if p.DestinationField, err = requiredString(v, "destination"); err != nil {
		return p, "", err
	}
	if p.SourceExpression, err = optionalString(v, "expression"); err != nil {
		return p, "", err
	}
	if p.FilterExpression, err = optionalString(v, "filter"); err != nil {
		return p, "", err
	}
	policy, err := optionalString(v, "merge_policy")
	if err != nil {
		return p, "", err
	}
	p.MergePolicy = syncrule.MergePolicy(policy)

	priority, err := optionalInt(v, "priority")
	if err != nil {
		return p, "", err
	}
	p.Priority = int(priority)

	return p, sourceName, nil
}

// CompileTemplates parses the template catalogue:
//
//	templates: host: ["generic-host", "linux-host"]
func CompileTemplates(v cue.Value) (source.Templates, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	out := source.Templates{}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		var names []string
		if err := iter.Value().Decode(&names); err != nil {
			return nil, &CompileError{
				Field:   "templates." + iter.Selector().String(),
				Message: "must be a list of template names",
				Pos:     iter.Value().Pos(),
			}
		}
		out.Add(iter.Selector().Unquoted(), names...)
	}
	return out, nil
}

func labelOf(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	// The name may be quoted in CUE, extract it
	return strings.Trim(labels[len(labels)-1].String(), `"`)
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if strings.TrimSpace(s) == "" {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be non-empty", field),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}
