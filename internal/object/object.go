// Package object models configuration objects as the sync evaluator and the
// activity log see them: a typed, named bag of properties with custom
// variables, inheritance and relations, plus a snapshot of the state it was
// loaded with.
package object

import (
	"fmt"
	"slices"

	"github.com/roach88/dirsync/internal/props"
)

// Reserved keys in the serialized form of an object.
const (
	KeyImports   = "imports"
	KeyVars      = "vars"
	KeyGroups    = "groups"
	KeyArguments = "arguments"
	KeyRanges    = "ranges"
)

// Object is an in-memory configuration object.
//
// The zero value is not usable; construct with New or Load.
type Object struct {
	descriptor Descriptor
	name       string
	properties props.Dict
	vars       props.Dict
	imports    []string
	groups     []string
	arguments  props.Dict
	ranges     props.Dict
	lists      map[string][]string

	loaded     bool
	unmodified props.Dict
}

// New creates an empty object of the given type that has not been stored yet.
func New(objectType string) (*Object, error) {
	d, err := Lookup(objectType)
	if err != nil {
		return nil, err
	}
	return &Object{
		descriptor: d,
		properties: props.Dict{},
		vars:       props.Dict{},
		arguments:  props.Dict{},
		ranges:     props.Dict{},
		lists:      map[string][]string{},
	}, nil
}

// Load rebuilds a stored object from its serialized form and records that
// form as the unmodified snapshot.
func Load(objectType, name string, stored props.Dict) (*Object, error) {
	o, err := New(objectType)
	if err != nil {
		return nil, err
	}
	o.name = name

	for key, value := range stored {
		switch key {
		case KeyImports:
			o.imports = props.StringList(value)
		case KeyGroups:
			o.groups = props.StringList(value)
		case KeyVars, KeyArguments, KeyRanges:
			d, ok := value.(props.Dict)
			if !ok {
				return nil, fmt.Errorf("load %s %q: %s must be a dict, got %T", objectType, name, key, value)
			}
			o.setDict(key, d.Clone())
		default:
			if o.descriptor.IsMultiRelation(key) {
				o.lists[key] = props.StringList(value)
				continue
			}
			o.properties[key] = props.Clone(value)
		}
	}
	o.properties["object_name"] = props.String(name)

	o.loaded = true
	o.unmodified = o.Properties()
	return o, nil
}

// Type returns the object type name.
func (o *Object) Type() string { return o.descriptor.Type }

// Descriptor returns the capability descriptor of the object's type.
func (o *Object) Descriptor() Descriptor { return o.descriptor }

// Name returns the object name.
func (o *Object) Name() string { return o.name }

// HasBeenLoaded reports whether the object was rebuilt from stored state.
func (o *Object) HasBeenLoaded() bool { return o.loaded }

// Get returns a plain property, or Null when unset.
func (o *Object) Get(name string) props.Value {
	if v, ok := o.properties[name]; ok {
		return v
	}
	return props.Null{}
}

// Set assigns a plain property after running it through the coercion table.
// Setting object_name also renames the object.
func (o *Object) Set(name string, value props.Value) error {
	if !o.descriptor.HasProperty(name) {
		return fmt.Errorf("%s has no property %q", o.descriptor.Type, name)
	}
	value = Coerce(name, value)
	o.properties[name] = value
	if name == "object_name" {
		o.name = props.Text(value)
	}
	return nil
}

// Var returns one custom variable, or Null when unset.
func (o *Object) Var(name string) props.Value {
	if v, ok := o.vars[name]; ok {
		return v
	}
	return props.Null{}
}

// SetVar replaces one custom variable.
func (o *Object) SetVar(name string, value props.Value) error {
	if !o.descriptor.SupportsCustomVars {
		return fmt.Errorf("%s does not support custom variables", o.descriptor.Type)
	}
	if name == "" {
		return fmt.Errorf("custom variable name must not be empty")
	}
	o.vars[name] = props.Clone(value)
	return nil
}

// Vars returns a copy of all custom variables.
func (o *Object) Vars() props.Dict { return o.vars.Clone() }

// Imports returns the inheritance list in order.
func (o *Object) Imports() []string { return slices.Clone(o.imports) }

// AddImports appends template names to the inheritance list, skipping names
// already present. It returns the number of names added.
func (o *Object) AddImports(names ...string) (int, error) {
	if !o.descriptor.SupportsImports {
		return 0, fmt.Errorf("%s does not support imports", o.descriptor.Type)
	}
	added := 0
	for _, name := range names {
		if name == "" || slices.Contains(o.imports, name) {
			continue
		}
		o.imports = append(o.imports, name)
		added++
	}
	return added, nil
}

// Groups returns the group memberships in order.
func (o *Object) Groups() []string { return slices.Clone(o.groups) }

// SetGroups replaces the group memberships.
func (o *Object) SetGroups(names []string) error {
	if !o.descriptor.SupportsGroups {
		return fmt.Errorf("%s does not support groups", o.descriptor.Type)
	}
	o.groups = dedupe(names)
	return nil
}

// SetList replaces a list-valued relation.
func (o *Object) SetList(relation string, names []string) error {
	if !o.descriptor.IsMultiRelation(relation) {
		return fmt.Errorf("%s has no list relation %q", o.descriptor.Type, relation)
	}
	o.lists[relation] = dedupe(names)
	return nil
}

// List returns a list-valued relation.
func (o *Object) List(relation string) []string { return slices.Clone(o.lists[relation]) }

// Dict returns a copy of a dict-valued special field (vars, arguments or
// ranges).
func (o *Object) Dict(field string) props.Dict {
	return o.dictFor(field).Clone()
}

// SetDictEntry replaces one entry of a dict-valued special field.
func (o *Object) SetDictEntry(field, key string, value props.Value) error {
	if err := o.checkDictField(field); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%s key must not be empty", field)
	}
	o.dictFor(field)[key] = props.Clone(value)
	return nil
}

func (o *Object) checkDictField(field string) error {
	switch field {
	case KeyVars:
		if !o.descriptor.SupportsCustomVars {
			return fmt.Errorf("%s does not support custom variables", o.descriptor.Type)
		}
	case KeyArguments:
		if !o.descriptor.SupportsArguments {
			return fmt.Errorf("%s does not support arguments", o.descriptor.Type)
		}
	case KeyRanges:
		if !o.descriptor.SupportsRanges {
			return fmt.Errorf("%s does not support ranges", o.descriptor.Type)
		}
	default:
		return fmt.Errorf("%q is not a dict field", field)
	}
	return nil
}

func (o *Object) dictFor(field string) props.Dict {
	switch field {
	case KeyVars:
		return o.vars
	case KeyArguments:
		return o.arguments
	case KeyRanges:
		return o.ranges
	}
	return props.Dict{}
}

func (o *Object) setDict(field string, d props.Dict) {
	switch field {
	case KeyVars:
		o.vars = d
	case KeyArguments:
		o.arguments = d
	case KeyRanges:
		o.ranges = d
	}
}

// Properties serializes the current state. Empty collections are omitted so
// an untouched object serializes the same before and after a no-op sync.
func (o *Object) Properties() props.Dict {
	out := o.properties.Clone()
	if len(o.imports) > 0 {
		out[KeyImports] = props.Strings(o.imports...)
	}
	if len(o.groups) > 0 {
		out[KeyGroups] = props.Strings(o.groups...)
	}
	if len(o.vars) > 0 {
		out[KeyVars] = o.vars.Clone()
	}
	if len(o.arguments) > 0 {
		out[KeyArguments] = o.arguments.Clone()
	}
	if len(o.ranges) > 0 {
		out[KeyRanges] = o.ranges.Clone()
	}
	for rel, names := range o.lists {
		if len(names) > 0 {
			out[rel] = props.Strings(names...)
		}
	}
	return out
}

// UnmodifiedProperties returns the state the object was loaded with, or nil
// for an object that was never stored.
func (o *Object) UnmodifiedProperties() props.Dict {
	if !o.loaded {
		return nil
	}
	return o.unmodified.Clone()
}

// HasBeenModified reports whether the current state differs from the
// unmodified snapshot. New objects always count as modified.
func (o *Object) HasBeenModified() bool {
	if !o.loaded {
		return true
	}
	return !props.Equal(o.unmodified, o.Properties())
}

// Clone returns a deep copy, including the unmodified snapshot.
func (o *Object) Clone() *Object {
	cp := *o
	cp.properties = o.properties.Clone()
	cp.vars = o.vars.Clone()
	cp.arguments = o.arguments.Clone()
	cp.ranges = o.ranges.Clone()
	cp.imports = slices.Clone(o.imports)
	cp.groups = slices.Clone(o.groups)
	cp.lists = make(map[string][]string, len(o.lists))
	for k, v := range o.lists {
		cp.lists[k] = slices.Clone(v)
	}
	if o.unmodified != nil {
		cp.unmodified = o.unmodified.Clone()
	}
	return &cp
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
