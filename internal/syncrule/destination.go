package syncrule

import (
	"strings"

	"github.com/roach88/dirsync/internal/object"
)

// DestinationKind classifies a destination field.
type DestinationKind int

const (
	// DestScalar is a plain object property.
	DestScalar DestinationKind = iota
	// DestVar is one custom variable, vars.<name>.
	DestVar
	// DestAllVars is every custom variable at once, vars.
	DestAllVars
	// DestImport is the inheritance list.
	DestImport
	// DestGroups is the group membership list.
	DestGroups
	// DestList is any other list-valued relation.
	DestList
	// DestArguments is the command argument dict.
	DestArguments
	// DestRanges is the time range dict.
	DestRanges
)

var kindNames = map[DestinationKind]string{
	DestScalar:    "scalar",
	DestVar:       "var",
	DestAllVars:   "vars",
	DestImport:    "import",
	DestGroups:    "groups",
	DestList:      "list",
	DestArguments: "arguments",
	DestRanges:    "ranges",
}

func (k DestinationKind) String() string { return kindNames[k] }

// Destination is a classified destination field.
type Destination struct {
	Kind DestinationKind
	// Field is the destination field as configured.
	Field string
	// Name is the property, variable or relation name the kind addresses.
	Name string
}

// IsDict reports whether the destination holds dict-like values, the only
// ones a merge policy applies to.
func (d Destination) IsDict() bool {
	return d.Kind == DestVar || d.Kind == DestAllVars
}

// ParseDestination classifies field against the capabilities of desc.
func ParseDestination(p SyncProperty, desc object.Descriptor) (Destination, error) {
	field := p.DestinationField
	d := Destination{Field: field, Name: field}

	switch {
	case field == "":
		return d, NewInvalidDestination(p, "destination field is required")

	case strings.HasPrefix(field, object.KeyVars+"."):
		name := strings.TrimPrefix(field, object.KeyVars+".")
		if name == "" || name == "*" || strings.TrimSpace(name) != name {
			return d, NewInvalidDestination(p, "custom variable name is required")
		}
		if !desc.SupportsCustomVars {
			return d, NewInvalidDestination(p, "%s does not support custom variables", desc.Type)
		}
		d.Kind, d.Name = DestVar, name

	case field == object.KeyVars:
		if !desc.SupportsCustomVars {
			return d, NewInvalidDestination(p, "%s does not support custom variables", desc.Type)
		}
		d.Kind = DestAllVars

	case field == "import":
		if !desc.SupportsImports {
			return d, NewInvalidDestination(p, "%s does not support imports", desc.Type)
		}
		d.Kind, d.Name = DestImport, object.KeyImports

	case field == object.KeyGroups:
		if !desc.SupportsGroups {
			return d, NewInvalidDestination(p, "%s does not support groups", desc.Type)
		}
		d.Kind = DestGroups

	case field == object.KeyArguments:
		if !desc.SupportsArguments {
			return d, NewInvalidDestination(p, "%s does not support arguments", desc.Type)
		}
		d.Kind = DestArguments

	case field == object.KeyRanges:
		if !desc.SupportsRanges {
			return d, NewInvalidDestination(p, "%s does not support ranges", desc.Type)
		}
		d.Kind = DestRanges

	case desc.IsMultiRelation(field):
		d.Kind = DestList

	case desc.HasProperty(field):
		d.Kind = DestScalar

	default:
		return d, NewInvalidDestination(p, "%s has no field %q", desc.Type, field)
	}
	return d, nil
}
