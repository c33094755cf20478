package object

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Descriptor is the static capability table entry for one configuration
// object type. It replaces runtime introspection of a dummy object.
type Descriptor struct {
	Type               string
	SupportsCustomVars bool
	SupportsImports    bool
	SupportsArguments  bool
	SupportsGroups     bool
	SupportsRanges     bool

	// Properties lists plain columns, including "id" and "*_id" foreign keys.
	Properties []string

	// MultiRelations lists properties holding a list of object names.
	MultiRelations []string

	// Relations lists single-object relations resolved from "*_id" columns.
	Relations []string
}

// ListProperties returns the plain property columns.
func (d Descriptor) ListProperties() []string {
	return slices.Clone(d.Properties)
}

// ListMultiRelations returns the list-valued relation properties.
func (d Descriptor) ListMultiRelations() []string {
	return slices.Clone(d.MultiRelations)
}

// HasRelation reports whether name is a single-object relation.
func (d Descriptor) HasRelation(name string) bool {
	return slices.Contains(d.Relations, name)
}

// IsMultiRelation reports whether name is a list-valued relation.
func (d Descriptor) IsMultiRelation(name string) bool {
	return slices.Contains(d.MultiRelations, name)
}

// HasProperty reports whether name is a settable plain property, either a
// column or a relation exposed without its "_id" suffix.
func (d Descriptor) HasProperty(name string) bool {
	if name == "id" {
		return false
	}
	if slices.Contains(d.Properties, name) && !strings.HasSuffix(name, "_id") {
		return true
	}
	return d.HasRelation(name) && slices.Contains(d.Properties, name+"_id")
}

var commonProperties = []string{"id", "object_name", "object_type", "disabled", "zone_id"}

func withCommon(extra ...string) []string {
	return append(slices.Clone(commonProperties), extra...)
}

// descriptors is the capability table keyed by object type name.
var descriptors = map[string]Descriptor{
	"host": {
		Type:               "host",
		SupportsCustomVars: true,
		SupportsImports:    true,
		SupportsGroups:     true,
		Properties: withCommon("display_name", "address", "address6", "check_command_id",
			"check_interval", "retry_interval", "max_check_attempts", "enable_notifications",
			"enable_active_checks", "command_endpoint_id", "notes", "notes_url", "icon_image"),
		Relations: []string{"zone", "check_command", "command_endpoint"},
	},
	"service": {
		Type:               "service",
		SupportsCustomVars: true,
		SupportsImports:    true,
		SupportsGroups:     true,
		Properties: withCommon("display_name", "host_id", "check_command_id", "check_interval",
			"retry_interval", "max_check_attempts", "enable_notifications", "enable_active_checks",
			"command_endpoint_id", "notes", "notes_url"),
		Relations: []string{"zone", "host", "check_command", "command_endpoint"},
	},
	"command": {
		Type:               "command",
		SupportsCustomVars: true,
		SupportsImports:    true,
		SupportsArguments:  true,
		Properties:         withCommon("methods_execute", "command", "timeout"),
		Relations:          []string{"zone"},
	},
	"user": {
		Type:               "user",
		SupportsCustomVars: true,
		SupportsImports:    true,
		SupportsGroups:     true,
		Properties:         withCommon("display_name", "email", "pager", "enable_notifications", "period_id"),
		MultiRelations:     []string{"states", "types"},
		Relations:          []string{"zone", "period"},
	},
	"notification": {
		Type:               "notification",
		SupportsCustomVars: true,
		SupportsImports:    true,
		Properties: withCommon("apply_to", "host_id", "service_id", "command_id",
			"times_begin", "times_end", "notification_interval", "period_id"),
		MultiRelations: []string{"users", "user_groups", "states", "types"},
		Relations:      []string{"zone", "host", "service", "command", "period"},
	},
	"timeperiod": {
		Type:               "timeperiod",
		SupportsCustomVars: true,
		SupportsImports:    true,
		SupportsRanges:     true,
		Properties:         withCommon("display_name", "update_method", "prefer_includes"),
		Relations:          []string{"zone"},
	},
	"hostgroup": {
		Type:       "hostgroup",
		Properties: []string{"id", "object_name", "object_type", "disabled", "display_name", "assign_filter"},
	},
	"servicegroup": {
		Type:       "servicegroup",
		Properties: []string{"id", "object_name", "object_type", "disabled", "display_name", "assign_filter"},
	},
	"usergroup": {
		Type:       "usergroup",
		Properties: []string{"id", "object_name", "object_type", "disabled", "display_name", "zone_id"},
		Relations:  []string{"zone"},
	},
	"zone": {
		Type:            "zone",
		SupportsImports: true,
		Properties:      []string{"id", "object_name", "object_type", "disabled", "parent_id", "is_global"},
		Relations:       []string{"parent"},
	},
	"endpoint": {
		Type:            "endpoint",
		SupportsImports: true,
		Properties:      withCommon("host", "port", "log_duration"),
		Relations:       []string{"zone"},
	},
}

// Lookup returns the descriptor for an object type.
func Lookup(objectType string) (Descriptor, error) {
	d, ok := descriptors[objectType]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown object type %q", objectType)
	}
	return d, nil
}

// Types returns all known object type names, sorted.
func Types() []string {
	types := make([]string, 0, len(descriptors))
	for t := range descriptors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Field is one selectable sync destination.
type Field struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Special bool   `json:"special"`
}

// DestinationFields enumerates the destination fields of an object type:
// special fields first (by capability), then object properties sorted by
// name. "id" is never offered; "foo_id" is offered as "foo" only when foo is
// a relation of the type.
func DestinationFields(d Descriptor) []Field {
	var fields []Field
	if d.SupportsCustomVars {
		fields = append(fields,
			Field{Name: "vars.*", Label: "Custom variable (vars.)", Special: true},
			Field{Name: "vars", Label: "All custom variables (vars)", Special: true},
		)
	}
	if d.SupportsImports {
		fields = append(fields, Field{Name: "import", Label: "Inheritance (import)", Special: true})
	}
	if d.SupportsArguments {
		fields = append(fields, Field{Name: "arguments", Label: "Arguments", Special: true})
	}
	if d.SupportsGroups {
		fields = append(fields, Field{Name: "groups", Label: "Group membership", Special: true})
	}
	if d.SupportsRanges {
		fields = append(fields, Field{Name: "ranges", Label: "Time ranges", Special: true})
	}

	labels := make(map[string]string)
	for _, prop := range d.Properties {
		if prop == "id" {
			continue
		}
		if strings.HasSuffix(prop, "_id") {
			prop = strings.TrimSuffix(prop, "_id")
			if !d.HasRelation(prop) {
				continue
			}
		}
		labels[prop] = prop
	}
	for _, prop := range d.MultiRelations {
		labels[prop] = prop + " (a list)"
	}

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields = append(fields, Field{Name: name, Label: labels[name]})
	}
	return fields
}
