// Package syncrule holds sync rules, their properties and the evaluator that
// applies one property to one import row.
//
// A rule is compiled once against the capability descriptor of its object
// type (Compile). Compilation is where bad filters and unusable destination
// fields are rejected; the Evaluator then only sees resolved destinations.
package syncrule

import (
	"cmp"
	"fmt"
	"slices"
)

// MergePolicy decides how a value is combined with what the destination
// already holds.
type MergePolicy string

const (
	MergePolicyMerge    MergePolicy = "merge"
	MergePolicyOverride MergePolicy = "override"
)

// Valid reports whether p is a known policy. The empty policy is valid and
// means override.
func (p MergePolicy) Valid() bool {
	switch p {
	case "", MergePolicyMerge, MergePolicyOverride:
		return true
	}
	return false
}

// SyncProperty maps one source expression onto one destination field.
type SyncProperty struct {
	ID               int64       `json:"id,omitempty" yaml:"id,omitempty"`
	RuleID           int64       `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	SourceID         int64       `json:"source_id" yaml:"source_id"`
	DestinationField string      `json:"destination_field" yaml:"destination_field"`
	SourceExpression string      `json:"source_expression,omitempty" yaml:"source_expression,omitempty"`
	FilterExpression string      `json:"filter_expression,omitempty" yaml:"filter_expression,omitempty"`
	MergePolicy      MergePolicy `json:"merge_policy,omitempty" yaml:"merge_policy,omitempty"`
	Priority         int         `json:"priority" yaml:"priority"`
}

// SyncRule is an ordered set of sync properties for one object type.
type SyncRule struct {
	ID         int64          `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string         `json:"name" yaml:"name"`
	ObjectType string         `json:"object_type" yaml:"object_type"`
	Purge      bool           `json:"purge,omitempty" yaml:"purge,omitempty"`
	Properties []SyncProperty `json:"properties" yaml:"properties"`
}

// PriorityForNextProperty returns one more than the highest priority in use,
// or 1 for a rule without properties.
func (r *SyncRule) PriorityForNextProperty() int {
	highest := 0
	for _, p := range r.Properties {
		highest = max(highest, p.Priority)
	}
	return highest + 1
}

// AddProperty attaches p to the rule. A zero priority gets the next free one;
// an explicit priority already taken by another property is rejected.
func (r *SyncRule) AddProperty(p SyncProperty) (SyncProperty, error) {
	if p.Priority == 0 {
		p.Priority = r.PriorityForNextProperty()
	} else {
		for _, existing := range r.Properties {
			if existing.Priority == p.Priority {
				return SyncProperty{}, fmt.Errorf("rule %q: priority %d already used by %q",
					r.Name, p.Priority, existing.DestinationField)
			}
		}
	}
	p.RuleID = r.ID
	r.Properties = append(r.Properties, p)
	return p, nil
}

// ListInvolvedSourceIDs returns the distinct source ids referenced by the
// rule's properties, ascending.
func (r *SyncRule) ListInvolvedSourceIDs() []int64 {
	ids := make([]int64, 0, len(r.Properties))
	for _, p := range r.Properties {
		ids = append(ids, p.SourceID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// OrderedProperties returns the properties in ascending priority. Equal
// priorities keep their insertion order.
func (r *SyncRule) OrderedProperties() []SyncProperty {
	out := slices.Clone(r.Properties)
	slices.SortStableFunc(out, func(a, b SyncProperty) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}
