package syncrule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dirsync/internal/filter"
	"github.com/roach88/dirsync/internal/object"
)

// CompiledProperty is a sync property with its destination classified and
// its expressions parsed.
type CompiledProperty struct {
	SyncProperty

	Destination Destination
	Expression  Expression

	// Filter is nil when the property always applies.
	Filter filter.Expr

	// Policy is the effective merge policy. It is always override for
	// destinations that do not hold dicts.
	Policy MergePolicy
}

// Plan is a sync rule validated against its object type, ready to evaluate.
type Plan struct {
	Rule       SyncRule
	Descriptor object.Descriptor

	// Properties in ascending priority.
	Properties []CompiledProperty
}

// Compile validates rule against desc and returns its evaluation plan.
//
// Every property is checked; all problems are returned together.
func Compile(rule SyncRule, desc object.Descriptor) (*Plan, error) {
	if rule.ObjectType != desc.Type {
		return nil, fmt.Errorf("rule %q targets %q, descriptor is for %q", rule.Name, rule.ObjectType, desc.Type)
	}

	plan := &Plan{Rule: rule, Descriptor: desc}
	var errs []error
	seen := make(map[int]string)

	for _, p := range rule.OrderedProperties() {
		if prev, dup := seen[p.Priority]; dup {
			errs = append(errs, NewInvalidDestination(p, "priority %d already used by %q", p.Priority, prev))
			continue
		}
		seen[p.Priority] = p.DestinationField

		cp, err := compileProperty(p, desc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plan.Properties = append(plan.Properties, cp)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, errors.Join(errs...))
	}
	return plan, nil
}

func compileProperty(p SyncProperty, desc object.Descriptor) (CompiledProperty, error) {
	if !p.MergePolicy.Valid() {
		return CompiledProperty{}, NewInvalidDestination(p, "unknown merge policy %q", p.MergePolicy)
	}

	dest, err := ParseDestination(p, desc)
	if err != nil {
		return CompiledProperty{}, err
	}

	cp := CompiledProperty{
		SyncProperty: p,
		Destination:  dest,
		Expression:   ParseExpression(p.SourceExpression),
		Policy:       MergePolicyOverride,
	}
	if dest.IsDict() && p.MergePolicy == MergePolicyMerge {
		cp.Policy = MergePolicyMerge
	}

	switch dest.Kind {
	case DestAllVars:
		if !cp.Expression.IsEmpty() && !cp.Expression.IsColumnReference() {
			return CompiledProperty{}, NewInvalidDestination(p, "vars takes a single ${column} or no expression")
		}
	case DestArguments, DestRanges:
		if !cp.Expression.IsColumnReference() {
			return CompiledProperty{}, NewInvalidDestination(p, "%s takes a single ${column}", dest.Field)
		}
	default:
		if cp.Expression.IsEmpty() {
			return CompiledProperty{}, NewInvalidDestination(p, "source expression is required")
		}
	}

	if strings.TrimSpace(p.FilterExpression) != "" {
		f, err := filter.Parse(p.FilterExpression)
		if err != nil {
			return CompiledProperty{}, NewInvalidFilter(p, err)
		}
		cp.Filter = f
	}
	return cp, nil
}

// PropertiesForSource returns the plan properties fed by one import source,
// in ascending priority.
func (p *Plan) PropertiesForSource(sourceID int64) []CompiledProperty {
	var out []CompiledProperty
	for _, cp := range p.Properties {
		if cp.SourceID == sourceID {
			out = append(out, cp)
		}
	}
	return out
}
