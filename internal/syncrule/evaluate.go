package syncrule

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/dirsync/internal/object"
	"github.com/roach88/dirsync/internal/props"
)

// State is a step of property evaluation.
//
//	Idle -> FilterCheck -> {Skip | Resolve} -> {Merge | Override} -> Applied
type State string

const (
	StateIdle        State = "idle"
	StateFilterCheck State = "filter_check"
	StateSkip        State = "skip"
	StateResolve     State = "resolve"
	StateMerge       State = "merge"
	StateOverride    State = "override"
	StateApplied     State = "applied"
)

// Outcome describes what one property did to one object for one row.
type Outcome struct {
	PropertyID int64
	Field      string

	// State is the final state: StateSkip or StateApplied, or StateResolve
	// when resolution failed.
	State State

	// Path lists every state visited, starting at StateIdle.
	Path []State

	// Policy is the policy actually used. Merge is only reported when both
	// the existing and the new value were dicts.
	Policy MergePolicy
}

// TemplateCatalog lists the templates available for an object type.
type TemplateCatalog interface {
	Templates(objectType string) []string
}

// Evaluator applies compiled properties to objects.
type Evaluator struct {
	plan      *Plan
	templates TemplateCatalog
}

// NewEvaluator creates an evaluator for plan. When templates is nil, bulk
// import accepts any resolved name.
func NewEvaluator(plan *Plan, templates TemplateCatalog) *Evaluator {
	return &Evaluator{plan: plan, templates: templates}
}

// Plan returns the plan being evaluated.
func (e *Evaluator) Plan() *Plan { return e.plan }

// Apply runs one property against one row, mutating obj.
//
// A false filter leaves obj untouched and reports StateSkip. An unresolvable
// bulk import returns an UNRESOLVED_TEMPLATE_CHOICE error and also leaves obj
// untouched. Other errors come from obj rejecting the value.
func (e *Evaluator) Apply(obj *object.Object, p CompiledProperty, row props.Dict) (Outcome, error) {
	out := Outcome{
		PropertyID: p.ID,
		Field:      p.DestinationField,
		State:      StateIdle,
		Path:       []State{StateIdle},
		Policy:     MergePolicyOverride,
	}
	out.step(StateFilterCheck)

	if p.Filter != nil && !p.Filter.Match(row) {
		out.step(StateSkip)
		return out, nil
	}
	out.step(StateResolve)

	merged, err := e.resolveAndApply(obj, p, row)
	if err != nil {
		return out, err
	}
	if merged {
		out.Policy = MergePolicyMerge
		out.step(StateMerge)
	} else {
		out.step(StateOverride)
	}
	out.step(StateApplied)
	return out, nil
}

func (o *Outcome) step(s State) {
	o.State = s
	o.Path = append(o.Path, s)
}

// resolveAndApply reports whether any value was merged rather than replaced.
func (e *Evaluator) resolveAndApply(obj *object.Object, p CompiledProperty, row props.Dict) (bool, error) {
	dest := p.Destination

	switch dest.Kind {
	case DestScalar:
		return false, obj.Set(dest.Name, p.Expression.Resolve(row))

	case DestVar:
		return applyVar(obj, dest.Name, p.Expression.Resolve(row), p.Policy)

	case DestAllVars:
		merged := false
		for name, v := range bulkEntries(p.Expression, row) {
			m, err := applyVar(obj, name, v, p.Policy)
			if err != nil {
				return false, err
			}
			merged = merged || m
		}
		return merged, nil

	case DestImport:
		names := e.templateChoices(obj.Type(), p.Expression.Resolve(row))
		if len(names) == 0 {
			return false, NewUnresolvedTemplateChoice(p.SyncProperty, objectLabel(obj, row))
		}
		_, err := obj.AddImports(names...)
		return false, err

	case DestGroups:
		return false, obj.SetGroups(props.StringList(p.Expression.Resolve(row)))

	case DestList:
		return false, obj.SetList(dest.Name, props.StringList(p.Expression.Resolve(row)))

	case DestArguments, DestRanges:
		for key, v := range bulkEntries(p.Expression, row) {
			if err := obj.SetDictEntry(dest.Field, key, v); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unhandled destination kind %s", dest.Kind)
}

// applyVar sets one custom variable. With the merge policy, a dict value is
// unioned into an existing dict value; in every other case it replaces it.
func applyVar(obj *object.Object, name string, v props.Value, policy MergePolicy) (bool, error) {
	if policy == MergePolicyMerge {
		existing, okExisting := obj.Var(name).(props.Dict)
		incoming, okIncoming := v.(props.Dict)
		if okExisting && okIncoming {
			return true, obj.SetVar(name, props.Merge(existing, incoming))
		}
	}
	return false, obj.SetVar(name, v)
}

// bulkEntries yields the entries a bulk dict destination takes from row: the
// referenced dict column, or every column when there is no expression.
func bulkEntries(expr Expression, row props.Dict) props.Dict {
	if expr.IsEmpty() {
		return row
	}
	if d, ok := expr.Resolve(row).(props.Dict); ok {
		return d
	}
	return nil
}

func (e *Evaluator) templateChoices(objectType string, v props.Value) []string {
	names := props.StringList(v)
	if e.templates == nil {
		return names
	}
	known := e.templates.Templates(objectType)
	return slices.DeleteFunc(names, func(n string) bool {
		return !slices.Contains(known, n)
	})
}

func objectLabel(obj *object.Object, row props.Dict) string {
	if obj.Name() != "" {
		return obj.Name()
	}
	return props.Text(row["object_name"])
}

// RowResult collects the outcomes of applying several properties to one
// object.
type RowResult struct {
	Outcomes []Outcome

	// Unresolved holds the UNRESOLVED_TEMPLATE_CHOICE errors. The remaining
	// properties were still applied.
	Unresolved []*Error
}

// Applied reports how many properties changed the object.
func (r RowResult) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == StateApplied {
			n++
		}
	}
	return n
}

// ApplyRows applies every plan property, in ascending priority, using the
// row each property's source supplied for this object. Properties whose
// source has no row are not visited.
func (e *Evaluator) ApplyRows(obj *object.Object, rows map[int64]props.Dict) (RowResult, error) {
	var res RowResult
	for _, p := range e.plan.Properties {
		row, ok := rows[p.SourceID]
		if !ok {
			continue
		}
		out, err := e.Apply(obj, p, row)
		res.Outcomes = append(res.Outcomes, out)
		if err != nil {
			var se *Error
			if errors.As(err, &se) && se.Code == ErrCodeUnresolvedTemplateChoice {
				res.Unresolved = append(res.Unresolved, se)
				continue
			}
			return res, fmt.Errorf("apply %s to %s %q: %w", p.DestinationField, obj.Type(), obj.Name(), err)
		}
	}
	return res, nil
}

// ApplyRow applies the properties fed by one source to one row.
func (e *Evaluator) ApplyRow(obj *object.Object, sourceID int64, row props.Dict) (RowResult, error) {
	return e.ApplyRows(obj, map[int64]props.Dict{sourceID: row})
}
