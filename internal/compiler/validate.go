package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/dirsync/internal/object"
	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/syncrule"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownSource      = "E110" // property reads from an undefined source
	ErrUnknownObjectType  = "E111" // rule targets an unknown object type
	ErrInvalidFilter      = "E112" // malformed filter expression
	ErrInvalidDestination = "E113" // destination the object type cannot take
	ErrInvalidSource      = "E116" // source definition incomplete or unknown kind
	ErrInvalidRule        = "E119" // any other rule compilation failure
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Rule    string `json:"rule,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("[%s] rule %q: %s: %s", e.Code, e.Rule, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks every source and rule of the bundle.
// Returns all errors found (does not fail-fast).
func Validate(b *Bundle) []ValidationError {
	_, errs := Plans(b)
	return errs
}

// Plans compiles every rule of the bundle against its object type. Rules
// that fail are left out of the map and reported.
func Plans(b *Bundle) (map[string]*syncrule.Plan, []ValidationError) {
	var errs []ValidationError

	for _, def := range b.Sources {
		if _, err := source.Open(def); err != nil {
			errs = append(errs, ValidationError{
				Field:   "source." + def.Name,
				Message: err.Error(),
				Code:    ErrInvalidSource,
			})
		}
	}

	plans := make(map[string]*syncrule.Plan, len(b.Rules))
	for _, rule := range b.Rules {
		ruleErrs := validateRule(b, rule)
		if len(ruleErrs) > 0 {
			errs = append(errs, ruleErrs...)
			continue
		}

		desc, _ := object.Lookup(rule.ObjectType)
		plan, err := syncrule.Compile(rule, desc)
		if err != nil {
			errs = append(errs, compileErrors(rule, err)...)
			continue
		}
		plans[rule.Name] = plan
	}
	return plans, errs
}

func validateRule(b *Bundle, rule syncrule.SyncRule) []ValidationError {
	var errs []ValidationError

	if _, err := object.Lookup(rule.ObjectType); err != nil {
		errs = append(errs, ValidationError{
			Field:   "object_type",
			Message: err.Error(),
			Code:    ErrUnknownObjectType,
			Rule:    rule.Name,
		})
	}

	for i, p := range rule.Properties {
		if _, ok := b.SourceByID(p.SourceID); !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("properties[%d].source", i),
				Message: fmt.Sprintf("no source with id %d", p.SourceID),
				Code:    ErrUnknownSource,
				Rule:    rule.Name,
			})
		}
	}
	return errs
}

// compileErrors maps the joined errors of syncrule.Compile to validation
// errors, one per property.
func compileErrors(rule syncrule.SyncRule, err error) []ValidationError {
	var out []ValidationError
	for _, e := range leafErrors(err) {
		ve := ValidationError{Message: e.Error(), Code: ErrInvalidRule, Rule: rule.Name, Field: "rule"}
		var se *syncrule.Error
		if errors.As(e, &se) {
			ve.Field = se.Field
			ve.Message = se.Message
			if se.Err != nil {
				ve.Message = fmt.Sprintf("%s: %v", se.Message, se.Err)
			}
			switch se.Code {
			case syncrule.ErrCodeInvalidFilter:
				ve.Code = ErrInvalidFilter
			case syncrule.ErrCodeInvalidDestination:
				ve.Code = ErrInvalidDestination
			}
		}
		out = append(out, ve)
	}
	return out
}

// leafErrors flattens wrapped and joined errors down to the *syncrule.Error
// values they carry.
func leafErrors(err error) []error {
	switch x := err.(type) {
	case *syncrule.Error:
		return []error{x}
	case interface{ Unwrap() []error }:
		var out []error
		for _, e := range x.Unwrap() {
			out = append(out, leafErrors(e)...)
		}
		return out
	}
	if inner := errors.Unwrap(err); inner != nil {
		return leafErrors(inner)
	}
	return []error{err}
}
