package engine

import (
	"errors"
	"fmt"
)

// RowError describes one import key that could not be turned into an object.
//
// Row errors do not stop a run; they are collected into the Summary. Errors
// that do stop a run (source fetch failures, store and log failures) are
// returned from Run.
type RowError struct {
	// Code identifies the error category.
	Code RowErrorCode `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Key is the key column value of the rows involved.
	Key string `json:"key,omitempty"`

	// Object is the object name, when the rows produced one.
	Object string `json:"object,omitempty"`

	// PropertyID identifies the sync property, when known.
	PropertyID int64 `json:"property_id,omitempty"`
}

// RowErrorCode categorizes row errors.
type RowErrorCode string

const (
	// ErrCodeMissingKey indicates a row with an empty key column.
	ErrCodeMissingKey RowErrorCode = "MISSING_KEY"

	// ErrCodeNoObjectName indicates rows that produced no object_name.
	ErrCodeNoObjectName RowErrorCode = "NO_OBJECT_NAME"

	// ErrCodeDuplicateObject indicates two keys producing the same object.
	ErrCodeDuplicateObject RowErrorCode = "DUPLICATE_OBJECT"

	// ErrCodeUnresolvedTemplate indicates a bulk import with no candidate.
	ErrCodeUnresolvedTemplate RowErrorCode = "UNRESOLVED_TEMPLATE_CHOICE"

	// ErrCodeApplyFailed indicates the object rejected a resolved value.
	ErrCodeApplyFailed RowErrorCode = "APPLY_FAILED"
)

// Error implements the error interface.
func (e *RowError) Error() string {
	switch {
	case e.Object != "":
		return fmt.Sprintf("%s: %s (object=%s)", e.Code, e.Message, e.Object)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRowError reports whether err is a RowError with the given code.
// Uses errors.As to handle wrapped errors.
func IsRowError(err error, code RowErrorCode) bool {
	var re *RowError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// ErrRunAborted wraps the cause of a run that stopped before committing
// everything. Objects committed before the failure stay committed.
var ErrRunAborted = errors.New("sync run aborted")
