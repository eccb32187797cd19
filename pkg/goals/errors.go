package goals

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a goal or ledger failure.
type ErrorClass string

const (
	// ErrorClassRecoverable indicates a no-op failure the caller could have
	// avoided by checking state first (advancing while not ready, undoing an
	// empty ledger). State is left unchanged.
	ErrorClassRecoverable ErrorClass = "recoverable"

	// ErrorClassContract indicates a defect between the placement layer, the
	// goal data or the save mirror. State is left unchanged.
	ErrorClassContract ErrorClass = "contract"

	// ErrorClassStorage indicates the save mirror rejected a write.
	// The in-memory mutation is rolled back.
	ErrorClassStorage ErrorClass = "storage"
)

// Error codes.
const (
	ErrCodeNotReady          = "NOT_READY"
	ErrCodeLedgerEmpty       = "LEDGER_EMPTY"
	ErrCodeUnknownObjectKind = "UNKNOWN_OBJECT_KIND"
	ErrCodeDesyncDetected    = "DESYNC_DETECTED"
	ErrCodeCountExhausted    = "COUNT_EXHAUSTED"
	ErrCodeInvalidCatalog    = "INVALID_CATALOG"
	ErrCodeInvalidSave       = "INVALID_SAVE"
	ErrCodeMirrorFailed      = "MIRROR_FAILED"
)

// GoalError represents a classified error with context.
// nolint:revive // GoalError is intentionally named to distinguish from standard errors
type GoalError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code identifies the failure kind for programmatic handling.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Kind is the object kind involved, if any.
	Kind string `json:"kind,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Sentinel errors for errors.Is matching. Matching compares class and code only.
var (
	ErrNotReady          = &GoalError{Class: ErrorClassRecoverable, Code: ErrCodeNotReady}
	ErrLedgerEmpty       = &GoalError{Class: ErrorClassRecoverable, Code: ErrCodeLedgerEmpty}
	ErrCountExhausted    = &GoalError{Class: ErrorClassRecoverable, Code: ErrCodeCountExhausted}
	ErrUnknownObjectKind = &GoalError{Class: ErrorClassContract, Code: ErrCodeUnknownObjectKind}
	ErrDesyncDetected    = &GoalError{Class: ErrorClassContract, Code: ErrCodeDesyncDetected}
	ErrInvalidCatalog    = &GoalError{Class: ErrorClassContract, Code: ErrCodeInvalidCatalog}
	ErrInvalidSave       = &GoalError{Class: ErrorClassContract, Code: ErrCodeInvalidSave}
	ErrMirrorFailed      = &GoalError{Class: ErrorClassStorage, Code: ErrCodeMirrorFailed}
)

// Error implements the error interface.
func (e *GoalError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Operation != "" {
		msg += fmt.Sprintf(" (operation=%s", e.Operation)
		if e.Kind != "" {
			msg += fmt.Sprintf(", kind=%s", e.Kind)
		}
		msg += ")"
	} else if e.Kind != "" {
		msg += fmt.Sprintf(" (kind=%s)", e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *GoalError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *GoalError) Is(target error) bool {
	t, ok := target.(*GoalError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, code, message string, err error) *GoalError {
	return &GoalError{
		Class:   class,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewNotReadyError reports an advance attempted while the gating conditions are unmet.
func NewNotReadyError(goalIndex int) *GoalError {
	return newError(ErrorClassRecoverable, ErrCodeNotReady, "current goal is not ready to advance", nil).
		WithDetail("goal_index", goalIndex)
}

// NewLedgerEmptyError reports an undo with nothing to undo.
func NewLedgerEmptyError() *GoalError {
	return newError(ErrorClassRecoverable, ErrCodeLedgerEmpty, "placement ledger is empty", nil)
}

// NewCountExhaustedError reports a placement of a kind with no remaining allowance.
func NewCountExhaustedError(kind ObjectType) *GoalError {
	return newError(ErrorClassRecoverable, ErrCodeCountExhausted, "no remaining allowance for object kind", nil).
		WithKind(kind)
}

// NewUnknownObjectKindError reports a kind absent from the active working set.
func NewUnknownObjectKindError(kind ObjectType) *GoalError {
	return newError(ErrorClassContract, ErrCodeUnknownObjectKind, "object kind is not part of the active goal", nil).
		WithKind(kind)
}

// NewDesyncError reports ledger-implied counts that disagree with the working set.
func NewDesyncError(message string) *GoalError {
	return newError(ErrorClassContract, ErrCodeDesyncDetected, message, nil)
}

// NewInvalidCatalogError reports a catalog that cannot drive progression.
func NewInvalidCatalogError(message string, err error) *GoalError {
	return newError(ErrorClassContract, ErrCodeInvalidCatalog, message, err)
}

// NewInvalidSaveError reports a save mirror snapshot that does not fit the catalog.
func NewInvalidSaveError(message string, err error) *GoalError {
	return newError(ErrorClassContract, ErrCodeInvalidSave, message, err)
}

// NewMirrorError wraps a save mirror write failure.
func NewMirrorError(operation string, err error) *GoalError {
	return newError(ErrorClassStorage, ErrCodeMirrorFailed, "save mirror write failed", err).
		WithOperation(operation)
}

// WithKind adds object kind context to an error.
func (e *GoalError) WithKind(kind ObjectType) *GoalError {
	e.Kind = kind.String()
	return e
}

// WithOperation adds operation context to an error.
func (e *GoalError) WithOperation(operation string) *GoalError {
	e.Operation = operation
	return e
}

// WithDetail adds a detail field to the error context.
func (e *GoalError) WithDetail(key string, value interface{}) *GoalError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsRecoverable returns true if the error is a recoverable no-op.
func IsRecoverable(err error) bool {
	var e *GoalError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRecoverable
	}
	return false
}

// IsContractViolation returns true if the error indicates a defect elsewhere.
func IsContractViolation(err error) bool {
	var e *GoalError
	if errors.As(err, &e) {
		return e.Class == ErrorClassContract
	}
	return false
}

// CodeOf returns the error code of a GoalError in the chain, or "" if none.
func CodeOf(err error) string {
	var e *GoalError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
