package engine

import (
	"errors"
	"fmt"
)

// EvalError represents a failure detected while dispatching a condition.
//
// With the default PanicIsolate policy these errors never escape the
// scheduler: they are logged, counted, recorded to the audit trace, and
// the pass continues with the next entry.
type EvalError struct {
	// Code identifies the error category.
	Code EvalErrorCode

	// CheckID identifies the affected condition.
	CheckID string

	// Kind is the condition's check kind.
	Kind CheckKind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// EvalErrorCode categorizes evaluation errors.
type EvalErrorCode string

const (
	// ErrCodePredicatePanic indicates a predicate panicked during dispatch.
	ErrCodePredicatePanic EvalErrorCode = "PREDICATE_PANIC"
)

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.CheckID != "" {
		return fmt.Sprintf("%s: %s (check=%s, kind=%s)", e.Code, e.Message, e.CheckID, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// IsPredicatePanic reports whether err is a recovered predicate panic.
// Uses errors.As to handle wrapped errors.
func IsPredicatePanic(err error) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodePredicatePanic
	}
	return false
}

// newPanicError wraps a recovered panic value for a condition.
func newPanicError(checkID string, kind CheckKind, recovered any) *EvalError {
	var cause error
	if err, ok := recovered.(error); ok {
		cause = err
	}
	return &EvalError{
		Code:    ErrCodePredicatePanic,
		CheckID: checkID,
		Kind:    kind,
		Message: fmt.Sprintf("predicate panicked: %v", recovered),
		Err:     cause,
	}
}
