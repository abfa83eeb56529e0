package domain

import (
	goerrors "github.com/goliatone/go-errors"
)

// Error codes understood by the orchestration engine.
const (
	CodeRetryWithState = 1
	CodeFailed         = 2
	CodeTransient      = 3
)

// Text codes attached to signal errors.
const (
	TextCodeRetryWithState = "RETRY_WITH_STATE"
	TextCodeFailed         = "FAILED"
	TextCodeTransient      = "TRANSIENT"
)

const metaState = "data"

// ErrVersionConflict is returned by a versioned store when a conditional write
// does not match the current version.
var ErrVersionConflict = goerrors.New("version conflict", goerrors.CategoryConflict).
	WithTextCode("VERSION_CONFLICT")

// ErrIncompleteScope is returned when the invocation lacks the ids a scope needs.
var ErrIncompleteScope = goerrors.New("invocation is missing the ids required by the scope", goerrors.CategoryValidation).
	WithTextCode("INCOMPLETE_SCOPE")

// NewRetryWithState asks the engine to invoke the step again with state
// placed at request.previous.
func NewRetryWithState(message string, state Object) error {
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(CodeRetryWithState).
		WithTextCode(TextCodeRetryWithState).
		WithMetadata(map[string]any{metaState: state})
}

// NewTransient signals an infrastructure hiccup. The engine retries unchanged.
func NewTransient(message string) error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(CodeTransient).
		WithTextCode(TextCodeTransient)
}

// NewFailed signals a permanent failure of the step.
func NewFailed(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(CodeFailed).
		WithTextCode(TextCodeFailed)
}

// signalOf extracts a signal error from err's chain.
func signalOf(err error) (*goerrors.Error, bool) {
	var e *goerrors.Error
	if !goerrors.As(err, &e) {
		return nil, false
	}
	switch e.TextCode {
	case TextCodeRetryWithState, TextCodeFailed, TextCodeTransient:
		return e, true
	}
	return nil, false
}

// IsTransient reports whether err carries a transient signal.
func IsTransient(err error) bool {
	e, ok := signalOf(err)
	return ok && e.Code == CodeTransient
}

// IsRetryWithState reports whether err carries a retry-with-state signal.
func IsRetryWithState(err error) bool {
	e, ok := signalOf(err)
	return ok && e.Code == CodeRetryWithState
}
