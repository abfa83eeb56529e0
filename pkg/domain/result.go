package domain

import (
	"fmt"
	"net/http"
)

// Kind is the outcome of one invocation.
type Kind int

const (
	KindSuccess Kind = iota
	KindRetryWithState
	KindTransient
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryWithState:
		return "retry_with_state"
	case KindTransient:
		return "transient"
	default:
		return "failed"
	}
}

// Code returns the errorCode sent to the engine. Success has no code.
func (k Kind) Code() int {
	switch k {
	case KindSuccess:
		return 0
	case KindRetryWithState:
		return CodeRetryWithState
	case KindTransient:
		return CodeTransient
	default:
		return CodeFailed
	}
}

// Terminal reports whether the engine should stop invoking the step.
func (k Kind) Terminal() bool {
	return k == KindSuccess || k == KindFailed
}

// KindFromCode maps an errorCode back to a Kind. Unknown codes are failures.
func KindFromCode(code int) Kind {
	switch code {
	case CodeRetryWithState:
		return KindRetryWithState
	case CodeTransient:
		return KindTransient
	default:
		return KindFailed
	}
}

// Result is what a handler returns: a success payload or one of the signals.
type Result struct {
	Kind    Kind
	Message string
	// Data is the success payload.
	Data any
	// State is the continuation payload of a retry-with-state.
	State Object
	// Stack is set when the failure came from a recovered panic.
	Stack string
}

// Success returns a successful result carrying data.
func Success(data any) Result {
	return Result{Kind: KindSuccess, Data: data}
}

// RetryWithState asks to be invoked again with state as request.previous.
func RetryWithState(message string, state Object) Result {
	if state == nil {
		state = Object{}
	}
	return Result{Kind: KindRetryWithState, Message: message, State: state}
}

// Transient asks to be invoked again unchanged after the engine's backoff.
func Transient(message string) Result {
	return Result{Kind: KindTransient, Message: message}
}

// Failed ends the step permanently.
func Failed(message string) Result {
	return Result{Kind: KindFailed, Message: message}
}

// Failedf is Failed with formatting.
func Failedf(format string, args ...any) Result {
	return Failed(fmt.Sprintf(format, args...))
}

// ResultFromError classifies err. A nil error is a success without data.
// Errors that carry no signal are coerced into a failure with the error text as message.
func ResultFromError(err error) Result {
	if err == nil {
		return Success(nil)
	}
	e, ok := signalOf(err)
	if !ok {
		return Failed(err.Error())
	}
	switch e.Code {
	case CodeRetryWithState:
		state, _ := e.Metadata[metaState].(Object)
		return RetryWithState(e.Message, state)
	case CodeTransient:
		return Transient(e.Message)
	default:
		return Failed(e.Message)
	}
}

// Err converts a signal back into an error. Success returns nil.
func (r Result) Err() error {
	switch r.Kind {
	case KindSuccess:
		return nil
	case KindRetryWithState:
		return NewRetryWithState(r.Message, r.State)
	case KindTransient:
		return NewTransient(r.Message)
	default:
		return NewFailed(r.Message)
	}
}

// StatusCode is 200 for success and 500 for every signal.
// The engine distinguishes signals by errorCode, not by status.
func (r Result) StatusCode() int {
	if r.Kind == KindSuccess {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// Envelope builds the response body.
func (r Result) Envelope() map[string]any {
	if r.Kind == KindSuccess {
		return map[string]any{"data": r.Data}
	}
	body := map[string]any{
		"errorCode": r.Kind.Code(),
		"message":   r.Message,
	}
	if r.Kind == KindRetryWithState {
		body["data"] = r.State
	}
	if r.Stack != "" {
		body["stackTrace"] = r.Stack
	}
	return body
}
