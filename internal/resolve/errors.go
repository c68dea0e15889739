package resolve

import "fmt"

// NotFoundError indicates no member matched the requested name on a type.
type NotFoundError struct {
	Type   string
	Member string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no member %q found on type %s", e.Member, e.Type)
}

func NewNotFoundError(typeName, member string) *NotFoundError {
	return &NotFoundError{Type: typeName, Member: member}
}

// AmbiguousOverloadError indicates multiple members matched and the user
// aborted instead of choosing one. A resolved ambiguity is not an error.
type AmbiguousOverloadError struct {
	Type   string
	Member string
	Count  int
	Cause  error
}

func (e *AmbiguousOverloadError) Error() string {
	return fmt.Sprintf("%d overloads of %s.%s and no selection was made", e.Count, e.Type, e.Member)
}

func (e *AmbiguousOverloadError) Unwrap() error { return e.Cause }

// BindingError indicates a supplied value could not be cast to a parameter's
// declared type. Binding degrades to a nil slot; the error surfaces only when
// the underlying call later rejects the value.
type BindingError struct {
	Param string
	Type  string
	Cause error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("cannot bind parameter %q of type %s", e.Param, e.Type)
}

func (e *BindingError) Unwrap() error { return e.Cause }

// GenericInferenceError indicates no candidate method's generic-slot layout
// matched the supplied argument types.
type GenericInferenceError struct {
	Type   string
	Method string
}

func (e *GenericInferenceError) Error() string {
	return fmt.Sprintf("cannot find a method %q on type %s matching the supplied argument types", e.Method, e.Type)
}

// InvocationError wraps a failure of the underlying call with added context.
// The original cause is preserved for errors.Is/errors.As.
type InvocationError struct {
	Type      string
	Method    string
	RequestID string
	Detail    string
	Cause     error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("invoking %s.%s failed", e.Type, e.Method)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Cause }
