// Package faults defines the typed error taxonomy shared by every
// network-facing operation of the engine.
//
// Each Fault carries a closed Kind, a human-readable detail, a suggested
// remediation, and the wrapped original cause. Callers match on Kind (or
// errors.Is against the cause) to decide whether to surface, retry, or drop.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a Fault. The set is closed; the wire codes are stable
// and shared with the backend services.
type Kind string

const (
	// ConnectionFailed is a transport-level failure reaching the server.
	ConnectionFailed Kind = "CONNECTION_FAILED"
	// InvalidResponse is a decode failure on an otherwise delivered response.
	InvalidResponse Kind = "INVALID_RESPONSE"
	// UnexpectedError covers anything not otherwise classified.
	UnexpectedError Kind = "UNEXPECTED_ERROR"
	// InvalidToken is an authentication rejection.
	InvalidToken Kind = "INVALID_TOKEN"
)

// Code returns the stable wire code for the kind.
func (k Kind) Code() string {
	switch k {
	case ConnectionFailed:
		return "C001PI"
	case InvalidResponse:
		return "C002PI"
	case UnexpectedError:
		return "C003PI"
	case InvalidToken:
		return "C004PI"
	default:
		return "C003PI"
	}
}

// Fault is the engine-wide error value.
type Fault struct {
	Kind   Kind
	Detail string
	Action string
	Err    error
}

// New constructs a Fault wrapping cause. Detail says what failed,
// action says what the operator should check.
func New(kind Kind, detail, action string, cause error) *Fault {
	return &Fault{Kind: kind, Detail: detail, Action: action, Err: cause}
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s [%s]: %s", f.Kind, f.Kind.Code(), f.Detail)
	}
	return fmt.Sprintf("%s [%s]: %s: %v", f.Kind, f.Kind.Code(), f.Detail, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches two Faults by Kind, so errors.Is(err, &Fault{Kind: k}) works.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if !errors.As(target, &other) {
		return false
	}
	return f.Kind == other.Kind
}

// KindOf extracts the Kind from err, or UnexpectedError when err is not a Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return UnexpectedError
}
