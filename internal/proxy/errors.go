package proxy

import "fmt"

// ErrorKind is the machine-readable class of a proxied-call failure.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindReauthRequired  ErrorKind = "reauth_required"
	KindUpstreamFailure ErrorKind = "upstream_failure"
)

// Error is returned by every Proxy operation.
// Status is the provider HTTP status for upstream failures, 0 when there was none.
type Error struct {
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

// Sentinel errors, for use with errors.Is.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrReauthRequired  = &Error{Kind: KindReauthRequired}
	ErrUpstreamFailure = &Error{Kind: KindUpstreamFailure}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a proxy Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
