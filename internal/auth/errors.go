package auth

import "fmt"

// ErrorKind is the machine-readable class of an auth failure.
type ErrorKind string

const (
	KindNotAuthenticated    ErrorKind = "not_authenticated"
	KindProviderRejected    ErrorKind = "provider_rejected"
	KindMissingRefreshToken ErrorKind = "missing_refresh_token"
	KindRefreshFailed       ErrorKind = "refresh_failed"
)

// Error is returned by the Gate and the Exchanger.
// errors.Is matches any two Errors of the same Kind, so the sentinels below
// can be used as comparison targets.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// Sentinel errors.
var (
	// ErrNotAuthenticated is returned by the Gate before any login completed.
	ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated}

	// ErrProviderRejected is returned when the token endpoint refuses a code exchange.
	ErrProviderRejected = &Error{Kind: KindProviderRejected}

	// ErrMissingRefreshToken is returned when a code exchange yields no refresh token.
	ErrMissingRefreshToken = &Error{Kind: KindMissingRefreshToken}

	// ErrRefreshFailed is returned when a refresh grant does not produce a new access token.
	ErrRefreshFailed = &Error{Kind: KindRefreshFailed}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case KindNotAuthenticated:
		msg = "not authenticated"
	case KindProviderRejected:
		msg = "provider rejected authorization"
	case KindMissingRefreshToken:
		msg = "token response missing refresh_token"
	case KindRefreshFailed:
		msg = "token refresh failed"
	}
	switch {
	case e.Detail != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	case e.Err != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an auth Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
