package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a remote operation failed
type Kind int

// Failure kinds
const (
	// KindNone is the kind of a nil error
	KindNone Kind = iota
	// TransportFailure means no response was received, e.g. a network error
	// or an expired timeout
	TransportFailure
	// AuthenticationFailure means the session credential was missing,
	// invalid or expired (401)
	AuthenticationFailure
	// AuthorizationFailure means the authenticated role may not perform the
	// operation (403)
	AuthorizationFailure
	// ValidationFailure means the request or the response payload was
	// malformed (400)
	ValidationFailure
	// NotFound means the target record does not exist (404)
	NotFound
	// Conflict means the email address is already taken (409)
	Conflict
	// ServerFailure means the server failed to process the request (5xx)
	ServerFailure
)

var kindNames = map[Kind]string{
	KindNone:              "none",
	TransportFailure:      "transport failure",
	AuthenticationFailure: "authentication failure",
	AuthorizationFailure:  "authorization failure",
	ValidationFailure:     "validation failure",
	NotFound:              "not found",
	Conflict:              "conflict",
	ServerFailure:         "server failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the error returned by all remote operations
type Error struct {
	Kind Kind
	// Status is the http status code, 0 if no response was received
	Status int
	// Message is the server's message or a description of the failure
	Message string
	// Op names the failed operation
	Op  string
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels to be used with errors.Is
var (
	ErrTransport      = &Error{Kind: TransportFailure}
	ErrAuthentication = &Error{Kind: AuthenticationFailure}
	ErrAuthorization  = &Error{Kind: AuthorizationFailure}
	ErrValidation     = &Error{Kind: ValidationFailure}
	ErrNotFound       = &Error{Kind: NotFound}
	ErrConflict       = &Error{Kind: Conflict}
	ErrServer         = &Error{Kind: ServerFailure}
)

// ErrCacheClosed is returned by operations on a closed DirectoryCache
var ErrCacheClosed = errors.New("directory cache is closed")

// KindOf returns the Kind of err. Errors that are not an *Error are reported
// as TransportFailure, since they did not come from a server response.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return TransportFailure
}

// kindForStatus maps a non-2xx http status code to a Kind
func kindForStatus(status int) Kind {
	switch {
	case status == 401:
		return AuthenticationFailure
	case status == 403:
		return AuthorizationFailure
	case status == 404:
		return NotFound
	case status == 409:
		return Conflict
	case status >= 500:
		return ServerFailure
	default:
		return ValidationFailure
	}
}
