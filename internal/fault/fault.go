// Package fault classifies the failures the client can surface so callers
// can pattern-match on the kind instead of parsing messages.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure.
type Kind int

const (
	// Unknown is returned by KindOf for errors that carry no classification.
	Unknown Kind = iota
	// Timeout means the request exceeded its deadline. Never retried automatically.
	Timeout
	// Network is a transport failure (DNS, refused connection, reset).
	Network
	// Server is a non-2xx HTTP answer.
	Server
	// Logic is an HTTP 200 whose body carries ok:false.
	Logic
	// Validation is a local input check that failed before any network call.
	Validation
	// Configuration means a required setting (backend URL, API key) is missing or malformed.
	Configuration
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Network:
		return "network"
	case Server:
		return "server"
	case Logic:
		return "logic"
	case Validation:
		return "validation"
	case Configuration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Status is only set for Server errors.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. Returns nil when err is nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// ServerError builds a Server error for an HTTP status.
func ServerError(status int, message string) error {
	return &Error{Kind: Server, Status: status, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the fetch client should try again after err.
// Timeouts are left to the caller; local validation and configuration
// errors never improve by repetition.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Network, Server, Logic:
		return true
	default:
		return false
	}
}

// Message returns the human-facing text of err: the classified message
// when there is one, otherwise err.Error().
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
