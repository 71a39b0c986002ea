// Package skierr defines the error taxonomy shared by every analytical
// component: InputError, TopologyError, LogicError, ExternalError and
// Cancelled. Callers use errors.Is(err, skierr.KindInputError) and
// friends rather than string matching.
package skierr

import "fmt"

// Kind classifies an Error per the error taxonomy.
type Kind int

const (
	// InputError means malformed or otherwise invalid user input.
	InputError Kind = iota
	// TopologyError means a multipolygon could not be assembled.
	TopologyError
	// LogicError means an internal invariant was violated.
	LogicError
	// ExternalError is propagated from a collaborator (I/O, network).
	ExternalError
	// Cancelled means cooperative cancellation was observed.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InputError:
		return "InputError"
	case TopologyError:
		return "TopologyError"
	case LogicError:
		return "LogicError"
	case ExternalError:
		return "ExternalError"
	case Cancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type returned by every non-trivial
// operation in this module.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, skierr.New(kind, "")) to match by Kind alone,
// and supports the package-level sentinel kind values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// sentinel instances for errors.Is(err, skierr.KindInputError) style checks.
var (
	KindInputError    = &Error{Kind: InputError}
	KindTopologyError = &Error{Kind: TopologyError}
	KindLogicError    = &Error{Kind: LogicError}
	KindExternalError = &Error{Kind: ExternalError}
	KindCancelled     = &Error{Kind: Cancelled}
)

// IsKind reports whether err carries the given Kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if se, ok := err.(*Error); ok {
			e = se
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
