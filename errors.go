package svcctl

import (
	"errors"
	"syscall"
)

// Kind classifies an Error.
type Kind int

const (
	// KindPrimitive is a failure of the platform facilities the
	// coordinator depends on. Returned from Start.
	KindPrimitive Kind = iota + 1

	// KindRegistration means the process could not register with the
	// service manager.
	KindRegistration

	// KindArgument means caller supplied arguments were rejected before
	// any side effect.
	KindArgument

	// KindStatusPublish is a failed status report. It is logged, never
	// returned from the control path.
	KindStatusPublish
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "platform primitive failure"
	case KindRegistration:
		return "registration error"
	case KindArgument:
		return "argument error"
	case KindStatusPublish:
		return "status publish failure"
	default:
		return "unknown error"
	}
}

// Error is returned by the coordinator and the binding layer.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: KindArgument})
// works without knowing Op or Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// errnoOf extracts the OS error code carried by err, or ERROR_GEN_FAILURE
// when there is none.
func errnoOf(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return errorGenFailure
}
