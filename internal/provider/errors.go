package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind int

const (
	// KindTransport covers timeouts and connection failures.
	KindTransport ErrorKind = iota + 1
	// KindRejected covers responses where the provider refused the request.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	}
	return "unknown"
}

// Error is returned by provider operations.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err as a transport or rejection failure of op.
// An err that already is an *Error is returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransport
	}
	return KindRejected
}

func IsTransport(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindTransport
}

func IsRejected(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindRejected
}
