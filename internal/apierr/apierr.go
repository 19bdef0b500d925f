// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apierr classifies the failures a formflow run can end with.
// Every error is fatal to the run; the kind only decides how it is
// reported and which exit code the CLI returns.
package apierr

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a failure class.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindTransport     Kind = "transport"
	KindProtocol      Kind = "protocol"
	KindJobFailed     Kind = "job_failed"
	KindTimeout       Kind = "timeout"
)

// Sentinels matched with errors.Is against any *Error of the same kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrTransport     = errors.New("transport error")
	ErrProtocol      = errors.New("protocol error")
	ErrJobFailed     = errors.New("job failed")
	ErrTimeout       = errors.New("polling timed out")
)

var sentinels = map[Kind]error{
	KindConfiguration: ErrConfiguration,
	KindTransport:     ErrTransport,
	KindProtocol:      ErrProtocol,
	KindJobFailed:     ErrJobFailed,
	KindTimeout:       ErrTimeout,
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string

	// Payload is the raw response body that caused the failure, if any.
	Payload []byte

	Cause error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Message != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Message
	}
	if e.Cause != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Cause.Error()
	}
	if msg == "" {
		return string(e.Kind)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Configuration reports missing or invalid credentials or input.
func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Transport reports a network, DNS or TLS failure.
func Transport(op string, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Cause: cause}
}

// Protocol reports an unexpected status code or a missing expected field.
func Protocol(op, message string, payload []byte) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: message, Payload: payload}
}

// JobFailed reports a job that reached the terminal failure state.
func JobFailed(op string, payload []byte) *Error {
	return &Error{Kind: KindJobFailed, Op: op, Message: "remote job reported failure", Payload: payload}
}

// Timeout reports a poll loop that exceeded its configured bound.
func Timeout(op, message string) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PayloadOf returns the payload of the first *Error in err's chain.
func PayloadOf(err error) []byte {
	var e *Error
	if errors.As(err, &e) {
		return e.Payload
	}
	return nil
}

// ExitCode maps a run error to a process exit status: 0 for nil, 130 for
// a cancelled run, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
