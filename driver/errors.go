// driver/errors.go
package driver

import (
	"errors"
	"fmt"

	"devicecomm/protocol"
	"devicecomm/serialcomm"
)

var (
	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("driver: command rejected by device")
	// ErrProtocolViolation is returned when a reply does not follow the
	// ok/err grammar or carries a value outside its domain.
	ErrProtocolViolation = errors.New("driver: protocol violation")
	// ErrTimeout is returned when the device does not answer in time.
	ErrTimeout = serialcomm.ErrTimeout
	// ErrUnavailable is returned when the port cannot be opened.
	ErrUnavailable = serialcomm.ErrUnavailable
)

// RejectedError is returned when the device answers with err.
type RejectedError struct {
	Command protocol.Command
	Kind    protocol.ErrorKind
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("driver: %q rejected: %s", e.Command.Body(), e.Kind)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Failure is the category of an error returned by a Driver.
type Failure int

const (
	FailureNone Failure = iota
	FailureRejected
	FailureProtocol
	FailureTimeout
	FailureUnavailable
	// FailureTransport covers any other I/O error from the port.
	FailureTransport
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureRejected:
		return "rejected"
	case FailureProtocol:
		return "protocol violation"
	case FailureTimeout:
		return "timeout"
	case FailureUnavailable:
		return "unavailable"
	}
	return "transport"
}

// Classify maps an error returned by a Driver to its Failure.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrRejected):
		return FailureRejected
	case errors.Is(err, ErrProtocolViolation):
		return FailureProtocol
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, ErrUnavailable):
		return FailureUnavailable
	}
	return FailureTransport
}

// RejectedKind reports the device error kind carried by err, if any.
func RejectedKind(err error) (protocol.ErrorKind, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Kind, true
	}
	return 0, false
}
