// serialcomm/serialcomm.go
package serialcomm

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8
	DefaultTimeout  = 500 * time.Millisecond
)

var (
	// ErrTimeout is returned when a read or write does not complete within
	// the configured timeout.
	ErrTimeout = errors.New("serialcomm: timeout")
	// ErrUnavailable is returned when the port cannot be opened.
	ErrUnavailable = errors.New("serialcomm: port unavailable")
	// ErrClosed is returned for I/O on a channel that is not open.
	ErrClosed = errors.New("serialcomm: port closed")
	// ErrUnsupported is returned when a backend cannot honour a setting.
	ErrUnsupported = errors.New("serialcomm: unsupported setting")
)

type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits1Half
	StopBits2
)

type FlowControl int

const (
	FlowNone FlowControl = iota
	// FlowRTS raises RTS and DTR after open.
	FlowRTS
	FlowXOnXOff
)

// Backend selects the library used to talk to the operating system port.
type Backend int

const (
	BackendTarm Backend = iota
	BackendBugst
)

// SerialConfig describes one serial port. Zero values select defaults:
// 9600 baud, 8N1, no flow control, 500ms read and write timeouts.
// A negative timeout disables it.
type SerialConfig struct {
	PortName     string
	BaudRate     int
	Parity       Parity
	DataBits     int
	StopBits     StopBits
	FlowControl  FlowControl
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Backend      Backend
}

// Normalize returns a copy of c with defaults filled in.
func (c SerialConfig) Normalize() SerialConfig {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.DataBits <= 0 {
		c.DataBits = DefaultDataBits
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultTimeout
	}
	return c
}

// Port is an open serial handle. A Read that times out returns 0 bytes
// and either a nil error or io.EOF.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens the port described by cfg.
type Opener func(cfg SerialConfig) (Port, error)

func (p *Parity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "none", "n":
		*p = ParityNone
	case "odd", "o":
		*p = ParityOdd
	case "even", "e":
		*p = ParityEven
	case "mark", "m":
		*p = ParityMark
	case "space", "s":
		*p = ParitySpace
	default:
		return fmt.Errorf("unknown parity %q", b)
	}
	return nil
}

func (s *StopBits) UnmarshalText(b []byte) error {
	switch string(b) {
	case "1":
		*s = StopBits1
	case "1.5":
		*s = StopBits1Half
	case "2":
		*s = StopBits2
	default:
		return fmt.Errorf("unknown stop bits %q", b)
	}
	return nil
}

func (f *FlowControl) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "none":
		*f = FlowNone
	case "rts", "rtscts", "hardware":
		*f = FlowRTS
	case "xonxoff", "software":
		*f = FlowXOnXOff
	default:
		return fmt.Errorf("unknown flow control %q", b)
	}
	return nil
}

func (be *Backend) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "tarm":
		*be = BackendTarm
	case "bugst":
		*be = BackendBugst
	default:
		return fmt.Errorf("unknown backend %q", b)
	}
	return nil
}

func (be Backend) String() string {
	if be == BackendBugst {
		return "bugst"
	}
	return "tarm"
}
