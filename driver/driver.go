// driver/driver.go
package driver

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"devicecomm/protocol"
	"devicecomm/serialcomm"
)

// Framing selects how a reply is read off the wire.
type Framing int

const (
	// FramingDoubleRead reads two CRLF-terminated segments and joins them.
	// The device answers "\r\n<body>\r\n", so the first segment is empty.
	FramingDoubleRead Framing = iota
	// FramingSingleLine reads exactly one CRLF-terminated line.
	FramingSingleLine
)

// Driver controls one device over a serial port. The port is opened for
// each exchange and closed right after it.
//
// A Driver is not safe for concurrent use.
type Driver struct {
	ch      *serialcomm.Channel
	framing Framing
	logger  *log.Logger
}

type Option func(*options)

type options struct {
	opener  serialcomm.Opener
	framing Framing
	logger  *log.Logger
}

// WithOpener replaces the function used to open the port.
func WithOpener(o serialcomm.Opener) Option {
	return func(opts *options) { opts.opener = o }
}

func WithFraming(f Framing) Option {
	return func(opts *options) { opts.framing = f }
}

func WithLogger(l *log.Logger) Option {
	return func(opts *options) { opts.logger = l }
}

func New(cfg serialcomm.SerialConfig, opts ...Option) *Driver {
	o := options{opener: serialcomm.Open, logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Driver{
		ch:      serialcomm.NewChannel(cfg, o.opener),
		framing: o.framing,
		logger:  o.logger,
	}
}

// Config returns the port configuration with defaults applied.
func (d *Driver) Config() serialcomm.SerialConfig { return d.ch.Config() }

func (d *Driver) TurnOn() error {
	payload, err := d.Exchange(protocol.SetPower(true))
	if err != nil {
		return err
	}
	d.logger.Printf("turn on: %q", payload)
	return nil
}

func (d *Driver) TurnOff() error {
	payload, err := d.Exchange(protocol.SetPower(false))
	if err != nil {
		return err
	}
	d.logger.Printf("turn off: %q", payload)
	return nil
}

// IsOn reports the power state. The device answers "on 1" or "on 0".
func (d *Driver) IsOn() (bool, error) {
	payload, err := d.Exchange(protocol.GetPowerStatus())
	if err != nil {
		return false, err
	}
	fields := strings.Split(payload, " ")
	if len(fields) < 2 {
		return false, fmt.Errorf("power status %q: %w", payload, ErrProtocolViolation)
	}
	v, err := strconv.ParseInt(fields[1], 10, 16)
	if err != nil {
		return false, fmt.Errorf("power status %q: %w", payload, ErrProtocolViolation)
	}
	switch v {
	case 1:
		return true, nil
	case 0:
		return false, nil
	}
	return false, fmt.Errorf("power status %d is neither 0 nor 1: %w", v, ErrProtocolViolation)
}

// GetSerialNumber returns the id from a "serialnumber <id>" reply.
func (d *Driver) GetSerialNumber() (string, error) {
	payload, err := d.Exchange(protocol.GetSerialNumber())
	if err != nil {
		return "", err
	}
	fields := strings.Split(payload, " ")
	if len(fields) < 2 {
		return "", fmt.Errorf("serial number %q: %w", payload, ErrProtocolViolation)
	}
	d.logger.Printf("serial number: %s", fields[1])
	return fields[1], nil
}

// Exchange performs one write and one read for cmd and returns the
// payload of an ok reply. The port is closed on return whatever the
// outcome. There are no retries.
func (d *Driver) Exchange(cmd protocol.Command) (payload string, err error) {
	if err := d.ch.Open(); err != nil {
		return "", err
	}
	defer func() {
		if cerr := d.ch.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	frame := protocol.Encode(cmd)
	d.logger.Printf("sent %q (crc %04X)", cmd.Body(), serialcomm.Checksum(cmd.Body()))
	if err := d.ch.Write(frame); err != nil {
		return "", fmt.Errorf("send %q: %w", cmd.Body(), err)
	}

	body, err := d.readResponse()
	if err != nil {
		return "", fmt.Errorf("await reply to %q: %w", cmd.Body(), err)
	}
	d.logger.Printf("received %q (crc %04X)", body, serialcomm.Checksum(body))

	resp := protocol.DecodeResponse(body)
	switch resp.Status {
	case protocol.StatusOK:
		return resp.Payload, nil
	case protocol.StatusErr:
		return "", &RejectedError{Command: cmd, Kind: resp.Kind}
	}
	return "", fmt.Errorf("reply %q to %q: %w", body, cmd.Body(), ErrProtocolViolation)
}

func (d *Driver) readResponse() (string, error) {
	first, err := d.ch.ReadTo(protocol.ResponseTerminator)
	if err != nil {
		return "", err
	}
	if d.framing == FramingSingleLine {
		return first, nil
	}
	second, err := d.ch.ReadTo(protocol.ResponseTerminator)
	if err != nil {
		return "", err
	}
	return first + second, nil
}
