// simulator/simulator.go
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"devicecomm/protocol"
	"devicecomm/serialcomm"
)

const DefaultSerialNumber = "ABCD1234"

// DeviceState is everything the simulated device remembers.
type DeviceState struct {
	PoweredOn    bool
	SerialNumber string
}

func NewDeviceState(serialNumber string) *DeviceState {
	if serialNumber == "" {
		serialNumber = DefaultSerialNumber
	}
	return &DeviceState{SerialNumber: serialNumber}
}

// Respond applies one command line to state and returns the reply.
func Respond(state *DeviceState, body string) protocol.Response {
	req := protocol.ParseRequest(body)
	if req.Rejected {
		return protocol.Err(req.Kind)
	}
	switch req.Command.Kind {
	case protocol.CmdGetSerialNumber:
		return protocol.OK("serialnumber " + state.SerialNumber)
	case protocol.CmdGetPowerStatus:
		if state.PoweredOn {
			return protocol.OK("on 1")
		}
		return protocol.OK("on 0")
	case protocol.CmdSetPower:
		state.PoweredOn = req.Command.On
		return protocol.OK("")
	}
	return protocol.Err(protocol.KindGeneric)
}

// Simulator answers commands on one channel, one at a time.
type Simulator struct {
	ch           *serialcomm.Channel
	state        *DeviceState
	logger       *log.Logger
	leadingBlank bool
}

type Option func(*Simulator)

func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithLeadingBlankLine controls whether replies start with an empty CRLF
// line, as the hardware does. Enabled by default.
func WithLeadingBlankLine(on bool) Option {
	return func(s *Simulator) { s.leadingBlank = on }
}

func New(ch *serialcomm.Channel, state *DeviceState, opts ...Option) *Simulator {
	s := &Simulator{
		ch:           ch,
		state:        state,
		logger:       log.Default(),
		leadingBlank: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the device state the simulator mutates.
func (s *Simulator) State() *DeviceState { return s.state }

// Serve runs until the transport fails.
func (s *Simulator) Serve() error {
	return s.Run(context.Background())
}

// Run opens the channel and answers commands until ctx is done or the
// transport fails. Read timeouts are not errors; the loop just reads
// again. The channel is closed on return.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.ch.Open(); err != nil {
		return err
	}
	defer s.ch.Close()

	cfg := s.ch.Config()
	s.logger.Printf("device simulation on %s, %d baud, serial number %s", cfg.PortName, cfg.BaudRate, s.state.SerialNumber)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
}

// Step reads one command and writes its reply. A read timeout returns
// nil without replying.
func (s *Simulator) Step() error {
	body, err := s.ch.ReadTo(protocol.CommandTerminator)
	if errors.Is(err, serialcomm.ErrTimeout) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read command: %w", err)
	}
	s.logger.Printf("message received: %q (crc %04X)", body, serialcomm.Checksum(body))

	resp := Respond(s.state, body)
	out := protocol.ResponseBody(resp)
	s.logger.Printf("response sent: %q (crc %04X)", out, serialcomm.Checksum(out))
	if err := s.ch.Write(protocol.EncodeResponse(resp, s.leadingBlank)); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
