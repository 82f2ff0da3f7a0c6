// serialcomm/port.go
package serialcomm

import (
	"fmt"
	"slices"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// Open opens cfg.PortName with the backend cfg selects.
func Open(cfg SerialConfig) (Port, error) {
	if cfg.Backend == BackendBugst {
		return OpenBugst(cfg)
	}
	return OpenTarm(cfg)
}

// OpenTarm opens the port with github.com/tarm/serial. The library has no
// flow control support, so only FlowNone is accepted.
func OpenTarm(cfg SerialConfig) (Port, error) {
	cfg = cfg.Normalize()
	if cfg.FlowControl != FlowNone {
		return nil, fmt.Errorf("tarm backend flow control: %w", ErrUnsupported)
	}
	portCfg := &serial.Config{
		Name:        cfg.PortName,
		Baud:        cfg.BaudRate,
		Size:        byte(cfg.DataBits),
		Parity:      tarmParity(cfg.Parity),
		StopBits:    tarmStopBits(cfg.StopBits),
		ReadTimeout: perReadTimeout(cfg.ReadTimeout),
	}
	port, err := serial.OpenPort(portCfg)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// OpenBugst opens the port with go.bug.st/serial.
func OpenBugst(cfg SerialConfig) (Port, error) {
	cfg = cfg.Normalize()
	if cfg.FlowControl == FlowXOnXOff {
		return nil, fmt.Errorf("bugst backend software flow control: %w", ErrUnsupported)
	}
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   bugstParity(cfg.Parity),
		StopBits: bugstStopBits(cfg.StopBits),
	}
	port, err := bugst.Open(cfg.PortName, mode)
	if err != nil {
		return nil, err
	}

	timeout := bugst.NoTimeout
	if cfg.ReadTimeout > 0 {
		timeout = cfg.ReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if cfg.FlowControl == FlowRTS {
		if err := port.SetRTS(true); err != nil {
			port.Close()
			return nil, fmt.Errorf("set RTS: %w", err)
		}
		if err := port.SetDTR(true); err != nil {
			port.Close()
			return nil, fmt.Errorf("set DTR: %w", err)
		}
	}
	return port, nil
}

// ListPorts returns the serial ports the operating system reports.
func ListPorts() ([]string, error) {
	return bugst.GetPortsList()
}

// ResolvePortName returns requested if the system lists it, otherwise
// fallback.
func ResolvePortName(requested, fallback string) string {
	ports, err := ListPorts()
	if err != nil {
		return fallback
	}
	return resolvePortName(requested, fallback, ports)
}

func resolvePortName(requested, fallback string, available []string) string {
	if requested != "" && slices.Contains(available, requested) {
		return requested
	}
	return fallback
}

func perReadTimeout(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func tarmParity(p Parity) serial.Parity {
	switch p {
	case ParityOdd:
		return serial.ParityOdd
	case ParityEven:
		return serial.ParityEven
	case ParityMark:
		return serial.ParityMark
	case ParitySpace:
		return serial.ParitySpace
	}
	return serial.ParityNone
}

func tarmStopBits(s StopBits) serial.StopBits {
	switch s {
	case StopBits1Half:
		return serial.Stop1Half
	case StopBits2:
		return serial.Stop2
	}
	return serial.Stop1
}

func bugstParity(p Parity) bugst.Parity {
	switch p {
	case ParityOdd:
		return bugst.OddParity
	case ParityEven:
		return bugst.EvenParity
	case ParityMark:
		return bugst.MarkParity
	case ParitySpace:
		return bugst.SpaceParity
	}
	return bugst.NoParity
}

func bugstStopBits(s StopBits) bugst.StopBits {
	switch s {
	case StopBits1Half:
		return bugst.OnePointFiveStopBits
	case StopBits2:
		return bugst.TwoStopBits
	}
	return bugst.OneStopBit
}
