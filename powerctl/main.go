package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/alexflint/go-arg"

	"devicecomm/driver"
	"devicecomm/serialcomm"
	"devicecomm/simulator"
)

type emptyCmd struct{}

type args struct {
	Port         string                 `arg:"-p,--port,env:DEVICE_PORT" default:"COM5" help:"serial port of the device"`
	DefaultPort  string                 `arg:"--default-port" help:"port used when --port is not listed by the system"`
	Baud         int                    `arg:"-b,--baud,env:DEVICE_BAUD" help:"baud rate [default: 9600]"`
	Parity       serialcomm.Parity      `arg:"--parity" help:"none, odd, even, mark or space"`
	DataBits     int                    `arg:"--data-bits" help:"data bits [default: 8]"`
	StopBits     serialcomm.StopBits    `arg:"--stop-bits" help:"1, 1.5 or 2"`
	Flow         serialcomm.FlowControl `arg:"--flow" help:"none, rts or xonxoff"`
	ReadTimeout  time.Duration          `arg:"--read-timeout" help:"[default: 500ms]"`
	WriteTimeout time.Duration          `arg:"--write-timeout" help:"[default: 500ms]"`
	Backend      serialcomm.Backend     `arg:"--backend" help:"tarm or bugst"`
	SingleLine   bool                   `arg:"--single-line" help:"expect one CRLF line per reply instead of two"`
	Verbose      bool                   `arg:"-v,--verbose" help:"log every frame"`

	On     *emptyCmd `arg:"subcommand:on" help:"turn the device on"`
	Off    *emptyCmd `arg:"subcommand:off" help:"turn the device off"`
	Status *emptyCmd `arg:"subcommand:status" help:"print the power state"`
	Serial *emptyCmd `arg:"subcommand:serial" help:"print the serial number"`
	Demo   *emptyCmd `arg:"subcommand:demo" help:"run the driver against an in-process simulator"`
}

func (args) Description() string {
	return "powerctl talks to a power device over a serial line"
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if !a.Verbose {
		logger.SetOutput(io.Discard)
	}

	if a.Demo != nil {
		if err := runDemo(a, logger); err != nil {
			log.Fatalf("demo failed: %v", err)
		}
		return
	}

	d := driver.New(a.config(), a.driverOptions(logger)...)
	if err := run(d, a); err != nil {
		log.Fatalf("%s: %v", driver.Classify(err), err)
	}
}

func (a args) config() serialcomm.SerialConfig {
	port := a.Port
	if a.DefaultPort != "" {
		port = serialcomm.ResolvePortName(a.Port, a.DefaultPort)
	}
	return serialcomm.SerialConfig{
		PortName:     port,
		BaudRate:     a.Baud,
		Parity:       a.Parity,
		DataBits:     a.DataBits,
		StopBits:     a.StopBits,
		FlowControl:  a.Flow,
		ReadTimeout:  a.ReadTimeout,
		WriteTimeout: a.WriteTimeout,
		Backend:      a.Backend,
	}
}

func (a args) driverOptions(logger *log.Logger) []driver.Option {
	opts := []driver.Option{driver.WithLogger(logger)}
	if a.SingleLine {
		opts = append(opts, driver.WithFraming(driver.FramingSingleLine))
	}
	return opts
}

func run(d *driver.Driver, a args) error {
	switch {
	case a.On != nil:
		return d.TurnOn()
	case a.Off != nil:
		return d.TurnOff()
	case a.Status != nil:
		on, err := d.IsOn()
		if err != nil {
			return err
		}
		if on {
			fmt.Println("on")
		} else {
			fmt.Println("off")
		}
	case a.Serial != nil:
		sn, err := d.GetSerialNumber()
		if err != nil {
			return err
		}
		fmt.Println(sn)
	}
	return nil
}

// runDemo wires the driver and the simulator through a null modem and
// walks through every command.
func runDemo(a args, logger *log.Logger) error {
	m := serialcomm.NewNullModem()
	cfg := a.config()
	cfg.PortName = "null-modem"

	simCh := serialcomm.NewChannel(cfg, m.B())
	if err := simCh.Open(); err != nil {
		return err
	}
	var simOpts []simulator.Option
	simOpts = append(simOpts, simulator.WithLogger(logger))
	if a.SingleLine {
		simOpts = append(simOpts, simulator.WithLeadingBlankLine(false))
	}
	sim := simulator.New(simCh, simulator.NewDeviceState(simulator.DefaultSerialNumber), simOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	d := driver.New(cfg, append(a.driverOptions(logger), driver.WithOpener(m.A()))...)

	sn, err := d.GetSerialNumber()
	if err != nil {
		return err
	}
	fmt.Printf("serial number: %s\n", sn)

	for _, on := range []bool{true, false} {
		if on {
			err = d.TurnOn()
		} else {
			err = d.TurnOff()
		}
		if err != nil {
			return err
		}
		state, err := d.IsOn()
		if err != nil {
			return err
		}
		if state != on {
			return fmt.Errorf("power state is %v after setting %v", state, on)
		}
		fmt.Printf("power on: %v\n", state)
	}
	return nil
}
