package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/alexflint/go-arg"

	"devicecomm/serialcomm"
	"devicecomm/simulator"
)

const defaultWindowsPort = "COM6"

type args struct {
	Port        string              `arg:"-p,--port,env:DEVICE_PORT" default:"COM6" help:"serial port the simulated device listens on"`
	Serial      string              `arg:"-s,--serial" default:"ABCD1234" help:"serial number reported by the device"`
	Baud        int                 `arg:"-b,--baud,env:DEVICE_BAUD" help:"baud rate [default: 9600]"`
	Parity      serialcomm.Parity   `arg:"--parity" help:"none, odd, even, mark or space"`
	StopBits    serialcomm.StopBits `arg:"--stop-bits" help:"1, 1.5 or 2"`
	Backend     serialcomm.Backend  `arg:"--backend" help:"tarm or bugst"`
	NoBlankLine bool                `arg:"--no-blank-line" help:"do not start replies with an empty line"`
}

func (args) Description() string {
	return "devicesim plays the power device on a serial port"
}

func main() {
	var a args
	arg.MustParse(&a)

	port := a.Port
	if runtime.GOOS == "windows" && !strings.HasPrefix(strings.ToLower(port), "com") {
		port = defaultWindowsPort
	}

	cfg := serialcomm.SerialConfig{
		PortName: port,
		BaudRate: a.Baud,
		Parity:   a.Parity,
		StopBits: a.StopBits,
		Backend:  a.Backend,
	}
	ch := serialcomm.NewChannel(cfg, nil)
	if err := ch.Open(); err != nil {
		log.Fatalf("open %s: %v", port, err)
	}

	sim := simulator.New(ch, simulator.NewDeviceState(a.Serial),
		simulator.WithLeadingBlankLine(!a.NoBlankLine))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("simulation stopped: %v", err)
	}
}
