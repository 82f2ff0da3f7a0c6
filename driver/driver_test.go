package driver

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devicecomm/protocol"
	"devicecomm/serialcomm"
	"devicecomm/simulator"
)

var quiet = log.New(io.Discard, "", 0)

func testConfig() serialcomm.SerialConfig {
	return serialcomm.SerialConfig{
		PortName:     "COM5",
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
	}
}

// startSimulator runs a simulator on side B of a null modem and returns a
// driver wired to side A.
func startSimulator(t *testing.T, serial string, simOpts []simulator.Option, opts ...Option) *Driver {
	t.Helper()
	m := serialcomm.NewNullModem()
	ch := serialcomm.NewChannel(testConfig(), m.B())
	require.NoError(t, ch.Open())

	simOpts = append([]simulator.Option{simulator.WithLogger(quiet)}, simOpts...)
	sim := simulator.New(ch, simulator.NewDeviceState(serial), simOpts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sim.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	opts = append([]Option{WithOpener(m.A()), WithLogger(quiet)}, opts...)
	return New(testConfig(), opts...)
}

// scriptedDevice answers the next command on side B with reply.
func scriptedDevice(t *testing.T, reply string) (*Driver, <-chan string) {
	t.Helper()
	m := serialcomm.NewNullModem()
	ch := serialcomm.NewChannel(testConfig(), m.B())
	require.NoError(t, ch.Open())

	got := make(chan string, 1)
	go func() {
		defer ch.Close()
		for i := 0; i < 10; i++ {
			line, err := ch.ReadTo("\r")
			if errors.Is(err, serialcomm.ErrTimeout) {
				continue
			}
			if err != nil {
				return
			}
			got <- line
			ch.Write([]byte(reply))
			return
		}
	}()
	return New(testConfig(), WithOpener(m.A()), WithLogger(quiet)), got
}

func TestGetSerialNumber(t *testing.T) {
	d := startSimulator(t, "ABCD1234", nil)
	sn, err := d.GetSerialNumber()
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", sn)
}

func TestTurnOnTurnOff(t *testing.T) {
	d := startSimulator(t, "", nil)

	require.NoError(t, d.TurnOn())
	on, err := d.IsOn()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, d.TurnOff())
	on, err = d.IsOn()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestIsOnIsStable(t *testing.T) {
	d := startSimulator(t, "", nil)
	require.NoError(t, d.TurnOn())
	for i := 0; i < 3; i++ {
		on, err := d.IsOn()
		require.NoError(t, err)
		assert.True(t, on)
	}
}

func TestSingleLineFraming(t *testing.T) {
	d := startSimulator(t, "SN-77",
		[]simulator.Option{simulator.WithLeadingBlankLine(false)},
		WithFraming(FramingSingleLine))
	sn, err := d.GetSerialNumber()
	require.NoError(t, err)
	assert.Equal(t, "SN-77", sn)
}

func TestSingleLineFramingAgainstHardwareReplies(t *testing.T) {
	d := startSimulator(t, "", nil, WithFraming(FramingSingleLine))
	_, err := d.GetSerialNumber()
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestExchangeInvalidValue(t *testing.T) {
	d, got := scriptedDevice(t, "\r\nerr \"Invalid Value\"\r\n")
	err := d.TurnOn()
	require.Error(t, err)
	assert.Equal(t, "setpower on 1", <-got)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, FailureRejected, Classify(err))
	kind, ok := RejectedKind(err)
	require.True(t, ok)
	assert.Equal(t, protocol.KindInvalidValue, kind)
}

func TestExchangeGenericError(t *testing.T) {
	d, _ := scriptedDevice(t, "\r\nerr\r\n")
	err := d.TurnOff()
	kind, ok := RejectedKind(err)
	require.True(t, ok)
	assert.Equal(t, protocol.KindGeneric, kind)
}

func TestExchangeMalformed(t *testing.T) {
	d, _ := scriptedDevice(t, "\r\nbanana\r\n")
	_, err := d.GetSerialNumber()
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.Equal(t, FailureProtocol, Classify(err))
}

func TestIsOnOutOfDomain(t *testing.T) {
	d, got := scriptedDevice(t, "\r\nok on 2\r\n")
	_, err := d.IsOn()
	assert.Equal(t, "getpowerstatus", <-got)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestIsOnMissingValue(t *testing.T) {
	d, _ := scriptedDevice(t, "\r\nok\r\n")
	_, err := d.IsOn()
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestGetSerialNumberMissingValue(t *testing.T) {
	d, _ := scriptedDevice(t, "\r\nok serialnumber\r\n")
	_, err := d.GetSerialNumber()
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestTimeoutWithoutDevice(t *testing.T) {
	m := serialcomm.NewNullModem()
	cfg := testConfig()
	cfg.ReadTimeout = 100 * time.Millisecond
	d := New(cfg, WithOpener(m.A()), WithLogger(quiet))

	start := time.Now()
	_, err := d.IsOn()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, FailureTimeout, Classify(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestUnavailablePort(t *testing.T) {
	opens := 0
	d := New(testConfig(), WithLogger(quiet), WithOpener(func(serialcomm.SerialConfig) (serialcomm.Port, error) {
		opens++
		return nil, errors.New("no such port")
	}))
	err := d.TurnOn()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, FailureUnavailable, Classify(err))
	assert.Equal(t, 1, opens, "no retries")
}

type recordingPort struct {
	serialcomm.Port
	closed *int
}

func (p recordingPort) Close() error {
	*p.closed++
	return p.Port.Close()
}

func TestPortClosedAfterEveryExchange(t *testing.T) {
	m := serialcomm.NewNullModem()
	var opened, closed int
	opener := func(cfg serialcomm.SerialConfig) (serialcomm.Port, error) {
		opened++
		p, err := m.A()(cfg)
		return recordingPort{Port: p, closed: &closed}, err
	}
	cfg := testConfig()
	cfg.ReadTimeout = 50 * time.Millisecond
	d := New(cfg, WithOpener(opener), WithLogger(quiet))

	_, err := d.IsOn()
	require.ErrorIs(t, err, ErrTimeout)
	_, err = d.GetSerialNumber()
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 2, opened)
	assert.Equal(t, 2, closed)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailureNone, Classify(nil))
	assert.Equal(t, FailureTransport, Classify(errors.New("EIO")))
	assert.Equal(t, "timeout", FailureTimeout.String())

	_, ok := RejectedKind(ErrProtocolViolation)
	assert.False(t, ok)
}
