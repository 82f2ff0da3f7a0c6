// serialcomm/nullmodem.go
package serialcomm

import (
	"sync"
	"time"
)

// NullModem is an in-process pair of cross-connected ports: what is written
// on side A is read on side B and the other way round. It stands in for a
// virtual COM port pair when the driver and the simulator run in one
// process.
type NullModem struct {
	ab *wire
	ba *wire
}

func NewNullModem() *NullModem {
	return &NullModem{ab: newWire(), ba: newWire()}
}

// A returns an Opener for the first end. Every open returns a fresh handle
// and discards anything still queued for that end.
func (m *NullModem) A() Opener {
	return func(cfg SerialConfig) (Port, error) { return openModemPort(m.ba, m.ab, cfg), nil }
}

// B returns an Opener for the second end.
func (m *NullModem) B() Opener {
	return func(cfg SerialConfig) (Port, error) { return openModemPort(m.ab, m.ba, cfg), nil }
}

type wire struct {
	mu     sync.Mutex
	buf    []byte
	signal chan struct{}
}

func newWire() *wire {
	return &wire{signal: make(chan struct{}, 1)}
}

func (w *wire) write(p []byte) {
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *wire) flush() {
	w.mu.Lock()
	w.buf = nil
	w.mu.Unlock()
	select {
	case <-w.signal:
	default:
	}
}

func (w *wire) read(p []byte, timeout time.Duration, closed <-chan struct{}) (int, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		w.mu.Lock()
		if len(w.buf) > 0 {
			n := copy(p, w.buf)
			w.buf = w.buf[n:]
			w.mu.Unlock()
			return n, nil
		}
		w.mu.Unlock()

		select {
		case <-w.signal:
		case <-expired:
			return 0, nil
		case <-closed:
			return 0, ErrClosed
		}
	}
}

type modemPort struct {
	rx, tx      *wire
	readTimeout time.Duration
	closed      chan struct{}
	once        sync.Once
}

func openModemPort(rx, tx *wire, cfg SerialConfig) *modemPort {
	cfg = cfg.Normalize()
	rx.flush()
	return &modemPort{
		rx:          rx,
		tx:          tx,
		readTimeout: perReadTimeout(cfg.ReadTimeout),
		closed:      make(chan struct{}),
	}
}

func (p *modemPort) Read(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrClosed
	default:
	}
	return p.rx.read(b, p.readTimeout, p.closed)
}

func (p *modemPort) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrClosed
	default:
	}
	p.tx.write(b)
	return len(b), nil
}

func (p *modemPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
