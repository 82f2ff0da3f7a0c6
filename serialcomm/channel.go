// serialcomm/channel.go
package serialcomm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

// Channel is a line-oriented view over one serial port. The port is opened
// on demand and may be closed and reopened any number of times.
//
// A Channel is not safe for concurrent use.
type Channel struct {
	config SerialConfig
	opener Opener
	port   Port
	buf    []byte
}

// NewChannel returns a closed channel for cfg. A nil opener uses Open.
func NewChannel(cfg SerialConfig, opener Opener) *Channel {
	if opener == nil {
		opener = Open
	}
	return &Channel{config: cfg.Normalize(), opener: opener}
}

// Config returns the normalized configuration.
func (c *Channel) Config() SerialConfig { return c.config }

func (c *Channel) IsOpen() bool { return c.port != nil }

// Open opens the port unless it is already open. Failures wrap
// ErrUnavailable.
func (c *Channel) Open() error {
	if c.port != nil {
		return nil
	}
	port, err := c.opener(c.config)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", c.config.PortName, ErrUnavailable, err)
	}
	c.port = port
	c.buf = c.buf[:0]
	return nil
}

// Close closes the port and drops anything buffered. Closing a closed
// channel is a no-op.
func (c *Channel) Close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.buf = c.buf[:0]
	return err
}

// Write sends p, giving up with ErrTimeout after the write timeout.
func (c *Channel) Write(p []byte) error {
	if c.port == nil {
		return ErrClosed
	}
	if c.config.WriteTimeout < 0 {
		if _, err := c.port.Write(p); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		return nil
	}

	port := c.port
	done := make(chan error, 1)
	go func() {
		_, err := port.Write(p)
		done <- err
	}()

	timer := time.NewTimer(c.config.WriteTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("write %d bytes: %w", len(p), ErrTimeout)
	}
}

// ReadTo reads until delim and returns what came before it. The delimiter
// is consumed; bytes after it stay buffered for the next call. If the read
// timeout passes first, ReadTo returns ErrTimeout and keeps the partial
// line buffered.
func (c *Channel) ReadTo(delim string) (string, error) {
	if c.port == nil {
		return "", ErrClosed
	}

	var deadline time.Time
	if c.config.ReadTimeout > 0 {
		deadline = time.Now().Add(c.config.ReadTimeout)
	}

	sep := []byte(delim)
	chunk := make([]byte, 256)
	for {
		if i := bytes.Index(c.buf, sep); i >= 0 {
			line := string(c.buf[:i])
			c.buf = append(c.buf[:0], c.buf[i+len(sep):]...)
			return line, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return "", fmt.Errorf("read to %q: %w", delim, ErrTimeout)
		}

		n, err := c.port.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read: %w", err)
		}
		// idle read slice
		time.Sleep(10 * time.Millisecond)
	}
}
