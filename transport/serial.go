package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// SerialConfig carries the §6 serial.* configuration knobs.
type SerialConfig struct {
	PortName string
	Speed    int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

// SerialChannel wraps an RS-232/RS-485 port. purge-on-open discards any
// bytes left over from a previous session before the data-link layer
// starts reading frames (spec.md §4.2).
type SerialChannel struct {
	port serial.Port
	name string

	mu     sync.Mutex
	closed bool
}

var _ Channel = (*SerialChannel)(nil)

// OpenSerial opens and purges the configured port.
func OpenSerial(cfg SerialConfig) (*SerialChannel, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Speed,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	}
	port, err := serial.Open(cfg.PortName, mode)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "serial open failed", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "serial purge failed", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		_ = port.Close()
		return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "serial purge failed", err)
	}
	return &SerialChannel{port: port, name: fmt.Sprintf("serial:%s", cfg.PortName)}, nil
}

func (c *SerialChannel) Name() string { return c.name }

func (c *SerialChannel) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrLinkDown
	}
	c.mu.Unlock()

	_, err := c.port.Write(data)
	if err != nil {
		return protoerr.Wrap(protoerr.LinkDown, "serial write failed", err)
	}
	return nil
}

func (c *SerialChannel) Receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	readTimeout := 250 * time.Millisecond
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			readTimeout = d
		}
	}
	_ = c.port.SetReadTimeout(readTimeout)

	buf := make([]byte, 512)
	n, err := c.port.Read(buf)
	if err != nil {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, protoerr.Wrap(protoerr.LinkDown, "serial read failed", err)
	}
	if n == 0 {
		if ctx.Err() != nil {
			return nil, protoerr.Wrap(protoerr.Timeout, "receive deadline exceeded", ctx.Err())
		}
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

func (c *SerialChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.port.Close()
}
