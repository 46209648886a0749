package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// TCPChannel wraps a single net.Conn behind the Channel contract. Framing
// (DNP3's length-prefixed frames) is the data-link layer's job; this type
// only moves bytes.
type TCPChannel struct {
	conn net.Conn
	name string

	mu     sync.Mutex
	closed bool

	readBuf []byte
}

var _ Channel = (*TCPChannel)(nil)

// DialTCP opens a TCP connection to addr.
func DialTCP(ctx context.Context, addr string) (*TCPChannel, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "tcp dial failed", err)
	}
	return NewTCPChannel(conn), nil
}

// NewTCPChannel wraps an already-connected net.Conn (e.g. accepted by a
// listener) as a Channel.
func NewTCPChannel(conn net.Conn) *TCPChannel {
	return &TCPChannel{conn: conn, name: fmt.Sprintf("tcp:%s", conn.RemoteAddr())}
}

func (c *TCPChannel) Name() string { return c.name }

func (c *TCPChannel) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrLinkDown
	}
	c.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	} else {
		_ = c.conn.SetWriteDeadline(zeroTime)
	}
	_, err := c.conn.Write(data)
	if err != nil {
		return protoerr.Wrap(protoerr.LinkDown, "tcp write failed", err)
	}
	return nil
}

func (c *TCPChannel) Receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
	} else {
		_ = c.conn.SetReadDeadline(zeroTime)
	}
	buf := make([]byte, 4096)
	n, err := c.conn.Read(buf)
	if err != nil {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		if ctx.Err() != nil {
			return nil, protoerr.Wrap(protoerr.Timeout, "receive deadline exceeded", err)
		}
		return nil, protoerr.Wrap(protoerr.LinkDown, "tcp read failed", err)
	}
	return buf[:n], nil
}

func (c *TCPChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Conn exposes the underlying connection for metrics collection
// (metrics.ConnectionCollector.AddConn looks up its fd via higebu/netfd).
func (c *TCPChannel) Conn() net.Conn { return c.conn }
