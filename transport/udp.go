package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// UDPChannel sends and receives one DNP3 frame per datagram. Datagrams
// whose source address doesn't match the configured peer are dropped
// silently (spec.md §4.2).
type UDPChannel struct {
	conn *net.UDPConn
	peer *net.UDPAddr
	name string
	// maxDatagram bounds how large a datagram Send accepts; larger data is
	// rejected with BAD_VALUE. MaxDatagram reports it, but the data-link
	// layer does not read it and does not size frames to it.
	maxDatagram int

	mu     sync.Mutex
	closed bool
}

var _ Channel = (*UDPChannel)(nil)

// DialUDP binds a local UDP socket and fixes the remote peer address.
func DialUDP(ctx context.Context, localAddr, peerAddr string, maxDatagram int) (*UDPChannel, error) {
	peer, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "resolve peer failed", err)
	}
	var local *net.UDPAddr
	if localAddr != "" {
		local, err = net.ResolveUDPAddr("udp", localAddr)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "resolve local failed", err)
		}
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "udp listen failed", err)
	}
	if maxDatagram <= 0 {
		maxDatagram = 2048
	}
	return &UDPChannel{
		conn:        conn,
		peer:        peer,
		name:        fmt.Sprintf("udp:%s", peer),
		maxDatagram: maxDatagram,
	}, nil
}

func (c *UDPChannel) Name() string         { return c.name }
func (c *UDPChannel) MaxDatagram() int     { return c.maxDatagram }

func (c *UDPChannel) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrLinkDown
	}
	c.mu.Unlock()

	if len(data) > c.maxDatagram {
		return protoerr.New(protoerr.BadValue, "datagram exceeds max-datagram budget")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	} else {
		_ = c.conn.SetWriteDeadline(zeroTime)
	}
	_, err := c.conn.WriteToUDP(data, c.peer)
	if err != nil {
		return protoerr.Wrap(protoerr.LinkDown, "udp write failed", err)
	}
	return nil
}

func (c *UDPChannel) Receive(ctx context.Context) ([]byte, error) {
	buf := make([]byte, c.maxDatagram)
	for {
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
		n, from, err := c.conn.ReadFromUDP(buf)
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
			return nil, protoerr.Wrap(protoerr.LinkDown, "udp read failed", err)
		}
		if !from.IP.Equal(c.peer.IP) || from.Port != c.peer.Port {
			continue // drop datagram from unexpected source, keep waiting
		}
		out := make([]byte, n)
		copy(out, buf[:n])
		return out, nil
	}
}

func (c *UDPChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
