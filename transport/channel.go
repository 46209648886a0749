// Package transport provides the byte-oriented full-duplex carrier
// abstraction (spec.md §4.2): TCP, UDP, and serial implementations behind
// one Channel interface, so the DNP3 data-link layer never knows which
// kind of wire it is talking to.
package transport

import (
	"context"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Channel is a full-duplex byte stream. Implementations must make Close
// idempotent and must unblock any pending Receive when Close is called.
type Channel interface {
	// Send enqueues bytes for transmission; delivers in order. Returns
	// ErrLinkDown if the channel is closed.
	Send(ctx context.Context, data []byte) error

	// Receive returns the next available bytes, blocking up to the
	// context's deadline. Returns ErrClosed when the local side closed
	// the channel; a peer closing a TCP connection is not reported as
	// ErrClosed but as a LINK_DOWN read error.
	Receive(ctx context.Context) ([]byte, error)

	// Close is idempotent and cancels any pending Receive.
	Close() error

	// Name identifies the channel for logging/metrics (e.g. "tcp:host:port").
	Name() string
}

var (
	ErrLinkDown = protoerr.New(protoerr.LinkDown, "transport channel is closed")
	ErrClosed   = protoerr.New(protoerr.Cancelled, "transport channel closed during receive")
)
