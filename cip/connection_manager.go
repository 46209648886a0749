package cip

import (
	"context"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// ConnectionManager requests establish and tear down a connected (as
// opposed to unconnected/UCMM) CIP session via the Connection Manager
// object (class 0x06, instance 0x01). Grounded on tonylturner-cipdip's
// ForwardOpen/ForwardClose, which this module supplements as an
// interface stub: cyclic I/O connections are out of this module's scope
// (spec.md treats CIP purely as an explicit-messaging tag client), but
// the seam is kept so a transport-class connection manager can be
// plugged in without reshaping Session.
type ConnectionManager interface {
	// ForwardOpen establishes a connection and returns the O->T
	// connection ID a subsequent ForwardClose must reference.
	ForwardOpen(ctx context.Context, params ForwardOpenParams) (uint32, error)

	// ForwardClose tears down a connection previously opened with
	// ForwardOpen.
	ForwardClose(ctx context.Context, connectionID uint32) error
}

// ForwardOpenParams mirrors the subset of the Forward_Open service
// request this module might one day need to drive connected I/O.
type ForwardOpenParams struct {
	Class                 uint16
	Instance              uint16
	OToTRPIMicros          uint32
	TToORPIMicros          uint32
	OToTSizeBytes          uint16
	TToOSizeBytes          uint16
	TransportClassTrigger  byte
}

// unsupportedConnectionManager is the zero-value ConnectionManager: it
// reports ServiceUnavailable for every call so callers that don't wire a
// real implementation fail loudly instead of silently no-opping.
type unsupportedConnectionManager struct{}

// NewUnsupportedConnectionManager returns a ConnectionManager that
// refuses every request; use it where a Session has no configured
// connected-messaging backend.
func NewUnsupportedConnectionManager() ConnectionManager {
	return unsupportedConnectionManager{}
}

func (unsupportedConnectionManager) ForwardOpen(ctx context.Context, params ForwardOpenParams) (uint32, error) {
	return 0, protoerr.New(protoerr.ServiceUnavailable, "connected messaging is not configured for this session")
}

func (unsupportedConnectionManager) ForwardClose(ctx context.Context, connectionID uint32) error {
	return protoerr.New(protoerr.ServiceUnavailable, "connected messaging is not configured for this session")
}

var _ ConnectionManager = unsupportedConnectionManager{}
