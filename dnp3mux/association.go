// Package dnp3mux multiplexes multiple DNP3 associations (master-
// outstation address pairs) across the data-link, transport, and
// application layers (spec.md §4.4 "DNP3 association multiplexer"). No
// teacher analogue exists (IEC 60870-5-104 is single-association per TCP
// connection), so the registry/lookup shape generalizes the teacher's
// own `Identifier`/`CommonAddr` addressing idiom to a keyed map.
package dnp3mux

import (
	"context"
	"fmt"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3app"
	"github.com/rob-gra/rvpf-protocol-core/dnp3link"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/dnp3transport"
	"github.com/rob-gra/rvpf-protocol-core/metrics"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Role selects which half of the application layer an Association drives.
type Role int

const (
	RoleMaster Role = iota
	RoleOutstation
)

// Association binds one DataLink to the transport-layer reassembler and
// application-layer engine for one (local address, remote address) pair
// (spec.md §4.4).
type Association struct {
	LocalAddr, RemoteAddr uint16
	role                  Role

	link        *dnp3link.DataLink
	reassembler *dnp3transport.Reassembler
	outSeq      uint8

	confirmSegments bool

	master     *dnp3app.Master
	outstation *dnp3app.Outstation

	log clog.Clog

	connMetrics  *metrics.ConnectionCollector
	assocMetrics *metrics.AssociationCollector
}

// label is the string this association reports itself under to a
// ConnectionCollector/AssociationCollector, e.g. "1<-10".
func (a *Association) label() string {
	return fmt.Sprintf("%d<-%d", a.LocalAddr, a.RemoteAddr)
}

// SetMetrics attaches conn/assoc collectors this Association reports
// through. Either may be nil to skip that collector; both default to nil
// (no-op) until called, so metrics are opt-in per caller. The caller is
// responsible for having already registered this association's channel
// name with conn (via Add/AddConn) -- SetMetrics only starts reporting
// against it, it does not register a fresh entry, so it never clobbers an
// fd looked up by AddConn.
func (a *Association) SetMetrics(conn *metrics.ConnectionCollector, assoc *metrics.AssociationCollector) {
	a.connMetrics = conn
	a.assocMetrics = assoc
	if assoc != nil {
		assoc.SetLinkState(a.label(), int(a.link.State()))
		a.link.SetRetryHook(func() { assoc.IncRetries(a.label()) })
	}
}

// NewMasterAssociation builds an Association driving the master half of
// the application layer. onUnsolicited receives unsolicited responses
// decoded out of band from the request/response correlation.
func NewMasterAssociation(link *dnp3link.DataLink, local, remote uint16, appCfg dnp3app.Config, confirmSegments bool, onUnsolicited dnp3app.UnsolicitedHandler, log clog.Clog) *Association {
	a := &Association{
		LocalAddr:       local,
		RemoteAddr:      remote,
		role:            RoleMaster,
		link:            link,
		reassembler:     dnp3transport.NewReassembler(),
		confirmSegments: confirmSegments,
		log:             log,
	}
	a.master = dnp3app.NewMaster(a, appCfg, onUnsolicited, log)
	return a
}

// NewOutstationAssociation builds an Association driving the outstation
// half of the application layer against db.
func NewOutstationAssociation(link *dnp3link.DataLink, local, remote uint16, appCfg dnp3app.Config, db dnp3app.Database, log clog.Clog) *Association {
	a := &Association{
		LocalAddr:   local,
		RemoteAddr:  remote,
		role:        RoleOutstation,
		link:        link,
		reassembler: dnp3transport.NewReassembler(),
		log:         log,
	}
	a.outstation = dnp3app.NewOutstation(db, a, appCfg, log)
	return a
}

// Master returns the application-layer master engine, or nil if this
// association was built with NewOutstationAssociation.
func (a *Association) Master() *dnp3app.Master { return a.master }

// Outstation returns the application-layer outstation engine, or nil if
// this association was built with NewMasterAssociation.
func (a *Association) Outstation() *dnp3app.Outstation { return a.outstation }

// Send implements dnp3app.Sender: it fragments an assembled application
// fragment into transport segments and hands each one to the data-link
// layer in order.
func (a *Association) Send(ctx context.Context, fragment []byte) error {
	segments, err := dnp3transport.Fragment(fragment, &a.outSeq)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		wire, err := dnp3obj.EncodeSegment(seg)
		if err != nil {
			return err
		}
		if err := a.link.SendUserData(ctx, wire, a.confirmSegments); err != nil {
			return err
		}
		if a.connMetrics != nil {
			a.connMetrics.RecordSent(a.link.Name(), len(wire))
			a.connMetrics.RecordFrame(a.link.Name())
		}
	}
	if a.assocMetrics != nil {
		a.assocMetrics.SetSequence(a.label(), a.outSeq, a.reassembler.ExpectedSeq())
		a.assocMetrics.SetLinkState(a.label(), int(a.link.State()))
	}
	return nil
}

// HandleFrame feeds one data-link user-data frame's payload through
// transport-layer reassembly and, once a fragment completes, into the
// application layer. It is the FrameHandler this Association's DataLink
// should be constructed with.
func (a *Association) HandleFrame(ctx context.Context, f dnp3obj.Frame) {
	if a.connMetrics != nil {
		a.connMetrics.RecordReceived(a.link.Name(), len(f.Payload))
		a.connMetrics.RecordFrame(a.link.Name())
	}

	fragmentBytes, done, err := a.reassembler.AcceptWire(f.Payload)
	if err != nil {
		a.log.Warn("transport reassembly failed on association %d<-%d: %v", a.LocalAddr, a.RemoteAddr, err)
		// Disorder is fatal to the fragment in progress only (spec.md
		// §4.3): reset so the next FIR segment starts a clean assembly
		// instead of every future segment re-failing TRANSPORT_DESYNC.
		a.ResetReassembly()
		if a.assocMetrics != nil {
			a.assocMetrics.SetLinkState(a.label(), int(a.link.State()))
		}
		return
	}
	if !done {
		return
	}

	switch a.role {
	case RoleMaster:
		parsed, err := dnp3obj.DecodeFragment(fragmentBytes, true)
		if err != nil {
			a.log.Warn("application fragment decode failed: %v", err)
			return
		}
		a.master.HandleIncoming(ctx, parsed)
	case RoleOutstation:
		parsed, err := dnp3obj.DecodeFragment(fragmentBytes, false)
		if err != nil {
			a.log.Warn("application fragment decode failed: %v", err)
			return
		}
		a.outstation.HandleIncoming(ctx, parsed)
	}
}

// ResetReassembly clears in-flight transport state, e.g. after the
// data-link layer re-establishes SEC_RESET (spec.md §9 open question (i)
// scopes desync recovery to the connection, not the whole process).
func (a *Association) ResetReassembly() {
	a.reassembler.Reset()
}

var errNoSuchAssociation = protoerr.New(protoerr.BadValue, "no association registered for this address pair")
