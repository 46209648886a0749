package dnp3mux

import (
	"context"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3app"
	"github.com/rob-gra/rvpf-protocol-core/dnp3link"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/dnp3transport"
	"github.com/rob-gra/rvpf-protocol-core/transport"
)

// frameHandlerFor adapts an Association's context-taking HandleFrame into
// the plain dnp3link.FrameHandler signature dnp3link.New requires. The
// closure captures a before a's link field is assigned, which is safe
// because dnp3link.DataLink only ever invokes the handler after Open is
// called, well after NewMasterOverChannel/NewOutstationOverChannel return.
func frameHandlerFor(a *Association) dnp3link.FrameHandler {
	return func(f dnp3obj.Frame) {
		a.HandleFrame(context.Background(), f)
	}
}

// NewMasterOverChannel builds one DataLink over ch and the Association
// driving its master-role application layer, wired together so inbound
// frames flow straight from the data-link layer through reassembly into
// dnp3app.Master.
func NewMasterOverChannel(ch transport.Channel, linkCfg dnp3link.Config, appCfg dnp3app.Config, local, remote uint16, confirmSegments bool, onUnsolicited dnp3app.UnsolicitedHandler, log clog.Clog) *Association {
	a := &Association{
		LocalAddr:       local,
		RemoteAddr:      remote,
		role:            RoleMaster,
		reassembler:     dnp3transport.NewReassembler(),
		confirmSegments: confirmSegments,
		log:             log,
	}
	a.link = dnp3link.New(ch, linkCfg, local, remote, true, frameHandlerFor(a), log)
	a.master = dnp3app.NewMaster(a, appCfg, onUnsolicited, log)
	return a
}

// NewOutstationOverChannel is NewMasterOverChannel's outstation-role
// counterpart, serving reads/writes against db.
func NewOutstationOverChannel(ch transport.Channel, linkCfg dnp3link.Config, appCfg dnp3app.Config, local, remote uint16, db dnp3app.Database, log clog.Clog) *Association {
	a := &Association{
		LocalAddr:   local,
		RemoteAddr:  remote,
		role:        RoleOutstation,
		reassembler: dnp3transport.NewReassembler(),
		log:         log,
	}
	a.link = dnp3link.New(ch, linkCfg, local, remote, false, frameHandlerFor(a), log)
	a.outstation = dnp3app.NewOutstation(db, a, appCfg, log)
	return a
}

// Link returns the underlying DataLink so callers can Open/Close it.
func (a *Association) Link() *dnp3link.DataLink { return a.link }
