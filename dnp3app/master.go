package dnp3app

import (
	"context"
	"sync"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Sender delivers one assembled application fragment to the layer below
// (dnp3mux, which in turn drives dnp3transport fragmentation and the
// dnp3link send pump). It blocks until the fragment's bytes have been
// handed off, not until any response arrives.
type Sender interface {
	Send(ctx context.Context, fragment []byte) error
}

// UnsolicitedHandler receives unsolicited responses outside of the
// request/response correlation below.
type UnsolicitedHandler func(dnp3obj.Fragment)

// pendingRequest is the state a Master keeps while IDLE -> AWAITING_RESPONSE.
type pendingRequest struct {
	seq      uint8
	resultCh chan requestResult

	// assembled/assembledIIN accumulate items and IIN bits across a run
	// of response fragments sharing seq, from the FIR fragment through
	// the one carrying FIN (spec.md §4.3).
	assembled    []dnp3obj.Item
	assembledIIN dnp3obj.IIN
}

type requestResult struct {
	fragment dnp3obj.Fragment
	err      error
}

// Master drives the request/response half of the application layer for
// one association (spec.md §4.3 master role). Master is safe for
// concurrent Read/Write/Select/Operate calls, but only one request may be
// AWAITING_RESPONSE at a time per association: a call made while another
// is outstanding fails at once with ServiceUnavailable.
type Master struct {
	send Sender
	cfg  Config
	log  clog.Clog

	mu      sync.Mutex
	seq     uint8 // 4 bits, incremented once per new (non-retry) request
	pending *pendingRequest

	onUnsolicited UnsolicitedHandler
}

// NewMaster constructs a Master bound to send for outbound delivery.
func NewMaster(send Sender, cfg Config, onUnsolicited UnsolicitedHandler, log clog.Clog) *Master {
	return &Master{send: send, cfg: cfg, onUnsolicited: onUnsolicited, log: log}
}

// Read issues a READ request for the given object headers (typically
// class 0/1/2/3 polls or a specific group/variation/range) and waits for
// the matching response.
func (m *Master) Read(ctx context.Context, headers []dnp3obj.ObjectHeader) (dnp3obj.Fragment, error) {
	items := make([]dnp3obj.Item, len(headers))
	for i, h := range headers {
		items[i] = dnp3obj.Item{Header: h}
	}
	return m.request(ctx, dnp3obj.FuncRead, items)
}

// Write issues a WRITE request carrying the given items (e.g. clearing
// IIN bits, time synchronization via group 50).
func (m *Master) Write(ctx context.Context, items []dnp3obj.Item) (dnp3obj.Fragment, error) {
	return m.request(ctx, dnp3obj.FuncWrite, items)
}

// Select issues a SELECT (arm) for a control point, the first half of a
// select-before-operate sequence.
func (m *Master) Select(ctx context.Context, items []dnp3obj.Item) (dnp3obj.Fragment, error) {
	return m.request(ctx, dnp3obj.FuncSelect, items)
}

// Operate issues an OPERATE (execute) following a prior Select.
func (m *Master) Operate(ctx context.Context, items []dnp3obj.Item) (dnp3obj.Fragment, error) {
	return m.request(ctx, dnp3obj.FuncOperate, items)
}

// DirectOperate issues an OPERATE without a preceding SELECT.
func (m *Master) DirectOperate(ctx context.Context, items []dnp3obj.Item) (dnp3obj.Fragment, error) {
	return m.request(ctx, dnp3obj.FuncDirectOperate, items)
}

// ColdRestart/WarmRestart issue restart requests; the outstation's time-
// to-restart is carried back in the response's single group-52 item,
// left to the caller to interpret.
func (m *Master) ColdRestart(ctx context.Context) (dnp3obj.Fragment, error) {
	return m.request(ctx, dnp3obj.FuncColdRestart, nil)
}

func (m *Master) WarmRestart(ctx context.Context) (dnp3obj.Fragment, error) {
	return m.request(ctx, dnp3obj.FuncWarmRestart, nil)
}

// EnableUnsolicited/DisableUnsolicited toggle unsolicited response
// generation at the outstation for the given class headers.
func (m *Master) EnableUnsolicited(ctx context.Context, headers []dnp3obj.ObjectHeader) (dnp3obj.Fragment, error) {
	items := make([]dnp3obj.Item, len(headers))
	for i, h := range headers {
		items[i] = dnp3obj.Item{Header: h}
	}
	return m.request(ctx, dnp3obj.FuncEnableUnsolicited, items)
}

func (m *Master) DisableUnsolicited(ctx context.Context, headers []dnp3obj.ObjectHeader) (dnp3obj.Fragment, error) {
	items := make([]dnp3obj.Item, len(headers))
	for i, h := range headers {
		items[i] = dnp3obj.Item{Header: h}
	}
	return m.request(ctx, dnp3obj.FuncDisableUnsolicited, items)
}

func (m *Master) request(ctx context.Context, fn dnp3obj.FunctionCode, items []dnp3obj.Item) (dnp3obj.Fragment, error) {
	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return dnp3obj.Fragment{}, protoerr.New(protoerr.ServiceUnavailable, "a request is already outstanding on this association")
	}
	seq := m.seq
	m.seq = (m.seq + 1) & 0x0F
	resultCh := make(chan requestResult, 1)
	m.pending = &pendingRequest{seq: seq, resultCh: resultCh}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
	}()

	f := dnp3obj.Fragment{
		Control:  dnp3obj.ApplicationControl{Fir: true, Fin: true, Seq: seq},
		Function: fn,
		Items:    items,
	}
	wire, err := dnp3obj.EncodeFragment(f)
	if err != nil {
		return dnp3obj.Fragment{}, err
	}
	if len(wire) > m.cfg.MaxFragmentSize {
		return dnp3obj.Fragment{}, protoerr.New(protoerr.BadValue, "request fragment exceeds configured maximum")
	}

	if err := m.send.Send(ctx, wire); err != nil {
		return dnp3obj.Fragment{}, err
	}

	select {
	case res := <-resultCh:
		return res.fragment, res.err
	case <-ctx.Done():
		return dnp3obj.Fragment{}, protoerr.Wrap(protoerr.ApplicationTimeout, "no response within request timeout", ctx.Err())
	}
}

// HandleIncoming is called by the layer below (dnp3mux) for every
// reassembled application fragment addressed to this association. It
// correlates responses to the outstanding request by sequence number,
// accumulates a multi-fragment response across FIR..FIN (spec.md §4.3,
// §8 scenario 3), confirming each fragment that carries Con along the
// way, and routes unsolicited responses to onUnsolicited.
func (m *Master) HandleIncoming(ctx context.Context, f dnp3obj.Fragment) {
	if f.Function == dnp3obj.FuncUnsolicitedResponse {
		if m.onUnsolicited != nil {
			m.onUnsolicited(f)
		}
		return
	}

	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()

	if pending == nil {
		m.log.Debug("application fragment with no outstanding request, seq=%d", f.Control.Seq)
		return
	}
	if f.Control.Seq != pending.seq {
		pending.resultCh <- requestResult{err: protoerr.New(protoerr.UnexpectedResponse, "response sequence does not match outstanding request")}
		return
	}

	m.mu.Lock()
	if f.Control.Fir {
		pending.assembled = nil
		pending.assembledIIN = 0
	}
	pending.assembled = append(pending.assembled, f.Items...)
	pending.assembledIIN |= f.IIN
	m.mu.Unlock()

	if f.Control.Con {
		m.sendConfirm(ctx, f.Control.Seq)
	}

	if !f.Control.Fin {
		return // accumulate; wait for the next fragment of this response
	}

	result := f
	result.Items = pending.assembled
	result.IIN = pending.assembledIIN
	pending.resultCh <- requestResult{fragment: result}
}

// sendConfirm builds and sends a function-0 CONFIRM fragment for the
// given sequence, acknowledging one fragment of a multi-fragment
// response so the outstation releases the next one.
func (m *Master) sendConfirm(ctx context.Context, seq uint8) {
	confirm := dnp3obj.Fragment{
		Control:  dnp3obj.ApplicationControl{Fir: true, Fin: true, Seq: seq},
		Function: dnp3obj.FuncConfirm,
	}
	wire, err := dnp3obj.EncodeFragment(confirm)
	if err != nil {
		m.log.Error("failed to encode confirm fragment: %v", err)
		return
	}
	if err := m.send.Send(ctx, wire); err != nil {
		m.log.Warn("failed to send confirm fragment: %v", err)
	}
}
