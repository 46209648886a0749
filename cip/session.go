package cip

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
	"github.com/rob-gra/rvpf-protocol-core/transport"
)

// SessionState is the EtherNet/IP session lifecycle (spec.md §4.3 CIP
// paragraph), grounded on tonylturner-cipdip's ENIPClient.connected bool
// generalized into an explicit state enum with a draining phase for
// in-flight requests during Close.
type SessionState int

const (
	SessionClosed SessionState = iota
	SessionRegistering
	SessionOpen
	SessionDraining
)

// pendingRequest correlates one outstanding service request by its
// 8-byte sender context, which this session treats as a monotonic
// request ID encoded little-endian in the first 4 bytes.
type pendingRequest struct {
	id       uint32
	resultCh chan sessionResult
}

type sessionResult struct {
	packet EncapPacket
	err    error
}

// Session manages one EtherNet/IP connection: registration, request-ID
// correlation, and teardown. A mismatched request ID on an incoming
// reply (spec.md §3 invariant) tears the session down with
// UnexpectedResponse rather than silently discarding the frame, since
// that signals a still-open prior request got answered out of band.
type Session struct {
	ch  transport.Channel
	cfg Config
	log clog.Clog

	mu      sync.Mutex
	state   SessionState
	session uint32
	pending map[uint32]*pendingRequest

	nextID uint32

	cancel context.CancelFunc
}

// NewSession wraps ch (already dialed to the target's CIP TCP port).
func NewSession(ch transport.Channel, cfg Config, log clog.Clog) *Session {
	return &Session{ch: ch, cfg: cfg, log: log, pending: make(map[uint32]*pendingRequest)}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open registers the session and starts the receive pump.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	s.state = SessionRegistering
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.receivePump(runCtx)

	senderContext := s.contextFor(0)
	wire := BuildRegisterSession(senderContext)
	registerCtx, regCancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer regCancel()
	if err := s.ch.Send(registerCtx, wire); err != nil {
		s.teardown()
		return protoerr.Wrap(protoerr.ServiceUnavailable, "send RegisterSession failed", err)
	}

	resultCh := make(chan sessionResult, 1)
	s.mu.Lock()
	s.pending[0] = &pendingRequest{id: 0, resultCh: resultCh}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, 0)
		s.mu.Unlock()
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			s.teardown()
			return res.err
		}
		if res.packet.Status != EncapStatusSuccess {
			s.teardown()
			return protoerr.New(protoerr.ServiceUnavailable, "RegisterSession returned non-success status")
		}
		s.mu.Lock()
		s.session = res.packet.SessionHandle
		s.state = SessionOpen
		s.mu.Unlock()
		return nil
	case <-registerCtx.Done():
		s.teardown()
		return protoerr.Wrap(protoerr.ApplicationTimeout, "RegisterSession timed out", registerCtx.Err())
	}
}

// contextFor encodes id as the low 4 bytes of an 8-byte sender context.
func (s *Session) contextFor(id uint32) [8]byte {
	var ctx [8]byte
	binary.LittleEndian.PutUint32(ctx[:4], id)
	return ctx
}

// Invoke sends one CIP service request via SendRRData and waits for the
// matching reply.
func (s *Session) Invoke(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	if s.state != SessionOpen {
		s.mu.Unlock()
		return Response{}, protoerr.New(protoerr.LinkDown, "session is not open")
	}
	id := atomic.AddUint32(&s.nextID, 1)
	resultCh := make(chan sessionResult, 1)
	s.pending[id] = &pendingRequest{id: id, resultCh: resultCh}
	session := s.session
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	cipData := EncodeRequest(req)
	wire := BuildSendRRData(session, s.contextFor(id), cipData)

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.ch.Send(sendCtx, wire); err != nil {
		return Response{}, protoerr.Wrap(protoerr.LinkDown, "send SendRRData failed", err)
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return Response{}, res.err
		}
		if res.packet.Status != EncapStatusSuccess {
			return Response{}, protoerr.New(protoerr.BadValue, "SendRRData returned non-success encapsulation status")
		}
		cipReply, err := ParseRRDataResponse(res.packet.Data)
		if err != nil {
			return Response{}, err
		}
		return DecodeResponse(cipReply)
	case <-sendCtx.Done():
		return Response{}, protoerr.Wrap(protoerr.ApplicationTimeout, "no reply within session timeout", sendCtx.Err())
	}
}

// receivePump decodes encapsulation frames and dispatches them to the
// pending request matching their sender context's request ID. A reply
// whose ID has no pending entry is itself a protocol fault serious
// enough to tear the whole session down (spec.md §3): it means a
// previous Invoke's deadline already fired and this reply arrived late,
// or the device echoed a context we never sent.
func (s *Session) receivePump(ctx context.Context) {
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		chunk, err := s.ch.Receive(ctx)
		if err != nil {
			s.failAllPending(protoerr.Wrap(protoerr.LinkDown, "CIP receive failed", err))
			return
		}
		buf = append(buf, chunk...)
		for {
			packet, n, decodeErr := DecodeEncap(buf)
			if decodeErr != nil {
				s.failAllPending(decodeErr)
				return
			}
			if packet == nil {
				break
			}
			buf = buf[n:]
			s.dispatch(*packet)
		}
	}
}

func (s *Session) dispatch(packet EncapPacket) {
	id := binary.LittleEndian.Uint32(packet.SenderContext[:4])

	s.mu.Lock()
	req, ok := s.pending[id]
	s.mu.Unlock()

	if !ok {
		s.log.Warn("CIP reply with unknown request id %d, tearing down session", id)
		s.failAllPending(protoerr.New(protoerr.UnexpectedResponse, "reply request id does not match any outstanding request"))
		s.teardown()
		return
	}
	req.resultCh <- sessionResult{packet: packet}
}

func (s *Session) failAllPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.pending {
		select {
		case req.resultCh <- sessionResult{err: err}:
		default:
		}
		delete(s.pending, id)
	}
}

func (s *Session) teardown() {
	s.mu.Lock()
	s.state = SessionClosed
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Close unregisters the session (best-effort) and closes the channel.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.state = SessionDraining
	session := s.session
	s.mu.Unlock()

	unregWire := BuildUnregisterSession(session, s.contextFor(0))
	_ = s.ch.Send(ctx, unregWire)

	s.teardown()
	return s.ch.Close()
}
