package dnp3link

import (
	"context"
	"sync"
	"time"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
	"github.com/rob-gra/rvpf-protocol-core/transport"
	"golang.org/x/sync/errgroup"
)

// State is the data-link layer's connection state (spec.md §4.3).
type State int

const (
	SecNotReset State = iota
	SecReset
	LinkDown
)

func (s State) String() string {
	switch s {
	case SecNotReset:
		return "SEC_NOT_RESET"
	case SecReset:
		return "SEC_RESET"
	case LinkDown:
		return "LINK_DOWN"
	default:
		return "UNKNOWN"
	}
}

// FrameHandler receives every user-data frame the data-link layer
// delivers upward (to the transport/application layers above it).
type FrameHandler func(frame dnp3obj.Frame)

// outboundFrame is one queued frame plus the channel its sender is
// waiting on for completion (confirmed frames only).
type outboundFrame struct {
	frame    dnp3obj.Frame
	confirm  bool
	resultCh chan error
}

// DataLink owns one transport.Channel for one remote address. It runs a
// send pump and a receive pump (spec.md §4.3, §5): the send pump drains a
// priority queue (link-management ahead of user data), the receive pump
// demultiplexes inbound frames by function code and feeds user data to a
// FrameHandler.
//
// A malformed/corrupt frame (bad start bytes, bad length, CRC mismatch) is
// recovered locally per spec.md §7: the receive pump drops the offending
// bytes, resyncs to the next candidate frame start, and keeps running.
type DataLink struct {
	ch         transport.Channel
	cfg        Config
	localAddr  uint16
	remoteAddr uint16
	isMaster   bool
	onUserData FrameHandler
	log        clog.Clog

	mgmtQueue chan outboundFrame
	dataQueue chan outboundFrame

	mu    sync.Mutex
	state State
	fcb   bool // frame count bit toggled on each new confirmed frame

	pendingAck chan dnp3obj.Frame // single outstanding confirmed-frame ack wait
	lastTraffic time.Time

	cancel context.CancelFunc

	onRetry func() // optional metrics hook, see SetRetryHook
}

// SetRetryHook installs a callback invoked once per retransmission
// attempt (link-management and confirmed user-data frames alike), e.g.
// to drive an AssociationCollector's retry counter. Pass nil to disable.
func (d *DataLink) SetRetryHook(onRetry func()) {
	d.mu.Lock()
	d.onRetry = onRetry
	d.mu.Unlock()
}

func (d *DataLink) fireRetryHook() {
	d.mu.Lock()
	hook := d.onRetry
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// New creates a DataLink bound to ch. isMaster selects whether this side
// originates Reset/Test-Link-States (true) or answers them (false).
func New(ch transport.Channel, cfg Config, localAddr, remoteAddr uint16, isMaster bool, onUserData FrameHandler, log clog.Clog) *DataLink {
	return &DataLink{
		ch:         ch,
		cfg:        cfg,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		isMaster:   isMaster,
		onUserData: onUserData,
		log:        log,
		mgmtQueue:  make(chan outboundFrame, 4),
		dataQueue:  make(chan outboundFrame, 64),
		pendingAck: make(chan dnp3obj.Frame, 1),
		state:      SecNotReset,
	}
}

func (d *DataLink) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Name identifies the underlying channel, for logging/metrics labels.
func (d *DataLink) Name() string { return d.ch.Name() }

func (d *DataLink) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Open performs the Reset-Link-States handshake (master only) and starts
// the send/receive pumps. The supplied context bounds the handshake only;
// the pumps run until Close.
func (d *DataLink) Open(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return d.receivePump(gctx) })
	g.Go(func() error { return d.sendPump(gctx) })
	go func() {
		if err := g.Wait(); err != nil {
			d.log.Warn("data-link pumps stopped: %v", err)
		}
	}()

	if !d.isMaster {
		return nil
	}
	return d.resetLinkStates(ctx)
}

func (d *DataLink) resetLinkStates(ctx context.Context) error {
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		resultCh := make(chan error, 1)
		f := dnp3obj.Frame{
			Control:     dnp3obj.CtrlDir | dnp3obj.CtrlPrm | byte(dnp3obj.FuncResetLinkStates),
			Destination: d.remoteAddr,
			Source:      d.localAddr,
		}
		select {
		case d.mgmtQueue <- outboundFrame{frame: f, confirm: true, resultCh: resultCh}:
		case <-ctx.Done():
			return protoerr.Wrap(protoerr.Timeout, "reset-link-states enqueue", ctx.Err())
		}
		select {
		case err := <-resultCh:
			if err == nil {
				d.setState(SecReset)
				return nil
			}
		case <-ctx.Done():
			return protoerr.Wrap(protoerr.Timeout, "reset-link-states", ctx.Err())
		}
		d.fireRetryHook()
		time.Sleep(d.cfg.RetryDelay)
	}
	d.setState(LinkDown)
	return protoerr.New(protoerr.LinkDown, "reset-link-states: retries exhausted")
}

// SendUserData enqueues a user-data frame. confirm selects function 3
// (needs-confirm, retried up to cfg.Retries) vs function 4 (fire-and-
// forget).
func (d *DataLink) SendUserData(ctx context.Context, payload []byte, confirm bool) error {
	fn := dnp3obj.FuncUserDataUnconfirmed
	ctrl := dnp3obj.CtrlDir | dnp3obj.CtrlPrm
	if confirm {
		fn = dnp3obj.FuncUserDataConfirmed
		d.mu.Lock()
		if d.fcb {
			ctrl |= dnp3obj.CtrlFcb
		}
		d.fcb = !d.fcb
		d.mu.Unlock()
		ctrl |= dnp3obj.CtrlFcv
	}
	f := dnp3obj.Frame{
		Control:     ctrl | byte(fn),
		Destination: d.remoteAddr,
		Source:      d.localAddr,
		Payload:     payload,
	}

	resultCh := make(chan error, 1)
	select {
	case d.dataQueue <- outboundFrame{frame: f, confirm: confirm, resultCh: resultCh}:
	case <-ctx.Done():
		return protoerr.Wrap(protoerr.Timeout, "send enqueue", ctx.Err())
	}
	if !confirm {
		return nil
	}
	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return protoerr.Wrap(protoerr.Timeout, "send confirm", ctx.Err())
	}
}

// sendPump drains mgmtQueue ahead of dataQueue (link-management frames
// bypass user data, spec.md §4.4) and retries confirmed frames up to
// cfg.Retries times.
func (d *DataLink) sendPump(ctx context.Context) error {
	for {
		var out outboundFrame
		select {
		case out = <-d.mgmtQueue:
		default:
			select {
			case out = <-d.mgmtQueue:
			case out = <-d.dataQueue:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		d.deliver(ctx, out)
	}
}

func (d *DataLink) deliver(ctx context.Context, out outboundFrame) {
	wire, err := dnp3obj.Encode(out.frame)
	if err != nil {
		if out.resultCh != nil {
			out.resultCh <- err
		}
		return
	}

	attempts := 1
	if out.confirm {
		attempts = d.cfg.Retries + 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.LinkTimeout)
		lastErr = d.ch.Send(sendCtx, wire)
		if lastErr == nil && out.confirm {
			select {
			case <-d.pendingAck:
				lastErr = nil
			case <-sendCtx.Done():
				lastErr = protoerr.New(protoerr.LinkDown, "no ack within link timeout")
			}
		}
		cancel()
		if lastErr == nil {
			break
		}
		d.fireRetryHook()
		time.Sleep(d.cfg.RetryDelay)
	}
	if lastErr != nil && out.confirm {
		d.setState(LinkDown)
	}
	if out.resultCh != nil {
		out.resultCh <- lastErr
	}
}

// receivePump reads bytes from the channel, decodes frames, and
// dispatches by function code (spec.md §4.3 "dedicated receive task
// demultiplexes inbound frames").
func (d *DataLink) receivePump(ctx context.Context) error {
	var buf []byte
	pollInterval := d.cfg.KeepaliveTimeout / 4
	if pollInterval <= 0 || pollInterval > time.Second {
		pollInterval = time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		pollCtx, cancel := context.WithTimeout(ctx, pollInterval)
		chunk, err := d.ch.Receive(pollCtx)
		cancel()
		if err != nil {
			if protoerr.Is(err, protoerr.Cancelled) {
				return nil
			}
			if protoerr.Is(err, protoerr.Timeout) {
				d.checkKeepalive(ctx)
				continue
			}
			d.setState(LinkDown)
			return err
		}
		if len(chunk) == 0 {
			d.checkKeepalive(ctx)
			continue
		}
		buf = append(buf, chunk...)
		for {
			frame, n, decodeErr := dnp3obj.Decode(buf)
			if decodeErr != nil {
				d.log.Warn("data-link frame corrupt, dropping and resyncing: %v", decodeErr)
				buf = dnp3obj.Resync(buf)
				continue
			}
			if frame == nil {
				break // incomplete; wait for more bytes
			}
			buf = buf[n:]
			d.lastTraffic = time.Now()
			d.dispatch(*frame)
		}
	}
}

func (d *DataLink) dispatch(f dnp3obj.Frame) {
	if f.Destination != d.localAddr {
		return
	}
	switch f.Function() {
	case dnp3obj.FuncResetLinkStates:
		if f.IsFromMaster() {
			d.replyAck(f)
			d.setState(SecReset)
		} else {
			select {
			case d.pendingAck <- f:
			default:
			}
		}
	case dnp3obj.FuncTestLinkStates:
		if f.IsFromMaster() {
			d.replyAck(f)
		} else {
			select {
			case d.pendingAck <- f:
			default:
			}
		}
	case dnp3obj.FuncUserDataConfirmed:
		d.replyAck(f)
		if d.onUserData != nil {
			d.onUserData(f)
		}
	case dnp3obj.FuncUserDataUnconfirmed:
		if d.onUserData != nil {
			d.onUserData(f)
		}
	default:
		d.log.Debug("unhandled link function %d from %d", f.Function(), f.Source)
	}
}

func (d *DataLink) replyAck(req dnp3obj.Frame) {
	ctrl := byte(dnp3obj.FuncAck)
	if req.Control&dnp3obj.CtrlDir == 0 {
		ctrl |= dnp3obj.CtrlDir
	}
	ack := dnp3obj.Frame{
		Control:     ctrl, // secondary ACK: DIR is the inverse of the request's, PRM=0, function 0
		Destination: req.Source,
		Source:      d.localAddr,
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.LinkTimeout)
	defer cancel()
	wire, err := dnp3obj.Encode(ack)
	if err != nil {
		return
	}
	_ = d.ch.Send(ctx, wire)
}

func (d *DataLink) checkKeepalive(ctx context.Context) {
	if !d.isMaster {
		return
	}
	if time.Since(d.lastTraffic) < d.cfg.KeepaliveTimeout {
		return
	}
	resultCh := make(chan error, 1)
	f := dnp3obj.Frame{
		Control:     dnp3obj.CtrlDir | dnp3obj.CtrlPrm | byte(dnp3obj.FuncTestLinkStates),
		Destination: d.remoteAddr,
		Source:      d.localAddr,
	}
	select {
	case d.mgmtQueue <- outboundFrame{frame: f, confirm: true, resultCh: resultCh}:
	case <-ctx.Done():
		return
	}
	select {
	case err := <-resultCh:
		if err != nil {
			d.setState(LinkDown)
		}
	case <-ctx.Done():
	}
}

// Close shuts down the pumps and the underlying channel.
func (d *DataLink) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	return d.ch.Close()
}
