package dnp3app

import (
	"context"
	"sync"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Database is the point-data backing store an Outstation answers requests
// from. Implementations are responsible for class assignment and for
// deciding what IIN bits apply (e.g. IINNeedTime after a restart).
type Database interface {
	// ReadClass returns the items currently assigned to the requested
	// classes (0 = static/class 0, 1-3 = event classes), in catalog
	// (group, variation) layout.
	ReadClass(classes []int) ([]dnp3obj.Item, error)

	// ReadRange returns the items addressed by a specific object header
	// (e.g. group 30 variation 2, index range 3..3).
	ReadRange(header dnp3obj.ObjectHeader) ([]dnp3obj.Item, error)

	// Write applies incoming items (e.g. group 50 time sync, group 80 IIN
	// clears) and returns any IIN bits the write should set.
	Write(items []dnp3obj.Item) (dnp3obj.IIN, error)

	// Operate applies a control operation (select, operate, or direct-
	// operate) and returns the IIN bits the operation should set.
	Operate(items []dnp3obj.Item, directExecute bool) (dnp3obj.IIN, error)
}

// Outstation answers master requests for one association (spec.md §4.3
// outstation/server role, supplemented beyond the distilled spec's
// master-only scope to support a diagnostic simulator).
type Outstation struct {
	db   Database
	send Sender
	cfg  Config
	log  clog.Clog

	restartIIN bool // IINDeviceRestart set until a cold or warm restart request clears it

	mu           sync.Mutex
	pendingSeq   uint8
	pendingFrags []dnp3obj.Fragment // response fragments still to send, awaiting a CONFIRM
}

// NewOutstation constructs an Outstation that answers over send.
func NewOutstation(db Database, send Sender, cfg Config, log clog.Clog) *Outstation {
	return &Outstation{db: db, send: send, cfg: cfg, log: log, restartIIN: true}
}

// HandleIncoming processes one request fragment and sends the
// corresponding response, splitting it across multiple fragments when it
// does not fit cfg.MaxFragmentSize (spec.md §4.3, §8 scenario 3). A
// CONFIRM (function 0) arriving while a multi-fragment response is
// outstanding releases the next fragment in the sequence.
func (o *Outstation) HandleIncoming(ctx context.Context, f dnp3obj.Fragment) {
	if f.Function == dnp3obj.FuncConfirm {
		o.handleConfirm(ctx, f)
		return
	}

	var items []dnp3obj.Item
	var iin dnp3obj.IIN

	switch f.Function {
	case dnp3obj.FuncRead:
		var err error
		items, iin, err = o.handleRead(f.Items)
		if err != nil {
			iin |= dnp3obj.IINParamError
		}
	case dnp3obj.FuncWrite:
		var err error
		iin, err = o.db.Write(f.Items)
		if err != nil {
			iin |= dnp3obj.IINParamError
		}
	case dnp3obj.FuncSelect:
		var err error
		iin, err = o.db.Operate(f.Items, false)
		if err != nil {
			iin |= dnp3obj.IINParamError
		}
	case dnp3obj.FuncOperate:
		var err error
		iin, err = o.db.Operate(f.Items, false)
		if err != nil {
			iin |= dnp3obj.IINParamError
		}
	case dnp3obj.FuncDirectOperate:
		var err error
		iin, err = o.db.Operate(f.Items, true)
		if err != nil {
			iin |= dnp3obj.IINParamError
		}
	case dnp3obj.FuncColdRestart, dnp3obj.FuncWarmRestart:
		o.restartIIN = false
	case dnp3obj.FuncEnableUnsolicited, dnp3obj.FuncDisableUnsolicited:
		// Acknowledged with an empty response; no unsolicited responses
		// are scheduled or generated.
	default:
		iin |= dnp3obj.IINNoFuncCodeSupp
	}

	if o.restartIIN {
		iin |= dnp3obj.IINDeviceRestart
	}

	o.sendNextFragment(ctx, o.buildResponseFragments(f.Control.Seq, items, iin))
}

// buildResponseFragments splits items into one or more response
// fragments bounded by cfg.MaxFragmentSize. Only the first fragment
// carries Fir, only the last carries Fin, and every fragment but the
// last sets Con to request a confirm before the next one is released.
func (o *Outstation) buildResponseFragments(seq uint8, items []dnp3obj.Item, iin dnp3obj.IIN) []dnp3obj.Fragment {
	groups := splitItemsForResponse(items, o.cfg.MaxFragmentSize)
	fragments := make([]dnp3obj.Fragment, len(groups))
	for i, group := range groups {
		fragments[i] = dnp3obj.Fragment{
			Control: dnp3obj.ApplicationControl{
				Fir: i == 0,
				Fin: i == len(groups)-1,
				Con: i != len(groups)-1,
				Seq: seq,
			},
			Function:   dnp3obj.FuncResponse,
			IIN:        iin,
			IsResponse: true,
			Items:      group,
		}
	}
	return fragments
}

// sendNextFragment encodes and sends fragments[0], queuing the remainder
// to be released as CONFIRMs arrive.
func (o *Outstation) sendNextFragment(ctx context.Context, fragments []dnp3obj.Fragment) {
	next := fragments[0]

	o.mu.Lock()
	o.pendingSeq = next.Control.Seq
	if len(fragments) > 1 {
		o.pendingFrags = fragments[1:]
	} else {
		o.pendingFrags = nil
	}
	o.mu.Unlock()

	wire, err := dnp3obj.EncodeFragment(next)
	if err != nil {
		o.log.Error("failed to encode response fragment: %v", err)
		return
	}
	if sendErr := o.send.Send(ctx, wire); sendErr != nil {
		o.log.Warn("failed to send response fragment: %v", sendErr)
	}
}

// handleConfirm releases the next queued response fragment once the
// master confirms the one just sent, ignoring confirms that don't match
// the outstanding multi-fragment response (spec.md §4.3).
func (o *Outstation) handleConfirm(ctx context.Context, f dnp3obj.Fragment) {
	o.mu.Lock()
	if len(o.pendingFrags) == 0 || f.Control.Seq != o.pendingSeq {
		o.mu.Unlock()
		return
	}
	remaining := o.pendingFrags
	o.pendingFrags = nil
	o.mu.Unlock()

	o.sendNextFragment(ctx, remaining)
}

func (o *Outstation) handleRead(items []dnp3obj.Item) ([]dnp3obj.Item, dnp3obj.IIN, error) {
	var out []dnp3obj.Item
	for _, item := range items {
		if item.Header.Group == dnp3obj.GroupClassData {
			classes := classesFromRange(item.Header)
			classItems, err := o.db.ReadClass(classes)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, classItems...)
			continue
		}
		rangeItems, err := o.db.ReadRange(item.Header)
		if err != nil {
			return nil, dnp3obj.IINObjectUnknown, protoerr.Wrap(protoerr.UnsupportedObject, "read range failed", err)
		}
		out = append(out, rangeItems...)
	}
	return out, 0, nil
}

func classesFromRange(h dnp3obj.ObjectHeader) []int {
	switch h.Variation {
	case 1:
		return []int{0}
	case 2:
		return []int{1}
	case 3:
		return []int{2}
	case 4:
		return []int{3}
	default:
		return nil
	}
}
