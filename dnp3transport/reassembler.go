// Package dnp3transport implements the DNP3 transport layer: segment
// fragmentation on send and reassembly on receive (spec.md §4.1, §4.3
// "DNP3 transport layer"). IEC 60870-5-104 has no equivalent layer (its
// ASDUs ride directly over TCP), so this package has no direct teacher
// analogue; it follows the same small-stateful-struct-with-Append/Decode
// idiom as dnp3obj's other codec types.
package dnp3transport

import (
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Fragment splits payload into one or more transport segments, each
// carrying at most dnp3obj.MaxSegmentPayload bytes. The outbound sequence
// counter wraps at 6 bits (0-63), incrementing once per segment across
// the whole fragment, not just across fragments (spec.md §4.1).
func Fragment(payload []byte, seq *uint8) ([]dnp3obj.Segment, error) {
	if len(payload) == 0 {
		s := dnp3obj.Segment{Fir: true, Fin: true, Seq: *seq & 0x3F}
		*seq = (*seq + 1) & 0x3F
		return []dnp3obj.Segment{s}, nil
	}

	var segments []dnp3obj.Segment
	for offset := 0; offset < len(payload); offset += dnp3obj.MaxSegmentPayload {
		end := offset + dnp3obj.MaxSegmentPayload
		if end > len(payload) {
			end = len(payload)
		}
		segments = append(segments, dnp3obj.Segment{
			Fir:     offset == 0,
			Fin:     end == len(payload),
			Seq:     *seq & 0x3F,
			Payload: payload[offset:end],
		})
		*seq = (*seq + 1) & 0x3F
	}
	return segments, nil
}

// Reassembler accumulates segments belonging to one in-flight fragment.
// It is not safe for concurrent use; each DataLink-facing association
// owns its own instance (spec.md §9 open question (i): desync is scoped
// to the connection, never process-global).
type Reassembler struct {
	expectedSeq uint8
	haveFirst   bool
	buf         []byte
	desynced    bool
}

// NewReassembler returns a Reassembler ready to accept the first segment
// of the next fragment.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// ExpectedSeq returns the 6-bit transport sequence the reassembler next
// expects, for metrics/diagnostics.
func (r *Reassembler) ExpectedSeq() uint8 { return r.expectedSeq }

// Reset clears accumulated state, e.g. after a completed fragment or
// after the data-link layer re-establishes SEC_RESET.
func (r *Reassembler) Reset() {
	r.expectedSeq = 0
	r.haveFirst = false
	r.buf = nil
	r.desynced = false
}

// Accept feeds one decoded Segment into the reassembler. It returns the
// completed fragment payload (and true) when the segment carries FIN;
// otherwise it returns (nil, false) while assembly continues.
//
// A sequence gap, a FIR segment that doesn't start a fresh fragment
// mid-assembly, or exceeding MaxAssembledFragment all return
// TRANSPORT_DESYNC and leave the Reassembler desynced: every subsequent
// Accept call returns the same error until Reset is called (spec.md §4.1
// "sequence gap or duplicate is fatal to the fragment currently being
// assembled").
func (r *Reassembler) Accept(seg dnp3obj.Segment) ([]byte, bool, error) {
	if r.desynced {
		return nil, false, protoerr.New(protoerr.TransportDesync, "reassembler desynced, awaiting reset")
	}

	if seg.Fir {
		if r.haveFirst && len(r.buf) > 0 {
			r.desynced = true
			return nil, false, protoerr.New(protoerr.TransportDesync, "unexpected FIR mid-assembly")
		}
		r.haveFirst = true
		r.buf = r.buf[:0]
		r.expectedSeq = seg.Seq
	} else {
		if !r.haveFirst {
			r.desynced = true
			return nil, false, protoerr.New(protoerr.TransportDesync, "segment received before FIR")
		}
		wantSeq := (r.expectedSeq + 1) & 0x3F
		if seg.Seq != wantSeq {
			r.desynced = true
			return nil, false, protoerr.New(protoerr.TransportDesync, "segment sequence gap or duplicate")
		}
		r.expectedSeq = seg.Seq
	}

	if len(r.buf)+len(seg.Payload) > dnp3obj.MaxAssembledFragment {
		r.desynced = true
		return nil, false, protoerr.New(protoerr.TransportDesync, "assembled fragment exceeds maximum size")
	}
	r.buf = append(r.buf, seg.Payload...)

	if !seg.Fin {
		return nil, false, nil
	}

	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	r.haveFirst = false
	r.buf = r.buf[:0]
	return out, true, nil
}

// AcceptWire is a convenience wrapper that decodes the wire-format
// segment before calling Accept.
func (r *Reassembler) AcceptWire(buf []byte) ([]byte, bool, error) {
	seg, err := dnp3obj.DecodeSegment(buf)
	if err != nil {
		r.desynced = true
		return nil, false, err
	}
	return r.Accept(seg)
}
