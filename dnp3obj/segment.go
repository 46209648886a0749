package dnp3obj

import "github.com/rob-gra/rvpf-protocol-core/protoerr"

// MaxAssembledFragment is the largest application fragment the transport
// layer will reassemble before aborting with TRANSPORT_DESYNC (spec.md
// §4.1, §6).
const MaxAssembledFragment = 2048

// MaxSegmentPayload is the largest payload a single transport segment may
// carry (spec.md §3).
const MaxSegmentPayload = 249

// Segment is one transport-layer PDU: a one-byte header (FIN, FIR, 6-bit
// sequence) followed by up to 249 payload bytes.
type Segment struct {
	Fin, Fir bool
	Seq      uint8 // 6 bits
	Payload  []byte
}

// EncodeSegment serializes s as header-byte + payload.
func EncodeSegment(s Segment) ([]byte, error) {
	if len(s.Payload) > MaxSegmentPayload {
		return nil, protoerr.New(protoerr.BadValue, "segment payload too large")
	}
	if s.Seq > 0x3F {
		return nil, protoerr.New(protoerr.BadValue, "segment sequence out of range")
	}
	header := s.Seq & 0x3F
	if s.Fir {
		header |= 0x80
	}
	if s.Fin {
		header |= 0x40
	}
	out := make([]byte, 0, 1+len(s.Payload))
	out = append(out, header)
	out = append(out, s.Payload...)
	return out, nil
}

// DecodeSegment parses a Segment from a single transport-layer payload
// (i.e. the payload field already extracted from a data-link Frame).
func DecodeSegment(buf []byte) (Segment, error) {
	if len(buf) < 1 {
		return Segment{}, protoerr.New(protoerr.TransportDesync, "empty segment")
	}
	header := buf[0]
	return Segment{
		Fir:     header&0x80 != 0,
		Fin:     header&0x40 != 0,
		Seq:     header & 0x3F,
		Payload: buf[1:],
	}, nil
}
