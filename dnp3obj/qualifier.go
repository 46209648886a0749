package dnp3obj

import (
	"encoding/binary"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// PrefixCode selects the per-item index/size prefix an object header's
// qualifier carries (spec.md §4.1).
type PrefixCode byte

const (
	PrefixNone       PrefixCode = 0
	PrefixIndex1     PrefixCode = 1
	PrefixIndex2     PrefixCode = 2
	PrefixIndex4     PrefixCode = 3
	PrefixObjectSize PrefixCode = 4
)

// RangeCode selects how the range field of a qualifier is interpreted.
type RangeCode byte

const (
	RangeStartStop1 RangeCode = 0
	RangeStartStop2 RangeCode = 1
	RangeStartStop4 RangeCode = 2
	RangeCount1     RangeCode = 3
	RangeCount2     RangeCode = 4
	RangeCount4     RangeCode = 5
	RangeFreeFormat RangeCode = 6
	RangeAll        RangeCode = 7
)

// Qualifier is the prefix/range selector byte of an object header.
type Qualifier struct {
	Prefix PrefixCode
	Range  RangeCode
}

func (q Qualifier) Byte() byte {
	return byte(q.Prefix)<<4 | byte(q.Range)
}

func DecodeQualifier(b byte) Qualifier {
	return Qualifier{Prefix: PrefixCode(b >> 4 & 0x0F), Range: RangeCode(b & 0x0F)}
}

// ObjectHeader is the 4-byte {group, variation, qualifier} triple plus the
// range descriptor that precedes each item's instance payload.
type ObjectHeader struct {
	Group     Group
	Variation Variation
	Qualifier Qualifier
	Start     uint32
	Stop      uint32
	Count     uint32
}

// Encode serializes the header (group, variation, qualifier byte) plus its
// range descriptor, whose width depends on the qualifier's RangeCode.
func (h ObjectHeader) Encode() ([]byte, error) {
	out := []byte{byte(h.Group), byte(h.Variation), h.Qualifier.Byte()}
	switch h.Qualifier.Range {
	case RangeStartStop1:
		out = append(out, byte(h.Start), byte(h.Stop))
	case RangeStartStop2:
		out = binary.LittleEndian.AppendUint16(out, uint16(h.Start))
		out = binary.LittleEndian.AppendUint16(out, uint16(h.Stop))
	case RangeStartStop4:
		out = binary.LittleEndian.AppendUint32(out, h.Start)
		out = binary.LittleEndian.AppendUint32(out, h.Stop)
	case RangeCount1:
		out = append(out, byte(h.Count))
	case RangeCount2:
		out = binary.LittleEndian.AppendUint16(out, uint16(h.Count))
	case RangeCount4:
		out = binary.LittleEndian.AppendUint32(out, h.Count)
	case RangeFreeFormat, RangeAll:
		// no range bytes
	default:
		return nil, protoerr.New(protoerr.BadValue, "unknown range code")
	}
	return out, nil
}

// DecodeObjectHeader parses an ObjectHeader from buf, returning the header
// and the number of bytes consumed.
func DecodeObjectHeader(buf []byte) (ObjectHeader, int, error) {
	if len(buf) < 3 {
		return ObjectHeader{}, 0, protoerr.New(protoerr.TransportDesync, "truncated object header")
	}
	h := ObjectHeader{
		Group:     Group(buf[0]),
		Variation: Variation(buf[1]),
		Qualifier: DecodeQualifier(buf[2]),
	}
	off := 3
	switch h.Qualifier.Range {
	case RangeStartStop1:
		if len(buf) < off+2 {
			return h, 0, protoerr.New(protoerr.TransportDesync, "truncated range")
		}
		h.Start = uint32(buf[off])
		h.Stop = uint32(buf[off+1])
		off += 2
	case RangeStartStop2:
		if len(buf) < off+4 {
			return h, 0, protoerr.New(protoerr.TransportDesync, "truncated range")
		}
		h.Start = uint32(binary.LittleEndian.Uint16(buf[off:]))
		h.Stop = uint32(binary.LittleEndian.Uint16(buf[off+2:]))
		off += 4
	case RangeStartStop4:
		if len(buf) < off+8 {
			return h, 0, protoerr.New(protoerr.TransportDesync, "truncated range")
		}
		h.Start = binary.LittleEndian.Uint32(buf[off:])
		h.Stop = binary.LittleEndian.Uint32(buf[off+4:])
		off += 8
	case RangeCount1:
		if len(buf) < off+1 {
			return h, 0, protoerr.New(protoerr.TransportDesync, "truncated range")
		}
		h.Count = uint32(buf[off])
		off++
	case RangeCount2:
		if len(buf) < off+2 {
			return h, 0, protoerr.New(protoerr.TransportDesync, "truncated range")
		}
		h.Count = uint32(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
	case RangeCount4:
		if len(buf) < off+4 {
			return h, 0, protoerr.New(protoerr.TransportDesync, "truncated range")
		}
		h.Count = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	case RangeFreeFormat, RangeAll:
		// no range bytes
	default:
		return h, 0, protoerr.New(protoerr.BadValue, "unknown range code")
	}
	return h, off, nil
}

// SplitRange returns a copy of h narrowed to the sub-range covering
// positions [offset, offset+n) of h's original range. Used when an
// oversized response item must be split across multiple application
// fragments (spec.md §4.3, §8 scenario 3): each fragment's item keeps the
// same group/variation/qualifier but addresses only the slice of
// instances it actually carries.
func (h ObjectHeader) SplitRange(offset, n int) ObjectHeader {
	out := h
	switch h.Qualifier.Range {
	case RangeStartStop1, RangeStartStop2, RangeStartStop4:
		out.Start = h.Start + uint32(offset)
		out.Stop = out.Start + uint32(n) - 1
	case RangeCount1, RangeCount2, RangeCount4:
		out.Count = uint32(n)
	}
	return out
}

// Indices returns the instance count and a function mapping the i-th
// instance to its object index, covering both start-stop and count-style
// ranges.
func (h ObjectHeader) Indices() (n int, indexAt func(i int) uint32) {
	switch h.Qualifier.Range {
	case RangeStartStop1, RangeStartStop2, RangeStartStop4:
		n = int(h.Stop) - int(h.Start) + 1
		return n, func(i int) uint32 { return h.Start + uint32(i) }
	case RangeCount1, RangeCount2, RangeCount4:
		n = int(h.Count)
		return n, func(i int) uint32 { return uint32(i) }
	default:
		return 0, func(i int) uint32 { return 0 }
	}
}
