package cip

import "encoding/binary"

// EPATH segment type bytes (CIP spec volume 1, appendix C).
const (
	segmentClass8    byte = 0x20
	segmentInstance8 byte = 0x24
	segmentClass16   byte = 0x21
	segmentInstance16 byte = 0x25
	segmentANSIExtSymbol byte = 0x91
)

// BuildClassInstancePath builds a logical EPATH addressing (class,
// instance), choosing the 8-bit or 16-bit segment form per CIP's
// encoding rule (values above 0xFF need the 16-bit form, which always
// carries a padding byte after the segment type).
func BuildClassInstancePath(class, instance uint16) []byte {
	var out []byte
	out = appendLogicalSegment(out, segmentClass8, segmentClass16, class)
	out = appendLogicalSegment(out, segmentInstance8, segmentInstance16, instance)
	return out
}

func appendLogicalSegment(out []byte, short, long byte, value uint16) []byte {
	if value <= 0xFF {
		return append(out, short, byte(value))
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return append(out, long, 0x00, buf[0], buf[1])
}

// BuildSymbolicPath builds an ANSI extended-symbol EPATH segment for a
// Logix tag name (spec.md §4.3 "EPATH symbolic tag addressing"),
// grounded on tonylturner-cipdip's BuildSymbolicEPATH (0x91 segment,
// length-prefixed ASCII, padded to an even length).
func BuildSymbolicPath(tagName string) []byte {
	name := []byte(tagName)
	out := make([]byte, 0, 2+len(name)+1)
	out = append(out, segmentANSIExtSymbol, byte(len(name)))
	out = append(out, name...)
	if len(name)%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}

// BuildArrayElementPath appends an 8-/16-/32-bit member/element logical
// segment to a base path, e.g. for tag[index] addressing.
func BuildArrayElementPath(base []byte, index uint32) []byte {
	const segmentMember8 = 0x28
	const segmentMember16 = 0x29
	const segmentMember32 = 0x2A

	if index <= 0xFF {
		return append(base, segmentMember8, byte(index))
	}
	if index <= 0xFFFF {
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(index))
		return append(base, segmentMember16, 0x00, buf[0], buf[1])
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, index)
	return append(base, segmentMember32, 0x00, buf[0], buf[1], buf[2], buf[3])
}
