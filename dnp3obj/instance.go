package dnp3obj

import (
	"encoding/binary"
	"math"

	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Instance is one decoded object value at a given index, with an optional
// CP56Time2a timestamp and flags byte when the Layout carries them.
type Instance struct {
	Index uint32
	Flags byte
	Value point.Value
	Time  point.DateTime
	// Raw holds the undecoded bytes for a (group, variation) the catalog
	// doesn't recognize, and Unsupported is set on such an instance. Its
	// Value is left unset; reading it returns no UNSUPPORTED_OBJECT error.
	Raw        []byte
	Unsupported bool
}

// EncodeInstance serializes one Instance according to layout, returning
// the bytes (flags + value + optional time), not including the index
// (index is carried implicitly by range or explicitly by prefix, handled
// by the caller assembling the item).
func EncodeInstance(layout Layout, inst Instance) ([]byte, error) {
	out := make([]byte, 0, 1+layout.ValueBytes+7)
	if layout.HasFlags {
		out = append(out, inst.Flags)
	}
	switch layout.ValueBytes {
	case 0:
		// bit-packed groups (binary I/O, class polls) carry no per-item
		// value bytes at this layer; caller packs bits separately.
	case 1:
		out = append(out, byte(inst.Value.Int))
	case 2:
		out = binary.LittleEndian.AppendUint16(out, uint16(inst.Value.Int))
	case 4:
		if layout.Group == GroupAnalogInput && layout.Variation == 5 {
			bits := math.Float32bits(float32(inst.Value.Float))
			out = binary.LittleEndian.AppendUint32(out, bits)
		} else {
			out = binary.LittleEndian.AppendUint32(out, uint32(inst.Value.Int))
		}
	default:
		return nil, protoerr.New(protoerr.BadValue, "unsupported value width")
	}
	if layout.HasTime {
		out = append(out, CP56Time2a(inst.Time.Time(), nil)...)
	}
	return out, nil
}

// DecodeInstance parses one Instance's flags+value(+time) from buf,
// returning the number of bytes consumed.
func DecodeInstance(layout Layout, index uint32, buf []byte) (Instance, int, error) {
	inst := Instance{Index: index}
	off := 0
	if layout.HasFlags {
		if len(buf) < 1 {
			return inst, 0, protoerr.New(protoerr.TransportDesync, "truncated flags")
		}
		inst.Flags = buf[0]
		off = 1
	}
	switch layout.ValueBytes {
	case 0:
	case 1:
		if len(buf) < off+1 {
			return inst, 0, protoerr.New(protoerr.TransportDesync, "truncated value")
		}
		inst.Value = point.IntValue(int64(buf[off]))
		off++
	case 2:
		if len(buf) < off+2 {
			return inst, 0, protoerr.New(protoerr.TransportDesync, "truncated value")
		}
		inst.Value = point.IntValue(int64(int16(binary.LittleEndian.Uint16(buf[off:]))))
		off += 2
	case 4:
		if len(buf) < off+4 {
			return inst, 0, protoerr.New(protoerr.TransportDesync, "truncated value")
		}
		raw := binary.LittleEndian.Uint32(buf[off:])
		if layout.Group == GroupAnalogInput && layout.Variation == 5 {
			inst.Value = point.FloatValue(float64(math.Float32frombits(raw)))
		} else {
			inst.Value = point.IntValue(int64(int32(raw)))
		}
		off += 4
	default:
		return inst, 0, protoerr.New(protoerr.UnsupportedObject, "unsupported value width")
	}
	if layout.HasTime {
		if len(buf) < off+7 {
			return inst, 0, protoerr.New(protoerr.TransportDesync, "truncated time")
		}
		inst.Time = point.FromTime(ParseCP56Time2a(buf[off:off+7], nil))
		off += 7
	}
	return inst, off, nil
}
