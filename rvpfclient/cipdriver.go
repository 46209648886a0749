package rvpfclient

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rob-gra/rvpf-protocol-core/cip"
	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// CIPDriver adapts one cip.TagClient (one controller session) into a
// RemoteDriver. One CIPDriver handles every point whose Point.Origin names
// this session's controller.
type CIPDriver struct {
	tags *cip.TagClient
}

// NewCIPDriver builds a driver reading/writing tags through tagClient.
func NewCIPDriver(tagClient *cip.TagClient) *CIPDriver {
	return &CIPDriver{tags: tagClient}
}

// ReadPoints reads each point's tag individually through the controller
// session's MultipleService batching (cip.TagClient.ReadTags), then decodes
// each raw element according to the point's content type.
func (d *CIPDriver) ReadPoints(ctx context.Context, points []point.Point) ([]point.PointValue, error) {
	tagNames := make([]string, len(points))
	elementCounts := make([]uint16, len(points))
	for i, p := range points {
		if p.CIP == nil {
			return nil, protoerr.New(protoerr.BadValue, fmt.Sprintf("point %s has no CIP attributes", p.Name))
		}
		tagNames[i] = p.CIP.Tag
		elementCounts[i] = elementCount(p.CIP.Elements)
	}

	raws, err := d.tags.ReadTags(ctx, tagNames, elementCounts)
	if err != nil {
		return nil, err
	}
	if len(raws) != len(points) {
		return nil, protoerr.New(protoerr.BadValue, "controller returned a different number of tag values than requested")
	}

	values := make([]point.PointValue, len(points))
	for i, p := range points {
		v, err := decodeCIPValue(p.ContentType, raws[i])
		if err != nil {
			return nil, err
		}
		values[i] = point.PointValue{PointUUID: p.UUID, Value: v}
	}
	return values, nil
}

// WritePoints writes each value's tag individually; Logix controllers do
// not expose a multi-tag write service, so unlike ReadPoints this issues
// one WriteTag call per value.
func (d *CIPDriver) WritePoints(ctx context.Context, writes []PointWrite) error {
	for _, w := range writes {
		if w.Point.CIP == nil {
			return protoerr.New(protoerr.BadValue, fmt.Sprintf("point %s has no CIP attributes", w.Point.Name))
		}
		dataType, data, err := encodeCIPValue(w.Point.ContentType, w.Value.Value)
		if err != nil {
			return err
		}
		if err := d.tags.WriteTag(ctx, w.Point.CIP.Tag, dataType, elementCount(w.Point.CIP.Elements), data); err != nil {
			return err
		}
	}
	return nil
}

// elementCount defaults an unset CIPAttributes.Elements to 1 (spec.md
// §6 "CIP: ... ELEMENTS (default 1)").
func elementCount(n uint16) uint16 {
	if n == 0 {
		return 1
	}
	return n
}

func decodeCIPValue(ct point.ContentType, raw []byte) (point.Value, error) {
	switch ct {
	case point.ContentBoolean:
		if len(raw) < 1 {
			return point.Value{}, protoerr.New(protoerr.BadValue, "truncated BOOL tag value")
		}
		return point.BoolValue(raw[0] != 0), nil
	case point.ContentInteger:
		switch len(raw) {
		case 1:
			return point.IntValue(int64(int8(raw[0]))), nil
		case 2:
			return point.IntValue(int64(int16(binary.LittleEndian.Uint16(raw)))), nil
		case 4:
			return point.IntValue(int64(int32(binary.LittleEndian.Uint32(raw)))), nil
		case 8:
			return point.IntValue(int64(binary.LittleEndian.Uint64(raw))), nil
		default:
			return point.Value{}, protoerr.New(protoerr.BadValue, "unrecognized integer tag width")
		}
	case point.ContentFloat:
		switch len(raw) {
		case 4:
			return point.FloatValue(float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))), nil
		case 8:
			return point.FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(raw))), nil
		default:
			return point.Value{}, protoerr.New(protoerr.BadValue, "unrecognized float tag width")
		}
	default:
		return point.Value{}, protoerr.New(protoerr.UnsupportedObject, "content type has no CIP tag encoding")
	}
}

func encodeCIPValue(ct point.ContentType, v point.Value) (cip.CIPDataType, []byte, error) {
	switch ct {
	case point.ContentBoolean:
		b := byte(0)
		if v.Bool {
			b = 0xFF
		}
		return cip.TypeBOOL, []byte{b}, nil
	case point.ContentInteger:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(v.Int)))
		return cip.TypeDINT, buf, nil
	case point.ContentFloat:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.Float)))
		return cip.TypeREAL, buf, nil
	default:
		return 0, nil, protoerr.New(protoerr.UnsupportedObject, "content type has no CIP tag encoding")
	}
}
