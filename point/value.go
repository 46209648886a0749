package point

import (
	"fmt"

	"github.com/google/uuid"
)

// State is an opaque quality descriptor attached to a PointValue (e.g. a
// DNP3 flags byte, or a CIP status code). It is not interpreted by the
// protocol core beyond pass-through.
type State uint32

const (
	StateNormal    State = 0
	StateStale     State = 1 << 0
	StateRestart   State = 1 << 1
	StateComm      State = 1 << 2
	StateOverRange State = 1 << 3
)

// Value is the tagged-variant payload carried by a PointValue. Exactly one
// of the fields is meaningful, selected by Kind.
type Value struct {
	Kind    ContentType
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Tuple   []Value
	Dict    map[string]Value
}

func BoolValue(b bool) Value    { return Value{Kind: ContentBoolean, Bool: b} }
func IntValue(i int64) Value    { return Value{Kind: ContentInteger, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: ContentFloat, Float: f} }
func StringValue(s string) Value { return Value{Kind: ContentString, Str: s} }

func (v Value) String() string {
	switch v.Kind {
	case ContentBoolean:
		return fmt.Sprintf("%v", v.Bool)
	case ContentInteger:
		return fmt.Sprintf("%d", v.Int)
	case ContentFloat:
		return fmt.Sprintf("%g", v.Float)
	case ContentString:
		return v.Str
	case ContentTuple:
		return fmt.Sprintf("%v", v.Tuple)
	case ContentDict:
		return fmt.Sprintf("%v", v.Dict)
	default:
		return "<unknown>"
	}
}

// PointValue is a timestamped measurement: the point it belongs to, its
// raw timestamp, an opaque quality state, the value itself, and a deleted
// marker (a tombstone used by the store, pass-through here).
type PointValue struct {
	PointUUID uuid.UUID
	Timestamp DateTime
	State     State
	Value     Value
	Deleted   bool
}

// NewPointValue builds a PointValue stamped at the given DateTime.
func NewPointValue(pointUUID uuid.UUID, ts DateTime, value Value) PointValue {
	return PointValue{PointUUID: pointUUID, Timestamp: ts, Value: value}
}

func (pv PointValue) String() string {
	return fmt.Sprintf("%s@%s=%s", pv.PointUUID, pv.Timestamp, pv.Value)
}
