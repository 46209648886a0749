package point

import "github.com/google/uuid"

// Direction distinguishes points that accept writes from the master/client
// side (outputs/commands) from points that are only ever read (inputs).
type Direction uint8

const (
	// DirectionInput marks a point that only ever flows device -> client.
	DirectionInput Direction = iota
	// DirectionOutput marks a point that accepts client -> device writes.
	DirectionOutput
)

// ContentType names the scalar/structured type a PointValue.Value holds.
// It plays the role the teacher's reflection-driven type converters play
// in the original system, collapsed to a closed tag set per design note
// 9.1 (deep inheritance -> tagged variant).
type ContentType uint8

const (
	ContentUnknown ContentType = iota
	ContentBoolean
	ContentInteger
	ContentFloat
	ContentString
	ContentTuple
	ContentDict
)

// DNP3Attributes holds the protocol-specific addressing attributes the
// metadata collaborator supplies for a DNP3 point (spec.md §6).
type DNP3Attributes struct {
	Group     byte
	Variation byte
	Index     uint32
	Direction Direction
}

// CIPAttributes holds the protocol-specific addressing attributes the
// metadata collaborator supplies for a CIP tag (spec.md §6).
type CIPAttributes struct {
	Tag        string
	Elements   uint16
	TCPAddress string
	TCPPort    uint16
	Slot       byte
	TimeoutMs  uint32
}

// Point is a logical measurement: a UUID-identified, named, typed
// addressable quantity owned by an Origin (device).
type Point struct {
	UUID        uuid.UUID
	Name        string
	ContentType ContentType
	Origin      string

	DNP3 *DNP3Attributes
	CIP  *CIPAttributes
}

// NewPoint allocates a Point with a freshly generated UUID.
func NewPoint(name, origin string, contentType ContentType) Point {
	return Point{
		UUID:        uuid.New(),
		Name:        name,
		ContentType: contentType,
		Origin:      origin,
	}
}

func (p Point) String() string {
	return p.Name + "(" + p.UUID.String() + ")"
}
