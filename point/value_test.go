package point

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValueConstructorsSetKind(t *testing.T) {
	require.Equal(t, ContentBoolean, BoolValue(true).Kind)
	require.Equal(t, ContentInteger, IntValue(7).Kind)
	require.Equal(t, ContentFloat, FloatValue(1.5).Kind)
	require.Equal(t, ContentString, StringValue("hi").Kind)
}

func TestValueStringRendersByKind(t *testing.T) {
	require.Equal(t, "true", BoolValue(true).String())
	require.Equal(t, "42", IntValue(42).String())
	require.Equal(t, "3.25", FloatValue(3.25).String())
	require.Equal(t, "hi", StringValue("hi").String())
	require.Equal(t, "<unknown>", Value{}.String())
}

func TestNewPointValueStampsTimestamp(t *testing.T) {
	id := uuid.New()
	ts := UnixEpoch()
	pv := NewPointValue(id, ts, IntValue(9))

	require.Equal(t, id, pv.PointUUID)
	require.Equal(t, ts, pv.Timestamp)
	require.Equal(t, IntValue(9), pv.Value)
	require.False(t, pv.Deleted)
}

func TestPointValueString(t *testing.T) {
	p := NewPoint("analog-1", "plc-1", ContentInteger)
	pv := NewPointValue(p.UUID, UnixEpoch(), IntValue(5))
	require.Contains(t, pv.String(), p.UUID.String())
	require.Contains(t, pv.String(), "=5")
}
