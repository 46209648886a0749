package dnp3obj

import (
	"testing"

	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/stretchr/testify/require"
)

func TestAnalogInputReadRoundTrip(t *testing.T) {
	// spec.md §8 scenario 1: READ on group 30 variation 2 for index 3..3.
	req := Fragment{
		Control:  ApplicationControl{Fir: true, Fin: true, Seq: 1},
		Function: FuncRead,
		Items: []Item{{
			Header: ObjectHeader{
				Group: GroupAnalogInput, Variation: 2,
				Qualifier: Qualifier{Prefix: PrefixNone, Range: RangeStartStop1},
				Start:     3, Stop: 3,
			},
		}},
	}
	wire, err := EncodeFragment(req)
	require.NoError(t, err)

	decoded, err := DecodeFragment(wire, false)
	require.NoError(t, err)
	require.Equal(t, FuncRead, decoded.Function)
	require.Len(t, decoded.Items, 1)
	require.Equal(t, RangeStartStop1, decoded.Items[0].Header.Qualifier.Range)
	require.EqualValues(t, 3, decoded.Items[0].Header.Start)
	require.EqualValues(t, 3, decoded.Items[0].Header.Stop)

	resp := Fragment{
		Control:    ApplicationControl{Fir: true, Fin: true, Seq: 1},
		Function:   FuncResponse,
		IsResponse: true,
		Items: []Item{{
			Header: ObjectHeader{
				Group: GroupAnalogInput, Variation: 2,
				Qualifier: Qualifier{Prefix: PrefixNone, Range: RangeStartStop1},
				Start:     3, Stop: 3,
			},
			Instances: []Instance{{Index: 3, Value: point.IntValue(1234)}},
		}},
	}
	respWire, err := EncodeFragment(resp)
	require.NoError(t, err)
	decodedResp, err := DecodeFragment(respWire, true)
	require.NoError(t, err)
	require.Len(t, decodedResp.Items, 1)
	require.Len(t, decodedResp.Items[0].Instances, 1)
	require.EqualValues(t, 1234, decodedResp.Items[0].Instances[0].Value.Int)
}

func TestUnknownVariationSurfacesUnsupported(t *testing.T) {
	f := Fragment{
		Control:    ApplicationControl{Fir: true, Fin: true},
		Function:   FuncResponse,
		IsResponse: true,
		Items: []Item{{
			Header: ObjectHeader{
				Group: 250, Variation: 250,
				Qualifier: Qualifier{Prefix: PrefixNone, Range: RangeAll},
			},
			Instances: []Instance{{Raw: []byte{1, 2, 3}}},
		}},
	}
	wire, err := EncodeFragment(f)
	require.NoError(t, err)

	decoded, err := DecodeFragment(wire, true)
	require.NoError(t, err)
	require.Len(t, decoded.Items, 1)
	require.True(t, decoded.Items[0].Instances[0].Unsupported)
}

func TestClass0PollQualifier(t *testing.T) {
	// spec.md §8 scenario 3: READ class 0 (group 60 variation 1).
	f := Fragment{
		Control:  ApplicationControl{Fir: true, Fin: true},
		Function: FuncRead,
		Items: []Item{{
			Header: ObjectHeader{
				Group: GroupClassData, Variation: 1,
				Qualifier: Qualifier{Prefix: PrefixNone, Range: RangeAll},
			},
		}},
	}
	wire, err := EncodeFragment(f)
	require.NoError(t, err)
	decoded, err := DecodeFragment(wire, false)
	require.NoError(t, err)
	require.Equal(t, GroupClassData, decoded.Items[0].Header.Group)
}
