package dnp3transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

func TestFragmentReassembleRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 600) // spans 3 segments at 249 bytes each
	var seq uint8
	segments, err := Fragment(payload, &seq)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	require.True(t, segments[0].Fir)
	require.False(t, segments[0].Fin)
	require.True(t, segments[2].Fin)

	r := NewReassembler()
	var out []byte
	var done bool
	for _, seg := range segments {
		out, done, err = r.Accept(seg)
		require.NoError(t, err)
	}
	require.True(t, done)
	require.Equal(t, payload, out)
}

func TestReassemblerSequenceGapIsFatalToFragment(t *testing.T) {
	r := NewReassembler()
	_, done, err := r.Accept(dnp3obj.Segment{Fir: true, Seq: 0, Payload: []byte{1}})
	require.NoError(t, err)
	require.False(t, done)

	_, _, err = r.Accept(dnp3obj.Segment{Fir: false, Seq: 2, Payload: []byte{2}})
	require.Error(t, err)
	require.True(t, protoerr.Is(err, protoerr.TransportDesync))

	_, _, err = r.Accept(dnp3obj.Segment{Fir: false, Fin: true, Seq: 1, Payload: []byte{3}})
	require.Error(t, err)
	require.True(t, protoerr.Is(err, protoerr.TransportDesync))

	r.Reset()
	_, done, err = r.Accept(dnp3obj.Segment{Fir: true, Fin: true, Seq: 5, Payload: []byte{9}})
	require.NoError(t, err)
	require.True(t, done)
}

func TestReassemblerRejectsOversizeFragment(t *testing.T) {
	r := NewReassembler()
	_, done, err := r.Accept(dnp3obj.Segment{
		Fir:     true,
		Seq:     0,
		Payload: bytes.Repeat([]byte{0x01}, dnp3obj.MaxSegmentPayload),
	})
	require.NoError(t, err)
	require.False(t, done)

	seq := uint8(1)
	remaining := dnp3obj.MaxAssembledFragment - dnp3obj.MaxSegmentPayload
	for remaining > dnp3obj.MaxSegmentPayload {
		_, done, err = r.Accept(dnp3obj.Segment{
			Seq:     seq,
			Payload: bytes.Repeat([]byte{0x01}, dnp3obj.MaxSegmentPayload),
		})
		require.NoError(t, err)
		require.False(t, done)
		remaining -= dnp3obj.MaxSegmentPayload
		seq = (seq + 1) & 0x3F
	}

	_, _, err = r.Accept(dnp3obj.Segment{
		Fin:     true,
		Seq:     seq,
		Payload: bytes.Repeat([]byte{0x02}, remaining+1),
	})
	require.Error(t, err)
	require.True(t, protoerr.Is(err, protoerr.TransportDesync))
}
