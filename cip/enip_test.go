package cip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncapRoundTrip(t *testing.T) {
	wire := BuildRegisterSession([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	packet, n, err := DecodeEncap(wire)
	require.NoError(t, err)
	require.NotNil(t, packet)
	require.Equal(t, len(wire), n)
	require.Equal(t, CmdRegisterSession, packet.Command)
	require.Equal(t, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, packet.SenderContext)
}

func TestDecodeEncapIncompleteBuffer(t *testing.T) {
	wire := BuildRegisterSession([8]byte{})
	packet, n, err := DecodeEncap(wire[:10])
	require.NoError(t, err)
	require.Nil(t, packet)
	require.Equal(t, 0, n)
}

func TestSendRRDataRoundTrip(t *testing.T) {
	req := EncodeRequest(Request{
		Service: ServiceReadTag,
		Path:    BuildSymbolicPath("MyTag"),
		Payload: BuildReadTagPayload(1),
	})
	wire := BuildSendRRData(0x1234, [8]byte{}, req)
	packet, _, err := DecodeEncap(wire)
	require.NoError(t, err)
	require.Equal(t, CmdSendRRData, packet.Command)

	cipData, err := ParseRRDataResponse(packet.Data)
	require.NoError(t, err)
	require.Equal(t, req, cipData)
}

func TestBuildSymbolicPathPadsOddLength(t *testing.T) {
	path := BuildSymbolicPath("Tag1") // even length, no pad
	require.Equal(t, []byte{0x91, 4, 'T', 'a', 'g', '1'}, path)

	path2 := BuildSymbolicPath("Tag12") // odd length, padded
	require.Equal(t, []byte{0x91, 5, 'T', 'a', 'g', '1', '2', 0x00}, path2)
}

func TestBuildClassInstancePathShortForm(t *testing.T) {
	path := BuildClassInstancePath(0x02, 0x01)
	require.Equal(t, []byte{0x20, 0x02, 0x24, 0x01}, path)
}

func TestMultiServiceRoundTrip(t *testing.T) {
	reqA := EncodeRequest(Request{Service: ServiceReadTag, Path: BuildSymbolicPath("A"), Payload: BuildReadTagPayload(1)})
	reqB := EncodeRequest(Request{Service: ServiceReadTag, Path: BuildSymbolicPath("B"), Payload: BuildReadTagPayload(1)})

	multiReq, err := EncodeMultiServiceRequest([][]byte{reqA, reqB})
	require.NoError(t, err)
	require.Equal(t, ServiceMultipleService, multiReq.Service)

	// Simulate a device reply: two embedded Read Tag responses.
	replyA := []byte{byte(ServiceReadTag) | responseServiceBit, 0, byte(GeneralStatusSuccess), 0, 0xC4, 0x00, 1, 0, 0, 0}
	replyB := []byte{byte(ServiceReadTag) | responseServiceBit, 0, byte(GeneralStatusSuccess), 0, 0xC4, 0x00, 2, 0, 0, 0}
	body := make([]byte, 0)
	offsets := []int{6, 6 + len(replyA)}
	countBytes := []byte{2, 0}
	body = append(body, countBytes...)
	for _, off := range offsets {
		body = append(body, byte(off), byte(off>>8))
	}
	body = append(body, replyA...)
	body = append(body, replyB...)

	replies, err := DecodeMultiServiceResponse(Response{Data: body})
	require.NoError(t, err)
	require.Len(t, replies, 2)
	_, dataA, err := ParseReadTagResponse(replies[0])
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 0, 0}, dataA)
}
