package cip

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/transport"
)

// fakeDevice answers RegisterSession and echoes back the sender context
// of whatever SendRRData request it receives, standing in for a real CIP
// device across a net.Pipe.
func fakeDevice(t *testing.T, conn net.Conn, respond func(EncapPacket) []byte) {
	t.Helper()
	ch := transport.NewTCPChannel(conn)
	var buf []byte
	for {
		chunk, err := ch.Receive(context.Background())
		if err != nil {
			return
		}
		buf = append(buf, chunk...)
		for {
			packet, n, err := DecodeEncap(buf)
			if err != nil || packet == nil {
				break
			}
			buf = buf[n:]
			reply := respond(*packet)
			if reply != nil {
				_ = ch.Send(context.Background(), reply)
			}
		}
	}
}

func TestSessionOpenAndInvoke(t *testing.T) {
	clientConn, deviceConn := net.Pipe()
	go fakeDevice(t, deviceConn, func(p EncapPacket) []byte {
		switch p.Command {
		case CmdRegisterSession:
			return EncodeEncap(EncapHeader{Command: CmdRegisterSession, SessionHandle: 0xAABBCCDD, SenderContext: p.SenderContext}, p.Data)
		case CmdSendRRData:
			cipReq, err := ParseRRDataResponse(p.Data)
			require.NoError(t, err)
			cipResp := append([]byte{cipReq[0] | responseServiceBit, 0, byte(GeneralStatusSuccess), 0}, 0xC4, 0x00, 7, 0, 0, 0)
			respBody := buildRRDataBody(cipResp)
			return EncodeEncap(EncapHeader{Command: CmdSendRRData, SessionHandle: p.SessionHandle, Status: EncapStatusSuccess, SenderContext: p.SenderContext}, respBody)
		default:
			return nil
		}
	})

	cfg := DefaultConfig()
	cfg.Timeout = 500 * time.Millisecond
	session := NewSession(transport.NewTCPChannel(clientConn), cfg, clog.NewLogger("cip"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, session.Open(ctx))
	require.Equal(t, SessionOpen, session.State())

	tagClient := NewTagClient(session)
	dt, data, err := tagClient.ReadTag(ctx, "MyTag", 1)
	require.NoError(t, err)
	require.Equal(t, TypeDINT, dt)
	require.Equal(t, []byte{7, 0, 0, 0}, data)
}
