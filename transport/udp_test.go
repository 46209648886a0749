package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUDPChannelSendReceiveRoundTrip(t *testing.T) {
	a, err := DialUDP(context.Background(), "127.0.0.1:0", "127.0.0.1:0", 0)
	require.NoError(t, err)
	defer a.Close()

	b, err := DialUDP(context.Background(), "127.0.0.1:0", a.conn.LocalAddr().String(), 0)
	require.NoError(t, err)
	defer b.Close()

	// a's peer was unknown at dial time, so point it back at b now that
	// b's ephemeral port is known.
	a.peer = b.conn.LocalAddr().(*net.UDPAddr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Send(ctx, []byte("hello")))

	got, err := b.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestUDPChannelDropsDatagramsFromUnexpectedSource(t *testing.T) {
	b, err := DialUDP(context.Background(), "127.0.0.1:0", "127.0.0.1:1", 0)
	require.NoError(t, err)
	defer b.Close()

	stranger, err := net.ListenUDP("udp", nil)
	require.NoError(t, err)
	defer stranger.Close()

	_, err = stranger.WriteToUDP([]byte("unwanted"), b.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = b.Receive(ctx)
	require.Error(t, err)
}

func TestUDPChannelSendRejectsOversizedDatagram(t *testing.T) {
	c, err := DialUDP(context.Background(), "127.0.0.1:0", "127.0.0.1:1", 4)
	require.NoError(t, err)
	defer c.Close()

	err = c.Send(context.Background(), []byte("too long"))
	require.Error(t, err)
}

func TestUDPChannelSendAfterCloseReturnsLinkDown(t *testing.T) {
	c, err := DialUDP(context.Background(), "127.0.0.1:0", "127.0.0.1:1", 0)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	err = c.Send(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrLinkDown)
}
