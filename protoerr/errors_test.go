package protoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatsWithAndWithoutCause(t *testing.T) {
	plain := New(BadValue, "not a float")
	require.Equal(t, "BAD_VALUE: not a float", plain.Error())

	wrapped := Wrap(LinkDown, "keepalive failed", errors.New("i/o timeout"))
	require.Equal(t, "LINK_DOWN: keepalive failed: i/o timeout", wrapped.Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := Wrap(TransportDesync, "bad sequence", cause)
	require.Equal(t, cause, wrapped.Unwrap())
	require.Nil(t, New(FrameCorrupt, "bad crc").Unwrap())
}

func TestIsMatchesCodeThroughChainedCauses(t *testing.T) {
	inner := New(ApplicationTimeout, "no response")
	outer := Wrap(ServiceUnavailable, "transport open failed", inner)

	require.True(t, Is(outer, ServiceUnavailable))
	require.True(t, Is(outer, ApplicationTimeout))
	require.False(t, Is(outer, Cancelled))
}

func TestIsReturnsFalseForNonProtoerr(t *testing.T) {
	require.False(t, Is(errors.New("plain error"), Timeout))
	require.False(t, Is(nil, Timeout))
}
