package cip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadTagsRejectsMismatchedElementCounts(t *testing.T) {
	client := NewTagClient(nil)
	_, err := client.ReadTags(context.Background(), []string{"a", "b"}, []uint16{1})
	require.Error(t, err)
}

func TestBuildReadTagPayloadCarriesRequestedElementCount(t *testing.T) {
	payload := BuildReadTagPayload(10)
	require.Len(t, payload, 2)
	require.Equal(t, byte(10), payload[0])
	require.Equal(t, byte(0), payload[1])
}
