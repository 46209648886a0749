package point

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromTimeRoundTripsThroughTime(t *testing.T) {
	in := time.Date(2024, 3, 15, 12, 30, 45, 123000, time.UTC)
	dt := FromTime(in)
	require.True(t, dt.Time().Equal(in), "got %s, want %s", dt.Time(), in)
}

func TestUnixEpochIsUnixZero(t *testing.T) {
	require.True(t, UnixEpoch().Time().Equal(time.Unix(0, 0).UTC()))
}

func TestBeforeAfterAreInverse(t *testing.T) {
	dt := FromTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, dt, dt.After(5*ElapsedMicro).Before(5*ElapsedMicro))
}

func TestEndOfTimeSentinel(t *testing.T) {
	require.True(t, EndOfTime().IsEndOfTime())
	require.False(t, BeginningOfTime().IsEndOfTime())
	require.False(t, UnixEpoch().IsEndOfTime())
}

func TestStringFormatsMinutePrecisionWhenNoSubMinuteComponent(t *testing.T) {
	dt := FromTime(time.Date(2024, 6, 1, 14, 5, 0, 0, time.UTC))
	require.Equal(t, "2024-06-01T14:05Z", dt.String())
}

func TestStringFormatsFullPrecisionWithSeconds(t *testing.T) {
	dt := FromTime(time.Date(2024, 6, 1, 14, 5, 30, 0, time.UTC))
	require.Equal(t, "2024-06-01T14:05:30Z", dt.String())
}

func TestRawRoundTrip(t *testing.T) {
	dt := FromRaw(123456789)
	require.Equal(t, int64(123456789), dt.Raw())
}
