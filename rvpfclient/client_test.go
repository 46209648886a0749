package rvpfclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

type fakeDriver struct {
	readErr  error
	writeErr error
	reads    [][]point.Point
	writes   [][]PointWrite
}

func (f *fakeDriver) ReadPoints(ctx context.Context, points []point.Point) ([]point.PointValue, error) {
	f.reads = append(f.reads, points)
	if f.readErr != nil {
		return nil, f.readErr
	}
	values := make([]point.PointValue, len(points))
	for i, p := range points {
		values[i] = point.PointValue{PointUUID: p.UUID, Value: point.IntValue(int64(i))}
	}
	return values, nil
}

func (f *fakeDriver) WritePoints(ctx context.Context, writes []PointWrite) error {
	f.writes = append(f.writes, writes)
	return f.writeErr
}

func newTestPoint(name, origin string) point.Point {
	return point.NewPoint(name, origin, point.ContentInteger)
}

func TestCommitReadsGroupsByOrigin(t *testing.T) {
	c := NewClient()
	devA := &fakeDriver{}
	devB := &fakeDriver{}
	c.Connect("deviceA", devA)
	c.Connect("deviceB", devB)

	p1 := newTestPoint("p1", "deviceA")
	p2 := newTestPoint("p2", "deviceB")
	p3 := newTestPoint("p3", "deviceA")

	c.RequestRead(p1)
	c.RequestRead(p2)
	c.RequestRead(p3)

	responses := c.CommitReads(context.Background())
	require.Len(t, responses, 3)
	require.Len(t, devA.reads, 1)
	require.Len(t, devA.reads[0], 2)
	require.Len(t, devB.reads, 1)
	require.Len(t, devB.reads[0], 1)

	for _, r := range responses {
		require.NoError(t, r.Err)
	}
}

func TestCommitReadsFailsFastPerRemoteOnly(t *testing.T) {
	c := NewClient()
	broken := &fakeDriver{readErr: protoerr.New(protoerr.ServiceUnavailable, "link down")}
	healthy := &fakeDriver{}
	c.Connect("broken", broken)
	c.Connect("healthy", healthy)

	c.RequestRead(newTestPoint("bad", "broken"))
	c.RequestRead(newTestPoint("good", "healthy"))

	responses := c.CommitReads(context.Background())
	require.Len(t, responses, 2)

	var sawErr, sawOK bool
	for _, r := range responses {
		if r.Point.Origin == "broken" {
			require.Error(t, r.Err)
			sawErr = true
		} else {
			require.NoError(t, r.Err)
			sawOK = true
		}
	}
	require.True(t, sawErr)
	require.True(t, sawOK)
}

func TestCommitReadsWithoutRegisteredDriverIsServiceUnavailable(t *testing.T) {
	c := NewClient()
	c.RequestRead(newTestPoint("orphan", "nowhere"))

	responses := c.CommitReads(context.Background())
	require.Len(t, responses, 1)
	require.Error(t, responses[0].Err)
	require.True(t, protoerr.Is(responses[0].Err, protoerr.ServiceUnavailable))
}

func TestRollbackReadsDiscardsQueue(t *testing.T) {
	c := NewClient()
	driver := &fakeDriver{}
	c.Connect("device", driver)
	c.RequestRead(newTestPoint("p1", "device"))
	c.RollbackReads()

	responses := c.CommitReads(context.Background())
	require.Empty(t, responses)
	require.Empty(t, driver.reads)
}

func TestCommitWritesGroupsByOrigin(t *testing.T) {
	c := NewClient()
	driver := &fakeDriver{}
	c.Connect("device", driver)

	p1 := newTestPoint("p1", "device")
	p2 := newTestPoint("p2", "device")
	c.RequestWrite(p1, point.NewPointValue(p1.UUID, point.UnixEpoch(), point.IntValue(1)))
	c.RequestWrite(p2, point.NewPointValue(p2.UUID, point.UnixEpoch(), point.IntValue(2)))

	responses := c.CommitWrites(context.Background())
	require.Len(t, responses, 2)
	require.Len(t, driver.writes, 1)
	require.Len(t, driver.writes[0], 2)
	for _, r := range responses {
		require.NoError(t, r.Err)
	}
}

func TestRollbackWritesDiscardsQueue(t *testing.T) {
	c := NewClient()
	driver := &fakeDriver{}
	c.Connect("device", driver)
	p1 := newTestPoint("p1", "device")
	c.RequestWrite(p1, point.NewPointValue(p1.UUID, point.UnixEpoch(), point.IntValue(1)))
	c.RollbackWrites()

	responses := c.CommitWrites(context.Background())
	require.Empty(t, responses)
	require.Empty(t, driver.writes)
}

func TestFetchPointValuesReportsExceptionsAlongsideValues(t *testing.T) {
	c := NewClient()
	good := &fakeDriver{}
	bad := &fakeDriver{readErr: protoerr.New(protoerr.BadValue, "no such tag")}
	c.Connect("good", good)
	c.Connect("bad", bad)

	points := []point.Point{
		newTestPoint("a", "good"),
		newTestPoint("b", "bad"),
	}
	values, exceptions := c.FetchPointValues(context.Background(), points)
	require.Len(t, values, 1)
	require.Len(t, exceptions, 1)
}

func TestUpdatePointValuesReportsExceptions(t *testing.T) {
	c := NewClient()
	bad := &fakeDriver{writeErr: protoerr.New(protoerr.BadValue, "write rejected")}
	c.Connect("bad", bad)

	p := newTestPoint("a", "bad")
	exceptions := c.UpdatePointValues(context.Background(), []PointWrite{
		{Point: p, Value: point.NewPointValue(p.UUID, point.UnixEpoch(), point.IntValue(5))},
	})
	require.Len(t, exceptions, 1)
}

func TestDisconnectRemovesDriverFromFutureCommits(t *testing.T) {
	c := NewClient()
	driver := &fakeDriver{}
	c.Connect("device", driver)
	c.Disconnect("device")

	c.RequestRead(newTestPoint("p1", "device"))
	responses := c.CommitReads(context.Background())
	require.Len(t, responses, 1)
	require.Error(t, responses[0].Err)
}
