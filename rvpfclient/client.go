// Package rvpfclient implements the transaction API client layer
// (spec.md §4.5): request/commit/rollback batching of point reads and
// writes, grouped per remote device so one device's failure never blocks
// another's (spec.md §4.5 "fail-fast per-remote semantics"). Grounded on
// the teacher's `Identifier`-keyed addressing idiom, generalized here to
// group by `point.Point.Origin`; request IDs use `github.com/rs/xid`
// the same way the `go-tcpinfo` pack example uses it for connection-
// scoped identifiers.
package rvpfclient

import (
	"context"
	"sync"

	"github.com/rs/xid"

	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// RemoteDriver reads and writes a batch of points belonging to one
// remote device (one DNP3 outstation address or one CIP controller).
// Implementations live in dnp3driver.go and cipdriver.go.
type RemoteDriver interface {
	ReadPoints(ctx context.Context, points []point.Point) ([]point.PointValue, error)
	WritePoints(ctx context.Context, writes []PointWrite) error
}

// PointWrite pairs a value with the Point it targets, carrying enough
// addressing to build a DNP3 or CIP write without a side lookup.
type PointWrite struct {
	Point point.Point
	Value point.PointValue
}

// ReadRequest is a queued read, not yet committed.
type ReadRequest struct {
	ID    xid.ID
	Point point.Point
}

// ReadResponse is the outcome of one queued read after CommitReads.
type ReadResponse struct {
	ID    xid.ID
	Point point.Point
	Value point.PointValue
	Err   error
}

// WriteRequest is a queued write, not yet committed. It carries the
// originating Point alongside the value so the remote driver can resolve
// wire addressing (DNP3 group/variation/index, or CIP tag name) without a
// side lookup.
type WriteRequest struct {
	ID         xid.ID
	Point      point.Point
	PointValue point.PointValue
}

// WriteResponse is the outcome of one queued write after CommitWrites.
type WriteResponse struct {
	ID        xid.ID
	PointUUID string
	Err       error
}

// Exception reports a single point's failure inside an otherwise
// successful batch operation (FetchPointValues/UpdatePointValues).
type Exception struct {
	PointUUID string
	Err       error
}

// Client batches reads and writes across the remote devices it has
// drivers registered for. It is safe for concurrent use; the pending
// read/write queues are guarded by a mutex, but each queued item belongs
// to whichever goroutine enqueued it until Commit/Rollback drains the
// whole queue (matching the teacher's association-scoped, not
// connection-scoped, batching granularity -- see DESIGN.md open
// question notes).
type Client struct {
	mu      sync.Mutex
	drivers map[string]RemoteDriver

	pendingReads  []ReadRequest
	pendingWrites []WriteRequest
}

// NewClient builds an empty Client; remotes are attached via Connect.
func NewClient() *Client {
	return &Client{drivers: make(map[string]RemoteDriver)}
}

// Connect registers driver as the remote responsible for every Point
// whose Origin equals remote.
func (c *Client) Connect(remote string, driver RemoteDriver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drivers[remote] = driver
}

// Disconnect removes a previously registered remote. Any points still
// queued against it will fail at commit time with ServiceUnavailable.
func (c *Client) Disconnect(remote string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drivers, remote)
}

// RequestRead enqueues a read of p, returning a handle the caller can
// match against CommitReads' response slice by ID.
func (c *Client) RequestRead(p point.Point) ReadRequest {
	req := ReadRequest{ID: xid.New(), Point: p}
	c.mu.Lock()
	c.pendingReads = append(c.pendingReads, req)
	c.mu.Unlock()
	return req
}

// RequestWrite enqueues a write of pv against p.
func (c *Client) RequestWrite(p point.Point, pv point.PointValue) WriteRequest {
	req := WriteRequest{ID: xid.New(), Point: p, PointValue: pv}
	c.mu.Lock()
	c.pendingWrites = append(c.pendingWrites, req)
	c.mu.Unlock()
	return req
}

// RollbackReads discards every queued read without contacting any
// remote.
func (c *Client) RollbackReads() {
	c.mu.Lock()
	c.pendingReads = nil
	c.mu.Unlock()
}

// RollbackWrites discards every queued write without contacting any
// remote.
func (c *Client) RollbackWrites() {
	c.mu.Lock()
	c.pendingWrites = nil
	c.mu.Unlock()
}

// CommitReads groups the queued reads by Point.Origin and dispatches one
// ReadPoints call per remote concurrently. A failure against one remote
// is reported only in that remote's responses; other remotes' reads
// still complete.
func (c *Client) CommitReads(ctx context.Context) []ReadResponse {
	c.mu.Lock()
	reqs := c.pendingReads
	c.pendingReads = nil
	drivers := make(map[string]RemoteDriver, len(c.drivers))
	for remote, d := range c.drivers {
		drivers[remote] = d
	}
	c.mu.Unlock()

	groups := make(map[string][]ReadRequest)
	for _, r := range reqs {
		groups[r.Point.Origin] = append(groups[r.Point.Origin], r)
	}

	responses := make([]ReadResponse, 0, len(reqs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for origin, group := range groups {
		origin, group := origin, group
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := c.readGroup(ctx, origin, group, drivers[origin])
			mu.Lock()
			responses = append(responses, out...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return responses
}

func (c *Client) readGroup(ctx context.Context, origin string, group []ReadRequest, driver RemoteDriver) []ReadResponse {
	out := make([]ReadResponse, len(group))
	if driver == nil {
		err := protoerr.New(protoerr.ServiceUnavailable, "no remote driver registered for origin "+origin)
		for i, r := range group {
			out[i] = ReadResponse{ID: r.ID, Point: r.Point, Err: err}
		}
		return out
	}

	points := make([]point.Point, len(group))
	for i, r := range group {
		points[i] = r.Point
	}
	values, err := driver.ReadPoints(ctx, points)
	if err != nil {
		for i, r := range group {
			out[i] = ReadResponse{ID: r.ID, Point: r.Point, Err: err}
		}
		return out
	}
	for i, r := range group {
		resp := ReadResponse{ID: r.ID, Point: r.Point}
		if i < len(values) {
			resp.Value = values[i]
		} else {
			resp.Err = protoerr.New(protoerr.BadValue, "remote driver returned fewer values than points requested")
		}
		out[i] = resp
	}
	return out
}

// CommitWrites groups the queued writes by Point.Origin and dispatches one
// WritePoints call per remote concurrently, the same fail-fast-per-remote
// semantics as CommitReads.
func (c *Client) CommitWrites(ctx context.Context) []WriteResponse {
	c.mu.Lock()
	reqs := c.pendingWrites
	c.pendingWrites = nil
	drivers := make(map[string]RemoteDriver, len(c.drivers))
	for remote, d := range c.drivers {
		drivers[remote] = d
	}
	c.mu.Unlock()

	groups := make(map[string][]WriteRequest)
	for _, w := range reqs {
		groups[w.Point.Origin] = append(groups[w.Point.Origin], w)
	}

	responses := make([]WriteResponse, 0, len(reqs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for origin, group := range groups {
		origin, group := origin, group
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := c.writeGroup(ctx, origin, group, drivers[origin])
			mu.Lock()
			responses = append(responses, out...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return responses
}

func (c *Client) writeGroup(ctx context.Context, origin string, group []WriteRequest, driver RemoteDriver) []WriteResponse {
	out := make([]WriteResponse, len(group))
	if driver == nil {
		err := protoerr.New(protoerr.ServiceUnavailable, "no remote driver registered for origin "+origin)
		for i, w := range group {
			out[i] = WriteResponse{ID: w.ID, PointUUID: w.PointValue.PointUUID.String(), Err: err}
		}
		return out
	}

	writes := make([]PointWrite, len(group))
	for i, w := range group {
		writes[i] = PointWrite{Point: w.Point, Value: w.PointValue}
	}
	err := driver.WritePoints(ctx, writes)
	for i, w := range group {
		out[i] = WriteResponse{ID: w.ID, PointUUID: w.PointValue.PointUUID.String(), Err: err}
	}
	return out
}

// FetchPointValues is a one-shot convenience: request and commit reads
// for points in a single call, returning values alongside per-point
// exceptions for whichever points failed.
func (c *Client) FetchPointValues(ctx context.Context, points []point.Point) ([]point.PointValue, []Exception) {
	for _, p := range points {
		c.RequestRead(p)
	}
	responses := c.CommitReads(ctx)

	values := make([]point.PointValue, 0, len(responses))
	var exceptions []Exception
	for _, r := range responses {
		if r.Err != nil {
			exceptions = append(exceptions, Exception{PointUUID: r.Point.UUID.String(), Err: r.Err})
			continue
		}
		values = append(values, r.Value)
	}
	return values, exceptions
}

// UpdatePointValues is a one-shot convenience: request and commit writes
// for a batch of (Point, PointValue) pairs in a single call.
func (c *Client) UpdatePointValues(ctx context.Context, writes []PointWrite) []Exception {
	for _, w := range writes {
		c.RequestWrite(w.Point, w.Value)
	}
	responses := c.CommitWrites(ctx)

	var exceptions []Exception
	for _, r := range responses {
		if r.Err != nil {
			exceptions = append(exceptions, Exception{PointUUID: r.PointUUID, Err: r.Err})
		}
	}
	return exceptions
}
