package dnp3app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// loopbackSender decodes the request it was given and synchronously
// invokes a responder, exercising Master/Outstation wiring without any
// transport or link layer underneath.
type loopbackSender struct {
	master *Master
}

func (l *loopbackSender) Send(ctx context.Context, fragment []byte) error {
	req, err := dnp3obj.DecodeFragment(fragment, false)
	if err != nil {
		return err
	}
	resp := dnp3obj.Fragment{
		Control:    dnp3obj.ApplicationControl{Fir: true, Fin: true, Seq: req.Control.Seq},
		Function:   dnp3obj.FuncResponse,
		IsResponse: true,
		Items:      req.Items,
	}
	l.master.HandleIncoming(ctx, resp)
	return nil
}

func TestMasterReadRoundTripThroughLoopback(t *testing.T) {
	cfg := DefaultConfig()
	sender := &loopbackSender{}
	master := NewMaster(sender, cfg, nil, clog.NewLogger("master"))
	sender.master = master

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	header := dnp3obj.ObjectHeader{
		Group:     dnp3obj.GroupAnalogInput,
		Variation: 2,
		Qualifier: dnp3obj.Qualifier{Range: dnp3obj.RangeStartStop1},
		Start:     3,
		Stop:      3,
	}
	resp, err := master.Read(ctx, []dnp3obj.ObjectHeader{header})
	require.NoError(t, err)
	require.Equal(t, dnp3obj.FuncResponse, resp.Function)
	require.Len(t, resp.Items, 1)
}

// relaySender hands every fragment it's given to target, so a pair of
// relaySenders can wire a Master and an Outstation directly together
// without any transport below them.
type relaySender struct {
	target func(ctx context.Context, fragment []byte) error
}

func (r *relaySender) Send(ctx context.Context, fragment []byte) error {
	return r.target(ctx, fragment)
}

// TestMasterAssemblesMultiFragmentResponseAgainstRealOutstation exercises
// spec.md §8 scenario 3 end to end at the application layer: a 200-point
// class-0 read from a real Outstation, split across several fragments by
// a small MaxFragmentSize, confirmed one at a time, and reassembled by
// Master into a single result.
func TestMasterAssemblesMultiFragmentResponseAgainstRealOutstation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFragmentSize = 100

	const total = 200
	instances := make([]dnp3obj.Instance, total)
	for i := range instances {
		instances[i] = dnp3obj.Instance{Index: uint32(i), Value: point.IntValue(int64(i))}
	}
	db := &fakeDatabase{class0: []dnp3obj.Item{{
		Header: dnp3obj.ObjectHeader{
			Group:     dnp3obj.GroupAnalogInput,
			Variation: 2,
			Qualifier: dnp3obj.Qualifier{Range: dnp3obj.RangeStartStop1},
			Start:     0,
			Stop:      total - 1,
		},
		Instances: instances,
	}}}

	masterSender := &relaySender{}
	outstationSender := &relaySender{}
	master := NewMaster(masterSender, cfg, nil, clog.NewLogger("master"))
	outstation := NewOutstation(db, outstationSender, cfg, clog.NewLogger("outstation"))

	masterSender.target = func(ctx context.Context, fragment []byte) error {
		req, err := dnp3obj.DecodeFragment(fragment, false)
		if err != nil {
			return err
		}
		outstation.HandleIncoming(ctx, req)
		return nil
	}
	outstationSender.target = func(ctx context.Context, fragment []byte) error {
		resp, err := dnp3obj.DecodeFragment(fragment, true)
		if err != nil {
			return err
		}
		master.HandleIncoming(ctx, resp)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := master.Read(ctx, []dnp3obj.ObjectHeader{
		{Group: dnp3obj.GroupClassData, Variation: 1, Qualifier: dnp3obj.Qualifier{Range: dnp3obj.RangeAll}},
	})
	require.NoError(t, err)
	require.Greater(t, len(resp.Items), 1, "a 200-point response must span more than one application fragment")

	gotCount := 0
	for _, item := range resp.Items {
		gotCount += len(item.Instances)
	}
	require.Equal(t, total, gotCount)
}

func TestMasterRejectsConcurrentRequest(t *testing.T) {
	cfg := DefaultConfig()
	blocking := &blockingSender{release: make(chan struct{})}
	master := NewMaster(blocking, cfg, nil, clog.NewLogger("master"))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = master.Read(ctx, nil)
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := master.Read(ctx, nil)
	require.Error(t, err)
	require.True(t, protoerr.Is(err, protoerr.ServiceUnavailable))
	close(blocking.release)
}

type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) Send(ctx context.Context, fragment []byte) error {
	<-b.release
	return nil
}

func TestMasterDetectsSequenceMismatch(t *testing.T) {
	cfg := DefaultConfig()
	sender := &mismatchSender{}
	master := NewMaster(sender, cfg, nil, clog.NewLogger("master"))
	sender.master = master

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := master.Read(ctx, nil)
	require.Error(t, err)
	require.True(t, protoerr.Is(err, protoerr.UnexpectedResponse))
}

type mismatchSender struct {
	master *Master
}

func (m *mismatchSender) Send(ctx context.Context, fragment []byte) error {
	resp := dnp3obj.Fragment{
		Control:    dnp3obj.ApplicationControl{Fir: true, Fin: true, Seq: 0x0F},
		Function:   dnp3obj.FuncResponse,
		IsResponse: true,
	}
	m.master.HandleIncoming(ctx, resp)
	return nil
}
