package dnp3mux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3app"
	"github.com/rob-gra/rvpf-protocol-core/dnp3link"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/metrics"
	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/transport"
)

type staticDatabase struct {
	class0 []dnp3obj.Item
}

func (s *staticDatabase) ReadClass(classes []int) ([]dnp3obj.Item, error) {
	return s.class0, nil
}

func (s *staticDatabase) ReadRange(header dnp3obj.ObjectHeader) ([]dnp3obj.Item, error) {
	return nil, nil
}

func (s *staticDatabase) Write(items []dnp3obj.Item) (dnp3obj.IIN, error) { return 0, nil }

func (s *staticDatabase) Operate(items []dnp3obj.Item, directExecute bool) (dnp3obj.IIN, error) {
	return 0, nil
}

func TestMasterReadsClass0ThroughFullStack(t *testing.T) {
	masterConn, outstationConn := net.Pipe()
	defer masterConn.Close()
	defer outstationConn.Close()

	linkCfg := dnp3link.DefaultConfig()
	linkCfg.LinkTimeout = 500 * time.Millisecond
	linkCfg.RetryDelay = 10 * time.Millisecond
	appCfg := dnp3app.DefaultConfig()

	db := &staticDatabase{class0: []dnp3obj.Item{
		{
			Header: dnp3obj.ObjectHeader{
				Group:     dnp3obj.GroupAnalogInput,
				Variation: 1,
				Qualifier: dnp3obj.Qualifier{Prefix: dnp3obj.PrefixIndex1, Range: dnp3obj.RangeCount1},
			},
			Instances: []dnp3obj.Instance{
				{Index: 7, Value: point.IntValue(42)},
			},
		},
	}}

	outAssoc := NewOutstationOverChannel(transport.NewTCPChannel(outstationConn), linkCfg, appCfg, 10, 1, db, clog.NewLogger("outstation"))
	masterAssoc := NewMasterOverChannel(transport.NewTCPChannel(masterConn), linkCfg, appCfg, 1, 10, false, nil, clog.NewLogger("master"))

	require.NoError(t, outAssoc.Link().Open(context.Background()))
	defer outAssoc.Link().Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, masterAssoc.Link().Open(ctx))
	defer masterAssoc.Link().Close()

	resp, err := masterAssoc.Master().Read(ctx, []dnp3obj.ObjectHeader{
		{Group: dnp3obj.GroupClassData, Variation: 1, Qualifier: dnp3obj.Qualifier{Range: dnp3obj.RangeAll}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Len(t, resp.Items[0].Instances, 1)
	require.Equal(t, int64(42), resp.Items[0].Instances[0].Value.Int)
}

func TestAssociationReportsMetricsThroughFullStack(t *testing.T) {
	masterConn, outstationConn := net.Pipe()
	defer masterConn.Close()
	defer outstationConn.Close()

	linkCfg := dnp3link.DefaultConfig()
	linkCfg.LinkTimeout = 500 * time.Millisecond
	linkCfg.RetryDelay = 10 * time.Millisecond
	appCfg := dnp3app.DefaultConfig()

	db := &staticDatabase{class0: []dnp3obj.Item{
		{
			Header: dnp3obj.ObjectHeader{
				Group:     dnp3obj.GroupAnalogInput,
				Variation: 1,
				Qualifier: dnp3obj.Qualifier{Prefix: dnp3obj.PrefixIndex1, Range: dnp3obj.RangeCount1},
			},
			Instances: []dnp3obj.Instance{
				{Index: 7, Value: point.IntValue(42)},
			},
		},
	}}

	outAssoc := NewOutstationOverChannel(transport.NewTCPChannel(outstationConn), linkCfg, appCfg, 10, 1, db, clog.NewLogger("outstation"))
	masterAssoc := NewMasterOverChannel(transport.NewTCPChannel(masterConn), linkCfg, appCfg, 1, 10, false, nil, clog.NewLogger("master"))

	connMetrics := metrics.NewConnectionCollector("test")
	assocMetrics := metrics.NewAssociationCollector()
	connMetrics.Add(masterAssoc.link.Name(), "outstation")
	masterAssoc.SetMetrics(connMetrics, assocMetrics)

	require.NoError(t, outAssoc.Link().Open(context.Background()))
	defer outAssoc.Link().Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, masterAssoc.Link().Open(ctx))
	defer masterAssoc.Link().Close()

	_, err := masterAssoc.Master().Read(ctx, []dnp3obj.ObjectHeader{
		{Group: dnp3obj.GroupClassData, Variation: 1, Qualifier: dnp3obj.Qualifier{Range: dnp3obj.RangeAll}},
	})
	require.NoError(t, err)

	ch := make(chan prometheus.Metric, 16)
	connMetrics.Collect(ch)
	close(ch)
	var sawSent bool
	for m := range ch {
		var out dto.Metric
		require.NoError(t, m.Write(&out))
		if out.GetCounter().GetValue() > 0 {
			sawSent = true
		}
	}
	require.True(t, sawSent, "expected at least one non-zero connection metric after a full-stack read")
}

func TestMasterAccumulatesMultiFragmentResponseWithConfirms(t *testing.T) {
	masterConn, outstationConn := net.Pipe()
	defer masterConn.Close()
	defer outstationConn.Close()

	linkCfg := dnp3link.DefaultConfig()
	linkCfg.LinkTimeout = 500 * time.Millisecond
	linkCfg.RetryDelay = 10 * time.Millisecond
	appCfg := dnp3app.DefaultConfig()
	appCfg.MaxFragmentSize = 100 // force the 200-point response below past one fragment

	const total = 200
	instances := make([]dnp3obj.Instance, total)
	for i := range instances {
		instances[i] = dnp3obj.Instance{Index: uint32(i), Value: point.IntValue(int64(i))}
	}
	db := &staticDatabase{class0: []dnp3obj.Item{
		{
			Header: dnp3obj.ObjectHeader{
				Group:     dnp3obj.GroupAnalogInput,
				Variation: 2,
				Qualifier: dnp3obj.Qualifier{Range: dnp3obj.RangeStartStop1},
				Start:     0,
				Stop:      uint32(total - 1),
			},
			Instances: instances,
		},
	}}

	outAssoc := NewOutstationOverChannel(transport.NewTCPChannel(outstationConn), linkCfg, appCfg, 10, 1, db, clog.NewLogger("outstation"))
	masterAssoc := NewMasterOverChannel(transport.NewTCPChannel(masterConn), linkCfg, appCfg, 1, 10, false, nil, clog.NewLogger("master"))

	require.NoError(t, outAssoc.Link().Open(context.Background()))
	defer outAssoc.Link().Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, masterAssoc.Link().Open(ctx))
	defer masterAssoc.Link().Close()

	resp, err := masterAssoc.Master().Read(ctx, []dnp3obj.ObjectHeader{
		{Group: dnp3obj.GroupClassData, Variation: 1, Qualifier: dnp3obj.Qualifier{Range: dnp3obj.RangeAll}},
	})
	require.NoError(t, err)
	require.Greater(t, len(resp.Items), 1, "expected the 200-point response to span more than one application fragment")

	gotCount := 0
	for _, item := range resp.Items {
		gotCount += len(item.Instances)
	}
	require.Equal(t, total, gotCount)
}

func TestHandleFrameResetsReassemblyAfterDesync(t *testing.T) {
	a := NewOutstationAssociation(nil, 10, 1, dnp3app.DefaultConfig(), &staticDatabase{}, clog.NewLogger("outstation"))

	// A non-FIR segment with no prior FIR is TRANSPORT_DESYNC.
	badWire, err := dnp3obj.EncodeSegment(dnp3obj.Segment{Fir: false, Seq: 5, Payload: []byte{1}})
	require.NoError(t, err)
	a.HandleFrame(context.Background(), dnp3obj.Frame{Payload: badWire})

	// Disorder must be fatal to the in-progress fragment only: the next
	// FIR segment has to start a clean assembly, not re-fail desync.
	goodWire, err := dnp3obj.EncodeSegment(dnp3obj.Segment{Fir: true, Fin: true, Seq: 0, Payload: []byte{2}})
	require.NoError(t, err)
	out, done, err := a.reassembler.AcceptWire(goodWire)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []byte{2}, out)
}
