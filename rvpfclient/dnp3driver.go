package rvpfclient

import (
	"context"
	"fmt"

	"github.com/rob-gra/rvpf-protocol-core/dnp3mux"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/point"
	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// DNP3Driver adapts one dnp3mux.Association (one master-outstation address
// pair) into a RemoteDriver. One DNP3Driver handles every point whose
// Point.Origin names this association's remote outstation.
type DNP3Driver struct {
	assoc *dnp3mux.Association
}

// NewDNP3Driver builds a driver reading/writing through assoc's master
// engine. assoc must have been built with dnp3mux.NewMasterAssociation.
func NewDNP3Driver(assoc *dnp3mux.Association) *DNP3Driver {
	return &DNP3Driver{assoc: assoc}
}

func singleIndexHeader(attrs *point.DNP3Attributes) dnp3obj.ObjectHeader {
	qualifier := dnp3obj.Qualifier{Prefix: dnp3obj.PrefixNone, Range: dnp3obj.RangeStartStop1}
	switch {
	case attrs.Index > 0xFFFF:
		qualifier.Range = dnp3obj.RangeStartStop4
	case attrs.Index > 0xFF:
		qualifier.Range = dnp3obj.RangeStartStop2
	}
	return dnp3obj.ObjectHeader{
		Group:     dnp3obj.Group(attrs.Group),
		Variation: dnp3obj.Variation(attrs.Variation),
		Qualifier: qualifier,
		Start:     attrs.Index,
		Stop:      attrs.Index,
	}
}

// ReadPoints issues a single DNP3 READ request carrying one single-index
// range header per point, then walks the response items matching
// each returned instance back to the point it belongs to by index.
func (d *DNP3Driver) ReadPoints(ctx context.Context, points []point.Point) ([]point.PointValue, error) {
	master := d.assoc.Master()
	if master == nil {
		return nil, protoerr.New(protoerr.ServiceUnavailable, "association is not configured as a DNP3 master")
	}

	headers := make([]dnp3obj.ObjectHeader, 0, len(points))
	for _, p := range points {
		if p.DNP3 == nil {
			return nil, protoerr.New(protoerr.BadValue, fmt.Sprintf("point %s has no DNP3 attributes", p.Name))
		}
		headers = append(headers, singleIndexHeader(p.DNP3))
	}

	resp, err := master.Read(ctx, headers)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[uint32]dnp3obj.Instance)
	for _, item := range resp.Items {
		for _, inst := range item.Instances {
			byIndex[inst.Index] = inst
		}
	}

	values := make([]point.PointValue, len(points))
	for i, p := range points {
		inst, ok := byIndex[p.DNP3.Index]
		if !ok {
			return nil, protoerr.New(protoerr.BadValue, fmt.Sprintf("no response instance for point %s at index %d", p.Name, p.DNP3.Index))
		}
		state := point.StateNormal
		if inst.Unsupported {
			state = point.StateComm
		}
		values[i] = point.PointValue{
			PointUUID: p.UUID,
			Timestamp: inst.Time,
			State:     state,
			Value:     inst.Value,
		}
	}
	return values, nil
}

// WritePoints issues a single DIRECT_OPERATE fragment covering every value,
// one Item per value addressed at its point's configured index.
func (d *DNP3Driver) WritePoints(ctx context.Context, writes []PointWrite) error {
	master := d.assoc.Master()
	if master == nil {
		return protoerr.New(protoerr.ServiceUnavailable, "association is not configured as a DNP3 master")
	}

	items := make([]dnp3obj.Item, 0, len(writes))
	for _, w := range writes {
		if w.Point.DNP3 == nil {
			return protoerr.New(protoerr.BadValue, fmt.Sprintf("point %s has no DNP3 attributes", w.Point.Name))
		}
		items = append(items, dnp3obj.Item{
			Header: singleIndexHeader(w.Point.DNP3),
			Instances: []dnp3obj.Instance{
				{Index: w.Point.DNP3.Index, Value: w.Value.Value},
			},
		})
	}

	_, err := master.DirectOperate(ctx, items)
	return err
}
