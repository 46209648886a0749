package commands

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/rob-gra/rvpf-protocol-core/cip"
	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3mux"
	"github.com/rob-gra/rvpf-protocol-core/metrics"
	"github.com/rob-gra/rvpf-protocol-core/rvpfclient"
	"github.com/rob-gra/rvpf-protocol-core/rvpfconfig"
	"github.com/rob-gra/rvpf-protocol-core/transport"
)

// dialConnMetrics/dialAssocMetrics are process-lifetime collectors shared by
// every connectDriver call; rvpfctl doesn't serve /metrics itself
// outside of `serve`, but keeping one-shot read/write commands wired
// through the same collectors means a future `--metrics-listen` on
// these commands costs nothing to add.
var (
	dialConnMetrics  = metrics.NewConnectionCollector("rvpf_dnp3_client")
	dialAssocMetrics = metrics.NewAssociationCollector()
)

// remoteFlags are the address/addressing flags shared by read and write,
// grounded on dittofs's per-command flag-set pattern (each subcommand
// registers its own flags in its own init, rather than a shared global
// flag struct).
type remoteFlags struct {
	proto      string
	tcpAddr    string
	localAddr  uint16
	remoteAddr uint16
	group      int
	variation  int
	index      uint32
	tag        string
	elements   uint16
	value      string
	valueType  string
}

func addRemoteFlags(cmd *cobra.Command, f *remoteFlags) {
	cmd.Flags().StringVar(&f.proto, "proto", "dnp3", "protocol: dnp3 or cip")
	cmd.Flags().StringVar(&f.tcpAddr, "tcp", "", "remote host:port")
	cmd.Flags().Uint16Var(&f.localAddr, "local-addr", 1, "DNP3 local (master) link address")
	cmd.Flags().Uint16Var(&f.remoteAddr, "remote-addr", 10, "DNP3 remote (outstation) link address")
	cmd.Flags().IntVar(&f.group, "group", 30, "DNP3 object group")
	cmd.Flags().IntVar(&f.variation, "variation", 1, "DNP3 object variation")
	cmd.Flags().Uint32Var(&f.index, "index", 0, "DNP3 point index")
	cmd.Flags().StringVar(&f.tag, "tag", "", "CIP tag name")
	cmd.Flags().Uint16Var(&f.elements, "elements", 1, "CIP tag element count")
}

// connectDriver dials f's remote and returns a RemoteDriver for it, plus a
// close function the caller must run when done.
func connectDriver(ctx context.Context, f *remoteFlags) (rvpfclient.RemoteDriver, func(), error) {
	settings, err := rvpfconfig.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if f.tcpAddr == "" {
		return nil, nil, fmt.Errorf("--tcp is required")
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", f.tcpAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", f.tcpAddr, err)
	}
	ch := transport.NewTCPChannel(conn)

	switch f.proto {
	case "dnp3":
		dialConnMetrics.AddConn(ch.Name(), f.tcpAddr, conn)
		assoc := dnp3mux.NewMasterOverChannel(ch, settings.Link, settings.Application, f.localAddr, f.remoteAddr, false, nil, clog.NewLogger("rvpfctl"))
		assoc.SetMetrics(dialConnMetrics, dialAssocMetrics)
		if err := assoc.Link().Open(ctx); err != nil {
			_ = ch.Close()
			return nil, nil, fmt.Errorf("opening DNP3 link: %w", err)
		}
		return rvpfclient.NewDNP3Driver(assoc), func() { assoc.Link().Close() }, nil
	case "cip":
		session := cip.NewSession(ch, settings.CIP, clog.NewLogger("rvpfctl"))
		if err := session.Open(ctx); err != nil {
			_ = ch.Close()
			return nil, nil, fmt.Errorf("opening CIP session: %w", err)
		}
		tagClient := cip.NewTagClient(session)
		return rvpfclient.NewCIPDriver(tagClient), func() { session.Close(context.Background()) }, nil
	default:
		_ = ch.Close()
		return nil, nil, fmt.Errorf("unknown --proto %q, want dnp3 or cip", f.proto)
	}
}
