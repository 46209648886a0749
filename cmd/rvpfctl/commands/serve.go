package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rob-gra/rvpf-protocol-core/clog"
	"github.com/rob-gra/rvpf-protocol-core/dnp3app"
	"github.com/rob-gra/rvpf-protocol-core/dnp3mux"
	"github.com/rob-gra/rvpf-protocol-core/dnp3obj"
	"github.com/rob-gra/rvpf-protocol-core/metrics"
	"github.com/rob-gra/rvpf-protocol-core/rvpfconfig"
	"github.com/rob-gra/rvpf-protocol-core/transport"
)

var serveFlags struct {
	tcpAddr     string
	localAddr   uint16
	remoteAddr  uint16
	metricsAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a throwaway DNP3 outstation simulator for exercising a master",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.tcpAddr, "listen", ":20000", "address to listen on")
	serveCmd.Flags().Uint16Var(&serveFlags.localAddr, "local-addr", 10, "DNP3 local (outstation) link address")
	serveCmd.Flags().Uint16Var(&serveFlags.remoteAddr, "remote-addr", 1, "DNP3 remote (master) link address")
	serveCmd.Flags().StringVar(&serveFlags.metricsAddr, "metrics-listen", ":9113", "address to serve /metrics on")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := rvpfconfig.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	listener, err := net.Listen("tcp", serveFlags.tcpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", serveFlags.tcpAddr, err)
	}
	defer listener.Close()

	log := clog.NewLogger("rvpfctl-serve")
	log.Debug("listening on %s", serveFlags.tcpAddr)

	connMetrics := metrics.NewConnectionCollector("rvpf_dnp3")
	assocMetrics := metrics.NewAssociationCollector()
	prometheus.MustRegister(connMetrics, assocMetrics)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(serveFlags.metricsAddr, nil); err != nil {
			log.Warn("metrics server stopped: %v", err)
		}
	}()

	db := newMemDatabase()
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		log.Debug("accepted connection from %s", conn.RemoteAddr())

		ch := transport.NewTCPChannel(conn)
		connMetrics.AddConn(ch.Name(), conn.RemoteAddr().String(), conn)
		assoc := dnp3mux.NewOutstationOverChannel(ch, settings.Link, settings.Application, serveFlags.localAddr, serveFlags.remoteAddr, db, log)
		assoc.SetMetrics(connMetrics, assocMetrics)
		if err := assoc.Link().Open(ctx); err != nil {
			log.Error("opening link: %v", err)
			_ = conn.Close()
			continue
		}
	}
}

// memDatabase is an in-memory dnp3app.Database keyed by (group, variation,
// index), serving every write back out of the same class-0 poll so a
// simulator session can read back whatever a master last wrote.
type memDatabase struct {
	mu    sync.Mutex
	items map[memKey]dnp3obj.Instance
}

type memKey struct {
	group     dnp3obj.Group
	variation dnp3obj.Variation
	index     uint32
}

func newMemDatabase() *memDatabase {
	return &memDatabase{items: make(map[memKey]dnp3obj.Instance)}
}

func (d *memDatabase) ReadClass(classes []int) ([]dnp3obj.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	byHeader := make(map[memKey][]dnp3obj.Instance)
	for k, inst := range d.items {
		byHeader[k] = append(byHeader[k], inst)
	}

	items := make([]dnp3obj.Item, 0, len(byHeader))
	for k, instances := range byHeader {
		items = append(items, dnp3obj.Item{
			Header: dnp3obj.ObjectHeader{
				Group:     k.group,
				Variation: k.variation,
				Qualifier: dnp3obj.Qualifier{Prefix: dnp3obj.PrefixIndex1, Range: dnp3obj.RangeCount1},
			},
			Instances: instances,
		})
	}
	return items, nil
}

func (d *memDatabase) ReadRange(header dnp3obj.ObjectHeader) ([]dnp3obj.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var instances []dnp3obj.Instance
	for k, inst := range d.items {
		if k.group == header.Group && k.variation == header.Variation {
			instances = append(instances, inst)
		}
	}
	return []dnp3obj.Item{{Header: header, Instances: instances}}, nil
}

func (d *memDatabase) Write(items []dnp3obj.Item) (dnp3obj.IIN, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, item := range items {
		for _, inst := range item.Instances {
			d.items[memKey{item.Header.Group, item.Header.Variation, inst.Index}] = inst
		}
	}
	return 0, nil
}

func (d *memDatabase) Operate(items []dnp3obj.Item, directExecute bool) (dnp3obj.IIN, error) {
	return d.Write(items)
}

var _ dnp3app.Database = (*memDatabase)(nil)
