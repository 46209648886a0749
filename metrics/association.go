package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// AssociationCollector exposes per-association sequence and retry state,
// grounded on the same Describe/Collect-over-a-guarded-map pattern as
// ConnectionCollector.
type AssociationCollector struct {
	mu    sync.Mutex
	state map[string]*assocState

	seqDesc   *prometheus.Desc
	retryDesc *prometheus.Desc
	stateDesc *prometheus.Desc
}

type assocState struct {
	sendSeq, recvSeq float64
	retries          float64
	linkState        float64 // 0=SEC_NOT_RESET 1=SEC_RESET 2=LINK_DOWN
}

func NewAssociationCollector() *AssociationCollector {
	labels := []string{"association"}
	return &AssociationCollector{
		state: make(map[string]*assocState),
		seqDesc: prometheus.NewDesc("rvpf_dnp3_association_sequence",
			"Current transport-layer sequence number.", append(labels, "direction"), nil),
		retryDesc: prometheus.NewDesc("rvpf_dnp3_association_retries_total",
			"Retransmissions issued on this association.", labels, nil),
		stateDesc: prometheus.NewDesc("rvpf_dnp3_association_link_state",
			"Data-link state (0=not-reset 1=reset 2=down).", labels, nil),
	}
}

func (c *AssociationCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.seqDesc
	descs <- c.retryDesc
	descs <- c.stateDesc
}

func (c *AssociationCollector) Collect(out chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, st := range c.state {
		out <- prometheus.MustNewConstMetric(c.seqDesc, prometheus.GaugeValue, st.sendSeq, name, "send")
		out <- prometheus.MustNewConstMetric(c.seqDesc, prometheus.GaugeValue, st.recvSeq, name, "recv")
		out <- prometheus.MustNewConstMetric(c.retryDesc, prometheus.CounterValue, st.retries, name)
		out <- prometheus.MustNewConstMetric(c.stateDesc, prometheus.GaugeValue, st.linkState, name)
	}
}

func (c *AssociationCollector) get(name string) *assocState {
	st, ok := c.state[name]
	if !ok {
		st = &assocState{}
		c.state[name] = st
	}
	return st
}

func (c *AssociationCollector) SetSequence(name string, send, recv uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.get(name)
	st.sendSeq, st.recvSeq = float64(send), float64(recv)
}

func (c *AssociationCollector) IncRetries(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(name).retries++
}

func (c *AssociationCollector) SetLinkState(name string, state int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(name).linkState = float64(state)
}

var _ prometheus.Collector = (*AssociationCollector)(nil)
