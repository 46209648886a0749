package dnp3mux

import (
	"context"
	"sync"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// addrPair is the registry key: one local address, one remote address.
type addrPair struct {
	local, remote uint16
}

// Factory builds a new Association on demand when AutoCreate is enabled
// and an incoming frame addresses a pair the Mux has never seen.
type Factory func(ctx context.Context, local, remote uint16) (*Association, error)

// Mux owns every Association a process maintains and is the single
// point other layers (rvpfclient, cmd/rvpfctl) use to look one up by
// address pair (spec.md §4.4).
type Mux struct {
	mu           sync.Mutex
	associations map[addrPair]*Association
	order        []addrPair // registration order, drives round-robin fairness
	rrCursor     int

	autoCreate bool
	factory    Factory
}

// New builds an empty Mux. When autoCreate is true, Lookup falls back to
// factory for address pairs it has never seen; otherwise an unknown pair
// is an error (spec.md §4.4 "auto-create-association policy gating").
func New(autoCreate bool, factory Factory) *Mux {
	return &Mux{
		associations: make(map[addrPair]*Association),
		autoCreate:   autoCreate,
		factory:      factory,
	}
}

// Register adds an already-built Association to the registry.
func (m *Mux) Register(a *Association) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := addrPair{local: a.LocalAddr, remote: a.RemoteAddr}
	if _, exists := m.associations[key]; !exists {
		m.order = append(m.order, key)
	}
	m.associations[key] = a
}

// Unregister removes an association, e.g. when its underlying connection
// closes.
func (m *Mux) Unregister(local, remote uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := addrPair{local: local, remote: remote}
	delete(m.associations, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the Association for (local, remote), creating one via
// the configured Factory if autoCreate is enabled and none exists yet.
func (m *Mux) Lookup(ctx context.Context, local, remote uint16) (*Association, error) {
	key := addrPair{local: local, remote: remote}

	m.mu.Lock()
	if a, ok := m.associations[key]; ok {
		m.mu.Unlock()
		return a, nil
	}
	autoCreate, factory := m.autoCreate, m.factory
	m.mu.Unlock()

	if !autoCreate || factory == nil {
		return nil, errNoSuchAssociation
	}

	a, err := factory(ctx, local, remote)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ServiceUnavailable, "auto-create association failed", err)
	}
	m.Register(a)
	return a, nil
}

// All returns every registered Association in registration order.
func (m *Mux) All() []*Association {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Association, 0, len(m.order))
	for _, key := range m.order {
		if a, ok := m.associations[key]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Next returns the next Association in round-robin order, for fair
// periodic polling across associations that share a process (spec.md
// §4.4 "round-robin fairness across associations sharing a connection").
// It returns (nil, false) if no associations are registered.
func (m *Mux) Next() (*Association, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return nil, false
	}
	m.rrCursor = m.rrCursor % len(m.order)
	key := m.order[m.rrCursor]
	m.rrCursor++
	a, ok := m.associations[key]
	return a, ok
}
