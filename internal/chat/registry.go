package chat

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// Record describes one member that completed the handshake.
type Record struct {
	Peer     *Peer
	Name     string
	Addr     string
	JoinedAt time.Time
}

// Registry maps live connection handles to their records.
// Every operation holds the same mutex and none of them touches the network.
type Registry struct {
	mu      sync.Mutex
	records map[*Peer]Record
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[*Peer]Record),
	}
}

// Insert adds or replaces the record for p.
func (r *Registry) Insert(p *Peer, rec Record) {
	rec.Peer = p

	r.mu.Lock()
	r.records[p] = rec
	r.mu.Unlock()
}

// Remove deletes p and returns its prior record. A missing peer reports false.
func (r *Registry) Remove(p *Peer) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[p]
	if ok {
		delete(r.records, p)
	}
	return rec, ok
}

// Snapshot returns a point-in-time copy of all records in no particular order.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Values(r.records)
}

// Count returns the current membership size.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Drain empties the registry and returns what it held.
func (r *Registry) Drain() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := lo.Values(r.records)
	r.records = make(map[*Peer]Record)
	return drained
}
