package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Broadcaster delivers messages to every registered peer and evicts the ones that fail.
type Broadcaster struct {
	registry *Registry
	log      *slog.Logger
	now      func() time.Time
}

// BroadcasterOption customizes a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithClock overrides the clock used for message timestamps.
func WithClock(now func() time.Time) BroadcasterOption {
	return func(b *Broadcaster) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBroadcaster constructs a Broadcaster over registry.
func NewBroadcaster(registry *Registry, log *slog.Logger, opts ...BroadcasterOption) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	b := &Broadcaster{
		registry: registry,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Broadcast runs one delivery pass of text to every member except exclude.
// Recipients are written to concurrently; the call returns once every write has
// finished or hit its peer's write timeout and every failed recipient has been evicted.
func (b *Broadcaster) Broadcast(text string, exclude *Peer) {
	line := NewMessage(b.now(), text).Line()

	recipients := lo.Filter(b.registry.Snapshot(), func(rec Record, _ int) bool {
		return rec.Peer != exclude
	})

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = make(map[*Peer]error)
	)
	for _, rec := range recipients {
		wg.Add(1)
		go func(rec Record) {
			defer wg.Done()
			if err := rec.Peer.WriteString(line); err != nil {
				mu.Lock()
				failed[rec.Peer] = fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
				mu.Unlock()
			}
		}(rec)
	}
	wg.Wait()

	for p, cause := range failed {
		b.Evict(p, cause)
	}
}

// Evict removes p from the registry, closes it and announces the departure to the
// remaining members. Only the first call for a given peer has any effect; it reports
// whether this call performed the eviction.
func (b *Broadcaster) Evict(p *Peer, cause error) bool {
	rec, ok := b.registry.Remove(p)
	if !ok {
		return false
	}
	_ = p.Close()

	attrs := []any{"session", p.ID, "name", rec.Name, "remote", rec.Addr, "members", b.registry.Count()}
	switch {
	case errors.Is(cause, ErrQuit), errors.Is(cause, ErrPeerClosed):
		b.log.Info("Member left", append(attrs, "reason", cause)...)
	default:
		b.log.Warn("Member dropped", append(attrs, "reason", cause)...)
	}

	b.Broadcast(DepartureNotice(rec.Name), nil)
	return true
}
