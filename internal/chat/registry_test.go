package chat

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newPipePeer(t *testing.T) *Peer {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewPeer(server, 0)
}

func TestRegistryInsertRemove(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newPipePeer(t)

	// Given an empty registry
	req.Zero(registry.Count())

	// When a member is inserted
	registry.Insert(alice, Record{Name: "alice"})

	// Then it is counted and keyed by its handle
	req.Equal(1, registry.Count())
	snapshot := registry.Snapshot()
	req.Len(snapshot, 1)
	req.Same(alice, snapshot[0].Peer)

	// And removing it returns the prior record
	rec, ok := registry.Remove(alice)
	req.True(ok)
	req.Equal("alice", rec.Name)
	req.Zero(registry.Count())
}

func TestRegistryInsertReplaces(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newPipePeer(t)

	registry.Insert(alice, Record{Name: "alice"})
	registry.Insert(alice, Record{Name: "alicia"})

	req.Equal(1, registry.Count())
	req.Equal("alicia", registry.Snapshot()[0].Name)
}

func TestRegistryRemoveAbsentIsNoop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newPipePeer(t)
	bob := newPipePeer(t)
	registry.Insert(bob, Record{Name: "bob"})

	_, ok := registry.Remove(alice)
	req.False(ok)

	registry.Remove(bob)
	_, ok = registry.Remove(bob)
	req.False(ok)
	req.Zero(registry.Count())
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newPipePeer(t)
	registry.Insert(alice, Record{Name: "alice"})

	snapshot := registry.Snapshot()
	registry.Remove(alice)

	req.Len(snapshot, 1)
	req.Zero(registry.Count())
}

func TestRegistryConcurrentInserts(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	const members = 200

	peers := make([]*Peer, members)
	for i := range peers {
		peers[i] = newPipePeer(t)
	}

	var wg sync.WaitGroup
	for i, p := range peers {
		wg.Add(1)
		go func(i int, p *Peer) {
			defer wg.Done()
			registry.Insert(p, Record{Name: "member"})
			_ = registry.Snapshot()
			if i%2 == 0 {
				registry.Remove(p)
				registry.Remove(p)
			}
		}(i, p)
	}
	wg.Wait()

	req.Equal(members/2, registry.Count())
}

func TestRegistryDrain(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Insert(newPipePeer(t), Record{Name: "alice"})
	registry.Insert(newPipePeer(t), Record{Name: "bob"})

	drained := registry.Drain()

	req.Len(drained, 2)
	req.Zero(registry.Count())
	req.Empty(registry.Drain())
}
