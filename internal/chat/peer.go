package chat

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Peer is the connection handle used as the registry key. It owns the transport and
// serializes writes so concurrent broadcasts never interleave bytes on the wire.
type Peer struct {
	ID string

	conn         Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// DefaultWriteTimeout bounds a write to a peer when no explicit timeout is given.
const DefaultWriteTimeout = 10 * time.Second

// NewPeer wraps conn. Every write is bounded by writeTimeout; a non-positive value
// selects DefaultWriteTimeout.
func NewPeer(conn Conn, writeTimeout time.Duration) *Peer {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Peer{
		ID:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Read reads the next chunk sent by the remote side.
func (p *Peer) Read(buf []byte) (int, error) {
	return p.conn.Read(buf)
}

// WriteString writes s as a single unit within the write timeout. Transports without
// write deadlines are closed when the timeout fires, which unblocks the write.
func (p *Peer) WriteString(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d, ok := p.conn.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		_, err := io.WriteString(p.conn, s)
		return err
	}

	timer := time.AfterFunc(p.writeTimeout, func() { _ = p.Close() })
	_, err := io.WriteString(p.conn, s)
	if !timer.Stop() {
		return fmt.Errorf("%w after %s", ErrWriteTimeout, p.writeTimeout)
	}
	return err
}

// Close closes the transport once; later calls return the first result.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}

// RemoteAddr returns the remote address for diagnostics.
func (p *Peer) RemoteAddr() string {
	if addr := p.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
