package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/ledzpl/tchat/internal/chat"
)

// Server accepts connections and runs one chat session per connection.
// It tracks every session so Shutdown can close and join them.
type Server struct {
	registry     *chat.Registry
	broadcaster  *chat.Broadcaster
	log          *slog.Logger
	writeTimeout time.Duration
	clock        func() time.Time

	mu       sync.Mutex
	peers    map[*chat.Peer]struct{}
	sessions sync.WaitGroup
	closing  bool
}

// Option customizes a Server.
type Option func(*Server)

// WithWriteTimeout bounds each write to a peer. Non-positive values select chat.DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithClock overrides the clock used to stamp broadcasts.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.clock = now
	}
}

// New creates a Server with an empty registry.
func New(logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: chat.NewRegistry(),
		log:      logger,
		peers:    make(map[*chat.Peer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broadcaster = chat.NewBroadcaster(s.registry, logger, chat.WithClock(s.clock))
	return s
}

// Registry exposes the membership registry.
func (s *Server) Registry() *chat.Registry {
	return s.registry
}

// ListenAndServe binds addr and serves it until ctx is cancelled.
// A bind failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %q: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled, then closes it.
// Accept errors are logged and do not stop the loop.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.log.Warn("Listener close failed", "error", err)
			}
		case <-stopped:
		}
	}()

	s.log.Info("Listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("server: accept: %w", err)
			}
			s.log.Warn("Accept failed", "error", err)
			continue
		}

		s.log.Debug("Connection accepted", "remote", conn.RemoteAddr().String())
		go s.Handle(conn)
	}
}

// Handle runs a chat session on conn and returns when it terminates.
// Transports that own their accept loop call it directly.
func (s *Server) Handle(conn chat.Conn) {
	peer := chat.NewPeer(conn, s.writeTimeout)
	if !s.track(peer) {
		_ = peer.Close()
		return
	}
	defer s.untrack(peer)

	log := s.log.With("session", peer.ID, "remote", peer.RemoteAddr())
	err := chat.NewSession(peer, s.registry, s.broadcaster, log).Run()
	log.Debug("Session finished", "reason", err)
}

// Active returns the number of running sessions, handshakes included.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Shutdown refuses new sessions, closes every open connection without departure
// notices and waits up to timeout for sessions to return. It reports the time spent.
func (s *Server) Shutdown(timeout time.Duration) time.Duration {
	from := time.Now()

	s.mu.Lock()
	s.closing = true
	peers := lo.Keys(s.peers)
	s.mu.Unlock()

	for _, rec := range s.registry.Drain() {
		_ = rec.Peer.Close()
	}
	for _, p := range peers {
		_ = p.Close()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn("Sessions still running after shutdown timeout", "timeout", timeout, "active", s.Active())
	}
	return time.Since(from)
}

func (s *Server) track(p *chat.Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.peers[p] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrack(p *chat.Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	s.sessions.Done()
}
