package chat

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ReadBufferSize bounds a single payload; longer input is split across reads.
	ReadBufferSize = 1024

	// QuitCommand ends the session voluntarily (compared case-insensitively).
	QuitCommand = "/quit"
)

// State is a step of the session lifecycle.
type State int32

const (
	StateConnected State = iota
	StateAwaitingName
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAwaitingName:
		return "awaiting-name"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session drives one accepted connection from handshake to termination.
type Session struct {
	peer        *Peer
	registry    *Registry
	broadcaster *Broadcaster
	log         *slog.Logger

	state   atomic.Int32
	name    atomic.Value
	buf     []byte
	cleanup sync.Once
}

// NewSession prepares a session for peer. Run must be called to drive it.
func NewSession(peer *Peer, registry *Registry, broadcaster *Broadcaster, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		peer:        peer,
		registry:    registry,
		broadcaster: broadcaster,
		log:         log,
		buf:         make([]byte, ReadBufferSize),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Name returns the display name, or "" while the handshake is pending.
// It is safe to call while Run is in progress.
func (s *Session) Name() string {
	name, _ := s.name.Load().(string)
	return name
}

// Run blocks until the session terminates and returns the cause:
// ErrEmptyName, ErrQuit, ErrPeerClosed, or a wrapped transport error.
func (s *Session) Run() error {
	defer s.terminate()

	s.setState(StateAwaitingName)

	name, err := s.handshake()
	if err != nil {
		s.log.Debug("Handshake rejected", "reason", err)
		return err
	}

	if err := s.join(name); err != nil {
		s.broadcaster.Evict(s.peer, err)
		return err
	}

	err = s.readLoop(name)
	s.broadcaster.Evict(s.peer, err)
	return err
}

func (s *Session) handshake() (string, error) {
	payload, err := s.read()
	if err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	name := strings.TrimSpace(payload)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// join registers the member, announces it to everybody else and greets it privately.
func (s *Session) join(name string) error {
	s.name.Store(name)
	s.registry.Insert(s.peer, Record{
		Name:     name,
		Addr:     s.peer.RemoteAddr(),
		JoinedAt: time.Now(),
	})
	s.setState(StateActive)

	s.broadcaster.Broadcast(JoinNotice(name), s.peer)

	members := s.registry.Count()
	s.log.Info("Member joined", "name", name, "members", members)

	if err := s.peer.WriteString(WelcomeText(name, members) + "\n"); err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	return nil
}

func (s *Session) readLoop(name string) error {
	for {
		payload, err := s.read()
		if err != nil {
			return err
		}

		text := strings.TrimRight(payload, "\r\n")
		trimmed := strings.TrimSpace(text)
		if strings.EqualFold(trimmed, QuitCommand) {
			return ErrQuit
		}
		if trimmed == "" {
			continue
		}

		s.log.Debug("Message received", "name", name, "bytes", len(payload))
		s.broadcaster.Broadcast(RelayText(name, text), s.peer)
	}
}

// read returns the next payload of at most ReadBufferSize bytes.
func (s *Session) read() (string, error) {
	n, err := s.peer.Read(s.buf)
	if n > 0 {
		return string(s.buf[:n]), nil
	}
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, io.EOF):
		return "", ErrPeerClosed
	default:
		return "", fmt.Errorf("read: %w", err)
	}
}

func (s *Session) terminate() {
	s.cleanup.Do(func() {
		_ = s.peer.Close()
		s.setState(StateTerminated)
	})
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}
