package wsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPath is the HTTP path upgraded to WebSocket.
const DefaultPath = "/ws"

// ConnHandler serves one upgraded connection. The connection is closed after it returns.
type ConnHandler func(conn *Conn)

// Server upgrades HTTP requests on Path and hands each WebSocket to a ConnHandler.
type Server struct {
	Addr string
	Path string

	upgrader websocket.Upgrader
	log      *slog.Logger
}

// New creates a Server listening on addr. Origins are not checked.
func New(addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Addr: addr,
		Path: DefaultPath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Handler returns the HTTP handler performing the upgrade.
func (s *Server) Handler(handler ConnHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.Path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		conn := newConn(ws)
		defer conn.Close()
		handler(conn)
	})
	return mux
}

// ListenAndServe binds Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, handler ConnHandler) error {
	if handler == nil {
		return errors.New("wsserver: connection handler required")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen %q: %w", s.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := httpServer.Close(); err != nil {
				s.log.Warn("WebSocket listener close failed", "error", err)
			}
		case <-shutdown:
		}
	}()

	s.log.Info("WebSocket transport listening", "address", listener.Addr().String(), "path", s.Path)

	err = httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("wsserver: serve: %w", err)
}
