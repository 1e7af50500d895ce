package sshserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/crypto/ssh"
)

// Channel is an accepted SSH "session" channel presented as a plain byte stream.
type Channel struct {
	ssh.Channel

	user   string
	remote net.Addr
}

// RemoteAddr returns the address of the SSH client.
func (c *Channel) RemoteAddr() net.Addr {
	return c.remote
}

// User returns the SSH user name the client logged in with.
func (c *Channel) User() string {
	return c.user
}

// ChannelHandler serves one session channel. The channel is closed after it returns.
type ChannelHandler func(ch *Channel)

// Server wraps the SSH listener lifecycle.
type Server struct {
	Addr   string
	Config *ssh.ServerConfig

	log *slog.Logger
}

// New creates a Server with the provided host signer. Clients are not authenticated.
func New(addr string, signer ssh.Signer, log *slog.Logger) *Server {
	cfg := &ssh.ServerConfig{
		NoClientAuth: true,
	}
	cfg.AddHostKey(signer)

	if log == nil {
		log = slog.Default()
	}

	return &Server{
		Addr:   addr,
		Config: cfg,
		log:    log,
	}
}

// ListenAndServe binds Addr and serves until ctx is cancelled or an error occurs.
func (s *Server) ListenAndServe(ctx context.Context, handler ChannelHandler) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("sshserver: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts SSH connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler ChannelHandler) error {
	if handler == nil {
		return errors.New("sshserver: channel handler required")
	}
	defer listener.Close()

	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.log.Warn("SSH listener close failed", "error", err)
			}
		case <-shutdown:
		}
	}()

	s.log.Info("SSH transport listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("sshserver: accept: %w", err)
			}
			s.log.Warn("SSH accept failed", "error", err)
			continue
		}

		go s.handleConn(ctx, conn, handler)
	}
}

func (s *Server) handleConn(ctx context.Context, tcpConn net.Conn, handler ChannelHandler) {
	defer tcpConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, s.Config)
	if err != nil {
		s.log.Debug("SSH handshake failed", "remote", tcpConn.RemoteAddr().String(), "error", err)
		return
	}
	defer sshConn.Close()

	s.log.Debug("SSH connection established", "remote", sshConn.RemoteAddr().String(), "client", string(sshConn.ClientVersion()))

	go ssh.DiscardRequests(reqs)

	for {
		select {
		case <-ctx.Done():
			return
		case newChannel, ok := <-chans:
			if !ok {
				return
			}
			if newChannel.ChannelType() != "session" {
				_ = newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
				continue
			}

			channel, requests, err := newChannel.Accept()
			if err != nil {
				s.log.Warn("SSH channel accept failed", "error", err)
				continue
			}
			go serveRequests(requests)

			go func() {
				ch := &Channel{Channel: channel, user: sshConn.User(), remote: sshConn.RemoteAddr()}
				defer ch.Close()
				handler(ch)
			}()
		}
	}
}

// serveRequests accepts a shell and refuses terminals so the client keeps
// line editing locally and sends whole lines.
func serveRequests(requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "shell", "env":
			_ = req.Reply(true, nil)
		default:
			_ = req.Reply(false, nil)
		}
	}
}
