package sshserver

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestServerHandsSessionChannelToHandler(t *testing.T) {
	req := require.New(t)

	signer, err := EphemeralSigner()
	req.NoError(err)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)

	srv := New(listener.Addr().String(), signer, logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)

	users := make(chan string, 1)
	go func() {
		served <- srv.Serve(ctx, listener, func(ch *Channel) {
			users <- ch.User()
			buf := make([]byte, 64)
			n, err := ch.Read(buf)
			if err != nil {
				return
			}
			_, _ = io.WriteString(ch, "echo: "+string(buf[:n]))
		})
	}()

	// Given an SSH client with a shell session
	client, err := ssh.Dial("tcp", listener.Addr().String(), &ssh.ClientConfig{
		User:            "alice",
		HostKeyCallback: ssh.FixedHostKey(signer.PublicKey()),
		Timeout:         2 * time.Second,
	})
	req.NoError(err)
	defer client.Close()

	session, err := client.NewSession()
	req.NoError(err)
	defer session.Close()

	stdin, err := session.StdinPipe()
	req.NoError(err)
	stdout, err := session.StdoutPipe()
	req.NoError(err)

	// A terminal is refused so input stays line buffered on the client side
	req.Error(session.RequestPty("xterm", 24, 80, ssh.TerminalModes{}))
	req.NoError(session.Shell())

	// When the client writes a line
	_, err = io.WriteString(stdin, "hello\n")
	req.NoError(err)

	// Then the handler saw the user and echoed through the channel
	select {
	case user := <-users:
		req.Equal("alice", user)
	case <-time.After(2 * time.Second):
		req.Fail("handler was not called")
	}
	line, err := bufio.NewReader(stdout).ReadString('\n')
	req.NoError(err)
	req.Equal("echo: hello\n", line)

	cancel()
	req.ErrorIs(<-served, context.Canceled)
}

func TestServeRequiresHandler(t *testing.T) {
	signer, err := EphemeralSigner()
	require.NoError(t, err)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	err = New("", signer, nil).Serve(context.Background(), listener, nil)
	require.EqualError(t, err, "sshserver: channel handler required")
}
