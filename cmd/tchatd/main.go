package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"

	"github.com/ledzpl/tchat/internal/config"
	"github.com/ledzpl/tchat/internal/server"
	"github.com/ledzpl/tchat/pkg/sshserver"
	"github.com/ledzpl/tchat/pkg/wsserver"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tchatd: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	// 1. Configuration & Logger
	cfg, err := config.LoadServer(args, os.Stderr)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromLevel(cfg.Level())

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. TCP listener, bound before anything else so a taken port fails fast
	srv := server.New(log, server.WithWriteTimeout(cfg.WriteTimeout))
	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return exitRuntime, fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	errChan := make(chan error, 3)
	go func() {
		if err := srv.Serve(ctx, listener); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("tcp transport: %w", err)
		}
	}()

	// 4. Optional transports sharing the same room
	if cfg.SSHAddr != "" {
		signer, err := sshserver.LoadOrGenerateSigner(cfg.SSHHostKey)
		if err != nil {
			return exitConfig, fmt.Errorf("ssh host key: %w", err)
		}
		sshSrv := sshserver.New(cfg.SSHAddr, signer, log.With("transport", "ssh"))
		go func() {
			err := sshSrv.ListenAndServe(ctx, func(ch *sshserver.Channel) { srv.Handle(ch) })
			if err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("ssh transport: %w", err)
			}
		}()
	}
	if cfg.WSAddr != "" {
		wsSrv := wsserver.New(cfg.WSAddr, log.With("transport", "websocket"))
		go func() {
			err := wsSrv.ListenAndServe(ctx, func(conn *wsserver.Conn) { srv.Handle(conn) })
			if err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("websocket transport: %w", err)
			}
		}()
	}

	// 5. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		log.Error("Transport failed", "error", err)
		code = exitRuntime
		stop()
	}

	// 6. Final Cleanup
	elapsed := srv.Shutdown(cfg.ShutdownTimeout)
	log.Info("Server stopped", "elapsed", elapsed)

	if code != exitOK {
		return code, err
	}
	return exitOK, nil
}
