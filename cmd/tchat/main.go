package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"

	"github.com/ledzpl/tchat/internal/client"
	"github.com/ledzpl/tchat/internal/config"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tchat: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	cfg, err := config.LoadClient(args, os.Stderr)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = client.Header(os.Stdout)

	conn, err := client.Dial(ctx, cfg.Addr())
	if err != nil {
		fmt.Fprintf(os.Stdout, "Не удалось подключиться к серверу %s\n", cfg.Addr())
		return exitRuntime, err
	}
	fmt.Fprintf(os.Stdout, "Подключено к серверу %s\n", cfg.Addr())

	session := client.New(conn, os.Stdin, os.Stdout,
		client.WithColours(cfg.Colours),
		client.WithLogger(log),
	)
	err = session.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return exitRuntime, err
	}
	return exitOK, nil
}
