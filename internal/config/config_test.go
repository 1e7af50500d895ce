package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadServer(nil, io.Discard)

	req.NoError(err)
	req.Equal("localhost:5050", cfg.Addr())
	req.Empty(cfg.SSHAddr)
	req.Empty(cfg.WSAddr)
	req.Equal(10*time.Second, cfg.WriteTimeout)
	req.Equal(5*time.Second, cfg.ShutdownTimeout)
	req.Equal("info", cfg.LogLevel)
	req.Equal(slog.LevelInfo, cfg.Level())
}

func TestLoadServerFlagsOverrideEnvironment(t *testing.T) {
	req := require.New(t)

	// Given the environment sets host and port
	t.Setenv("CHAT_HOST", "0.0.0.0")
	t.Setenv("CHAT_PORT", "6000")
	t.Setenv("CHAT_WRITE_TIMEOUT", "2s")

	// When a flag overrides the port
	cfg, err := LoadServer([]string{"-port", "7000", "-ssh-addr", ":2222"}, io.Discard)

	// Then the flag wins and the rest comes from the environment
	req.NoError(err)
	req.Equal("0.0.0.0:7000", cfg.Addr())
	req.Equal(":2222", cfg.SSHAddr)
	req.Equal(2*time.Second, cfg.WriteTimeout)
}

func TestLoadServerRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "port out of range", args: []string{"-port", "70000"}},
		{name: "empty host", args: []string{"-host", ""}},
		{name: "unknown log level", args: []string{"-log-level", "verbose"}},
		{name: "zero shutdown timeout", args: []string{"-shutdown-timeout", "0s"}},
		{name: "zero write timeout", args: []string{"-write-timeout", "0s"}},
		{name: "unknown flag", args: []string{"-nope"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadServer(tc.args, io.Discard)
			require.Error(t, err)
		})
	}
}

func TestLoadClient(t *testing.T) {
	req := require.New(t)

	t.Setenv("CHAT_HOST", "chat.local")
	t.Setenv("CHAT_COLOURS", "false")

	cfg, err := LoadClient([]string{"-port", "6060"}, io.Discard)

	req.NoError(err)
	req.Equal("chat.local:6060", cfg.Addr())
	req.False(cfg.Colours)
	req.Equal("error", cfg.LogLevel)
	req.Equal(slog.LevelError, cfg.Level())
}

func TestLoadClientRejectsInvalidPort(t *testing.T) {
	t.Setenv("CHAT_PORT", "0")

	_, err := LoadClient(nil, io.Discard)
	require.Error(t, err)
}
