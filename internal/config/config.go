package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var validate = validator.New()

// Server is the chat server configuration.
type Server struct {
	Host            string        `env:"CHAT_HOST,default=localhost" validate:"required"`
	Port            int           `env:"CHAT_PORT,default=5050" validate:"gte=1,lte=65535"`
	SSHAddr         string        `env:"CHAT_SSH_ADDR"`
	SSHHostKey      string        `env:"CHAT_SSH_HOST_KEY,default=configs/ssh_host_ed25519"`
	WSAddr          string        `env:"CHAT_WS_ADDR"`
	WriteTimeout    time.Duration `env:"CHAT_WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"CHAT_SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
}

// Addr returns the TCP listen address.
func (c Server) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns the parsed log level.
func (c Server) Level() slog.Level {
	return parseLevel(c.LogLevel)
}

// LoadServer reads .env (if present), then the environment, then command-line args.
// Later sources override earlier ones.
func LoadServer(args []string, output io.Writer) (Server, error) {
	var cfg Server
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}

	flags := flag.NewFlagSet("tchatd", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&cfg.Host, "host", cfg.Host, "Host to bind the TCP chat listener to")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "Port of the TCP chat listener")
	flags.StringVar(&cfg.SSHAddr, "ssh-addr", cfg.SSHAddr, "Optional address for the SSH transport (e.g. :2222)")
	flags.StringVar(&cfg.SSHHostKey, "host-key", cfg.SSHHostKey, "Path to the SSH host private key (auto-generated if missing)")
	flags.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "Optional address for the WebSocket transport (e.g. :8080)")
	flags.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-write timeout towards a member; a member that stalls longer is dropped")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Time allowed for sessions to stop")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return cfg, fmt.Errorf("config: flags: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Client is the chat client configuration. Environment keys carry the CHAT_ prefix.
type Client struct {
	Host     string `envconfig:"HOST" default:"localhost" validate:"required"`
	Port     int    `envconfig:"PORT" default:"5050" validate:"gte=1,lte=65535"`
	Colours  bool   `envconfig:"COLOURS" default:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"error" validate:"oneof=debug info warn error"`
}

// Addr returns the server address to dial.
func (c Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns the parsed log level.
func (c Client) Level() slog.Level {
	return parseLevel(c.LogLevel)
}

// LoadClient reads .env (if present), then CHAT_* variables, then command-line args.
func LoadClient(args []string, output io.Writer) (Client, error) {
	var cfg Client
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if err := envconfig.Process("chat", &cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}

	flags := flag.NewFlagSet("tchat", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&cfg.Host, "host", cfg.Host, "Chat server host")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "Chat server port")
	flags.BoolVar(&cfg.Colours, "colours", cfg.Colours, "Colourize incoming messages")
	if err := flags.Parse(args); err != nil {
		return cfg, fmt.Errorf("config: flags: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv imports ./.env without overriding variables that are already set.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: .env: %w", err)
	}
	return nil
}

// parseLevel falls back to info; values are validated on load.
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
