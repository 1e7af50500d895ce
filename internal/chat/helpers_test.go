package chat

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, time.October, 17, 12, 34, 56, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// inbox records what each mocked connection was asked to write.
type inbox struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newInbox() *inbox {
	return &inbox{lines: make(map[string][]string)}
}

func (in *inbox) writer(name string) func(p []byte) (int, error) {
	return func(p []byte) (int, error) {
		in.mu.Lock()
		in.lines[name] = append(in.lines[name], string(p))
		in.mu.Unlock()
		return len(p), nil
	}
}

func (in *inbox) of(name string) []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.lines[name]...)
}

func readLine(t *testing.T, conn net.Conn, reader *bufio.Reader) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	return line
}
