package wsserver

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + DefaultPath
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestConnReadsFramesAsChunks(t *testing.T) {
	req := require.New(t)

	chunks := make(chan string, 4)
	readErr := make(chan error, 1)
	srv := httptest.NewServer(New("", nil).Handler(func(conn *Conn) {
		buf := make([]byte, 4)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				readErr <- err
				return
			}
			chunks <- string(buf[:n])
		}
	}))
	defer srv.Close()

	ws := dial(t, srv)

	// When a frame larger than the read buffer arrives
	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte("hello!")))

	// Then it is delivered over successive reads
	req.Equal("hell", <-chunks)
	req.Equal("o!", <-chunks)

	// And a normal close reads as end of stream
	req.NoError(ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case err := <-readErr:
		req.ErrorIs(err, io.EOF)
	case <-time.After(2 * time.Second):
		req.Fail("read did not end")
	}
}

func TestConnWritesTextFrames(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(New("", nil).Handler(func(conn *Conn) {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = conn.Write([]byte("[12:00:00] hi\n"))
	}))
	defer srv.Close()

	ws := dial(t, srv)
	req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))

	kind, data, err := ws.ReadMessage()
	req.NoError(err)
	req.Equal(websocket.TextMessage, kind)
	req.Equal("[12:00:00] hi\n", string(data))

	// The server closes the socket once the handler returns
	_, _, err = ws.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error %v", err)
}
