//go:generate go run go.uber.org/mock/mockgen -source=conn.go -destination=../mocks/mock_conn.go -package=mocks
package chat

import "net"

// Conn is one bidirectional byte stream handed over by a transport (TCP, SSH channel, WebSocket).
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	RemoteAddr() net.Addr
}
