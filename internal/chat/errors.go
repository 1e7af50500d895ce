package chat

import "errors"

var (
	// ErrPeerClosed reports a clean end-of-stream from the remote side.
	ErrPeerClosed = errors.New("chat: peer closed the connection")

	// ErrQuit reports a voluntary departure via the quit command.
	ErrQuit = errors.New("chat: peer quit")

	// ErrEmptyName reports a handshake without a usable display name.
	ErrEmptyName = errors.New("chat: empty display name")

	// ErrDeliveryFailed reports that a broadcast write to the peer failed.
	ErrDeliveryFailed = errors.New("chat: delivery failed")

	// ErrWriteTimeout reports a write that did not finish within the peer's write timeout.
	ErrWriteTimeout = errors.New("chat: write timed out")
)
