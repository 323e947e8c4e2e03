// Package peer wraps WebRTC peer connections behind a small capability
// interface: create, signal-in, signal-out event, stream-in event, close.
package peer

import (
	"huddle/media"
)

// Events carries the callbacks a Connection drives. OnSignal emits opaque
// signaling payloads that must be relayed to the remote side. OnStream
// fires once per inbound remote stream. OnClose fires once when the
// connection fails or closes.
type Events struct {
	OnSignal func(data []byte)
	OnStream func(stream *media.RemoteStream)
	OnClose  func()
}

// Connection is a single peer-to-peer media connection.
//
//go:generate mockgen -destination=mock_connection.go -package=peer . Connection,Factory
type Connection interface {
	// Signal feeds an opaque payload received from the remote side into
	// the connection.
	Signal(data []byte) error

	// ReplaceStream detaches the current outbound stream and attaches the
	// given one.
	ReplaceStream(stream *media.Stream) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Factory creates peer connections. The initiator side originates the
// offer; the flag is assigned by the signaling server, never locally.
type Factory interface {
	NewConnection(initiator bool, stream *media.Stream, events Events) (Connection, error)
}
