// Package session contains the client-side coordinator that bridges the
// signaling socket with per-participant peer connections.
package session

import (
	"huddle/peer"
)

// Config is the configuration for creating a Coordinator instance.
type Config struct {
	// ServerAddr is the host:port of the signaling server.
	ServerAddr string

	// Peer configures the underlying peer connections.
	Peer peer.Config

	// Chime, when set, is played once for each remote participant the
	// local side did not initiate towards. Keeping the chime on one side
	// only avoids both peers playing a sound for the same join.
	Chime func()
}
