package peer

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServer is used when no ICE servers are configured.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

// Config is the configuration for creating peer connections.
type Config struct {
	STUNServers []string
	MinUDPPort  uint16
	MaxUDPPort  uint16
}

// Validate validates the UDP port range.
func (c Config) Validate() error {
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}
	if c.MinUDPPort > c.MaxUDPPort {
		return fmt.Errorf("invalid UDP port range %d-%d", c.MinUDPPort, c.MaxUDPPort)
	}
	return nil
}

// webrtcConfiguration builds the pion configuration from the Config.
func (c Config) webrtcConfiguration() webrtc.Configuration {
	servers := c.STUNServers
	if len(servers) == 0 {
		servers = []string{DefaultSTUNServer}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: servers},
		},
	}
}
