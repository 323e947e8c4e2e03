// Package request contains client request types for the signaling socket.
package request

import "encoding/json"

// Common represents a generic request structure used in WebSocket communication.
type Common struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
