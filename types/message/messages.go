// Package message provides data types for broker messages.
package message

import (
	"encoding/json"

	"huddle/types/entity"
)

// Join is data type for a client joining a session.
type Join struct {
	SessionID    string
	ConnectionID string
	User         entity.User
}

// Leave is data type for a client leaving its session.
type Leave struct {
	SessionID    string
	ConnectionID string
}

// End is data type for a client ending its session.
type End struct {
	SessionID    string
	ConnectionID string
}

// Signal is data type for relaying a signaling payload between connections.
type Signal struct {
	SessionID string
	From      string
	To        string
	Payload   json.RawMessage
}

// Deactivate is data type for a socket connection going away. The server
// treats socket loss as the client leaving its session.
type Deactivate struct {
	ConnectionID string
}
