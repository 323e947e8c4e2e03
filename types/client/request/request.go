// Package request contains client request types for the signaling socket.
package request

import (
	"encoding/json"

	"huddle/types/entity"
)

// Constants for request types
const (
	JOIN   = "JOIN"
	SIGNAL = "SIGNAL"
	LEAVE  = "LEAVE"
	END    = "END"
)

// Join is data type for joining a session.
type Join struct {
	SessionID string      `json:"session_id"`
	User      entity.User `json:"user"`
}

// Signal is data type for relaying an opaque signaling payload to another
// connection. The payload is never inspected by the server.
type Signal struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// Leave is data type for leaving the current session.
type Leave struct{}

// End is data type for ending the session for every member.
type End struct{}
