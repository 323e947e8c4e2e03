// Package response provides data types for server responses to the client.
package response

import (
	"encoding/json"

	"huddle/types/entity"
)

// Constants for response types
const (
	WELCOME = "WELCOME"
	JOINED  = "JOINED"
	SIGNAL  = "SIGNAL"
	LEFT    = "LEFT"
	ENDED   = "ENDED"
)

// Welcome is sent once after the socket is accepted. It assigns the
// transport-scoped connection ID the client must carry in its join request.
type Welcome struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// Joined announces a remote participant. IsInitiator tells the receiver
// which side originates the offer; the server alone assigns the flag.
type Joined struct {
	Type               string             `json:"type"`
	RemoteConnectionID string             `json:"remote_connection_id"`
	Participant        entity.Participant `json:"participant"`
	IsInitiator        bool               `json:"is_initiator"`
}

// Signal carries an opaque signaling payload from another connection.
type Signal struct {
	Type   string          `json:"type"`
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// Left announces that a remote participant left the session.
type Left struct {
	Type               string `json:"type"`
	RemoteConnectionID string `json:"remote_connection_id"`
	UserID             string `json:"user_id"`
}

// Ended announces that the session owner ended the session.
type Ended struct {
	Type string `json:"type"`
}
