// Package entity provides identity types shared by client and server.
package entity

// User is the local identity supplied by the caller. ConnectionID is
// transport-scoped and assigned by the signaling server on welcome; it is
// distinct from the stable user ID.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ConnectionID string `json:"connection_id"`
}

// Participant is a remote session member as announced by the server.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
