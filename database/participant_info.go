package database

import (
	"time"

	"huddle/types/entity"
)

// ParticipantInfo is a struct for participant information. A participant is
// keyed by its transport-scoped connection ID, which is distinct from the
// stable user ID and changes across reconnects.
type ParticipantInfo struct {
	ConnectionID string
	SessionID    string
	UserID       string
	UserName     string
	CreatedAt    time.Time
}

// Entity converts the record into the wire-facing participant type.
func (p *ParticipantInfo) Entity() entity.Participant {
	return entity.Participant{
		ID:   p.UserID,
		Name: p.UserName,
	}
}

// DeepCopy creates a deep copy of the given ParticipantInfo.
func (p *ParticipantInfo) DeepCopy() *ParticipantInfo {
	return &ParticipantInfo{
		ConnectionID: p.ConnectionID,
		SessionID:    p.SessionID,
		UserID:       p.UserID,
		UserName:     p.UserName,
		CreatedAt:    p.CreatedAt,
	}
}
