package database

import "time"

// SessionInfo is a struct for session information. The first joiner becomes
// the owner; only the owner may end the session for everyone.
type SessionInfo struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time
}

// IsOwner checks if the given user ID owns the session.
func (s *SessionInfo) IsOwner(userID string) bool {
	return s.OwnerID == userID
}

// DeepCopy creates a deep copy of the given SessionInfo.
func (s *SessionInfo) DeepCopy() *SessionInfo {
	return &SessionInfo{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		CreatedAt: s.CreatedAt,
	}
}
