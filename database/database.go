// Package database provides an interface for session membership storage.
package database

import (
	"errors"
)

const (
	// DefaultSessionID is the default session ID. it is registered if flag is set.
	DefaultSessionID = "session-id"

	// DefaultSessionOwner is the owner of the default session.
	DefaultSessionOwner = "session-owner"
)

var (
	// ErrSessionAlreadyExists is returned when the session already exists.
	ErrSessionAlreadyExists = errors.New("session already exists")

	// ErrParticipantAlreadyExists is returned when the participant already exists.
	ErrParticipantAlreadyExists = errors.New("participant already exists")

	// ErrSessionNotFound is returned when the session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrParticipantNotFound is returned when the participant is not found.
	ErrParticipantNotFound = errors.New("participant not found")
)

// Config is the configuration for creating a database instance.
type Config struct {
	SetDefaultSession bool
}

// Database is an interface for session membership storage.
type Database interface {
	EnsureSessionInfo(sessionID, ownerID string) (*SessionInfo, error)
	FindSessionInfoByID(sessionID string) (*SessionInfo, error)
	DeleteSessionInfoByID(sessionID string) error

	CreateParticipantInfo(sessionID, userID, userName, connectionID string) (*ParticipantInfo, error)
	FindParticipantInfoByConnectionID(connectionID string) (*ParticipantInfo, error)
	FindParticipantInfoBySessionID(sessionID string) ([]*ParticipantInfo, error)
	DeleteParticipantInfoByConnectionID(connectionID string) error
}
