// Package memory provides an in-memory database implementation.
package memory

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/zerolog/log"

	"huddle/database"
)

// DB is a memory-backed database.
type DB struct {
	db *memdb.MemDB
}

// New creates a new memory-backed database.
func New(config database.Config) *DB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	newDB := &DB{
		db: db,
	}
	if config.SetDefaultSession {
		if _, err := newDB.EnsureSessionInfo(database.DefaultSessionID, database.DefaultSessionOwner); err != nil {
			panic(err)
		}
		log.Info().Str("session", database.DefaultSessionID).Msg("default session created")
	}
	return newDB
}

// EnsureSessionInfo returns the session with the given ID, creating it with
// the given owner if it does not exist yet.
func (d *DB) EnsureSessionInfo(sessionID, ownerID string) (*database.SessionInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tblSessions, idxSessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session by sessionID: %w", err)
	}
	if existing != nil {
		return existing.(*database.SessionInfo).DeepCopy(), nil
	}
	info := &database.SessionInfo{
		ID:        sessionID,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
	if err := txn.Insert(tblSessions, info); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindSessionInfoByID finds a session by its ID.
func (d *DB) FindSessionInfoByID(sessionID string) (*database.SessionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblSessions, idxSessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session by sessionID: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", sessionID, database.ErrSessionNotFound)
	}
	return raw.(*database.SessionInfo).DeepCopy(), nil
}

// DeleteSessionInfoByID deletes a session by its ID.
func (d *DB) DeleteSessionInfoByID(sessionID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblSessions, idxSessionID, sessionID)
	if err != nil {
		return fmt.Errorf("find session by sessionID: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", sessionID, database.ErrSessionNotFound)
	}
	if err := txn.Delete(tblSessions, raw); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	txn.Commit()
	return nil
}

// CreateParticipantInfo creates a new participant if the connection ID is
// not taken yet.
func (d *DB) CreateParticipantInfo(sessionID, userID, userName, connectionID string) (*database.ParticipantInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tblParticipants, idxParticipantID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("find participant by connectionID: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", connectionID, database.ErrParticipantAlreadyExists)
	}
	info := &database.ParticipantInfo{
		ConnectionID: connectionID,
		SessionID:    sessionID,
		UserID:       userID,
		UserName:     userName,
		CreatedAt:    time.Now(),
	}
	if err := txn.Insert(tblParticipants, info); err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindParticipantInfoByConnectionID finds a participant by its connection ID.
func (d *DB) FindParticipantInfoByConnectionID(connectionID string) (*database.ParticipantInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblParticipants, idxParticipantID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("find participant by connectionID: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", connectionID, database.ErrParticipantNotFound)
	}
	return raw.(*database.ParticipantInfo).DeepCopy(), nil
}

// FindParticipantInfoBySessionID finds all participants of a session.
func (d *DB) FindParticipantInfoBySessionID(sessionID string) ([]*database.ParticipantInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	iter, err := txn.Get(tblParticipants, idxParticipantSessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find participants by sessionID: %w", err)
	}
	var participants []*database.ParticipantInfo
	for {
		raw := iter.Next()
		if raw == nil {
			break
		}
		participants = append(participants, raw.(*database.ParticipantInfo).DeepCopy())
	}
	return participants, nil
}

// DeleteParticipantInfoByConnectionID deletes a participant by its connection ID.
func (d *DB) DeleteParticipantInfoByConnectionID(connectionID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblParticipants, idxParticipantID, connectionID)
	if err != nil {
		return fmt.Errorf("find participant by connectionID: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", connectionID, database.ErrParticipantNotFound)
	}
	if err := txn.Delete(tblParticipants, raw); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	txn.Commit()
	return nil
}
