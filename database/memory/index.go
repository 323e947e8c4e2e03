// Package memory provides an in-memory database implementation.
package memory

import "github.com/hashicorp/go-memdb"

const (
	tblSessions     = "sessions"
	tblParticipants = "participants"
)

const (
	idxSessionID            = "id"
	idxParticipantID        = "id"
	idxParticipantSessionID = "session_id"
)

// schema is the schema of the memory database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblSessions: {
			Name: tblSessions,
			Indexes: map[string]*memdb.IndexSchema{
				idxSessionID: {
					Name:    idxSessionID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
		tblParticipants: {
			Name: tblParticipants,
			Indexes: map[string]*memdb.IndexSchema{
				idxParticipantID: {
					Name:    idxParticipantID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ConnectionID"},
				},
				idxParticipantSessionID: {
					Name:    idxParticipantSessionID,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "SessionID"},
				},
			},
		},
	},
}
