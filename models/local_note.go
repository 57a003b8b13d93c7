package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
)

// SyncStatus tags a locally persisted note with where it stands in the
// reconciliation lifecycle. Statuses are stored as strings so the offline
// table remains inspectable with plain SQL.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSyncing SyncStatus = "syncing"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// Valid reports whether s is one of the four known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSyncing, StatusSynced, StatusFailed:
		return true
	}
	return false
}

// ParseSyncStatus converts a raw string (from the database or an API body)
// into a SyncStatus, rejecting unknown values.
func ParseSyncStatus(raw string) (SyncStatus, error) {
	s := SyncStatus(raw)
	if !s.Valid() {
		return "", serr.New("unknown sync status: " + raw)
	}
	return s, nil
}

// CanTransition is the single source of truth for legal status moves.
// All status writes funnel through the store's UpdateStatus which consults
// this table, so ad hoc writes cannot put a note into a nonsense state
// (e.g. synced -> syncing).
//
// pending -> syncing      attempt started
// syncing -> pending      attempt failed, retries remain
// syncing -> failed       attempt failed, retries exhausted
// syncing -> synced       attempt succeeded (transient; the record is
//                         removed rather than stored with this status)
// failed  -> pending      manual retry
func CanTransition(from, to SyncStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusSyncing
	case StatusSyncing:
		return to == StatusPending || to == StatusFailed || to == StatusSynced
	case StatusFailed:
		return to == StatusPending
	case StatusSynced:
		return false
	}
	return false
}

// NotePayload holds the note fields the sync engine treats as opaque.
// Tags are denormalized to plain names because the offline table has no
// foreign-key relationship to the remote tag table.
type NotePayload struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	ImageURL  *string  `json:"imageUrl"`
	IsStarred bool     `json:"isStarred"`
	IsShared  bool     `json:"isShared"`
	Tags      []string `json:"tags"`
}

// LocalNote is the unit of offline persistence. Only pending, syncing and
// failed notes are ever stored; a synced note is evicted instead.
type LocalNote struct {
	ID string `json:"id"`
	NotePayload
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	SyncStatus SyncStatus `json:"syncStatus"`
	RetryCount int        `json:"retryCount"`
}

// tempIDPrefix marks client-generated identifiers that have not yet been
// assigned a server identity.
const tempIDPrefix = "temp-"

// NewTempID generates a client-side note identifier.
func NewTempID() string {
	return tempIDPrefix + uuid.New().String()
}

// IsTempID reports whether id was generated locally rather than assigned
// by the remote store.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// NewLocalNote builds a pending LocalNote from a payload. The caller supplies
// the id so an optimistic UI entry and its persisted record share identity.
func NewLocalNote(id string, payload NotePayload, now time.Time) LocalNote {
	return LocalNote{
		ID:          id,
		NotePayload: payload,
		CreatedAt:   now,
		UpdatedAt:   now,
		SyncStatus:  StatusPending,
		RetryCount:  0,
	}
}
