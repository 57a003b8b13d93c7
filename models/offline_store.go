package models

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// DuckStore is the primary NoteStore, backed by the offline_notes table.
// Single-statement reads and writes are atomic on their own; the mutex
// serializes the read-modify-write sequences (UpdateStatus transition check,
// DeleteWithPolicy) so two writers cannot interleave on the same id.
type DuckStore struct {
	mu sync.Mutex
}

// NewDuckStore returns a store over the package database handle.
// InitDB must have been called first.
func NewDuckStore() *DuckStore {
	return &DuckStore{}
}

// Save upserts the note with status pending and retry count zero.
func (s *DuckStore) Save(note LocalNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return serr.Wrap(err, "failed to encode tags")
	}

	imageURL := sql.NullString{}
	if note.ImageURL != nil {
		imageURL = sql.NullString{String: *note.ImageURL, Valid: true}
	}

	query := `
		INSERT OR REPLACE INTO offline_notes
			(id, title, content, image_url, is_starred, is_shared, tags,
			 created_at, updated_at, sync_status, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.Exec(query,
		note.ID, note.Title, note.Content, imageURL, note.IsStarred, note.IsShared,
		string(tagsJSON), note.CreatedAt, note.UpdatedAt, string(StatusPending), 0,
	)
	if err != nil {
		return serr.Wrap(err, "failed to save offline note")
	}
	return nil
}

// GetAll returns every persisted record.
func (s *DuckStore) GetAll() ([]LocalNote, error) {
	rows, err := db.Query(selectOfflineNote + ` FROM offline_notes`)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query offline notes")
	}
	defer rows.Close()

	return scanLocalNotes(rows)
}

// GetPending returns records with status pending, oldest first so the
// sweep replays creates in the order the user made them.
func (s *DuckStore) GetPending() ([]LocalNote, error) {
	rows, err := db.Query(
		selectOfflineNote+` FROM offline_notes WHERE sync_status = ? ORDER BY created_at ASC`,
		string(StatusPending),
	)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query pending notes")
	}
	defer rows.Close()

	return scanLocalNotes(rows)
}

// GetOne returns the record by id, or nil when absent.
func (s *DuckStore) GetOne(id string) (*LocalNote, error) {
	row := db.QueryRow(selectOfflineNote+` FROM offline_notes WHERE id = ?`, id)

	note, err := scanLocalNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to get offline note")
	}
	return note, nil
}

// UpdateStatus sets the status and optionally the retry count. A no-op when
// the record no longer exists; an error when the transition is illegal.
func (s *DuckStore) UpdateStatus(id string, status SyncStatus, retryCount ...int) error {
	if !status.Valid() {
		return serr.New("unknown sync status: " + string(status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current string
	err := db.QueryRow(`SELECT sync_status FROM offline_notes WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil // Deleted concurrently — tolerate per the store contract
	}
	if err != nil {
		return serr.Wrap(err, "failed to read current sync status")
	}

	if !CanTransition(SyncStatus(current), status) {
		return serr.New("illegal sync status transition: " + current + " -> " + string(status))
	}

	if len(retryCount) > 0 {
		rc := retryCount[0]
		if rc < 0 {
			rc = 0
		}
		_, err = db.Exec(
			`UPDATE offline_notes SET sync_status = ?, retry_count = ? WHERE id = ?`,
			string(status), rc, id,
		)
	} else {
		_, err = db.Exec(
			`UPDATE offline_notes SET sync_status = ? WHERE id = ?`,
			string(status), id,
		)
	}
	if err != nil {
		return serr.Wrap(err, "failed to update sync status")
	}
	return nil
}

// Remove deletes the record unconditionally.
func (s *DuckStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := db.Exec(`DELETE FROM offline_notes WHERE id = ?`, id); err != nil {
		return serr.Wrap(err, "failed to remove offline note")
	}
	return nil
}

// DeleteWithPolicy looks up the record and applies the status-gated policy.
// Lookup, check, and delete run under one lock so a status transition cannot
// slip in between them.
func (s *DuckStore) DeleteWithPolicy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, err := s.GetOne(id)
	if err != nil {
		return serr.Wrap(err, "failed to look up note for deletion")
	}
	if err := deletePolicyCheck(note); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM offline_notes WHERE id = ?`, id); err != nil {
		return serr.Wrap(err, "failed to remove offline note")
	}
	return nil
}

// Clear removes all records.
func (s *DuckStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := db.Exec(`DELETE FROM offline_notes`); err != nil {
		return serr.Wrap(err, "failed to clear offline notes")
	}
	return nil
}

// selectOfflineNote is the shared column list so scans stay in one place.
const selectOfflineNote = `
	SELECT id, title, content, image_url, is_starred, is_shared, tags,
	       created_at, updated_at, sync_status, retry_count`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanLocalNote reads one offline_notes row into a LocalNote.
func scanLocalNote(row rowScanner) (*LocalNote, error) {
	var note LocalNote
	var imageURL sql.NullString
	var tagsJSON, status string

	err := row.Scan(&note.ID, &note.Title, &note.Content, &imageURL,
		&note.IsStarred, &note.IsShared, &tagsJSON,
		&note.CreatedAt, &note.UpdatedAt, &status, &note.RetryCount)
	if err != nil {
		return nil, err
	}

	if imageURL.Valid {
		note.ImageURL = &imageURL.String
	}
	if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
		note.Tags = nil
	}
	note.SyncStatus = SyncStatus(status)
	if note.RetryCount < 0 {
		note.RetryCount = 0
	}
	return &note, nil
}

// scanLocalNotes drains a result set, skipping unreadable rows.
func scanLocalNotes(rows *sql.Rows) ([]LocalNote, error) {
	var notes []LocalNote
	for rows.Next() {
		note, err := scanLocalNote(rows)
		if err != nil {
			logger.LogErr(err, "failed to scan offline note row")
			continue
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating offline notes")
	}
	return notes, nil
}
