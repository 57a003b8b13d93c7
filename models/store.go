package models

import (
	"errors"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Note Store
//
// NoteStore is the single shared mutable resource between the sync engine
// and the optimistic note state. Two implementations exist: DuckStore (the
// primary, indexed store) and FlatStore (a coarse flat-list fallback for
// when the primary is unavailable). DualStore composes them with a
// deterministic merge-by-id where the primary's copy wins.
// ============================================================================

// Sentinel errors for the status-gated deletion policy.
var (
	ErrNoteNotFound     = errors.New("offline note not found")
	ErrDeleteWhileSync  = errors.New("cannot delete note while syncing")
	ErrDeleteSyncedNote = errors.New("synced notes can only be deleted via the server")
)

// NoteStore persists LocalNote records across sessions.
type NoteStore interface {
	// Save inserts note with status pending and retry count zero,
	// overwriting any existing record with the same id.
	Save(note LocalNote) error

	// GetAll returns every persisted record, in no guaranteed order.
	GetAll() ([]LocalNote, error)

	// GetPending returns only records with status pending.
	GetPending() ([]LocalNote, error)

	// GetOne returns the record, or nil (not an error) when absent.
	GetOne(id string) (*LocalNote, error)

	// UpdateStatus sets the status (and optionally the retry count) of a
	// record. A no-op when the record no longer exists, tolerating a
	// concurrent delete. Illegal status transitions are rejected.
	UpdateStatus(id string, status SyncStatus, retryCount ...int) error

	// Remove deletes the record unconditionally; a no-op when absent.
	Remove(id string) error

	// DeleteWithPolicy applies the status-gated deletion policy:
	// pending/failed are removed, syncing returns ErrDeleteWhileSync,
	// synced returns ErrDeleteSyncedNote, unknown id returns ErrNoteNotFound.
	DeleteWithPolicy(id string) error

	// Clear removes all records.
	Clear() error
}

// deletePolicyCheck gates deletion on the note's current status.
// Shared by every store implementation so the policy is one tested unit.
func deletePolicyCheck(note *LocalNote) error {
	if note == nil {
		return ErrNoteNotFound
	}
	switch note.SyncStatus {
	case StatusPending, StatusFailed:
		return nil
	case StatusSyncing:
		return ErrDeleteWhileSync
	case StatusSynced:
		return ErrDeleteSyncedNote
	}
	return serr.New("unknown sync status: " + string(note.SyncStatus))
}

// DualStore consults the primary store first and the fallback additively.
// Reads merge by id with the primary's copy taking precedence; writes go to
// the primary, falling back to the flat list when the primary errors.
type DualStore struct {
	primary  NoteStore
	fallback NoteStore
}

// activeStore is the package-level store singleton the offline manager
// handlers read through.
var activeStore NoteStore

// GetActiveStore returns the wired note store, or nil when unwired.
func GetActiveStore() NoteStore {
	return activeStore
}

// NewDualStore composes a primary and fallback store.
func NewDualStore(primary, fallback NoteStore) *DualStore {
	ds := &DualStore{primary: primary, fallback: fallback}
	activeStore = ds
	return ds
}

// Save writes to the primary store, spilling to the fallback when the
// primary is unavailable. Only when both fail does the error surface, at
// which point the caller proceeds optimistically in memory only.
func (ds *DualStore) Save(note LocalNote) error {
	err := ds.primary.Save(note)
	if err == nil {
		return nil
	}
	logger.LogErr(err, "primary store save failed, using fallback", "note_id", note.ID)

	if fbErr := ds.fallback.Save(note); fbErr != nil {
		return serr.Wrap(fbErr, "both primary and fallback store saves failed")
	}
	return nil
}

// GetAll merges both stores by id, primary winning on duplicates.
func (ds *DualStore) GetAll() ([]LocalNote, error) {
	primaryNotes, err := ds.primary.GetAll()
	if err != nil {
		logger.LogErr(err, "primary store read failed, serving fallback only")
		primaryNotes = nil
	}

	fallbackNotes, err := ds.fallback.GetAll()
	if err != nil {
		logger.LogErr(err, "fallback store read failed")
		fallbackNotes = nil
	}

	return mergeByID(primaryNotes, fallbackNotes), nil
}

// GetPending filters the merged set down to pending records.
func (ds *DualStore) GetPending() ([]LocalNote, error) {
	all, err := ds.GetAll()
	if err != nil {
		return nil, err
	}
	pending := make([]LocalNote, 0, len(all))
	for _, n := range all {
		if n.SyncStatus == StatusPending {
			pending = append(pending, n)
		}
	}
	return pending, nil
}

// GetOne checks the primary first, then the fallback.
func (ds *DualStore) GetOne(id string) (*LocalNote, error) {
	note, err := ds.primary.GetOne(id)
	if err != nil {
		logger.LogErr(err, "primary store lookup failed", "note_id", id)
	}
	if note != nil {
		return note, nil
	}
	return ds.fallback.GetOne(id)
}

// UpdateStatus applies the update to whichever store holds the record.
// Both calls are no-ops when the record is absent.
func (ds *DualStore) UpdateStatus(id string, status SyncStatus, retryCount ...int) error {
	pErr := ds.primary.UpdateStatus(id, status, retryCount...)
	fErr := ds.fallback.UpdateStatus(id, status, retryCount...)
	if pErr != nil {
		return pErr
	}
	return fErr
}

// Remove deletes the record from both stores.
func (ds *DualStore) Remove(id string) error {
	pErr := ds.primary.Remove(id)
	fErr := ds.fallback.Remove(id)
	if pErr != nil {
		return pErr
	}
	return fErr
}

// DeleteWithPolicy delegates to the primary store, whose copy wins in the
// merged view, so its lookup-check-delete stays one atomic step. The fallback
// handles the note only when the primary has no record of it.
func (ds *DualStore) DeleteWithPolicy(id string) error {
	pErr := ds.primary.DeleteWithPolicy(id)
	switch {
	case pErr == nil:
		// Clean any duplicate copy out of the fallback
		return ds.fallback.Remove(id)
	case errors.Is(pErr, ErrDeleteWhileSync), errors.Is(pErr, ErrDeleteSyncedNote):
		return pErr
	case errors.Is(pErr, ErrNoteNotFound):
		return ds.fallback.DeleteWithPolicy(id)
	}
	logger.LogErr(pErr, "primary store delete failed, trying fallback", "note_id", id)
	return ds.fallback.DeleteWithPolicy(id)
}

// Clear empties both stores.
func (ds *DualStore) Clear() error {
	pErr := ds.primary.Clear()
	fErr := ds.fallback.Clear()
	if pErr != nil {
		return pErr
	}
	return fErr
}

// mergeByID deduplicates two record sets by id. Entries from first win over
// entries from second with the same id; relative order within each set is
// preserved, first set leading.
func mergeByID(first, second []LocalNote) []LocalNote {
	seen := make(map[string]bool, len(first))
	merged := make([]LocalNote, 0, len(first)+len(second))

	for _, n := range first {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		merged = append(merged, n)
	}
	for _, n := range second {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		merged = append(merged, n)
	}
	return merged
}
