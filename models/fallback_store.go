package models

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

// FlatStore is the fallback NoteStore: the whole record set lives as one
// msgpack-encoded list in a single file (one named storage slot). No indexed
// lookups — every operation loads, filters and rewrites the list — which is
// acceptable because the fallback only ever holds the handful of notes that
// could not reach the primary store.
type FlatStore struct {
	mu   sync.Mutex
	path string
}

// fallbackSlotName is the file the flat list persists under.
const fallbackSlotName = "offline_notes_fallback.mpk"

// NewFlatStore creates a flat-list store rooted at dir.
func NewFlatStore(dir string) *FlatStore {
	return &FlatStore{path: filepath.Join(dir, fallbackSlotName)}
}

// load reads the full list. A missing file is an empty list, and an
// unreadable file is treated the same way so a corrupt fallback cannot
// take the application down with it.
func (s *FlatStore) load() []LocalNote {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var notes []LocalNote
	if err := msgpack.Unmarshal(data, &notes); err != nil {
		return nil
	}
	return notes
}

// persist writes the full list back to the storage slot.
func (s *FlatStore) persist(notes []LocalNote) error {
	data, err := msgpack.Marshal(notes)
	if err != nil {
		return serr.Wrap(err, "failed to encode fallback notes")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return serr.Wrap(err, "failed to create fallback directory")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return serr.Wrap(err, "failed to write fallback notes")
	}
	return nil
}

// Save appends (or replaces) the note with status pending, retry count zero.
func (s *FlatStore) Save(note LocalNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note.SyncStatus = StatusPending
	note.RetryCount = 0

	notes := s.load()
	replaced := false
	for i := range notes {
		if notes[i].ID == note.ID {
			notes[i] = note
			replaced = true
			break
		}
	}
	if !replaced {
		notes = append(notes, note)
	}
	return s.persist(notes)
}

// GetAll returns every record in the slot.
func (s *FlatStore) GetAll() ([]LocalNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// GetPending returns records with status pending.
func (s *FlatStore) GetPending() ([]LocalNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []LocalNote
	for _, n := range s.load() {
		if n.SyncStatus == StatusPending {
			pending = append(pending, n)
		}
	}
	return pending, nil
}

// GetOne scans the list for the id; nil when absent.
func (s *FlatStore) GetOne(id string) (*LocalNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.load() {
		if n.ID == id {
			note := n
			return &note, nil
		}
	}
	return nil, nil
}

// UpdateStatus rewrites the matching record. A no-op when absent.
func (s *FlatStore) UpdateStatus(id string, status SyncStatus, retryCount ...int) error {
	if !status.Valid() {
		return serr.New("unknown sync status: " + string(status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.load()
	for i := range notes {
		if notes[i].ID != id {
			continue
		}
		if !CanTransition(notes[i].SyncStatus, status) {
			return serr.New("illegal sync status transition: " +
				string(notes[i].SyncStatus) + " -> " + string(status))
		}
		notes[i].SyncStatus = status
		if len(retryCount) > 0 {
			rc := retryCount[0]
			if rc < 0 {
				rc = 0
			}
			notes[i].RetryCount = rc
		}
		return s.persist(notes)
	}
	return nil
}

// Remove filters the record out of the list; a no-op when absent.
func (s *FlatStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.load()
	kept := notes[:0]
	for _, n := range notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(notes) {
		return nil
	}
	return s.persist(kept)
}

// DeleteWithPolicy applies the status-gated deletion policy. The lock is held
// across lookup, check, and removal so no transition can interleave.
func (s *FlatStore) DeleteWithPolicy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.load()
	var note *LocalNote
	for i := range notes {
		if notes[i].ID == id {
			note = &notes[i]
			break
		}
	}
	if err := deletePolicyCheck(note); err != nil {
		return err
	}

	kept := notes[:0]
	for _, n := range notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	return s.persist(kept)
}

// Clear deletes the storage slot.
func (s *FlatStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return serr.Wrap(err, "failed to clear fallback notes")
	}
	return nil
}
