package models

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Optimistic Note State
//
// The single source of truth the UI renders from. Mutations apply to the
// visible list immediately; the network round-trip resolves afterward and
// either confirms the change or rolls it back. The merged view reconciles
// the authoritative remote set with locally pending/failed/syncing notes.
// ============================================================================

// MergedNote is the UI-facing unit: a note from either source, tagged with
// enough metadata for status indicators.
type MergedNote struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	ImageURL   *string    `json:"imageUrl"`
	IsStarred  bool       `json:"isStarred"`
	IsShared   bool       `json:"isShared"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Tags       []TagRef   `json:"tags"`
	SyncStatus SyncStatus `json:"syncStatus"`
	IsTemp     bool       `json:"isTemp"`
	IsOffline  bool       `json:"isOffline"`
}

// mergedFromRemote converts an authoritative server note.
func mergedFromRemote(rn RemoteNote) MergedNote {
	return MergedNote{
		ID:         rn.ID,
		Title:      rn.Title,
		Content:    rn.Content,
		ImageURL:   rn.ImageURL,
		IsStarred:  rn.IsStarred,
		IsShared:   rn.IsShared,
		CreatedAt:  rn.CreatedAt,
		UpdatedAt:  rn.UpdatedAt,
		Tags:       rn.Tags,
		SyncStatus: StatusSynced,
		IsTemp:     false,
		IsOffline:  false,
	}
}

// mergedFromLocal converts a locally persisted note. Tag names get temp tag
// identities since local storage knows nothing of the remote tag table.
func mergedFromLocal(ln LocalNote) MergedNote {
	tags := make([]TagRef, 0, len(ln.Tags))
	for _, name := range ln.Tags {
		tags = append(tags, TagRef{Tag: Tag{ID: tempIDPrefix + name, Name: name}})
	}
	return MergedNote{
		ID:         ln.ID,
		Title:      ln.Title,
		Content:    ln.Content,
		ImageURL:   ln.ImageURL,
		IsStarred:  ln.IsStarred,
		IsShared:   ln.IsShared,
		CreatedAt:  ln.CreatedAt,
		UpdatedAt:  ln.UpdatedAt,
		Tags:       tags,
		SyncStatus: ln.SyncStatus,
		IsTemp:     ln.SyncStatus != StatusSynced,
		IsOffline:  true,
	}
}

// CreateResult reports how an optimistic create resolved.
type CreateResult struct {
	Success bool       `json:"success"` // True when the immediate remote attempt landed
	Offline bool       `json:"offline"` // True when the note is persisted offline-pending
	Note    MergedNote `json:"note"`
}

// OpResult reports an update or delete outcome to the UI.
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NoteState mediates between immediate user intent and eventual remote
// consistency.
type NoteState struct {
	mu    sync.Mutex
	notes []MergedNote

	store   NoteStore
	remote  RemoteStore
	monitor *NetMonitor
	bus     *Bus
	unsub   func()
}

// noteStateInstance is the package-level singleton for UI-facing handlers.
var noteStateInstance *NoteState

// GetNoteState returns the package-level note state, or nil when unwired.
func GetNoteState() *NoteState {
	return noteStateInstance
}

// NewNoteState wires the state to its collaborators and subscribes to
// sync notifications so reconciled notes swap to their server identity.
func NewNoteState(store NoteStore, remote RemoteStore, monitor *NetMonitor, bus *Bus) *NoteState {
	ns := &NoteState{
		store:   store,
		remote:  remote,
		monitor: monitor,
		bus:     bus,
	}

	ns.unsub = bus.Subscribe(EventNoteSynced, func(ev Event) {
		// Drop the reconciled optimistic entry, then pull the server truth
		ns.mu.Lock()
		ns.notes = removeByID(ns.notes, ev.NoteID)
		ns.mu.Unlock()

		if err := ns.RefreshNotes(context.Background()); err != nil {
			logger.LogErr(err, "refresh after note-synced failed", "note_id", ev.NoteID)
		}
	})

	noteStateInstance = ns
	return ns
}

// Close unsubscribes the state from the event bus.
func (ns *NoteState) Close() {
	if ns.unsub != nil {
		ns.unsub()
	}
}

// Notes returns a snapshot of the visible list, newest first.
func (ns *NoteState) Notes() []MergedNote {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := make([]MergedNote, len(ns.notes))
	copy(out, ns.notes)
	return out
}

// NotesByTag filters the snapshot down to notes carrying the named tag.
func (ns *NoteState) NotesByTag(tag string) []MergedNote {
	if tag == "" {
		return ns.Notes()
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := make([]MergedNote, 0, len(ns.notes))
	for _, n := range ns.notes {
		for _, ref := range n.Tags {
			if ref.Tag.Name == tag {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// OfflineCount reports how many visible notes are sourced from local
// storage, for the aggregate status indicator.
func (ns *NoteState) OfflineCount() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	count := 0
	for _, n := range ns.notes {
		if n.IsOffline {
			count++
		}
	}
	return count
}

// StatusCounts breaks the visible list down by sync status.
func (ns *NoteState) StatusCounts() map[SyncStatus]int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	counts := make(map[SyncStatus]int)
	for _, n := range ns.notes {
		counts[n.SyncStatus]++
	}
	return counts
}

// Load builds the initial merged view. A remote failure here is not fatal:
// the application starts from local storage alone and reconciles later.
func (ns *NoteState) Load(ctx context.Context) error {
	serverNotes, err := ns.remote.ListNotes(ctx, "")
	if err != nil {
		logger.LogErr(err, "initial note fetch failed, starting from local storage")
		serverNotes = nil
	}
	return ns.rebuild(serverNotes)
}

// RefreshNotes fetches the authoritative remote set and re-runs the merge
// against current local-storage contents, replacing the visible list.
func (ns *NoteState) RefreshNotes(ctx context.Context) error {
	serverNotes, err := ns.remote.ListNotes(ctx, "")
	if err != nil {
		return serr.Wrap(err, "failed to fetch notes for refresh")
	}
	return ns.rebuild(serverNotes)
}

// rebuild replaces the visible list with the merge of server and local notes.
func (ns *NoteState) rebuild(serverNotes []RemoteNote) error {
	localNotes, err := ns.store.GetAll()
	if err != nil {
		logger.LogErr(err, "failed to read local notes for merge")
		localNotes = nil
	}

	merged := mergeVisible(serverNotes, localNotes)

	ns.mu.Lock()
	ns.notes = merged
	ns.mu.Unlock()
	return nil
}

// mergeVisible applies the identity merge rule: the remote set is the
// primary source; a local note overrides a remote note with the same id
// while the local copy's status is not synced, and temp ids always come
// from local storage. The result never holds two entries for one id.
func mergeVisible(serverNotes []RemoteNote, localNotes []LocalNote) []MergedNote {
	byID := make(map[string]MergedNote, len(serverNotes)+len(localNotes))

	for _, rn := range serverNotes {
		byID[rn.ID] = mergedFromRemote(rn)
	}

	for _, ln := range localNotes {
		existing, found := byID[ln.ID]
		if IsTempID(ln.ID) || !found || existing.SyncStatus != StatusSynced {
			byID[ln.ID] = mergedFromLocal(ln)
		}
	}

	merged := make([]MergedNote, 0, len(byID))
	for _, n := range byID {
		merged = append(merged, n)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// CreateNote inserts an optimistic entry immediately, then attempts the
// remote create. On failure the note is persisted offline-pending and stays
// visible; the sync engine picks it up from there.
func (ns *NoteState) CreateNote(ctx context.Context, payload NotePayload) CreateResult {
	tempID := NewTempID()
	now := time.Now()
	local := NewLocalNote(tempID, payload, now)
	optimistic := mergedFromLocal(local)

	// Optimistic insert — the UI reflects the note before any network activity
	ns.mu.Lock()
	ns.notes = append([]MergedNote{optimistic}, ns.notes...)
	ns.mu.Unlock()

	created, err := ns.remote.CreateNote(ctx, payload)
	if err == nil {
		confirmed := mergedFromRemote(*created)

		ns.mu.Lock()
		for i := range ns.notes {
			if ns.notes[i].ID == tempID {
				ns.notes[i] = confirmed
				break
			}
		}
		ns.mu.Unlock()

		ns.bus.Publish(Event{Name: EventNoteCreated, NoteID: confirmed.ID})
		return CreateResult{Success: true, Note: confirmed}
	}

	logger.LogErr(err, "remote create failed, persisting note offline", "note_id", tempID)

	if saveErr := ns.store.Save(local); saveErr != nil {
		// Both backends refused: the note lives in memory only and is lost
		// on reload. Accepted, documented risk.
		logger.LogErr(saveErr, "offline persistence failed, note is in-memory only", "note_id", tempID)
	}

	ns.bus.Publish(Event{Name: EventNoteCreated, NoteID: tempID})
	return CreateResult{Success: false, Offline: true, Note: optimistic}
}

// UpdateNote applies the patch to the visible list immediately, then
// attempts the remote update. A failure triggers a full refresh to discard
// the optimistic change — edits have no offline durability, only creates
// and deletes do.
func (ns *NoteState) UpdateNote(ctx context.Context, id string, patch NotePatch) OpResult {
	ns.mu.Lock()
	found := false
	for i := range ns.notes {
		if ns.notes[i].ID == id {
			applyPatch(&ns.notes[i], patch)
			found = true
			break
		}
	}
	ns.mu.Unlock()

	if !found {
		return OpResult{Success: false, Message: "note not found"}
	}

	if _, err := ns.remote.UpdateNote(ctx, id, patch); err != nil {
		logger.LogErr(err, "remote update failed, reverting", "note_id", id)
		if refreshErr := ns.RefreshNotes(ctx); refreshErr != nil {
			logger.LogErr(refreshErr, "revert refresh failed", "note_id", id)
		}
		return OpResult{Success: false, Message: "failed to update note"}
	}

	return OpResult{Success: true}
}

// DeleteNote removes the note from the visible list immediately, then
// branches on its sync status. A rejected deletion restores the entry.
func (ns *NoteState) DeleteNote(ctx context.Context, id string) OpResult {
	ns.mu.Lock()
	var target *MergedNote
	for i := range ns.notes {
		if ns.notes[i].ID == id {
			n := ns.notes[i]
			target = &n
			break
		}
	}
	if target == nil {
		ns.mu.Unlock()
		return OpResult{Success: false, Message: "note not found"}
	}
	ns.notes = removeByID(ns.notes, id)
	ns.mu.Unlock()

	restore := func() {
		ns.mu.Lock()
		ns.notes = append([]MergedNote{*target}, ns.notes...)
		ns.mu.Unlock()
	}

	switch target.SyncStatus {
	case StatusPending, StatusFailed:
		if err := ns.store.DeleteWithPolicy(id); err != nil {
			// A note that never reached either store lives only in this
			// list, so an absent record is already deleted
			if errors.Is(err, ErrNoteNotFound) {
				return OpResult{Success: true, Message: "note deleted locally"}
			}
			logger.LogErr(err, "local delete failed", "note_id", id)
			restore()
			return OpResult{Success: false, Message: err.Error()}
		}
		return OpResult{Success: true, Message: "note deleted locally"}

	case StatusSynced:
		if err := ns.remote.DeleteNote(ctx, id); err != nil {
			logger.LogErr(err, "remote delete failed", "note_id", id)
			restore()
			return OpResult{Success: false, Message: "failed to delete note"}
		}
		if err := ns.RefreshNotes(ctx); err != nil {
			logger.LogErr(err, "refresh after delete failed", "note_id", id)
		}
		return OpResult{Success: true, Message: "note deleted from server"}

	case StatusSyncing:
		restore()
		return OpResult{Success: false, Message: "cannot delete note while syncing"}

	default:
		restore()
		return OpResult{Success: false, Message: "unknown sync status: " + string(target.SyncStatus)}
	}
}

// applyPatch copies the set fields of patch onto the note.
func applyPatch(n *MergedNote, patch NotePatch) {
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
	if patch.ImageURL != nil {
		n.ImageURL = patch.ImageURL
	}
	if patch.IsStarred != nil {
		n.IsStarred = *patch.IsStarred
	}
	if patch.IsShared != nil {
		n.IsShared = *patch.IsShared
	}
	if patch.Tags != nil {
		tags := make([]TagRef, 0, len(patch.Tags))
		for _, name := range patch.Tags {
			tags = append(tags, TagRef{Tag: Tag{ID: tempIDPrefix + name, Name: name}})
		}
		n.Tags = tags
	}
	n.UpdatedAt = time.Now()
}

// removeByID filters one id out of a merged list.
func removeByID(notes []MergedNote, id string) []MergedNote {
	kept := make([]MergedNote, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	return kept
}
