package models_test

import (
	"context"
	"testing"
	"time"

	"quillnotes/models"
)

// newTestNoteState wires a note state over a flat store and a fake remote.
func newTestNoteState(t *testing.T, remote *fakeRemote) (*models.NoteState, models.NoteStore, *models.Bus) {
	t.Helper()

	store := models.NewFlatStore(t.TempDir())
	bus := models.NewBus()
	monitor := models.NewNetMonitor(true)

	ns := models.NewNoteState(store, remote, monitor, bus)
	t.Cleanup(ns.Close)
	return ns, store, bus
}

func remoteNote(id, title string, createdAt time.Time) models.RemoteNote {
	return models.RemoteNote{
		ID:        id,
		Title:     title,
		Content:   "body of " + title,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestNoteStateLoadMerge(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{listed: []models.RemoteNote{
		remoteNote("srv-1", "Server newest", now),
		remoteNote("srv-2", "Server older", now.Add(-time.Hour)),
	}}
	ns, store, _ := newTestNoteState(t, remote)

	// A local pending note sits between the two server notes by age
	if err := store.Save(makeTestNote("temp-m1", "Local draft", now.Add(-time.Minute))); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	notes := ns.Notes()
	if len(notes) != 3 {
		t.Fatalf("expected 3 merged notes, got %d", len(notes))
	}

	// Newest first
	if notes[0].ID != "srv-1" || notes[1].ID != "temp-m1" || notes[2].ID != "srv-2" {
		t.Errorf("merge order wrong: %s, %s, %s", notes[0].ID, notes[1].ID, notes[2].ID)
	}

	// Source tagging
	if notes[0].IsOffline || notes[0].SyncStatus != models.StatusSynced {
		t.Errorf("server note mistagged: %+v", notes[0])
	}
	if !notes[1].IsOffline || !notes[1].IsTemp || notes[1].SyncStatus != models.StatusPending {
		t.Errorf("local note mistagged: %+v", notes[1])
	}
	if ns.OfflineCount() != 1 {
		t.Errorf("expected offline count 1, got %d", ns.OfflineCount())
	}
}

// TestNoteStateLoadOfflineStart verifies a dead remote still yields the
// local notes instead of an error
func TestNoteStateLoadOfflineStart(t *testing.T) {
	remote := &fakeRemote{failList: true}
	ns, store, _ := newTestNoteState(t, remote)

	if err := store.Save(makeTestNote("temp-m2", "Survives restart", time.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("offline load should not error: %v", err)
	}
	notes := ns.Notes()
	if len(notes) != 1 || notes[0].ID != "temp-m2" {
		t.Fatalf("expected the persisted local note, got %+v", notes)
	}
}

func TestCreateNoteOnline(t *testing.T) {
	remote := &fakeRemote{}
	ns, store, bus := newTestNoteState(t, remote)

	var createdIDs []string
	bus.Subscribe(models.EventNoteCreated, func(ev models.Event) {
		createdIDs = append(createdIDs, ev.NoteID)
	})

	result := ns.CreateNote(context.Background(), models.NotePayload{Title: "Instant"})
	if !result.Success || result.Offline {
		t.Fatalf("expected online success, got %+v", result)
	}
	if models.IsTempID(result.Note.ID) {
		t.Errorf("confirmed note should carry the server id, got %s", result.Note.ID)
	}

	// The visible entry is the server copy, and nothing hit local storage
	notes := ns.Notes()
	if len(notes) != 1 || notes[0].ID != result.Note.ID || notes[0].SyncStatus != models.StatusSynced {
		t.Errorf("visible list wrong after online create: %+v", notes)
	}
	all, _ := store.GetAll()
	if len(all) != 0 {
		t.Errorf("online create should not persist locally, found %d records", len(all))
	}
	if len(createdIDs) != 1 || createdIDs[0] != result.Note.ID {
		t.Errorf("expected one noteCreated event with the server id, got %v", createdIDs)
	}
}

func TestCreateNoteOffline(t *testing.T) {
	remote := &fakeRemote{failCreate: true}
	ns, store, _ := newTestNoteState(t, remote)

	result := ns.CreateNote(context.Background(), models.NotePayload{Title: "Queued"})
	if result.Success || !result.Offline {
		t.Fatalf("expected offline result, got %+v", result)
	}
	if !models.IsTempID(result.Note.ID) {
		t.Errorf("offline note should carry a temp id, got %s", result.Note.ID)
	}

	// Visible immediately, and persisted pending for the engine
	notes := ns.Notes()
	if len(notes) != 1 || notes[0].ID != result.Note.ID || !notes[0].IsTemp {
		t.Errorf("visible list wrong after offline create: %+v", notes)
	}
	persisted, _ := store.GetOne(result.Note.ID)
	if persisted == nil {
		t.Fatal("offline note not persisted")
	}
	if persisted.SyncStatus != models.StatusPending || persisted.RetryCount != 0 {
		t.Errorf("persisted note should be pending/0, got %s/%d",
			persisted.SyncStatus, persisted.RetryCount)
	}
}

// TestSyncedEventSwapsIdentity verifies the temp entry is replaced by the
// server copy once the engine reconciles it
func TestSyncedEventSwapsIdentity(t *testing.T) {
	remote := &fakeRemote{failCreate: true}
	ns, store, bus := newTestNoteState(t, remote)

	result := ns.CreateNote(context.Background(), models.NotePayload{Title: "Eventually"})
	tempID := result.Note.ID

	// The engine syncs the note: record evicted, server now lists it
	remote.mu.Lock()
	remote.failCreate = false
	remote.listed = []models.RemoteNote{remoteNote("srv-9", "Eventually", time.Now())}
	remote.mu.Unlock()
	if err := store.Remove(tempID); err != nil {
		t.Fatalf("evict failed: %v", err)
	}

	bus.Publish(models.Event{Name: models.EventNoteSynced, NoteID: tempID})

	notes := ns.Notes()
	if len(notes) != 1 {
		t.Fatalf("expected 1 note after identity swap, got %d", len(notes))
	}
	if notes[0].ID != "srv-9" || notes[0].SyncStatus != models.StatusSynced || notes[0].IsTemp {
		t.Errorf("temp entry not swapped to server identity: %+v", notes[0])
	}
}

func TestUpdateNoteRevertsOnFailure(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{listed: []models.RemoteNote{remoteNote("srv-1", "Original", now)}}
	ns, _, _ := newTestNoteState(t, remote)

	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Unknown id
	title := "Edited"
	if res := ns.UpdateNote(context.Background(), "srv-nope", models.NotePatch{Title: &title}); res.Success {
		t.Error("update of unknown note should fail")
	}

	// The remote rejects: the optimistic edit must revert to server truth
	remote.mu.Lock()
	remote.failUpdate = true
	remote.mu.Unlock()

	res := ns.UpdateNote(context.Background(), "srv-1", models.NotePatch{Title: &title})
	if res.Success {
		t.Fatal("update should report the remote failure")
	}
	notes := ns.Notes()
	if notes[0].Title != "Original" {
		t.Errorf("optimistic edit not reverted, title %q", notes[0].Title)
	}

	// The remote accepts: the edit sticks
	remote.mu.Lock()
	remote.failUpdate = false
	remote.mu.Unlock()

	res = ns.UpdateNote(context.Background(), "srv-1", models.NotePatch{Title: &title})
	if !res.Success {
		t.Fatalf("update failed: %+v", res)
	}
	if ns.Notes()[0].Title != "Edited" {
		t.Errorf("edit did not stick, title %q", ns.Notes()[0].Title)
	}
}

func TestDeleteNotePolicies(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{listed: []models.RemoteNote{remoteNote("srv-1", "On server", now)}}
	ns, store, _ := newTestNoteState(t, remote)

	// Local pending note
	if err := store.Save(makeTestNote("temp-m3", "Pending local", now.Add(-time.Minute))); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	// Local note mid-flight
	if err := store.Save(makeTestNote("temp-m4", "In flight", now.Add(-2*time.Minute))); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.UpdateStatus("temp-m4", models.StatusSyncing); err != nil {
		t.Fatalf("mark syncing failed: %v", err)
	}

	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(ns.Notes()) != 3 {
		t.Fatalf("expected 3 visible notes, got %d", len(ns.Notes()))
	}

	// Pending: local delete, gone everywhere
	if res := ns.DeleteNote(context.Background(), "temp-m3"); !res.Success {
		t.Fatalf("pending delete failed: %+v", res)
	}
	if got, _ := store.GetOne("temp-m3"); got != nil {
		t.Error("pending note still persisted after delete")
	}

	// Syncing: rejected and restored to the visible list
	res := ns.DeleteNote(context.Background(), "temp-m4")
	if res.Success {
		t.Fatal("delete of a syncing note should be rejected")
	}
	if res.Message != "cannot delete note while syncing" {
		t.Errorf("unexpected rejection message: %q", res.Message)
	}
	found := false
	for _, n := range ns.Notes() {
		if n.ID == "temp-m4" {
			found = true
		}
	}
	if !found {
		t.Error("rejected delete did not restore the visible entry")
	}

	// Synced: server delete path
	remote.mu.Lock()
	remote.listed = nil
	remote.mu.Unlock()
	if res := ns.DeleteNote(context.Background(), "srv-1"); !res.Success {
		t.Fatalf("server delete failed: %+v", res)
	}

	// Unknown id
	if res := ns.DeleteNote(context.Background(), "srv-ghost"); res.Success {
		t.Error("delete of unknown note should fail")
	}
}

// saveFailStore accepts reads but rejects writes, standing in for a store
// that stopped taking saves mid-session.
type saveFailStore struct {
	models.NoteStore
}

func (saveFailStore) Save(models.LocalNote) error { return errStoreDown }

// TestDeleteNoteMemoryOnly verifies a note that never reached any store can
// still be deleted from the visible list
func TestDeleteNoteMemoryOnly(t *testing.T) {
	remote := &fakeRemote{failCreate: true}
	store := saveFailStore{models.NewFlatStore(t.TempDir())}
	bus := models.NewBus()
	monitor := models.NewNetMonitor(true)

	ns := models.NewNoteState(store, remote, monitor, bus)
	t.Cleanup(ns.Close)

	// Remote down and store rejecting writes: the note exists in memory only
	result := ns.CreateNote(context.Background(), models.NotePayload{Title: "Ephemeral"})
	if result.Success {
		t.Fatalf("create should report the remote failure, got %+v", result)
	}
	id := result.Note.ID
	if len(ns.Notes()) != 1 {
		t.Fatalf("expected the note to stay visible, got %d notes", len(ns.Notes()))
	}

	del := ns.DeleteNote(context.Background(), id)
	if !del.Success {
		t.Fatalf("memory-only note should delete: %+v", del)
	}
	if len(ns.Notes()) != 0 {
		t.Errorf("deleted note still visible: %+v", ns.Notes())
	}
}

func TestNotesByTag(t *testing.T) {
	now := time.Now()
	tagged := remoteNote("srv-1", "Tagged", now)
	tagged.Tags = []models.TagRef{{Tag: models.Tag{ID: "t1", Name: "work"}}}
	remote := &fakeRemote{listed: []models.RemoteNote{tagged, remoteNote("srv-2", "Plain", now.Add(-time.Minute))}}
	ns, store, _ := newTestNoteState(t, remote)

	local := makeTestNote("temp-m7", "Local tagged", now.Add(-2*time.Minute))
	local.Tags = []string{"work", "drafts"}
	if err := store.Save(local); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	work := ns.NotesByTag("work")
	if len(work) != 2 {
		t.Fatalf("expected 2 notes tagged work, got %d", len(work))
	}
	if work[0].ID != "srv-1" || work[1].ID != "temp-m7" {
		t.Errorf("unexpected tagged set: %s, %s", work[0].ID, work[1].ID)
	}

	if got := ns.NotesByTag("nothing"); len(got) != 0 {
		t.Errorf("expected no notes for unknown tag, got %d", len(got))
	}
	if got := ns.NotesByTag(""); len(got) != 3 {
		t.Errorf("empty tag should return everything, got %d", len(got))
	}
}

func TestStatusCounts(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{listed: []models.RemoteNote{remoteNote("srv-1", "Synced", now)}}
	ns, store, _ := newTestNoteState(t, remote)

	if err := store.Save(makeTestNote("temp-m5", "One", now.Add(-time.Minute))); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(makeTestNote("temp-m6", "Two", now.Add(-2*time.Minute))); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := ns.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	counts := ns.StatusCounts()
	if counts[models.StatusSynced] != 1 || counts[models.StatusPending] != 2 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
