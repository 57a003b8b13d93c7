package models_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quillnotes/models"
)

// newRemoteAPIServer stands up a minimal in-memory note API
func newRemoteAPIServer(t *testing.T) (*httptest.Server, *map[string]models.RemoteNote) {
	t.Helper()

	notes := map[string]models.RemoteNote{}
	nextID := 0

	mux := http.NewServeMux()
	mux.HandleFunc("POST /notes", func(w http.ResponseWriter, r *http.Request) {
		var payload models.NotePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		nextID++
		note := models.RemoteNote{
			ID:        "srv-" + string(rune('a'+nextID)),
			Title:     payload.Title,
			Content:   payload.Content,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		notes[note.ID] = note
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(note)
	})
	mux.HandleFunc("GET /notes", func(w http.ResponseWriter, r *http.Request) {
		out := make([]models.RemoteNote, 0, len(notes))
		for _, n := range notes {
			out = append(out, n)
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("PUT /notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		note, ok := notes[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var patch models.NotePatch
		json.NewDecoder(r.Body).Decode(&patch)
		if patch.Title != nil {
			note.Title = *patch.Title
		}
		notes[id] = note
		json.NewEncoder(w).Encode(note)
	})
	mux.HandleFunc("DELETE /notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := notes[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(notes, id)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &notes
}

func TestHTTPRemoteStoreCRUD(t *testing.T) {
	srv, notes := newRemoteAPIServer(t)
	store := models.NewHTTPRemoteStore(srv.URL)
	ctx := context.Background()

	created, err := store.CreateNote(ctx, models.NotePayload{Title: "Hello", Content: "world"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" || created.Title != "Hello" {
		t.Fatalf("unexpected created note: %+v", created)
	}

	listed, err := store.ListNotes(ctx, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	newTitle := "Hello again"
	updated, err := store.UpdateNote(ctx, created.ID, models.NotePatch{Title: &newTitle})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("update did not take: %s", updated.Title)
	}

	if err := store.DeleteNote(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(*notes) != 0 {
		t.Error("delete did not reach the server")
	}
}

// TestHTTPRemoteStoreErrors verifies non-2xx responses surface as errors
func TestHTTPRemoteStoreErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	store := models.NewHTTPRemoteStore(srv.URL)
	ctx := context.Background()

	if _, err := store.CreateNote(ctx, models.NotePayload{Title: "x"}); err == nil {
		t.Error("expected error on 500 create")
	}
	if _, err := store.ListNotes(ctx, ""); err == nil {
		t.Error("expected error on 500 list")
	}
	if _, err := store.UpdateNote(ctx, "srv-1", models.NotePatch{}); err == nil {
		t.Error("expected error on 500 update")
	}
	if err := store.DeleteNote(ctx, "srv-1"); err == nil {
		t.Error("expected error on 500 delete")
	}
}

// TestHTTPRemoteStoreUnreachable verifies transport failures surface as errors
func TestHTTPRemoteStoreUnreachable(t *testing.T) {
	store := models.NewHTTPRemoteStore("http://127.0.0.1:1")
	if _, err := store.CreateNote(context.Background(), models.NotePayload{Title: "x"}); err == nil {
		t.Error("expected error for unreachable host")
	}
}
