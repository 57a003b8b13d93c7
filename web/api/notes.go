package api

import (
	"context"
	"encoding/json"
	"net/http"

	"quillnotes/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Notes API
//
// These endpoints are the UI-consumer contract over the optimistic note
// state: every mutation resolves immediately against the visible list and
// the offline machinery handles the rest. Errors from the remote store are
// never surfaced raw — callers see status-tagged results.
// ============================================================================

// ListNotes handles GET /api/v1/notes
// Returns the merged visible list, newest first, optionally filtered by ?tag=.
func ListNotes(ctx rweb.Context) error {
	state := models.GetNoteState()
	if state == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "note state is not configured")
	}

	if tag := ctx.Request().QueryParam("tag"); tag != "" {
		return writeSuccess(ctx, http.StatusOK, state.NotesByTag(tag))
	}
	return writeSuccess(ctx, http.StatusOK, state.Notes())
}

// CreateNote handles POST /api/v1/notes
// Applies an optimistic create; the response reports whether the note
// landed remotely or is persisted offline-pending.
func CreateNote(ctx rweb.Context) error {
	state := models.GetNoteState()
	if state == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "note state is not configured")
	}

	var payload models.NotePayload
	if err := json.Unmarshal(ctx.Request().Body(), &payload); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to decode request body"), "invalid JSON")
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}
	if payload.Title == "" {
		return writeError(ctx, http.StatusBadRequest, "title is required")
	}

	result := state.CreateNote(context.Background(), payload)

	status := http.StatusCreated
	if result.Offline {
		// Created locally; remote identity comes later via sync
		status = http.StatusAccepted
	}
	return writeSuccess(ctx, status, result)
}

// UpdateNote handles PUT /api/v1/notes/:id
// Applies an optimistic patch; a remote failure reverts the visible list.
func UpdateNote(ctx rweb.Context) error {
	state := models.GetNoteState()
	if state == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "note state is not configured")
	}

	id := ctx.Request().Param("id")
	if id == "" {
		return writeError(ctx, http.StatusBadRequest, "note id is required")
	}

	var patch models.NotePatch
	if err := json.Unmarshal(ctx.Request().Body(), &patch); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	result := state.UpdateNote(context.Background(), id, patch)
	if !result.Success {
		if result.Message == "note not found" {
			return writeError(ctx, http.StatusNotFound, result.Message)
		}
		return writeError(ctx, http.StatusBadGateway, result.Message)
	}
	return writeSuccess(ctx, http.StatusOK, result)
}

// DeleteNote handles DELETE /api/v1/notes/:id
// Branches on the note's sync status; a rejected deletion restores the note.
func DeleteNote(ctx rweb.Context) error {
	state := models.GetNoteState()
	if state == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "note state is not configured")
	}

	id := ctx.Request().Param("id")
	if id == "" {
		return writeError(ctx, http.StatusBadRequest, "note id is required")
	}

	result := state.DeleteNote(context.Background(), id)
	if !result.Success {
		switch result.Message {
		case "note not found":
			return writeError(ctx, http.StatusNotFound, result.Message)
		case "cannot delete note while syncing":
			return writeError(ctx, http.StatusConflict, result.Message)
		default:
			return writeError(ctx, http.StatusBadGateway, result.Message)
		}
	}
	return writeSuccess(ctx, http.StatusOK, result)
}

// RefreshNotes handles POST /api/v1/notes/refresh
// Re-fetches the authoritative remote set and re-merges local storage.
func RefreshNotes(ctx rweb.Context) error {
	state := models.GetNoteState()
	if state == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "note state is not configured")
	}

	if err := state.RefreshNotes(context.Background()); err != nil {
		logger.LogErr(err, "manual refresh failed")
		return writeError(ctx, http.StatusBadGateway, "failed to refresh notes")
	}
	return writeSuccess(ctx, http.StatusOK, state.Notes())
}
