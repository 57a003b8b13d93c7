package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"quillnotes/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// ============================================================================
// Offline Manager API
//
// Powers the offline notes manager and the sync status indicator: an
// aggregate counter, per-note listing, manual retry of stuck notes,
// policy-gated deletion, and the "Sync Now" button.
// ============================================================================

// OfflineStatus is the aggregate view the status indicator renders.
type OfflineStatus struct {
	Engine  *models.SyncEngineStatus  `json:"engine"`
	Counts  map[models.SyncStatus]int `json:"counts"`
	Offline int                       `json:"offline_total"`
}

// GetOfflineStatus handles GET /api/v1/offline/status
// If sync is not configured, returns a disabled state rather than an error
// so the UI can render gracefully.
func GetOfflineStatus(ctx rweb.Context) error {
	status := OfflineStatus{Counts: map[models.SyncStatus]int{}}

	if engine := models.GetSyncEngine(); engine != nil {
		status.Engine = engine.GetStatus()
	} else {
		status.Engine = &models.SyncEngineStatus{Enabled: false}
	}

	if state := models.GetNoteState(); state != nil {
		status.Counts = state.StatusCounts()
		status.Offline = state.OfflineCount()
	}

	return writeSuccess(ctx, http.StatusOK, status)
}

// ListOfflineNotes handles GET /api/v1/offline/notes
// Returns every persisted local record for the manager dialog.
func ListOfflineNotes(ctx rweb.Context) error {
	store := models.GetActiveStore()
	if store == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "offline store is not configured")
	}

	notes, err := store.GetAll()
	if err != nil {
		logger.LogErr(err, "failed to list offline notes")
		return writeError(ctx, http.StatusInternalServerError, "failed to list offline notes")
	}
	return writeSuccess(ctx, http.StatusOK, notes)
}

// SyncNow handles POST /api/v1/offline/sync
// Runs a manual sweep and reports the aggregate outcome.
func SyncNow(ctx rweb.Context) error {
	engine := models.GetSyncEngine()
	if engine == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync is not configured")
	}

	result, err := engine.SyncAll(context.Background())
	if err != nil {
		logger.LogErr(err, "manual sync sweep failed")
		return writeError(ctx, http.StatusInternalServerError, "sync sweep failed")
	}
	return writeSuccess(ctx, http.StatusOK, result)
}

// RetryOfflineNote handles POST /api/v1/offline/notes/:id/retry
// Re-queues a failed note and attempts it immediately.
func RetryOfflineNote(ctx rweb.Context) error {
	engine := models.GetSyncEngine()
	if engine == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync is not configured")
	}

	id := ctx.Request().Param("id")
	if err := engine.RetryNote(context.Background(), id); err != nil {
		if errors.Is(err, models.ErrNoteNotFound) {
			return writeError(ctx, http.StatusNotFound, "offline note not found")
		}
		return writeError(ctx, http.StatusConflict, err.Error())
	}
	return writeSuccess(ctx, http.StatusOK, map[string]string{"status": "synced"})
}

// DeleteOfflineNote handles DELETE /api/v1/offline/notes/:id
// Applies the status-gated deletion policy to one local record.
func DeleteOfflineNote(ctx rweb.Context) error {
	store := models.GetActiveStore()
	if store == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "offline store is not configured")
	}

	id := ctx.Request().Param("id")
	err := store.DeleteWithPolicy(id)
	switch {
	case err == nil:
		return writeSuccess(ctx, http.StatusOK, map[string]string{"status": "deleted"})
	case errors.Is(err, models.ErrNoteNotFound):
		return writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDeleteWhileSync), errors.Is(err, models.ErrDeleteSyncedNote):
		return writeError(ctx, http.StatusConflict, err.Error())
	default:
		logger.LogErr(err, "offline delete failed", "note_id", id)
		return writeError(ctx, http.StatusInternalServerError, "failed to delete offline note")
	}
}

// ClearOfflineNotes handles DELETE /api/v1/offline/notes
// Bulk cleanup from the manager dialog.
func ClearOfflineNotes(ctx rweb.Context) error {
	store := models.GetActiveStore()
	if store == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "offline store is not configured")
	}

	if err := store.Clear(); err != nil {
		logger.LogErr(err, "failed to clear offline notes")
		return writeError(ctx, http.StatusInternalServerError, "failed to clear offline notes")
	}
	return writeSuccess(ctx, http.StatusOK, map[string]string{"status": "cleared"})
}

// SetConnectivity handles POST /api/v1/offline/connectivity
// The platform integration point for reporting connectivity transitions.
// Request body: {"online": true} or {"online": false}
func SetConnectivity(ctx rweb.Context) error {
	engine := models.GetSyncEngine()
	if engine == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync is not configured")
	}

	var req struct {
		Online bool `json:"online"`
	}
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	engine.Monitor().SetOnline(req.Online)
	return writeSuccess(ctx, http.StatusOK, map[string]bool{"online": req.Online})
}
