package web

import (
	"quillnotes/models"
	"quillnotes/web/api"
	"quillnotes/web/pages/offline"

	"github.com/rohanthewiz/rweb"
)

// setupRoutes configures all application routes
func setupRoutes(s *rweb.Server) {
	// Page routes - HTML responses

	s.Get("/offline", func(ctx rweb.Context) error {
		ctx.Response().SetHeader("Content-Type", "text/html; charset=utf-8")

		var status *models.SyncEngineStatus
		if engine := models.GetSyncEngine(); engine != nil {
			status = engine.GetStatus()
		}

		var notes []models.LocalNote
		if store := models.GetActiveStore(); store != nil {
			if all, err := store.GetAll(); err == nil {
				notes = all
			}
		}

		return ctx.WriteHTML(offline.NewPage(status, notes).Render())
	})

	// API v1 routes - JSON responses

	// Notes CRUD against the merged optimistic view
	s.Post("/api/v1/notes", api.CreateNote)
	s.Get("/api/v1/notes", api.ListNotes)
	s.Put("/api/v1/notes/:id", api.UpdateNote)
	s.Delete("/api/v1/notes/:id", api.DeleteNote)
	s.Post("/api/v1/notes/refresh", api.RefreshNotes)

	// Offline manager endpoints
	s.Get("/api/v1/offline/status", api.GetOfflineStatus)
	s.Get("/api/v1/offline/notes", api.ListOfflineNotes)
	s.Post("/api/v1/offline/sync", api.SyncNow)
	s.Post("/api/v1/offline/notes/:id/retry", api.RetryOfflineNote)
	s.Delete("/api/v1/offline/notes/:id", api.DeleteOfflineNote)
	s.Delete("/api/v1/offline/notes", api.ClearOfflineNotes)
	s.Post("/api/v1/offline/connectivity", api.SetConnectivity)
}
