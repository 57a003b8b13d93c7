// Package offline renders the offline notes manager: the page where stuck
// notes can be retried or deleted, with an aggregate sync status readout.
package offline

import (
	"fmt"

	"quillnotes/models"

	"github.com/rohanthewiz/element"
)

// Page is the offline notes manager, rendered server-side from the current
// store contents and engine status.
type Page struct {
	Title   string
	Status  *models.SyncEngineStatus
	Notes   []models.LocalNote
	Offline int
}

// NewPage assembles the manager page data.
func NewPage(status *models.SyncEngineStatus, notes []models.LocalNote) Page {
	return Page{
		Title:   "QuillNotes - Offline Notes",
		Status:  status,
		Notes:   notes,
		Offline: len(notes),
	}
}

// Render generates the complete HTML for the manager page.
func (p Page) Render() string {
	b := element.NewBuilder()

	b.Html("lang", "en").R(
		p.renderHead(b),
		p.renderBody(b),
	)

	return b.String()
}

func (p Page) renderHead(b *element.Builder) any {
	return b.Head().R(
		b.Meta("charset", "UTF-8"),
		b.Meta("name", "viewport", "content", "width=device-width, initial-scale=1.0"),
		b.Title().T(p.Title),
		b.Link("rel", "stylesheet", "href", "/static/css/app.css"),
		b.Script("src", "/static/js/manager.js", "defer", "defer").R(),
	)
}

func (p Page) renderBody(b *element.Builder) any {
	return b.Body("class", "offline-manager").R(
		b.Header("class", "manager-header").R(
			b.H1().T("Offline Notes"),
			element.RenderComponents(b, StatusIndicator{Status: p.Status, Offline: p.Offline}),
		),
		p.renderNotes(b),
		b.Div("class", "manager-actions").R(
			b.Button("class", "btn-sync-now", "data-action", "sync-now").T("Sync Now"),
			b.Button("class", "btn-clear-all", "data-action", "clear-all").T("Clear All"),
		),
	)
}

func (p Page) renderNotes(b *element.Builder) any {
	if len(p.Notes) == 0 {
		return b.Div("class", "empty-state").R(
			b.P().T("No offline notes. Everything is synced."),
		)
	}

	return b.Ul("class", "offline-note-list").R(
		func() any {
			for _, note := range p.Notes {
				b.Li("class", "offline-note", "data-note-id", note.ID).R(
					b.Div("class", "note-title").T(note.Title),
					b.Div("class", "note-meta").R(
						b.Span("class", "badge badge-"+string(note.SyncStatus)).T(string(note.SyncStatus)),
						b.Span("class", "retry-count").T(fmt.Sprintf("attempts: %d", note.RetryCount)),
					),
					b.Div("class", "note-actions").R(
						noteActions(b, note),
					),
				)
			}
			return nil
		}(),
	)
}

// noteActions renders the per-note buttons. Retry appears only for failed
// notes; deletion is withheld while an attempt is in flight.
func noteActions(b *element.Builder, note models.LocalNote) any {
	if note.SyncStatus == models.StatusFailed {
		b.Button("class", "btn-retry", "data-action", "retry", "data-note-id", note.ID).T("Retry")
	}
	if note.SyncStatus != models.StatusSyncing {
		b.Button("class", "btn-delete", "data-action", "delete", "data-note-id", note.ID).T("Delete")
	}
	return nil
}

// StatusIndicator is the compact sync status readout shared with the
// main notes view.
type StatusIndicator struct {
	Status  *models.SyncEngineStatus
	Offline int
}

// Render implements the element.Component interface
func (si StatusIndicator) Render(b *element.Builder) any {
	cls, label := si.classify()

	b.Div("class", "sync-status "+cls, "id", "sync-status").R(
		b.Span("id", "sync-status-text").T(label),
		b.Span("class", "offline-count", "id", "offline-count").T(fmt.Sprintf("%d offline", si.Offline)),
	)
	return nil
}

// classify maps engine state to the indicator's css class and label.
func (si StatusIndicator) classify() (cls, label string) {
	switch {
	case si.Status == nil || !si.Status.Enabled:
		return "disabled", "Sync off"
	case !si.Status.Online:
		return "offline", "Offline"
	case si.Status.InProgress:
		return "syncing", "Syncing..."
	case si.Offline > 0:
		return "pending", "Pending sync"
	default:
		return "synced", "All synced"
	}
}
