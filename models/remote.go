package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Remote Note Store
//
// The remote API is a black box with create/read/update/delete operations.
// Network errors, non-2xx responses and serialization errors are all one
// generic sync failure — the engine retries them identically.
// ============================================================================

// Tag is a normalized tag entity as the remote store returns it.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TagRef wraps a tag the way the remote note payload nests it.
type TagRef struct {
	Tag Tag `json:"tag"`
}

// RemoteNote is a note as the remote store represents it, including the
// server-assigned id and normalized tag objects.
type RemoteNote struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"imageUrl"`
	IsStarred bool      `json:"isStarred"`
	IsShared  bool      `json:"isShared"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Tags      []TagRef  `json:"tags"`
}

// NotePatch carries a partial update; nil fields are left unchanged.
type NotePatch struct {
	Title     *string  `json:"title,omitempty"`
	Content   *string  `json:"content,omitempty"`
	ImageURL  *string  `json:"imageUrl,omitempty"`
	IsStarred *bool    `json:"isStarred,omitempty"`
	IsShared  *bool    `json:"isShared,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// RemoteStore is the consumed surface of the remote note API.
type RemoteStore interface {
	CreateNote(ctx context.Context, payload NotePayload) (*RemoteNote, error)
	ListNotes(ctx context.Context, tag string) ([]RemoteNote, error)
	UpdateNote(ctx context.Context, id string, patch NotePatch) (*RemoteNote, error)
	DeleteNote(ctx context.Context, id string) error
}

// HTTPRemoteStore talks to the remote note API over HTTP.
type HTTPRemoteStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRemoteStore creates a client for the API rooted at baseURL
// (e.g. "https://api.example.com"). Timeout is delegated to the transport.
func NewHTTPRemoteStore(baseURL string) *HTTPRemoteStore {
	return &HTTPRemoteStore{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateNote posts the full note payload and returns the created note with
// its server-assigned identity.
func (rs *HTTPRemoteStore) CreateNote(ctx context.Context, payload NotePayload) (*RemoteNote, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, serr.Wrap(err, "failed to marshal create request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rs.baseURL+"/notes", bytes.NewReader(body))
	if err != nil {
		return nil, serr.Wrap(err, "failed to create note request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return nil, serr.Wrap(err, "create note request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serr.New(fmt.Sprintf("create note returned status %d", resp.StatusCode))
	}

	var note RemoteNote
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		return nil, serr.Wrap(err, "failed to decode create response")
	}
	return &note, nil
}

// ListNotes fetches the authoritative note set, optionally filtered by tag.
func (rs *HTTPRemoteStore) ListNotes(ctx context.Context, tag string) ([]RemoteNote, error) {
	endpoint := rs.baseURL + "/notes"
	if tag != "" {
		endpoint += "?tag=" + url.QueryEscape(tag)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create list request")
	}

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return nil, serr.Wrap(err, "list notes request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serr.New(fmt.Sprintf("list notes returned status %d", resp.StatusCode))
	}

	var notes []RemoteNote
	if err := json.NewDecoder(resp.Body).Decode(&notes); err != nil {
		return nil, serr.Wrap(err, "failed to decode list response")
	}
	return notes, nil
}

// UpdateNote puts a partial update against a server-assigned id.
func (rs *HTTPRemoteStore) UpdateNote(ctx context.Context, id string, patch NotePatch) (*RemoteNote, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, serr.Wrap(err, "failed to marshal update request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, rs.baseURL+"/notes/"+url.PathEscape(id), bytes.NewReader(body))
	if err != nil {
		return nil, serr.Wrap(err, "failed to create update request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return nil, serr.Wrap(err, "update note request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serr.New(fmt.Sprintf("update note returned status %d", resp.StatusCode))
	}

	var note RemoteNote
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		return nil, serr.Wrap(err, "failed to decode update response")
	}
	return &note, nil
}

// DeleteNote removes a note by server-assigned id.
func (rs *HTTPRemoteStore) DeleteNote(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, rs.baseURL+"/notes/"+url.PathEscape(id), nil)
	if err != nil {
		return serr.Wrap(err, "failed to create delete request")
	}

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return serr.Wrap(err, "delete note request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serr.New(fmt.Sprintf("delete note returned status %d", resp.StatusCode))
	}
	return nil
}
