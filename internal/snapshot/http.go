package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CreateRequest is the body of POST /api/snapshots.
type CreateRequest struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"timestamp,omitempty"`
	State     State     `json:"state"`
}

// ListResponse is the body returned by GET /api/snapshots.
type ListResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// CleanupRequest is the body of POST /api/snapshots/cleanup.
type CleanupRequest struct {
	Threshold time.Time `json:"threshold"`
}

// CleanupResponse reports how many snapshots a cleanup removed.
type CleanupResponse struct {
	Deleted int `json:"deleted"`
}

// TokenSource returns the bearer token for the current session.
type TokenSource func() string

// HTTPStore talks to the snapshot API of a sprint-budget server. Requests are
// authorized with a bearer token; the server derives the owner from it, so
// the owner arguments are not sent.
type HTTPStore struct {
	baseURL string
	token   TokenSource
	client  *http.Client
}

var _ Backend = (*HTTPStore)(nil)

// NewHTTPStore returns a client for the API rooted at baseURL.
func NewHTTPStore(baseURL string, token TokenSource, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

// Create posts a snapshot and returns it with the server-assigned id.
func (s *HTTPStore) Create(ctx context.Context, _ string, snap Snapshot) (Snapshot, error) {
	var created Snapshot
	body := CreateRequest{Name: snap.Name, CreatedAt: snap.CreatedAt, State: snap.State}
	if err := s.do(ctx, http.MethodPost, "/api/snapshots", body, &created); err != nil {
		return Snapshot{}, err
	}
	return created, nil
}

// List fetches the session owner's snapshots.
func (s *HTTPStore) List(ctx context.Context, _ string) ([]Snapshot, error) {
	var resp ListResponse
	if err := s.do(ctx, http.MethodGet, "/api/snapshots", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}

// Delete removes one of the session owner's snapshots.
func (s *HTTPStore) Delete(ctx context.Context, _ string, id string) error {
	return s.do(ctx, http.MethodDelete, "/api/snapshots/"+url.PathEscape(id), nil, nil)
}

// DeleteBefore asks the server to remove snapshots older than threshold.
func (s *HTTPStore) DeleteBefore(ctx context.Context, threshold time.Time) (int, error) {
	var resp CleanupResponse
	if err := s.do(ctx, http.MethodPost, "/api/snapshots/cleanup", CleanupRequest{Threshold: threshold}, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != nil {
		if token := s.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, errors.New(apiErr.Error))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
