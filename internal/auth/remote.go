package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Credentials is the body posted to an identity endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is what an identity endpoint returns on success.
type LoginResponse struct {
	Token   string `json:"token"`
	OwnerID string `json:"ownerId"`
}

// RemoteAuthenticator delegates credential checks to an identity endpoint,
// for example another sprint-budget server's /api/auth/login.
type RemoteAuthenticator struct {
	url    string
	client *http.Client
}

// NewRemoteAuthenticator returns an authenticator posting to url.
func NewRemoteAuthenticator(url string, client *http.Client) *RemoteAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RemoteAuthenticator{url: url, client: client}
}

// Authenticate posts the credentials and maps 401/403 to ErrInvalidCredentials.
func (a *RemoteAuthenticator) Authenticate(ctx context.Context, username, password string) (Session, error) {
	body, err := json.Marshal(Credentials{Username: username, Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("failed to encode credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("identity check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Session{}, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return Session{}, fmt.Errorf("identity check failed: status %d", resp.StatusCode)
	}

	var lr LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return Session{}, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if lr.Token == "" || lr.OwnerID == "" {
		return Session{}, fmt.Errorf("identity response is missing token or owner id")
	}
	return Session{
		OwnerID:  lr.OwnerID,
		Username: username,
		Token:    lr.Token,
		IssuedAt: time.Now().UTC(),
	}, nil
}
