// Package auth tracks whether the user is signed in and persists the session
// on the device. Being signed in only enables remote snapshot storage.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned when a username/password pair is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not signed in")
)

// State is the gate's authentication state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session identifies a signed-in user.
type Session struct {
	OwnerID  string    `toml:"owner_id" json:"ownerId"`
	Username string    `toml:"username" json:"username,omitempty"`
	Token    string    `toml:"token" json:"token"`
	IssuedAt time.Time `toml:"issued_at" json:"issuedAt,omitempty"`
}

// Authenticator checks credentials and issues a session.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Session, error)
}

// StaticAuthenticator accepts a single configured username and password. The
// username doubles as the owner id.
type StaticAuthenticator struct {
	username string
	password string
}

// NewStaticAuthenticator returns an authenticator for one account. An empty
// username or password rejects every login.
func NewStaticAuthenticator(username, password string) *StaticAuthenticator {
	return &StaticAuthenticator{username: username, password: password}
}

// Authenticate compares the credentials in constant time.
func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (Session, error) {
	if a.username == "" || a.password == "" {
		return Session{}, ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password))
	if userOK&passOK != 1 {
		return Session{}, ErrInvalidCredentials
	}
	return Session{
		OwnerID:  a.username,
		Username: username,
		Token:    uuid.NewString(),
		IssuedAt: time.Now().UTC(),
	}, nil
}

// Gate holds the current session and persists it through a SessionFile.
type Gate struct {
	mu      sync.RWMutex
	auth    Authenticator
	store   *SessionFile
	session *Session
	logger  *zap.Logger
}

// NewGate returns a gate, restoring a previously saved session when store
// holds one.
func NewGate(a Authenticator, store *SessionFile, logger *zap.Logger) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{auth: a, store: store, logger: logger}
	if store == nil {
		return g, nil
	}
	session, ok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if ok {
		g.session = &session
		logger.Debug("restored session",
			zap.String("op", "auth.NewGate"),
			zap.String("owner", session.OwnerID),
		)
	}
	return g, nil
}

// State reports whether a session is active.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return Anonymous
	}
	return Authenticated
}

// Session returns the active session.
func (g *Gate) Session() (Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return Session{}, false
	}
	return *g.session, true
}

// OwnerID is the signed-in owner, or "" when anonymous.
func (g *Gate) OwnerID() string {
	s, _ := g.Session()
	return s.OwnerID
}

// Token is the session bearer token, or "" when anonymous.
func (g *Gate) Token() string {
	s, _ := g.Session()
	return s.Token
}

// Login authenticates and, on success, saves the session.
func (g *Gate) Login(ctx context.Context, username, password string) (Session, error) {
	if g.auth == nil {
		return Session{}, fmt.Errorf("no authenticator configured")
	}
	session, err := g.auth.Authenticate(ctx, username, password)
	if err != nil {
		g.logger.Info("login rejected",
			zap.String("op", "auth.Login"),
			zap.String("username", username),
			zap.Error(err),
		)
		return Session{}, err
	}
	if g.store != nil {
		if err := g.store.Save(session); err != nil {
			return Session{}, err
		}
	}

	g.mu.Lock()
	g.session = &session
	g.mu.Unlock()

	g.logger.Info("signed in",
		zap.String("op", "auth.Login"),
		zap.String("owner", session.OwnerID),
	)
	return session, nil
}

// Logout drops the session. Logging out while anonymous is a no-op.
func (g *Gate) Logout() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.store != nil {
		if err := g.store.Clear(); err != nil {
			return err
		}
	}
	if g.session != nil {
		g.logger.Info("signed out",
			zap.String("op", "auth.Logout"),
			zap.String("owner", g.session.OwnerID),
		)
	}
	g.session = nil
	return nil
}
