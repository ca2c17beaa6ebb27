package auth

import (
	"context"
	"sync"
)

// SessionStore keeps sessions issued by the server so their tokens stay valid
// across restarts.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
	// LookupSession reports ok=false for an unknown token.
	LookupSession(ctx context.Context, token string) (s Session, ok bool, err error)
	DeleteSession(ctx context.Context, token string) error
}

// TokenRegistry maps bearer tokens issued by the server to owner ids. Without
// a SessionStore the tokens live in memory only.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[string]string
	store  SessionStore
}

// NewTokenRegistry returns an empty in-memory registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{tokens: make(map[string]string)}
}

// NewPersistentTokenRegistry returns a registry backed by store.
func NewPersistentTokenRegistry(store SessionStore) *TokenRegistry {
	return &TokenRegistry{tokens: make(map[string]string), store: store}
}

// Register records the session's token.
func (r *TokenRegistry) Register(ctx context.Context, s Session) error {
	if r.store != nil {
		return r.store.SaveSession(ctx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[s.Token] = s.OwnerID
	return nil
}

// Lookup returns the owner of token.
func (r *TokenRegistry) Lookup(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	if r.store != nil {
		s, ok, err := r.store.LookupSession(ctx, token)
		if err != nil || !ok {
			return "", false, err
		}
		return s.OwnerID, true, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.tokens[token]
	return owner, ok, nil
}

// Revoke forgets token. Unknown tokens are ignored.
func (r *TokenRegistry) Revoke(ctx context.Context, token string) error {
	if r.store != nil {
		return r.store.DeleteSession(ctx, token)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}
