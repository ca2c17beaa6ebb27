package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/sprint-budget/internal/auth"
)

var _ auth.SessionStore = (*SQLStore)(nil)

// SaveSession records a server-issued session so its token survives restarts.
func (s *SQLStore) SaveSession(ctx context.Context, session auth.Session) error {
	issued := session.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	query := s.rebind(`INSERT INTO sessions (token, owner_id, username, issued_at) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, session.Token, session.OwnerID, session.Username, issued.UTC().UnixMilli()); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

// LookupSession resolves a token to its session.
func (s *SQLStore) LookupSession(ctx context.Context, token string) (auth.Session, bool, error) {
	query := s.rebind(`SELECT owner_id, username, issued_at FROM sessions WHERE token = ?`)
	var session auth.Session
	var issued int64
	err := s.db.QueryRowContext(ctx, query, token).Scan(&session.OwnerID, &session.Username, &issued)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Session{}, false, nil
	}
	if err != nil {
		return auth.Session{}, false, fmt.Errorf("error looking up session: %w", err)
	}
	session.Token = token
	session.IssuedAt = time.UnixMilli(issued).UTC()
	return session, true, nil
}

// DeleteSession revokes a token. Unknown tokens are ignored.
func (s *SQLStore) DeleteSession(ctx context.Context, token string) error {
	query := s.rebind(`DELETE FROM sessions WHERE token = ?`)
	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}
