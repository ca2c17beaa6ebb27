package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	_ "github.com/lib/pq"   // PostgreSQL driver
	_ "modernc.org/sqlite" // register sqlite driver
)

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		payload    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS snapshots_owner_created ON snapshots (owner_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token     TEXT PRIMARY KEY,
		owner_id  TEXT NOT NULL,
		username  TEXT NOT NULL DEFAULT '',
		issued_at BIGINT NOT NULL
	)`,
}

// SQLStore is the hosted snapshot database. It assigns its own ids and scopes
// listing and deletion by owner. Writes are last-write-wins.
type SQLStore struct {
	db     *sql.DB
	driver string
}

var _ Backend = (*SQLStore)(nil)

// OpenSQLStore connects to a postgres or sqlite database and creates the
// schema when missing.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != constants.DriverPostgres && driver != constants.DriverSQLite {
		return nil, fmt.Errorf("unsupported snapshot database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening snapshot database: %w", err)
	}
	if driver == constants.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to snapshot database: %w", err)
	}
	for _, stmt := range schemaSQL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error creating snapshot schema: %w", err)
		}
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Create inserts a snapshot under a newly assigned id.
func (s *SQLStore) Create(ctx context.Context, owner string, snap Snapshot) (Snapshot, error) {
	payload, err := json.Marshal(snap.State)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error encoding snapshot: %w", err)
	}
	snap.ID = uuid.NewString()
	snap.OwnerID = owner
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	snap.CreatedAt = snap.CreatedAt.UTC().Truncate(time.Millisecond)
	snap.Remote = false

	query := s.rebind(`INSERT INTO snapshots (id, owner_id, name, created_at, payload) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, snap.ID, owner, snap.Name, snap.CreatedAt.UnixMilli(), string(payload)); err != nil {
		return Snapshot{}, fmt.Errorf("error creating snapshot: %w", err)
	}
	return snap, nil
}

// List returns the owner's snapshots, newest first.
func (s *SQLStore) List(ctx context.Context, owner string) ([]Snapshot, error) {
	query := s.rebind(`SELECT id, owner_id, name, created_at, payload
		FROM snapshots WHERE owner_id = ? ORDER BY created_at DESC, id`)
	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("error listing snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var snap Snapshot
		var createdAt int64
		var payload string
		if err := rows.Scan(&snap.ID, &snap.OwnerID, &snap.Name, &createdAt, &payload); err != nil {
			return nil, fmt.Errorf("error scanning snapshot: %w", err)
		}
		snap.CreatedAt = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(payload), &snap.State); err != nil {
			return nil, fmt.Errorf("error decoding snapshot %s: %w", snap.ID, err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Delete removes one of the owner's snapshots.
func (s *SQLStore) Delete(ctx context.Context, owner, id string) error {
	query := s.rebind(`DELETE FROM snapshots WHERE id = ? AND owner_id = ?`)
	res, err := s.db.ExecContext(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("error deleting snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting snapshot: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBefore removes every snapshot, of any owner, created before threshold.
func (s *SQLStore) DeleteBefore(ctx context.Context, threshold time.Time) (int, error) {
	query := s.rebind(`DELETE FROM snapshots WHERE created_at < ?`)
	res, err := s.db.ExecContext(ctx, query, threshold.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("error deleting old snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error deleting old snapshots: %w", err)
	}
	return int(n), nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != constants.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
