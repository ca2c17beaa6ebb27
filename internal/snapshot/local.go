package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStore keeps snapshots in a single JSON file on the device. The whole
// collection is read and rewritten on every operation. Records are not
// scoped by owner.
type LocalStore struct {
	path string
	mu   sync.Mutex
}

var _ Backend = (*LocalStore)(nil)

// NewLocalStore returns a store backed by the file at path. The file is
// created on the first write.
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Path is the backing file.
func (s *LocalStore) Path() string {
	return s.path
}

// Create adds a snapshot, assigning an id when it has none.
func (s *LocalStore) Create(_ context.Context, _ string, snap Snapshot) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return Snapshot{}, err
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	for _, existing := range all {
		if existing.ID == snap.ID {
			return Snapshot{}, fmt.Errorf("snapshot %s already exists", snap.ID)
		}
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	snap.Remote = false
	all = append(all, snap)
	if err := s.write(all); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// List returns every local snapshot, newest first.
func (s *LocalStore) List(_ context.Context, _ string) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)
	return all, nil
}

// Delete removes the snapshot with the given id.
func (s *LocalStore) Delete(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	kept := all[:0]
	found := false
	for _, snap := range all {
		if snap.ID == id {
			found = true
			continue
		}
		kept = append(kept, snap)
	}
	if !found {
		return ErrNotFound
	}
	return s.write(kept)
}

// DeleteBefore removes local snapshots created before threshold.
func (s *LocalStore) DeleteBefore(_ context.Context, threshold time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return 0, err
	}
	kept := all[:0]
	removed := 0
	for _, snap := range all {
		if snap.CreatedAt.Before(threshold) {
			removed++
			continue
		}
		kept = append(kept, snap)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.write(kept)
}

// ReplaceID renames a local record, used once the remote store has assigned
// its own id to the same snapshot.
func (s *LocalStore) ReplaceID(oldID, newID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == oldID {
			all[i].ID = newID
			all[i].OwnerID = owner
			return s.write(all)
		}
	}
	return ErrNotFound
}

func (s *LocalStore) read() ([]Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read local snapshots: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var all []Snapshot
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse local snapshots %s: %w", s.path, err)
	}
	return all, nil
}

func (s *LocalStore) write(all []Snapshot) error {
	if all == nil {
		all = []Snapshot{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode local snapshots: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write local snapshots: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace local snapshots: %w", err)
	}
	return nil
}

func sortNewestFirst(all []Snapshot) {
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
}
