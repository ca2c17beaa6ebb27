// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/sprint-budget/internal/snapshot"
)

// FindSnapshot finds a snapshot by name in a listing.
// Returns a pointer to the snapshot if found, nil otherwise.
func FindSnapshot(snapshots []snapshot.Snapshot, name string) *snapshot.Snapshot {
	for i := range snapshots {
		if snapshots[i].Name == name {
			return &snapshots[i]
		}
	}
	return nil
}
