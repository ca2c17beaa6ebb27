package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/sprint-budget/pkg/constants"
	"go.uber.org/zap"
)

// ErrNoRemote is returned by operations that need a remote store when none
// is configured.
var ErrNoRemote = errors.New("no remote snapshot store configured")

// MergePolicy decides how local and remote records are combined in a listing.
type MergePolicy int

const (
	// MergeDedupByID drops a local record when the remote store holds one with
	// the same id.
	MergeDedupByID MergePolicy = iota
	// MergeKeepAll concatenates both sources without de-duplication.
	MergeKeepAll
)

// ParseMergePolicy maps a configuration value to a policy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "dedup":
		return MergeDedupByID, nil
	case "keepAll", "keep-all":
		return MergeKeepAll, nil
	}
	return MergeDedupByID, fmt.Errorf("unknown merge policy %q", s)
}

// ServiceOptions tune a Service. Zero values select the defaults.
type ServiceOptions struct {
	Policy    MergePolicy
	Retention time.Duration
	Logger    *zap.Logger
}

// Service combines device storage with an optional remote store. Device
// storage is always written; the remote store is used only when an owner is
// given. Operations spanning both are best effort, not atomic.
type Service struct {
	local     *LocalStore
	remote    Backend
	policy    MergePolicy
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewService returns a service over local and, when non-nil, remote.
func NewService(local *LocalStore, remote Backend, opts ServiceOptions) *Service {
	if opts.Retention <= 0 {
		opts.Retention = constants.DefaultRetentionDays * 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		local:     local,
		remote:    remote,
		policy:    opts.Policy,
		retention: opts.Retention,
		logger:    opts.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HasRemote reports whether a remote store is configured.
func (s *Service) HasRemote() bool {
	return s.remote != nil
}

func (s *Service) useRemote(owner string) bool {
	return owner != "" && s.remote != nil
}

// Save writes a new snapshot to device storage and, for an owner, to the
// remote store. The remote id replaces the local one so both copies share
// it. A remote failure is returned as *RemoteError together with the locally
// saved snapshot.
func (s *Service) Save(ctx context.Context, name string, state State, owner string) (Snapshot, error) {
	if name == "" {
		name = s.now().Format("2006-01-02 15:04")
	}
	saved, err := s.local.Create(ctx, "", Snapshot{Name: name, CreatedAt: s.now(), State: state})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to save snapshot locally: %w", err)
	}
	s.logger.Debug("snapshot saved locally",
		zap.String("op", "snapshot.Save"),
		zap.String("id", saved.ID),
		zap.String("name", saved.Name),
	)
	if !s.useRemote(owner) {
		return saved, nil
	}

	created, err := s.remote.Create(ctx, owner, saved)
	if err != nil {
		s.logger.Warn("remote snapshot save failed",
			zap.String("op", "snapshot.Save"),
			zap.String("id", saved.ID),
			zap.Error(err),
		)
		return saved, &RemoteError{Op: "save", Err: err}
	}
	if err := s.local.ReplaceID(saved.ID, created.ID, owner); err != nil {
		return saved, fmt.Errorf("failed to record remote id %s locally: %w", created.ID, err)
	}
	saved.ID = created.ID
	saved.OwnerID = owner
	s.logger.Debug("snapshot saved remotely",
		zap.String("op", "snapshot.Save"),
		zap.String("id", saved.ID),
		zap.String("owner", owner),
	)
	return saved, nil
}

// List returns device records combined with the owner's remote records,
// newest first. When the remote store fails, the local records are returned
// with a *RemoteError.
func (s *Service) List(ctx context.Context, owner string) ([]Snapshot, error) {
	local, err := s.local.List(ctx, "")
	if err != nil {
		return nil, err
	}
	if !s.useRemote(owner) {
		return local, nil
	}

	remote, err := s.remote.List(ctx, owner)
	if err != nil {
		s.logger.Warn("remote snapshot list failed",
			zap.String("op", "snapshot.List"),
			zap.Error(err),
		)
		return local, &RemoteError{Op: "list", Err: err}
	}
	for i := range remote {
		remote[i].Remote = true
	}
	return merge(local, remote, s.policy), nil
}

// Load returns the snapshot with the given id from the combined set.
func (s *Service) Load(ctx context.Context, id, owner string) (Snapshot, error) {
	all, err := s.List(ctx, owner)
	if err != nil && !IsRemote(err) {
		return Snapshot{}, err
	}
	for _, snap := range all {
		if snap.ID == id {
			return snap, nil
		}
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{}, ErrNotFound
}

// Delete removes a snapshot from device storage and, for an owner, from the
// remote store. The local deletion happens even when the remote call fails.
func (s *Service) Delete(ctx context.Context, id, owner string) error {
	localErr := s.local.Delete(ctx, "", id)
	if localErr != nil && !errors.Is(localErr, ErrNotFound) {
		return localErr
	}
	if !s.useRemote(owner) {
		return localErr
	}

	remoteErr := s.remote.Delete(ctx, owner, id)
	switch {
	case remoteErr == nil:
		return nil
	case errors.Is(remoteErr, ErrNotFound):
		return localErr
	default:
		s.logger.Warn("remote snapshot delete failed",
			zap.String("op", "snapshot.Delete"),
			zap.String("id", id),
			zap.Error(remoteErr),
		)
		return &RemoteError{Op: "delete", Err: remoteErr}
	}
}

// Cleanup deletes remote records older than the retention window. Running it
// again right away deletes nothing new.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, ErrNoRemote
	}
	threshold := s.now().Add(-s.retention)
	n, err := s.remote.DeleteBefore(ctx, threshold)
	if err != nil {
		return 0, &RemoteError{Op: "cleanup", Err: err}
	}
	s.logger.Info("removed expired snapshots",
		zap.String("op", "snapshot.Cleanup"),
		zap.Time("threshold", threshold),
		zap.Int("deleted", n),
	)
	return n, nil
}

func merge(local, remote []Snapshot, policy MergePolicy) []Snapshot {
	out := make([]Snapshot, 0, len(local)+len(remote))
	switch policy {
	case MergeKeepAll:
		out = append(out, local...)
		out = append(out, remote...)
	default:
		seen := make(map[string]bool, len(remote))
		for _, snap := range remote {
			seen[snap.ID] = true
		}
		for _, snap := range local {
			if !seen[snap.ID] {
				out = append(out, snap)
			}
		}
		out = append(out, remote...)
	}
	sortNewestFirst(out)
	return out
}
