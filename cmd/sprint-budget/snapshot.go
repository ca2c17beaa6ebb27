package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/iwvelando/sprint-budget/internal/auth"
	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/snapshot"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// snapshots builds the snapshot service for the device, with the remote store
// selected by storage.remote.kind. The returned close func releases it.
func (c *cli) snapshots(ctx context.Context, gate *auth.Gate) (*snapshot.Service, func(), error) {
	local := snapshot.NewLocalStore(filepath.Join(c.conf.StorageDir(), constants.SnapshotsFile))
	opts := c.conf.SnapshotOptions()
	opts.Logger = c.logger

	remoteConfig := c.conf.Storage.Remote
	switch remoteConfig.Kind {
	case constants.RemoteKindSQL:
		store, err := snapshot.OpenSQLStore(ctx, remoteConfig.Driver, remoteConfig.DSN)
		if err != nil {
			c.logger.Warn("remote store unavailable, using device storage only",
				zap.String("op", "main.snapshots"),
				zap.Error(err),
			)
			return snapshot.NewService(local, nil, opts), func() {}, nil
		}
		return snapshot.NewService(local, store, opts), func() { _ = store.Close() }, nil
	case constants.RemoteKindHTTP:
		store := snapshot.NewHTTPStore(remoteConfig.URL, gate.Token, nil)
		return snapshot.NewService(local, store, opts), func() {}, nil
	default:
		return snapshot.NewService(local, nil, opts), func() {}, nil
	}
}

// withSnapshots runs fn with the gate and snapshot service.
func (c *cli) withSnapshots(cmd *cobra.Command, fn func(*auth.Gate, *snapshot.Service) error) error {
	gate, err := c.gate()
	if err != nil {
		return err
	}
	service, closeService, err := c.snapshots(cmd.Context(), gate)
	if err != nil {
		return err
	}
	defer closeService()
	return fn(gate, service)
}

// remoteWarning logs a remote failure and reports whether err was one; the
// local part of the operation has completed in that case.
func (c *cli) remoteWarning(err error, op string) bool {
	if !snapshot.IsRemote(err) {
		return false
	}
	c.logger.Warn("remote snapshot store failed; device copy is current",
		zap.String("op", op),
		zap.Error(err),
	)
	return true
}

func newSnapshotCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"snapshots"},
		Short:   "Save, list, load and delete named planning states",
	}
	cmd.AddCommand(
		newSnapshotSaveCmd(c),
		newSnapshotListCmd(c),
		newSnapshotLoadCmd(c),
		newSnapshotDeleteCmd(c),
		newSnapshotCleanupCmd(c),
	)
	return cmd
}

func newSnapshotSaveCmd(c *cli) *cobra.Command {
	f := &planFlags{}
	var name string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the current plan as a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, _, err := c.plan(cmd, f)
			if err != nil {
				return err
			}
			return c.withSnapshots(cmd, func(gate *auth.Gate, service *snapshot.Service) error {
				saved, err := service.Save(cmd.Context(), name, snapshot.NewState(plan), gate.OwnerID())
				if err != nil && !c.remoteWarning(err, "main.snapshotSave") {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %q as %s\n", saved.Name, saved.ID)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "snapshot name (defaults to a timestamp)")
	return cmd
}

func newSnapshotListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List device and remote snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSnapshots(cmd, func(gate *auth.Gate, service *snapshot.Service) error {
				all, err := service.List(cmd.Context(), gate.OwnerID())
				if err != nil && !c.remoteWarning(err, "main.snapshotList") {
					return err
				}
				return output.SnapshotTable(cmd.OutOrStdout(), all)
			})
		},
	}
}

func newSnapshotLoadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load <id>",
		Short: "Print the projection of a saved snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, err := c.format()
			if err != nil {
				return err
			}
			return c.withSnapshots(cmd, func(gate *auth.Gate, service *snapshot.Service) error {
				snap, err := service.Load(cmd.Context(), args[0], gate.OwnerID())
				if err != nil {
					if errors.Is(err, snapshot.ErrNotFound) {
						return fmt.Errorf("no snapshot with id %s", args[0])
					}
					return err
				}
				plan, err := budget.RestorePlan(snap.State.Parameters, snap.State.Iterations,
					snap.State.VisibleSeries, c.conf.ReconcileOptions())
				if err != nil {
					return fmt.Errorf("snapshot %s is unusable: %w", snap.ID, err)
				}
				return c.writeProjection(cmd.OutOrStdout(), outputFormat, plan, nil)
			})
		},
	}
}

func newSnapshotDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot from the device and the remote store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSnapshots(cmd, func(gate *auth.Gate, service *snapshot.Service) error {
				err := service.Delete(cmd.Context(), args[0], gate.OwnerID())
				switch {
				case errors.Is(err, snapshot.ErrNotFound):
					return fmt.Errorf("no snapshot with id %s", args[0])
				case err != nil && !c.remoteWarning(err, "main.snapshotDelete"):
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newSnapshotCleanupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove remote snapshots older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSnapshots(cmd, func(_ *auth.Gate, service *snapshot.Service) error {
				deleted, err := service.Cleanup(cmd.Context())
				if err != nil {
					if errors.Is(err, snapshot.ErrNoRemote) {
						return errors.New("cleanup needs a remote snapshot store")
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d snapshot(s)\n", deleted)
				return nil
			})
		},
	}
}
