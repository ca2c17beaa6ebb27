package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/sprint-budget/internal/auth"
	"github.com/iwvelando/sprint-budget/internal/server"
	"github.com/iwvelando/sprint-budget/internal/snapshot"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(c *cli) *cobra.Command {
	var serverConfigPath, address, maxUploadSize string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and the remote snapshot API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serverConfig, err := server.LoadConfig(serverConfigPath)
			if err != nil {
				return err
			}
			if err := applyServeOverrides(serverConfig, address, maxUploadSize); err != nil {
				return err
			}

			// Server logging settings, when present, replace the application ones.
			logger := c.logger
			if sl := serverConfig.Logging; sl.Level != "" || sl.Format != "" || sl.OutputFile != "" {
				logger, err = initializeLogger(serverConfig.Logging, c.logLevel)
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			opts := server.Options{
				Logger:        logger,
				MaxUploadSize: serverConfig.UploadSizeBytes(),
				Version:       version,
				Reconcile:     c.conf.ReconcileOptions(),
				Authenticator: c.authenticator(),
				Tokens:        auth.NewTokenRegistry(),
				Retention:     c.conf.SnapshotOptions().Retention,
			}
			// Issued tokens are kept next to the snapshots so sessions
			// outlive a restart.
			if store := c.serverStore(ctx, logger); store != nil {
				defer func() { _ = store.Close() }()
				opts.Snapshots = store
				opts.Tokens = auth.NewPersistentTokenRegistry(store)
			}
			return runServer(ctx, logger, serverConfig, server.NewHandler(opts))
		},
	}
	cmd.Flags().StringVar(&serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "addr", "", "listen address override")
	cmd.Flags().StringVar(&maxUploadSize, "max-upload-size", "", "upload size limit override (e.g. 512K, 10M)")
	return cmd
}

// applyServeOverrides applies command line overrides to the server config.
func applyServeOverrides(cfg *server.Config, address, maxUploadSize string) error {
	if address != "" {
		cfg.Address = address
	}
	if maxUploadSize == "" {
		return nil
	}
	size, err := server.ParseSize(maxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid --max-upload-size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("invalid --max-upload-size %q: must be positive", maxUploadSize)
	}
	cfg.SetUploadSizeBytes(size)
	return nil
}

// serverStore opens the SQL store backing the snapshot API and the issued
// sessions. Any other remote kind leaves the API disabled and returns nil.
func (c *cli) serverStore(ctx context.Context, logger *zap.Logger) *snapshot.SQLStore {
	remoteConfig := c.conf.Storage.Remote
	if remoteConfig.Kind != constants.RemoteKindSQL {
		logger.Info("snapshot API disabled; set storage.remote.kind to sql to enable it",
			zap.String("op", "main.serverStore"),
		)
		return nil
	}
	store, err := snapshot.OpenSQLStore(ctx, remoteConfig.Driver, remoteConfig.DSN)
	if err != nil {
		logger.Error("failed to open snapshot database; snapshot API disabled",
			zap.String("op", "main.serverStore"),
			zap.String("driver", remoteConfig.Driver),
			zap.Error(err),
		)
		return nil
	}
	return store
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, logger *zap.Logger, cfg *server.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("op", "main.runServer"),
			zap.String("address", cfg.Address),
			zap.String("maxUploadSize", cfg.MaxUploadSize),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()
	logger.Info("shutting down",
		zap.String("op", "main.runServer"),
	)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
