// Package server exposes projections, CSV conversion, PDF reports and the
// remote snapshot API over HTTP, and serves the embedded web UI.
package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iwvelando/sprint-budget/internal/auth"
	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/csvio"
	"github.com/iwvelando/sprint-budget/internal/snapshot"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"go.uber.org/zap"
)

//go:embed static/*
var staticFiles embed.FS

// Options wires the handler's collaborators. Zero values get defaults; a nil
// Authenticator disables login and a nil Snapshots disables the snapshot API.
type Options struct {
	Logger        *zap.Logger
	MaxUploadSize int64
	Version       string
	Reconcile     budget.ReconcileOptions
	Authenticator auth.Authenticator
	Tokens        *auth.TokenRegistry
	Snapshots     snapshot.Backend
	Retention     time.Duration
}

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	reconcile     budget.ReconcileOptions
	authenticator auth.Authenticator
	tokens        *auth.TokenRegistry
	snapshots     snapshot.Backend
	retention     time.Duration
	now           func() time.Time
}

// NewHandler constructs the HTTP handler that serves the web UI and API.
func NewHandler(opts Options) http.Handler {
	h := newHandler(opts)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(h.logger))
	r.Use(recovery(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", h.handleVersion)
		r.Post("/projection", h.handleProjection)
		r.Post("/report", h.handleReport)
		r.Post("/chart", h.handleChart)

		r.Route("/iterations", func(r chi.Router) {
			r.Post("/", h.handleIterationAdd)
			r.Patch("/{number}", h.handleIterationUpdate)
			r.Put("/{number}/current", h.handleIterationCurrent)
		})

		r.Route("/csv", func(r chi.Router) {
			r.Post("/parameters/import", h.handleParametersImport)
			r.Post("/parameters/export", h.handleParametersExport)
			r.Post("/iterations/import", h.handleIterationsImport)
			r.Post("/iterations/export", h.handleIterationsExport)
			r.Post("/projection/export", h.handleProjectionExport)
		})

		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.bearerAuth)
			r.Route("/snapshots", func(r chi.Router) {
				r.Get("/", h.handleSnapshotList)
				r.Post("/", h.handleSnapshotCreate)
				r.Post("/cleanup", h.handleSnapshotCleanup)
				r.Delete("/{id}", h.handleSnapshotDelete)
			})
		})
	})

	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to prepare embedded static files: %v", err))
	}
	r.Handle("/*", http.FileServer(http.FS(sub)))

	return r
}

func newHandler(opts Options) *handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = auth.NewTokenRegistry()
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = constants.DefaultRetentionDays * 24 * time.Hour
	}
	reconcile := opts.Reconcile
	if reconcile.MaxIterations <= 0 {
		reconcile = budget.DefaultReconcileOptions()
	}
	return &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       version,
		reconcile:     reconcile,
		authenticator: opts.Authenticator,
		tokens:        tokens,
		snapshots:     opts.Snapshots,
		retention:     retention,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// errBadRequest marks requests that could not be decoded.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case budget.IsValidation(err), errors.Is(err, budget.ErrIterationLimit),
		errors.Is(err, csvio.ErrMalformed), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrNotFound), errors.Is(err, budget.ErrIterationNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, err error, op string) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("requestId", requestIDFrom(r.Context())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}
	msg := err.Error()
	if status == http.StatusRequestEntityTooLarge {
		msg = fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}
