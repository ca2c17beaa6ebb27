package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/iwvelando/sprint-budget/internal/auth"
	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/snapshot"
	"go.uber.org/zap"
)

var (
	errSnapshotsDisabled = errors.New("remote snapshot storage is not configured")
	errLoginDisabled     = errors.New("login is not configured")
)

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLogin"
	if h.authenticator == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, errLoginDisabled, op)
		return
	}
	var creds auth.Credentials
	if err := h.decodeJSON(w, r, &creds); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	session, err := h.authenticator.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		h.respondError(w, r, status, err, op)
		return
	}
	if err := h.tokens.Register(r.Context(), session); err != nil {
		h.respondError(w, r, http.StatusBadGateway, err, op)
		return
	}
	h.logger.Info("session issued",
		zap.String("op", op),
		zap.String("owner", session.OwnerID),
	)
	h.writeJSON(w, http.StatusOK, auth.LoginResponse{Token: session.Token, OwnerID: session.OwnerID})
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.tokens.Revoke(r.Context(), token); err != nil {
			h.respondError(w, r, http.StatusBadGateway, err, "server.handleLogout")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// storeError maps store failures: missing ids are 404, anything else means
// the store could not be reached.
func (h *handler) storeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := http.StatusBadGateway
	if errors.Is(err, snapshot.ErrNotFound) {
		status = http.StatusNotFound
	}
	h.respondError(w, r, status, err, op)
}

func (h *handler) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSnapshotList"
	if h.snapshots == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, errSnapshotsDisabled, op)
		return
	}
	list, err := h.snapshots.List(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		h.storeError(w, r, err, op)
		return
	}
	if list == nil {
		list = []snapshot.Snapshot{}
	}
	h.writeJSON(w, http.StatusOK, snapshot.ListResponse{Snapshots: list})
}

func (h *handler) handleSnapshotCreate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSnapshotCreate"
	if h.snapshots == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, errSnapshotsDisabled, op)
		return
	}
	var req snapshot.CreateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.respondError(w, r, http.StatusBadRequest, fmt.Errorf("%w: snapshot name is required", errBadRequest), op)
		return
	}
	plan, err := budget.RestorePlan(req.State.Parameters, req.State.Iterations, req.State.VisibleSeries, h.reconcile)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	state := snapshot.NewState(plan)
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = h.now()
	}

	owner := ownerFrom(r.Context())
	created, err := h.snapshots.Create(r.Context(), owner, snapshot.Snapshot{
		Name:      req.Name,
		CreatedAt: createdAt,
		State:     state,
	})
	if err != nil {
		h.storeError(w, r, err, op)
		return
	}
	h.logger.Info("snapshot stored",
		zap.String("op", op),
		zap.String("owner", owner),
		zap.String("id", created.ID),
	)
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *handler) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSnapshotDelete"
	if h.snapshots == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, errSnapshotsDisabled, op)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.snapshots.Delete(r.Context(), ownerFrom(r.Context()), id); err != nil {
		h.storeError(w, r, err, op)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleSnapshotCleanup(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSnapshotCleanup"
	if h.snapshots == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, errSnapshotsDisabled, op)
		return
	}
	var req snapshot.CleanupRequest
	if r.ContentLength != 0 {
		if err := h.decodeJSON(w, r, &req); err != nil {
			h.respondError(w, r, statusFor(err), err, op)
			return
		}
	}
	// Callers may tighten the window but never reach inside it.
	threshold := h.now().Add(-h.retention)
	if !req.Threshold.IsZero() && req.Threshold.Before(threshold) {
		threshold = req.Threshold
	}
	n, err := h.snapshots.DeleteBefore(r.Context(), threshold)
	if err != nil {
		h.storeError(w, r, err, op)
		return
	}
	h.logger.Info("expired snapshots removed",
		zap.String("op", op),
		zap.Time("threshold", threshold),
		zap.Int("deleted", n),
	)
	h.writeJSON(w, http.StatusOK, snapshot.CleanupResponse{Deleted: n})
}
