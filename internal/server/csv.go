package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/csvio"
	"go.uber.org/zap"
)

type iterationsPayload struct {
	Iterations []budget.Iteration `json:"iterations"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// readUpload returns the multipart "file" field, bounded by the upload limit.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request, op string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to parse upload: %v", errBadRequest, err)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: missing CSV file", errBadRequest)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *handler) writeCSV(w http.ResponseWriter, r *http.Request, filename, op string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *handler) handleParametersImport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleParametersImport"
	data, err := h.readUpload(w, r, op)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	p, err := csvio.ReadParameters(bytes.NewReader(data))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]budget.Parameters{"parameters": p})
}

func (h *handler) handleParametersExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleParametersExport"
	var p budget.Parameters
	if err := h.decodeJSON(w, r, &p); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	if err := p.Validate(); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err, op)
		return
	}
	h.writeCSV(w, r, "parameters.csv", op, func(out io.Writer) error {
		return csvio.WriteParameters(out, p)
	})
}

func (h *handler) handleIterationsImport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIterationsImport"
	data, err := h.readUpload(w, r, op)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	imported, err := csvio.ReadIterations(bytes.NewReader(data), h.reconcile.MaxIterations)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err, op)
		return
	}
	if len(imported.Warnings) > 0 {
		h.logger.Warn("iterations imported with warnings",
			zap.String("op", op),
			zap.Strings("warnings", imported.Warnings),
		)
	}
	h.writeJSON(w, http.StatusOK, iterationsPayload{
		Iterations: imported.Iterations,
		Warnings:   imported.Warnings,
	})
}

func (h *handler) handleIterationsExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIterationsExport"
	var payload iterationsPayload
	if err := h.decodeJSON(w, r, &payload); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	h.writeCSV(w, r, "iterations.csv", op, func(out io.Writer) error {
		return csvio.WriteIterations(out, payload.Iterations)
	})
}

func (h *handler) handleProjectionExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleProjectionExport"
	var req projectionRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	plan, _, err := h.buildPlan(req)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	h.writeCSV(w, r, "projection.csv", op, func(out io.Writer) error {
		return csvio.WriteProjection(out, plan.Parameters, plan.Projection())
	})
}
