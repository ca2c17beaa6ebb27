package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/report"
	"go.uber.org/zap"
)

type projectionRequest struct {
	Parameters    budget.Parameters  `json:"parameters"`
	Iterations    []budget.Iteration `json:"iterations"`
	Reconcile     *bool              `json:"reconcile,omitempty"`
	VisibleSeries []string           `json:"visibleSeries,omitempty"`
	Title         string             `json:"title,omitempty"`
}

type projectionResponse struct {
	Parameters  budget.Parameters  `json:"parameters"`
	Iterations  []budget.Iteration `json:"iterations"`
	Points      []budget.Point     `json:"points"`
	Summary     budget.Summary     `json:"summary"`
	Warnings    []string           `json:"warnings,omitempty"`
	Regenerated bool               `json:"regenerated"`
}

// buildPlan validates the request and, unless disabled, reconciles the
// ledger against the parameters.
func (h *handler) buildPlan(req projectionRequest) (*budget.Plan, budget.ReconcileResult, error) {
	var warnings []string
	iterations := req.Iterations
	if max := h.reconcile.MaxIterations; len(iterations) > max {
		warnings = append(warnings, fmt.Sprintf("%d iterations submitted; only the first %d were kept", len(iterations), max))
		iterations = budget.SortIterations(iterations)[:max]
	}

	plan, err := budget.RestorePlan(req.Parameters, iterations, req.VisibleSeries, h.reconcile)
	if err != nil {
		return nil, budget.ReconcileResult{}, err
	}
	if req.Reconcile != nil && !*req.Reconcile {
		return plan, budget.ReconcileResult{Iterations: plan.Ledger.Iterations(), Warnings: warnings}, nil
	}
	result, err := plan.SetParameters(req.Parameters)
	if err != nil {
		return nil, budget.ReconcileResult{}, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	return plan, result, nil
}

func (h *handler) handleProjection(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleProjection"
	var req projectionRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	plan, result, err := h.buildPlan(req)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}

	h.writeProjection(w, op, plan, result)
}

// writeProjection responds with the plan's ledger, curves and summary.
func (h *handler) writeProjection(w http.ResponseWriter, op string, plan *budget.Plan, result budget.ReconcileResult) {
	points := plan.Projection()
	summary := budget.Summarize(plan.Parameters, points)
	h.logger.Debug("projection computed",
		zap.String("op", op),
		zap.Int("iterations", plan.Ledger.Len()),
		zap.Float64("consumed", summary.Consumed),
		zap.Bool("regenerated", result.Regenerated),
	)
	h.writeJSON(w, http.StatusOK, projectionResponse{
		Parameters:  plan.Parameters,
		Iterations:  plan.Ledger.Iterations(),
		Points:      points,
		Summary:     summary,
		Warnings:    result.Warnings,
		Regenerated: result.Regenerated,
	})
}

func (h *handler) handleReport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleReport"
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

	var buf bytes.Buffer
	opts := report.Options{
		Title:         strings.TrimSpace(req.Title),
		OwnerID:       h.optionalOwner(r),
		GeneratedAt:   h.now(),
		VisibleSeries: plan.VisibleSeries,
	}
	if err := report.Render(&buf, plan.Parameters, plan.Projection(), opts); err != nil {
		h.respondError(w, r, http.StatusInternalServerError, err, op)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="sprint-budget-%s.pdf"`, opts.GeneratedAt.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write report",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

const (
	defaultChartWidth  = 900
	defaultChartHeight = 420
	maxChartWidth      = 2400
	maxChartHeight     = 1200
)

type chartRequest struct {
	projectionRequest
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// chartSize applies defaults and upper bounds to a requested image size.
func chartSize(width, height int) (int, int) {
	switch {
	case width <= 0:
		width = defaultChartWidth
	case width > maxChartWidth:
		width = maxChartWidth
	}
	switch {
	case height <= 0:
		height = defaultChartHeight
	case height > maxChartHeight:
		height = maxChartHeight
	}
	return width, height
}

func (h *handler) handleChart(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleChart"
	var req chartRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	plan, _, err := h.buildPlan(req.projectionRequest)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}

	width, height := chartSize(req.Width, req.Height)
	var buf bytes.Buffer
	if err := report.WriteChart(&buf, plan.Parameters, plan.Projection(), plan.VisibleSeries, width, height); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, report.ErrTooFewPoints) {
			status = http.StatusBadRequest
		}
		h.respondError(w, r, status, err, op)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write chart",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}
