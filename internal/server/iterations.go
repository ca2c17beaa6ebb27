package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/iwvelando/sprint-budget/internal/budget"
)

// Inline ledger edits are applied to the submitted plan as-is: the ledger is
// not regenerated from the parameters first.

type addIterationRequest struct {
	projectionRequest
	Iteration budget.Iteration `json:"iteration"`
}

type updateIterationRequest struct {
	projectionRequest
	Patch budget.IterationPatch `json:"patch"`
}

// editPlan restores the submitted plan without reconciling it.
func (h *handler) editPlan(req projectionRequest) (*budget.Plan, budget.ReconcileResult, error) {
	keep := false
	req.Reconcile = &keep
	return h.buildPlan(req)
}

func iterationNumber(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "number")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid iteration number %q", errBadRequest, raw)
	}
	return n, nil
}

func (h *handler) handleIterationAdd(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIterationAdd"
	var req addIterationRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	plan, result, err := h.editPlan(req.projectionRequest)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	if _, err := plan.AddIteration(req.Iteration); err != nil {
		// A full ledger is reported but leaves the plan usable.
		if !errors.Is(err, budget.ErrIterationLimit) {
			h.respondError(w, r, statusFor(err), err, op)
			return
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("the ledger already holds the maximum of %d iterations", plan.Ledger.Max()))
	}
	h.writeProjection(w, op, plan, result)
}

func (h *handler) handleIterationUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIterationUpdate"
	number, err := iterationNumber(r)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	var req updateIterationRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	plan, result, err := h.editPlan(req.projectionRequest)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	if _, err := plan.UpdateIteration(number, req.Patch); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	h.writeProjection(w, op, plan, result)
}

func (h *handler) handleIterationCurrent(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIterationCurrent"
	number, err := iterationNumber(r)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	var req projectionRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	plan, result, err := h.editPlan(req)
	if err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	if err := plan.SetCurrent(number); err != nil {
		h.respondError(w, r, statusFor(err), err, op)
		return
	}
	h.writeProjection(w, op, plan, result)
}
