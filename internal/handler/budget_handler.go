package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/service"
)

type BudgetHandler struct {
	service *service.BudgetService
}

func NewBudgetHandler(service *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{service: service}
}

func (h *BudgetHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListProjectBudgets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, items, nil)
}

func (h *BudgetHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateProjectBudgetRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.service.CreateProjectBudget(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, p, nil)
}

// ListMMP lists MMP budgets, optionally for one file (?mmp_file_id=).
func (h *BudgetHandler) ListMMP(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListMMPBudgets(r.Context(), r.URL.Query().Get("mmp_file_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, items, nil)
}

func (h *BudgetHandler) CreateMMP(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateMMPBudgetRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.CreateMMPBudget(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, res, nil)
}

func (h *BudgetHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	var payload model.BudgetMovementRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.service.TopUp(r.Context(), actorFromRequest(r), budgetKind(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, out, nil)
}

func (h *BudgetHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var payload model.BudgetMovementRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.service.Spend(r.Context(), actorFromRequest(r), budgetKind(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, out, nil)
}

func (h *BudgetHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Transactions(r.Context(), budgetKind(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, items, nil)
}

func (h *BudgetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, summary, nil)
}

func (h *BudgetHandler) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeExport(w, res)
}

func budgetKind(r *http.Request) model.BudgetKind {
	return model.BudgetKind(strings.ToLower(chi.URLParam(r, "kind")))
}
