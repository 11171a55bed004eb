package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/service"
)

type VerificationHandler struct {
	service *service.MMPService
	mmp     *MMPHandler
}

func NewVerificationHandler(service *service.MMPService) *VerificationHandler {
	return &VerificationHandler{service: service, mmp: NewMMPHandler(service)}
}

func (h *VerificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Verification(r.Context(), viewerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, view, nil)
}

func (h *VerificationHandler) CompleteContent(w http.ResponseWriter, r *http.Request) {
	var payload model.ContentVerificationRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	h.mmp.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.CompleteContent(ctx, actor, id, payload.Notes)
	})
}

func (h *VerificationHandler) DecideSite(w http.ResponseWriter, r *http.Request) {
	var payload model.DecisionRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	siteID := chi.URLParam(r, "site_id")
	h.mmp.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.DecideSite(ctx, actor, id, siteID, payload)
	})
}

func (h *VerificationHandler) FlagSite(w http.ResponseWriter, r *http.Request) {
	var payload model.FlagSiteRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	siteID := chi.URLParam(r, "site_id")
	h.mmp.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.FlagSite(ctx, actor, id, siteID, payload)
	})
}

func (h *VerificationHandler) AddPermit(w http.ResponseWriter, r *http.Request) {
	var payload model.PermitUploadRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	h.mmp.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.AddPermit(ctx, actor, id, payload)
	})
}

func (h *VerificationHandler) DecidePermit(w http.ResponseWriter, r *http.Request) {
	var payload model.DecisionRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	permitID := chi.URLParam(r, "permit_id")
	h.mmp.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.DecidePermit(ctx, actor, id, permitID, payload)
	})
}
