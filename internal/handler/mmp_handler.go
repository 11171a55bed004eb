package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/service"
)

type MMPHandler struct {
	service *service.MMPService
}

func NewMMPHandler(service *service.MMPService) *MMPHandler {
	return &MMPHandler{service: service}
}

func (h *MMPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, meta, err := h.service.List(r.Context(), viewerFromRequest(r), model.MMPQuery{
		Search:       strings.TrimSpace(query.Get("search")),
		Status:       strings.TrimSpace(query.Get("status")),
		Hub:          strings.TrimSpace(query.Get("hub")),
		ProjectID:    strings.TrimSpace(query.Get("project_id")),
		UploadedFrom: strings.TrimSpace(query.Get("uploaded_from")),
		UploadedTo:   strings.TrimSpace(query.Get("uploaded_to")),
		Page:         parseIntOrDefault(query.Get("page"), 1),
		Limit:        parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, list, &meta)
}

func (h *MMPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateMMPRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Create(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMutation(w, http.StatusCreated, res)
}

func (h *MMPHandler) Get(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.Find(r.Context(), viewerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, file, nil)
}

func (h *MMPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateMMPRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.Update(ctx, actor, id, payload)
	})
}

func (h *MMPHandler) AddSites(w http.ResponseWriter, r *http.Request) {
	var payload model.AddSitesRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.AddSites(ctx, actor, id, payload)
	})
}

func (h *MMPHandler) Review(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Review)
}

func (h *MMPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Verify)
}

func (h *MMPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var payload model.ApproveRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.Approve(ctx, actor, id, payload.Comments)
	})
}

func (h *MMPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var payload model.RejectRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
		return h.service.Reject(ctx, actor, id, payload.Reason)
	})
}

func (h *MMPHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Archive)
}

func (h *MMPHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Reset)
}

func (h *MMPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Delete)
}

func (h *MMPHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Restore)
}

func (h *MMPHandler) ExportSites(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ExportSites(r.Context(), viewerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeExport(w, res)
}

type mutationFunc func(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error)

func (h *MMPHandler) mutate(w http.ResponseWriter, r *http.Request, fn mutationFunc) {
	res, err := fn(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMutation(w, http.StatusOK, res)
}
