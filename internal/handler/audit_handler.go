package handler

import (
	"net/http"
	"net/url"
	"strings"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	items, meta, err := h.service.Query(r.Context(), auditQuery(r.URL.Query()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items}, &meta)
}

// Export streams every matching entry as CSV or JSON (?format=csv|json).
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	res, err := h.service.Export(r.Context(), auditQuery(query), query.Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeExport(w, res)
}

func auditQuery(query url.Values) model.AuditQuery {
	return model.AuditQuery{
		Action:   strings.TrimSpace(query.Get("action")),
		Category: strings.TrimSpace(query.Get("category")),
		ActorID:  strings.TrimSpace(query.Get("actor_id")),
		Status:   strings.TrimSpace(query.Get("status")),
		Resource: strings.TrimSpace(query.Get("resource")),
		Search:   strings.TrimSpace(query.Get("search")),
		From:     strings.TrimSpace(query.Get("from")),
		To:       strings.TrimSpace(query.Get("to")),
		Page:     parseIntOrDefault(query.Get("page"), 1),
		Limit:    parseIntOrDefault(query.Get("limit"), 50),
	}
}
