package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/service"
	"mmp-tracker/pkg/apierror"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

// List returns every user, optionally narrowed by ?role= and ?hub= (case-insensitive),
// e.g. to pick the field operations manager of a hub.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	role := strings.TrimSpace(r.URL.Query().Get("role"))
	hub := strings.TrimSpace(r.URL.Query().Get("hub"))
	if role != "" && !model.ValidRole(role) {
		writeError(w, apierror.BadRequest("unknown role", role))
		return
	}
	if role != "" || hub != "" {
		filtered := make([]model.AuthUser, 0, len(list.Users))
		for _, u := range list.Users {
			if role != "" && !strings.EqualFold(u.Role, role) {
				continue
			}
			if hub != "" && !strings.EqualFold(u.Hub, hub) {
				continue
			}
			filtered = append(filtered, u)
		}
		list.Users = filtered
	}
	writeSuccess(w, http.StatusOK, list, nil)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, user, nil)
}
