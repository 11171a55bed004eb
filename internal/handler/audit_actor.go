package handler

import (
	"net/http"

	"mmp-tracker/internal/middleware"
	"mmp-tracker/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = claims.UserID
	actor.Username = claims.Username
	actor.Role = claims.Role
	actor.Hub = claims.Hub

	return actor
}

func viewerFromRequest(r *http.Request) model.Viewer {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return model.Viewer{}
	}
	return model.Viewer{UserID: claims.UserID, Role: claims.Role, Hub: claims.Hub}
}
