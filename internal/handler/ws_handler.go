package handler

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"mmp-tracker/internal/websocket"
)

type WSHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
}

func NewWSHandler(hub *websocket.Hub, origins []string) *WSHandler {
	return &WSHandler{hub: hub, upgrader: websocket.Upgrader(origins)}
}

// Serve upgrades the connection. Hub-restricted viewers only receive events of their hub.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromRequest(r)
	scope := ""
	if viewer.HubRestricted() {
		scope = viewer.Hub
	}
	websocket.ServeWS(h.hub, h.upgrader, w, r, viewer.UserID, scope)
}
