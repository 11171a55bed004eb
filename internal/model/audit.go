package model

import "time"

const (
	AuditStatusSuccess  = "success"
	AuditStatusFailed   = "failed"
	AuditStatusDegraded = "degraded"
)

type AuditActor struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	IP       string `json:"ip,omitempty"`
	// Hub scopes what the actor may touch; it is not recorded.
	Hub string `json:"-"`
}

func (a AuditActor) Viewer() Viewer {
	return Viewer{UserID: a.UserID, Role: a.Role, Hub: a.Hub}
}

type AuditEntry struct {
	ID          string         `json:"id,omitempty"`
	Action      string         `json:"action"`
	Category    string         `json:"category"`
	Description string         `json:"description,omitempty"`
	Details     string         `json:"details,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Actor       AuditActor     `json:"actor"`
	Status      string         `json:"status"`
	Resource    string         `json:"resource,omitempty"`
	Before      any            `json:"before,omitempty"`
	After       any            `json:"after,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type AuditQuery struct {
	Action   string
	Category string
	ActorID  string
	Status   string
	Resource string
	Search   string
	From     string
	To       string
	Page     int
	Limit    int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
