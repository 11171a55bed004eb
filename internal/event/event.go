package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMMPUploaded   Type = "mmp.uploaded"
	TypeMMPUpdated    Type = "mmp.updated"
	TypeMMPReviewed   Type = "mmp.reviewed"
	TypeMMPVerified   Type = "mmp.verified"
	TypeMMPApproved   Type = "mmp.approved"
	TypeMMPRejected   Type = "mmp.rejected"
	TypeMMPArchived   Type = "mmp.archived"
	TypeMMPReset      Type = "mmp.reset"
	TypeMMPDeleted    Type = "mmp.deleted"
	TypeMMPRestored   Type = "mmp.restored"
	TypeSiteDecided   Type = "site.decided"
	TypePermitAdded   Type = "permit.added"
	TypePermitDecided Type = "permit.decided"
	TypeBudgetCreated Type = "budget.created"
	TypeBudgetTopUp   Type = "budget.top_up"
	TypeBudgetSpend   Type = "budget.spend"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
	// Hub scopes delivery to hub-restricted websocket clients; empty means everyone.
	Hub string `json:"hub,omitempty"`
}

// New stamps an event with an id and the current UTC time.
func New(t Type, actorID, hub string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ActorID:   actorID,
		Hub:       hub,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
