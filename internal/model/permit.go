package model

import "time"

// Decision is the verify/reject outcome recorded on a permit or site entry.
// The zero value means no decision has been made yet.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionVerified Decision = "verified"
	DecisionRejected Decision = "rejected"
)

func (d Decision) Decided() bool {
	return d == DecisionVerified || d == DecisionRejected
}

type PermitType string

const (
	PermitTypeFederal PermitType = "federal"
	PermitTypeState   PermitType = "state"
)

type PermitDocument struct {
	ID                string     `json:"id"`
	FileName          string     `json:"file_name"`
	FileURL           string     `json:"file_url,omitempty"`
	PermitType        PermitType `json:"permit_type"`
	State             string     `json:"state,omitempty"`
	Description       string     `json:"description,omitempty"`
	IssueDate         string     `json:"issue_date,omitempty"`
	ExpiryDate        string     `json:"expiry_date,omitempty"`
	UploadedBy        string     `json:"uploaded_by,omitempty"`
	UploadedAt        time.Time  `json:"uploaded_at"`
	Status            Decision   `json:"status,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	VerifiedBy        string     `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
}

type PermitsData struct {
	Federal      bool             `json:"federal"`
	State        bool             `json:"state"`
	LastVerified *time.Time       `json:"last_verified,omitempty"`
	VerifiedBy   string           `json:"verified_by,omitempty"`
	Documents    []PermitDocument `json:"documents"`
}
