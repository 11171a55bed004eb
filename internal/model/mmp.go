package model

import (
	"fmt"
	"time"
)

type MMPStatus string

const (
	MMPStatusPending  MMPStatus = "pending"
	MMPStatusApproved MMPStatus = "approved"
	MMPStatusRejected MMPStatus = "rejected"
	MMPStatusArchived MMPStatus = "archived"
	MMPStatusDeleted  MMPStatus = "deleted"
)

var MMPStatuses = []MMPStatus{
	MMPStatusPending,
	MMPStatusApproved,
	MMPStatusRejected,
	MMPStatusArchived,
	MMPStatusDeleted,
}

func (s MMPStatus) Valid() bool {
	for _, candidate := range MMPStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

type ApprovalRecord struct {
	ApprovedBy string    `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
	Comments   string    `json:"comments,omitempty"`
}

type ApprovalWorkflow struct {
	FirstApproval *ApprovalRecord `json:"first_approval,omitempty"`
	FinalApproval *ApprovalRecord `json:"final_approval,omitempty"`
}

type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

type Modification struct {
	Timestamp       time.Time `json:"timestamp"`
	ModifiedBy      string    `json:"modified_by"`
	Changes         string    `json:"changes"`
	PreviousVersion string    `json:"previous_version"`
	NewVersion      string    `json:"new_version"`
}

type FeeBreakdown struct {
	BaseFee                 int64 `json:"base_fee,omitempty"`
	DistanceSurcharge       int64 `json:"distance_surcharge,omitempty"`
	ComplexitySurcharge     int64 `json:"complexity_surcharge,omitempty"`
	UrgencySurcharge        int64 `json:"urgency_surcharge,omitempty"`
	TransportationAllowance int64 `json:"transportation_allowance,omitempty"`
}

type Financial struct {
	BudgetAllocationCents int64         `json:"budget_allocation_cents,omitempty"`
	Currency              string        `json:"currency,omitempty"`
	FeeBreakdown          *FeeBreakdown `json:"fee_breakdown,omitempty"`
	ApprovalStatus        string        `json:"approval_status,omitempty"`
	ApprovedBy            string        `json:"approved_by,omitempty"`
	PaymentMethod         string        `json:"payment_method,omitempty"`
}

type Incident struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Resolved    bool   `json:"resolved"`
}

type Performance struct {
	CompletionStatus   string     `json:"completion_status,omitempty"`
	Progress           int        `json:"progress,omitempty"`
	SupervisorRating   int        `json:"supervisor_rating,omitempty"`
	SupervisorFeedback string     `json:"supervisor_feedback,omitempty"`
	Incidents          []Incident `json:"incidents,omitempty"`
}

// MMPFile is a monitoring plan submission together with its site entries and permits.
type MMPFile struct {
	ID               string    `json:"id"`
	MMPID            string    `json:"mmp_id"`
	Name             string    `json:"name"`
	ProjectID        string    `json:"project_id,omitempty"`
	Hub              string    `json:"hub,omitempty"`
	Region           string    `json:"region,omitempty"`
	Status           MMPStatus `json:"status"`
	Entries          int       `json:"entries"`
	ProcessedEntries int       `json:"processed_entries"`
	Version          Version   `json:"version"`

	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`

	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	VerifiedBy      string     `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	ArchivedBy      string     `json:"archived_by,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	DeletedBy       string     `json:"deleted_by,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`

	ApprovalWorkflow          *ApprovalWorkflow          `json:"approval_workflow,omitempty"`
	ComprehensiveVerification *ComprehensiveVerification `json:"comprehensive_verification,omitempty"`
	SiteEntries               []SiteEntry                `json:"site_entries"`
	Permits                   PermitsData                `json:"permits"`
	Financial                 *Financial                 `json:"financial,omitempty"`
	Performance               *Performance               `json:"performance,omitempty"`
	ModificationHistory       []Modification             `json:"modification_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalSiteCount prefers the actual site entries over the declared entry count.
func (f MMPFile) TotalSiteCount() int {
	if len(f.SiteEntries) > 0 {
		return len(f.SiteEntries)
	}
	return f.Entries
}

// ProcessingPercentage is the rounded share of processed entries over the total site count.
func (f MMPFile) ProcessingPercentage() int {
	total := f.TotalSiteCount()
	if total <= 0 {
		return 0
	}
	return (f.ProcessedEntries*100 + total/2) / total
}

// ValidForSiteVisits reports whether the plan can be used to schedule site visits.
func (f MMPFile) ValidForSiteVisits() bool {
	return f.ID != "" && f.Status == MMPStatusApproved && f.TotalSiteCount() > 0
}

// Clone returns a copy that shares no mutable state with f.
func (f MMPFile) Clone() MMPFile {
	out := f

	if f.ApprovalWorkflow != nil {
		wf := ApprovalWorkflow{}
		if f.ApprovalWorkflow.FirstApproval != nil {
			first := *f.ApprovalWorkflow.FirstApproval
			wf.FirstApproval = &first
		}
		if f.ApprovalWorkflow.FinalApproval != nil {
			final := *f.ApprovalWorkflow.FinalApproval
			wf.FinalApproval = &final
		}
		out.ApprovalWorkflow = &wf
	}

	if f.ComprehensiveVerification != nil {
		cv := f.ComprehensiveVerification.Clone()
		out.ComprehensiveVerification = &cv
	}

	if f.SiteEntries != nil {
		out.SiteEntries = make([]SiteEntry, len(f.SiteEntries))
		copy(out.SiteEntries, f.SiteEntries)
	}

	if f.Permits.Documents != nil {
		out.Permits.Documents = make([]PermitDocument, len(f.Permits.Documents))
		copy(out.Permits.Documents, f.Permits.Documents)
	}

	if f.Financial != nil {
		financial := *f.Financial
		if f.Financial.FeeBreakdown != nil {
			fees := *f.Financial.FeeBreakdown
			financial.FeeBreakdown = &fees
		}
		out.Financial = &financial
	}

	if f.Performance != nil {
		performance := *f.Performance
		if f.Performance.Incidents != nil {
			performance.Incidents = append([]Incident(nil), f.Performance.Incidents...)
		}
		out.Performance = &performance
	}

	if f.ModificationHistory != nil {
		out.ModificationHistory = append([]Modification(nil), f.ModificationHistory...)
	}

	return out
}

type SiteEntry struct {
	ID           string `json:"id"`
	MMPFileID    string `json:"mmp_file_id"`
	Position     int    `json:"position"`
	SiteCode     string `json:"site_code,omitempty"`
	SiteName     string `json:"site_name,omitempty"`
	HubOffice    string `json:"hub_office,omitempty"`
	State        string `json:"state,omitempty"`
	Locality     string `json:"locality,omitempty"`
	CPName       string `json:"cp_name,omitempty"`
	MainActivity string `json:"main_activity,omitempty"`
	SiteActivity string `json:"site_activity,omitempty"`
	VisitType    string `json:"visit_type,omitempty"`
	VisitDate    string `json:"visit_date,omitempty"`
	VisitedBy    string `json:"visited_by,omitempty"`
	InMoDa       bool   `json:"in_moda"`
	Status       string `json:"status,omitempty"`
	Comments     string `json:"comments,omitempty"`

	IsFlagged  bool       `json:"is_flagged"`
	FlagReason string     `json:"flag_reason,omitempty"`
	FlaggedBy  string     `json:"flagged_by,omitempty"`
	FlaggedAt  *time.Time `json:"flagged_at,omitempty"`

	VerificationStatus Decision   `json:"verification_status,omitempty"`
	VerificationNotes  string     `json:"verification_notes,omitempty"`
	VerifiedBy         string     `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
}

// MMPMutation is the outcome of a write. Persisted is false when the database write failed
// and the record was only mirrored to the local fallback store.
type MMPMutation struct {
	File      MMPFile `json:"file"`
	Stage     string  `json:"stage"`
	Persisted bool    `json:"persisted"`
}

type MMPQuery struct {
	Search       string
	Status       string
	Hub          string
	ProjectID    string
	UploadedFrom string
	UploadedTo   string
	Page         int
	Limit        int
}

type MMPList struct {
	Items    []MMPFile `json:"items"`
	Shown    int       `json:"shown"`
	Total    int       `json:"total"`
	Summary  string    `json:"summary"`
	Degraded bool      `json:"degraded,omitempty"`
}
