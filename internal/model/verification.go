package model

import "time"

type VerificationStatus string

const (
	VerificationPending    VerificationStatus = "pending"
	VerificationInProgress VerificationStatus = "in-progress"
	VerificationComplete   VerificationStatus = "complete"
)

type SystemValidation struct {
	Status                    VerificationStatus `json:"status"`
	FileIntegrity             bool               `json:"file_integrity"`
	NoDuplicates              bool               `json:"no_duplicates"`
	CompliantWithRequirements bool               `json:"compliant_with_requirements"`
	EntryProcessingComplete   bool               `json:"entry_processing_complete"`
}

type ContentVerification struct {
	Status           VerificationStatus `json:"status"`
	VerifiedBy       string             `json:"verified_by,omitempty"`
	VerifiedAt       *time.Time         `json:"verified_at,omitempty"`
	FileReviewed     bool               `json:"file_reviewed"`
	ContentValidated bool               `json:"content_validated"`
	Notes            string             `json:"notes,omitempty"`
}

type CPVerification struct {
	Status               VerificationStatus `json:"status"`
	VerifiedBy           string             `json:"verified_by,omitempty"`
	VerifiedAt           *time.Time         `json:"verified_at,omitempty"`
	CompletionPercentage int                `json:"completion_percentage"`
	SitesDecided         int                `json:"sites_decided"`
	SitesTotal           int                `json:"sites_total"`
}

type PermitVerification struct {
	Status               VerificationStatus `json:"status"`
	VerifiedBy           string             `json:"verified_by,omitempty"`
	VerifiedAt           *time.Time         `json:"verified_at,omitempty"`
	CompletionPercentage int                `json:"completion_percentage"`
	PermitsDecided       int                `json:"permits_decided"`
	PermitsTotal         int                `json:"permits_total"`
}

type ComprehensiveVerification struct {
	SystemValidation     *SystemValidation    `json:"system_validation,omitempty"`
	ContentVerification  *ContentVerification `json:"content_verification,omitempty"`
	CPVerification       *CPVerification      `json:"cp_verification,omitempty"`
	PermitVerification   *PermitVerification  `json:"permit_verification,omitempty"`
	OverallStatus        VerificationStatus   `json:"overall_status"`
	CanProceedToApproval bool                 `json:"can_proceed_to_approval"`
	LastUpdated          *time.Time           `json:"last_updated,omitempty"`
	UpdatedBy            string               `json:"updated_by,omitempty"`
}

func (c ComprehensiveVerification) Clone() ComprehensiveVerification {
	out := c
	if c.SystemValidation != nil {
		v := *c.SystemValidation
		out.SystemValidation = &v
	}
	if c.ContentVerification != nil {
		v := *c.ContentVerification
		out.ContentVerification = &v
	}
	if c.CPVerification != nil {
		v := *c.CPVerification
		out.CPVerification = &v
	}
	if c.PermitVerification != nil {
		v := *c.PermitVerification
		out.PermitVerification = &v
	}
	return out
}

// VerificationView is the verification page of one MMP file.
type VerificationView struct {
	MMPFileID      string                     `json:"mmp_file_id"`
	MMPID          string                     `json:"mmp_id"`
	Status         MMPStatus                  `json:"status"`
	Stage          string                     `json:"stage"`
	Actions        []string                   `json:"actions"`
	Verification   *ComprehensiveVerification `json:"comprehensive_verification"`
	SitesTotal     int                        `json:"sites_total"`
	SitesVerified  int                        `json:"sites_verified"`
	SitesRejected  int                        `json:"sites_rejected"`
	SitesFlagged   int                        `json:"sites_flagged"`
	SiteProgress   int                        `json:"site_progress"`
	PermitProgress int                        `json:"permit_progress"`
	Permits        PermitsData                `json:"permits"`
}
