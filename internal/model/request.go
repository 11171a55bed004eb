package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Hub      string `json:"hub"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type SiteEntryInput struct {
	SiteCode     string `json:"site_code"`
	SiteName     string `json:"site_name"`
	HubOffice    string `json:"hub_office"`
	State        string `json:"state"`
	Locality     string `json:"locality"`
	CPName       string `json:"cp_name"`
	MainActivity string `json:"main_activity"`
	SiteActivity string `json:"site_activity"`
	VisitType    string `json:"visit_type"`
	VisitDate    string `json:"visit_date"`
	VisitedBy    string `json:"visited_by"`
	InMoDa       bool   `json:"in_moda"`
	Status       string `json:"status"`
	Comments     string `json:"comments"`
}

type CreateMMPRequest struct {
	Name        string           `json:"name"`
	ProjectID   string           `json:"project_id"`
	Hub         string           `json:"hub"`
	Region      string           `json:"region"`
	Entries     int              `json:"entries"`
	SiteEntries []SiteEntryInput `json:"site_entries"`
	Financial   *Financial       `json:"financial"`
}

type UpdateMMPRequest struct {
	Name             *string `json:"name"`
	Hub              *string `json:"hub"`
	Region           *string `json:"region"`
	Entries          *int    `json:"entries"`
	ProcessedEntries *int    `json:"processed_entries"`
	Changes          string  `json:"changes"`
}

type AddSitesRequest struct {
	SiteEntries []SiteEntryInput `json:"site_entries"`
}

type ApproveRequest struct {
	Comments string `json:"comments"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type DecisionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type FlagSiteRequest struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason"`
}

type ContentVerificationRequest struct {
	Notes string `json:"notes"`
}

type PermitUploadRequest struct {
	FileName    string `json:"file_name"`
	FileURL     string `json:"file_url"`
	PermitType  string `json:"permit_type"`
	State       string `json:"state"`
	Description string `json:"description"`
	IssueDate   string `json:"issue_date"`
	ExpiryDate  string `json:"expiry_date"`
}

// Amounts are decimal currency strings (e.g. "1500.25") converted to cents server-side.
type CreateMMPBudgetRequest struct {
	MMPFileID         string            `json:"mmp_file_id"`
	ProjectBudgetID   string            `json:"project_budget_id"`
	AllocatedBudget   string            `json:"allocated_budget"`
	TotalSites        int               `json:"total_sites"`
	CategoryBreakdown map[string]string `json:"category_breakdown"`
	SourceType        string            `json:"source_type"`
	Notes             string            `json:"notes"`
}

type CreateProjectBudgetRequest struct {
	ProjectID         string            `json:"project_id"`
	Name              string            `json:"name"`
	Period            string            `json:"period"`
	TotalBudget       string            `json:"total_budget"`
	CategoryBreakdown map[string]string `json:"category_breakdown"`
}

type BudgetMovementRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}
