package model

type StatusCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Archived int `json:"archived"`
	Deleted  int `json:"deleted"`
}

type Dashboard struct {
	Hub                   string         `json:"hub,omitempty"`
	TotalFiles            int            `json:"total_files"`
	TotalSites            int            `json:"total_sites"`
	Statuses              StatusCounts   `json:"statuses"`
	AwaitingFirstApproval []MMPFile      `json:"awaiting_first_approval"`
	AwaitingFinalApproval []MMPFile      `json:"awaiting_final_approval"`
	Budget                *BudgetSummary `json:"budget,omitempty"`
	RecentActivity        []AuditEntry   `json:"recent_activity"`
	Degraded              bool           `json:"degraded"`
}
