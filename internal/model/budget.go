package model

import "time"

type BudgetCategory string

const (
	CategorySiteVisitFees  BudgetCategory = "site_visit_fees"
	CategoryTransportation BudgetCategory = "transportation"
	CategoryAccommodation  BudgetCategory = "accommodation"
	CategoryMeals          BudgetCategory = "meals"
	CategoryOther          BudgetCategory = "other"
)

// BudgetCategories is the fixed set used by category breakdowns.
var BudgetCategories = []BudgetCategory{
	CategorySiteVisitFees,
	CategoryTransportation,
	CategoryAccommodation,
	CategoryMeals,
	CategoryOther,
}

func (c BudgetCategory) Valid() bool {
	for _, candidate := range BudgetCategories {
		if c == candidate {
			return true
		}
	}
	return false
}

// CategoryBreakdown maps a category to an amount in cents.
type CategoryBreakdown map[BudgetCategory]int64

func (b CategoryBreakdown) Total() int64 {
	var total int64
	for _, cents := range b {
		total += cents
	}
	return total
}

type BudgetSource string

const (
	SourceProjectAllocation BudgetSource = "project_allocation"
	SourceTopUp             BudgetSource = "top_up"
	SourceAdditionalFunding BudgetSource = "additional_funding"
	SourceReallocation      BudgetSource = "reallocation"
)

type BudgetPeriod string

const (
	PeriodMonthly         BudgetPeriod = "monthly"
	PeriodQuarterly       BudgetPeriod = "quarterly"
	PeriodAnnual          BudgetPeriod = "annual"
	PeriodProjectLifetime BudgetPeriod = "project_lifetime"
)

type BudgetStatus string

const (
	BudgetActive   BudgetStatus = "active"
	BudgetExceeded BudgetStatus = "exceeded"
	BudgetClosed   BudgetStatus = "closed"
)

type BudgetKind string

const (
	BudgetKindProject BudgetKind = "project"
	BudgetKindMMP     BudgetKind = "mmp"
)

// Ledger holds the integer-cents figures shared by project and MMP budgets.
// Remaining is recomputed on every service write; the database does not enforce it.
type Ledger struct {
	AllocatedBudgetCents int64 `json:"allocated_budget_cents"`
	SpentBudgetCents     int64 `json:"spent_budget_cents"`
	RemainingBudgetCents int64 `json:"remaining_budget_cents"`
}

type ProjectBudget struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	Period    BudgetPeriod `json:"period"`
	Ledger
	CommittedBudgetCents int64             `json:"committed_budget_cents"`
	CategoryBreakdown    CategoryBreakdown `json:"category_breakdown,omitempty"`
	Status               BudgetStatus      `json:"status"`
	CreatedBy            string            `json:"created_by"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

type MMPBudget struct {
	ID              string `json:"id"`
	MMPFileID       string `json:"mmp_file_id"`
	ProjectBudgetID string `json:"project_budget_id,omitempty"`
	Ledger
	TotalSites              int               `json:"total_sites"`
	AverageCostPerSiteCents int64             `json:"average_cost_per_site_cents"`
	CategoryBreakdown       CategoryBreakdown `json:"category_breakdown"`
	SourceType              BudgetSource      `json:"source_type"`
	Notes                   string            `json:"notes,omitempty"`
	Status                  BudgetStatus      `json:"status"`
	CreatedBy               string            `json:"created_by"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

type TransactionType string

const (
	TransactionAllocation TransactionType = "allocation"
	TransactionTopUp      TransactionType = "top_up"
	TransactionSpend      TransactionType = "spend"
)

type BudgetTransaction struct {
	ID          string          `json:"id"`
	BudgetKind  BudgetKind      `json:"budget_kind"`
	BudgetID    string          `json:"budget_id"`
	Type        TransactionType `json:"type"`
	AmountCents int64           `json:"amount_cents"`
	Category    BudgetCategory  `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

type BudgetSummary struct {
	TotalBudgetCents    int64   `json:"total_budget_cents"`
	TotalSpentCents     int64   `json:"total_spent_cents"`
	TotalRemainingCents int64   `json:"total_remaining_cents"`
	UtilizationRate     float64 `json:"utilization_rate"`
	ProjectBudgets      int     `json:"project_budgets"`
	MMPBudgets          int     `json:"mmp_budgets"`
}

type MMPBudgetResult struct {
	Budget   MMPBudget `json:"budget"`
	Warnings []string  `json:"warnings,omitempty"`
}
