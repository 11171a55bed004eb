// Package budget converts currency input to integer cents and keeps budget ledgers
// consistent. Amounts are always stored in cents.
package budget

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"mmp-tracker/internal/model"
)

var (
	ErrInvalidAmount     = errors.New("amount must be a decimal number")
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrAllocationZero    = errors.New("allocated budget must be greater than zero")
	ErrUnknownCategory   = errors.New("unknown budget category")
	ErrAmountTooLarge    = errors.New("amount is too large")
)

const (
	BadgeOK        = "ok"
	BadgeWarning   = "warning"
	BadgeExhausted = "exhausted"
	BadgeExceeded  = "exceeded"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ParseCents converts "1500.255" style input into cents, rounding half away from zero.
// Empty input is zero.
func ParseCents(raw string) (int64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return 0, nil
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	cents := amount.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %q", ErrAmountTooLarge, raw)
	}
	return cents.IntPart(), nil
}

// AddCents sums two non-negative cent amounts, refusing a total beyond int64.
func AddCents(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrAmountTooLarge
	}
	return a + b, nil
}

// ParsePositiveCents is ParseCents for amounts that must be above zero.
func ParsePositiveCents(raw string) (int64, error) {
	cents, err := ParseCents(raw)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrNonPositiveAmount
	}
	return cents, nil
}

// FormatCents renders cents as a fixed two-decimal string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParseBreakdown converts a category → decimal string map. Unknown categories are rejected.
func ParseBreakdown(raw map[string]string) (model.CategoryBreakdown, error) {
	out := make(model.CategoryBreakdown, len(model.BudgetCategories))
	for _, c := range model.BudgetCategories {
		out[c] = 0
	}
	for key, value := range raw {
		category := model.BudgetCategory(strings.ToLower(strings.TrimSpace(key)))
		if !category.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, key)
		}
		cents, err := ParseCents(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", category, err)
		}
		out[category] = cents
	}

	var total int64
	for _, cents := range out {
		var err error
		if total, err = AddCents(total, cents); err != nil {
			return nil, fmt.Errorf("category total: %w", err)
		}
	}
	return out, nil
}

// ValidateAllocation checks an MMP budget allocation against its category breakdown.
// A zero allocation is blocking; a breakdown above the allocation only yields a warning.
func ValidateAllocation(allocatedCents int64, breakdown model.CategoryBreakdown) ([]string, error) {
	if allocatedCents <= 0 {
		return nil, ErrAllocationZero
	}

	var warnings []string
	if total := breakdown.Total(); total > allocatedCents {
		warnings = append(warnings, fmt.Sprintf("category total exceeds budget by SDG %s", FormatCents(total-allocatedCents)))
	}
	return warnings, nil
}

// AverageCostPerSite returns allocated/sites rounded to the nearest cent.
func AverageCostPerSite(allocatedCents int64, sites int) int64 {
	if sites <= 0 {
		return 0
	}
	return decimal.NewFromInt(allocatedCents).Div(decimal.NewFromInt(int64(sites))).Round(0).IntPart()
}

// Utilization is spent/allocated as a percentage with two decimals.
func Utilization(l model.Ledger) float64 {
	if l.AllocatedBudgetCents <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(l.SpentBudgetCents).Mul(hundred).Div(decimal.NewFromInt(l.AllocatedBudgetCents)).Round(2)
	f, _ := pct.Float64()
	return f
}

// Badge maps a ledger onto the utilization badge shown beside a budget.
func Badge(l model.Ledger) string {
	switch {
	case l.SpentBudgetCents > l.AllocatedBudgetCents:
		return BadgeExceeded
	case l.AllocatedBudgetCents > 0 && l.SpentBudgetCents >= l.AllocatedBudgetCents:
		return BadgeExhausted
	case l.AllocatedBudgetCents > 0 && l.SpentBudgetCents*100 >= l.AllocatedBudgetCents*80:
		return BadgeWarning
	default:
		return BadgeOK
	}
}

// Recompute derives remaining from allocated and spent, and the status from the result.
// Closed budgets stay closed.
func Recompute(l *model.Ledger, status model.BudgetStatus) model.BudgetStatus {
	l.RemainingBudgetCents = l.AllocatedBudgetCents - l.SpentBudgetCents
	if status == model.BudgetClosed {
		return status
	}
	if l.SpentBudgetCents > l.AllocatedBudgetCents {
		return model.BudgetExceeded
	}
	return model.BudgetActive
}

func TopUp(l *model.Ledger, status model.BudgetStatus, cents int64) (model.BudgetStatus, error) {
	if cents <= 0 {
		return status, ErrNonPositiveAmount
	}
	allocated, err := AddCents(l.AllocatedBudgetCents, cents)
	if err != nil {
		return status, err
	}
	l.AllocatedBudgetCents = allocated
	return Recompute(l, status), nil
}

// Spend records spending. Overspending is allowed and flips the status to exceeded.
func Spend(l *model.Ledger, status model.BudgetStatus, cents int64) (model.BudgetStatus, error) {
	if cents <= 0 {
		return status, ErrNonPositiveAmount
	}
	spent, err := AddCents(l.SpentBudgetCents, cents)
	if err != nil {
		return status, err
	}
	l.SpentBudgetCents = spent
	return Recompute(l, status), nil
}

// Summarize totals project-level and MMP-level budgets. MMP budgets funded from a project
// budget are already counted in the project figures and are skipped to avoid double counting.
func Summarize(projects []model.ProjectBudget, mmps []model.MMPBudget) model.BudgetSummary {
	var total model.Ledger
	for _, p := range projects {
		total.AllocatedBudgetCents += p.AllocatedBudgetCents
		total.SpentBudgetCents += p.SpentBudgetCents
	}
	for _, m := range mmps {
		if m.ProjectBudgetID != "" {
			continue
		}
		total.AllocatedBudgetCents += m.AllocatedBudgetCents
		total.SpentBudgetCents += m.SpentBudgetCents
	}
	total.RemainingBudgetCents = total.AllocatedBudgetCents - total.SpentBudgetCents

	return model.BudgetSummary{
		TotalBudgetCents:    total.AllocatedBudgetCents,
		TotalSpentCents:     total.SpentBudgetCents,
		TotalRemainingCents: total.RemainingBudgetCents,
		UtilizationRate:     Utilization(total),
		ProjectBudgets:      len(projects),
		MMPBudgets:          len(mmps),
	}
}
