// Package export renders audit entries, site entries and budgets as downloadable files.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mmp-tracker/internal/budget"
	"mmp-tracker/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05"

var auditHeader = []string{"Timestamp", "Action", "Category", "Description", "User", "User Role", "Details", "Status"}

// Filename builds names like audit-report-2026-03-14.csv.
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02"), ext)
}

// quotedWriter writes CSV where every field is quoted and embedded quotes are doubled.
// encoding/csv only quotes fields that need it, which spreadsheet imports of the audit
// report do not expect.
type quotedWriter struct {
	w   io.Writer
	err error
}

func (q *quotedWriter) row(fields ...string) {
	if q.err != nil {
		return
	}
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, q.err = io.WriteString(q.w, b.String())
}

// AuditCSV writes the entries and returns how many records were written.
func AuditCSV(w io.Writer, entries []model.AuditEntry) (int, error) {
	q := &quotedWriter{w: w}
	q.row(auditHeader...)
	for _, e := range entries {
		q.row(
			e.OccurredAt.Format(timestampLayout),
			e.Action,
			e.Category,
			e.Description,
			actorName(e.Actor),
			e.Actor.Role,
			e.Details,
			e.Status,
		)
	}
	if q.err != nil {
		return 0, fmt.Errorf("write audit csv: %w", q.err)
	}
	return len(entries), nil
}

type auditRecord struct {
	Timestamp   string         `json:"timestamp"`
	Action      string         `json:"action"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	User        string         `json:"user"`
	UserRole    string         `json:"userRole"`
	Details     string         `json:"details"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AuditJSON writes an indented JSON array and returns how many records were written.
func AuditJSON(w io.Writer, entries []model.AuditEntry) (int, error) {
	records := make([]auditRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, auditRecord{
			Timestamp:   e.OccurredAt.UTC().Format(time.RFC3339),
			Action:      e.Action,
			Category:    e.Category,
			Description: e.Description,
			User:        actorName(e.Actor),
			UserRole:    e.Actor.Role,
			Details:     e.Details,
			Status:      e.Status,
			Metadata:    e.Metadata,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return 0, fmt.Errorf("write audit json: %w", err)
	}
	return len(records), nil
}

func actorName(a model.AuditActor) string {
	if a.Username != "" {
		return a.Username
	}
	return a.UserID
}

var siteHeader = []string{
	"Position", "Site Code", "Site Name", "Hub Office", "State", "Locality", "CP Name",
	"Main Activity", "Visit Type", "Visit Date", "Visited By", "In MoDa", "Status",
	"Flagged", "Verification", "Comments",
}

// SiteEntriesCSV writes one row per site entry of a plan.
func SiteEntriesCSV(w io.Writer, sites []model.SiteEntry) (int, error) {
	q := &quotedWriter{w: w}
	q.row(siteHeader...)
	for _, s := range sites {
		verification := string(s.VerificationStatus)
		if verification == "" {
			verification = "pending"
		}
		q.row(
			strconv.Itoa(s.Position+1),
			s.SiteCode,
			s.SiteName,
			s.HubOffice,
			s.State,
			s.Locality,
			s.CPName,
			s.MainActivity,
			s.VisitType,
			s.VisitDate,
			s.VisitedBy,
			yesNo(s.InMoDa),
			s.Status,
			yesNo(s.IsFlagged),
			verification,
			s.Comments,
		)
	}
	if q.err != nil {
		return 0, fmt.Errorf("write site csv: %w", q.err)
	}
	return len(sites), nil
}

var budgetHeader = []string{"Kind", "ID", "Reference", "Allocated", "Spent", "Remaining", "Utilization %", "Badge", "Status"}

// BudgetsCSV writes project budgets followed by MMP budgets.
func BudgetsCSV(w io.Writer, projects []model.ProjectBudget, mmps []model.MMPBudget) (int, error) {
	q := &quotedWriter{w: w}
	q.row(budgetHeader...)
	for _, p := range projects {
		q.row(ledgerRow(string(model.BudgetKindProject), p.ID, p.ProjectID, p.Ledger, p.Status)...)
	}
	for _, m := range mmps {
		q.row(ledgerRow(string(model.BudgetKindMMP), m.ID, m.MMPFileID, m.Ledger, m.Status)...)
	}
	if q.err != nil {
		return 0, fmt.Errorf("write budget csv: %w", q.err)
	}
	return len(projects) + len(mmps), nil
}

func ledgerRow(kind, id, ref string, l model.Ledger, status model.BudgetStatus) []string {
	return []string{
		kind,
		id,
		ref,
		budget.FormatCents(l.AllocatedBudgetCents),
		budget.FormatCents(l.SpentBudgetCents),
		budget.FormatCents(l.RemainingBudgetCents),
		strconv.FormatFloat(budget.Utilization(l), 'f', 2, 64),
		budget.Badge(l),
		string(status),
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
