package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/model"
)

func sampleEntries() []model.AuditEntry {
	at := time.Date(2026, 3, 14, 9, 5, 7, 0, time.UTC)
	return []model.AuditEntry{
		{
			Action:      "approve",
			Category:    "mmp",
			Description: `Approved "March" plan`,
			Details:     "first approval",
			OccurredAt:  at,
			Actor:       model.AuditActor{UserID: "u-1", Username: "amal", Role: "fom"},
			Status:      model.AuditStatusSuccess,
			Metadata:    map[string]any{"mmp_id": "M-1"},
		},
		{
			Action:     "reject",
			Category:   "mmp",
			OccurredAt: at.Add(time.Minute),
			Actor:      model.AuditActor{UserID: "u-2", Role: "admin"},
			Status:     model.AuditStatusDegraded,
		},
	}
}

func TestAuditCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := AuditCSV(&buf, sampleEntries())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"Timestamp","Action","Category","Description","User","User Role","Details","Status"`, lines[0])
	assert.Equal(t, `"2026-03-14 09:05:07","approve","mmp","Approved ""March"" plan","amal","fom","first approval","success"`, lines[1])
	assert.Contains(t, lines[2], `"u-2","admin"`)
}

func TestAuditCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := AuditCSV(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestAuditJSON(t *testing.T) {
	var buf bytes.Buffer
	n, err := AuditJSON(&buf, sampleEntries())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, strings.HasPrefix(buf.String(), "[\n  {"))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "amal", decoded[0]["user"])
	assert.Equal(t, "fom", decoded[0]["userRole"])
	assert.Equal(t, "2026-03-14T09:05:07Z", decoded[0]["timestamp"])
	assert.Equal(t, map[string]any{"mmp_id": "M-1"}, decoded[0]["metadata"])
}

func TestSiteEntriesCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := SiteEntriesCSV(&buf, []model.SiteEntry{
		{Position: 0, SiteCode: "KRT-1", SiteName: "Bahri", InMoDa: true, VerificationStatus: model.DecisionVerified},
		{Position: 1, SiteCode: "KRT-2", IsFlagged: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	out := buf.String()
	assert.Contains(t, out, `"1","KRT-1","Bahri"`)
	assert.Contains(t, out, `"Yes","","No","verified"`)
	assert.Contains(t, out, `"Yes","pending",""`)
}

func TestBudgetsCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := BudgetsCSV(&buf,
		[]model.ProjectBudget{{ID: "p1", ProjectID: "proj", Ledger: model.Ledger{AllocatedBudgetCents: 10000, SpentBudgetCents: 8500, RemainingBudgetCents: 1500}, Status: model.BudgetActive}},
		[]model.MMPBudget{{ID: "m1", MMPFileID: "f-1", Ledger: model.Ledger{AllocatedBudgetCents: 100, SpentBudgetCents: 150, RemainingBudgetCents: -50}, Status: model.BudgetExceeded}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	out := buf.String()
	assert.Contains(t, out, `"project","p1","proj","100.00","85.00","15.00","85.00","warning","active"`)
	assert.Contains(t, out, `"mmp","m1","f-1","1.00","1.50","-0.50","150.00","exceeded","exceeded"`)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "audit-report-2026-03-14.csv", Filename("audit-report", "csv", time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)))
}
