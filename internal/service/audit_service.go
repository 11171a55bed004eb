package service

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mmp-tracker/internal/export"
	"mmp-tracker/internal/metrics"
	"mmp-tracker/internal/model"
	"mmp-tracker/pkg/apierror"
)

// Audit categories.
const (
	CategoryMMP          = "mmp"
	CategoryVerification = "verification"
	CategoryBudget       = "budget"
	CategoryAuth         = "auth"
)

type AuditService struct {
	store   AuditStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAuditService(store AuditStore, m *metrics.Metrics) *AuditService {
	return &AuditService{
		store:   store,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record persists an audit entry. Failures are logged and counted but never surface to the
// caller: a workflow action must not fail because its audit line could not be written.
func (s *AuditService) Record(ctx context.Context, entry model.AuditEntry) {
	if s == nil || s.store == nil {
		return
	}

	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now()
	}
	if entry.Status == "" {
		entry.Status = model.AuditStatusSuccess
	}

	// The caller's request context may already be cancelled by the time the entry is written.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.store.Log(writeCtx, entry); err != nil {
		s.metrics.AuditWriteFailed()
		slog.Warn("audit entry not persisted", "action", entry.Action, "resource", entry.Resource, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query, err := normalizeAuditRange(query)
	if err != nil {
		return nil, model.Meta{}, err
	}
	return s.store.Query(ctx, query)
}

type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
	Count       int
}

// Export renders every entry matching the filters; pagination is ignored.
func (s *AuditService) Export(ctx context.Context, query model.AuditQuery, format string) (ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return ExportResult{}, apierror.BadRequest("unsupported export format", format)
	}
	query, err := normalizeAuditRange(query)
	if err != nil {
		return ExportResult{}, err
	}

	entries, err := s.store.QueryAll(ctx, query)
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	result := ExportResult{Filename: export.Filename("audit-report", format, s.now())}
	if format == "json" {
		result.ContentType = "application/json"
		result.Count, err = export.AuditJSON(&buf, entries)
	} else {
		result.ContentType = "text/csv; charset=utf-8"
		result.Count, err = export.AuditCSV(&buf, entries)
	}
	if err != nil {
		return ExportResult{}, err
	}
	result.Data = buf.Bytes()
	return result, nil
}

// normalizeAuditRange validates the from/to bounds and rewrites them as UTC timestamps.
// Both bounds are inclusive; a date-only 'to' runs to the last microsecond of that day.
func normalizeAuditRange(query model.AuditQuery) (model.AuditQuery, error) {
	from, _, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return query, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}

	to, dateOnly, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return query, apierror.New("BAD_REQUEST", "invalid 'to' datetime format", query.To, http.StatusBadRequest)
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1).Add(-time.Microsecond)
	}

	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return query, apierror.BadRequest("'to' must not be before 'from'", "")
	}
	if !from.IsZero() {
		query.From = from.Format(time.RFC3339Nano)
	}
	if !to.IsZero() {
		query.To = to.Format(time.RFC3339Nano)
	}
	return query, nil
}

func parseOptionalAuditTime(raw string) (time.Time, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false, nil
	}

	if value, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return value.UTC(), false, nil
	}

	value, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, false, err
	}
	return value.UTC(), true, nil
}
