package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/repository"
)

func TestAuditService_Record(t *testing.T) {
	store := new(repository.MockAuditRepository)
	store.On("Log", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.Status == model.AuditStatusSuccess && !e.OccurredAt.IsZero()
	})).Return(errors.New("disk full"))

	svc := NewAuditService(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() {
		svc.Record(ctx, model.AuditEntry{Action: "approve", Category: CategoryMMP})
	})
	store.AssertExpectations(t)

	var nilSvc *AuditService
	assert.NotPanics(t, func() { nilSvc.Record(context.Background(), model.AuditEntry{}) })
}

func TestAuditService_Export(t *testing.T) {
	entries := []model.AuditEntry{
		{Action: "reject", Category: CategoryMMP, Description: `Rejected "M-1"`, OccurredAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), Actor: model.AuditActor{Username: "omar", Role: "fom"}, Status: model.AuditStatusSuccess},
		{Action: "upload", Category: CategoryMMP, OccurredAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), Status: model.AuditStatusDegraded},
	}

	t.Run("csv", func(t *testing.T) {
		store := new(repository.MockAuditRepository)
		query := model.AuditQuery{Category: "mmp"}
		store.On("QueryAll", mock.Anything, query).Return(entries, nil)

		svc := NewAuditService(store, nil)
		svc.now = func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) }

		res, err := svc.Export(context.Background(), query, "")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Count)
		assert.Equal(t, "audit-report-2026-03-14.csv", res.Filename)
		assert.Contains(t, string(res.Data), `"Rejected ""M-1"""`)
		assert.Equal(t, 3, strings.Count(string(res.Data), "\n"))
	})

	t.Run("json", func(t *testing.T) {
		store := new(repository.MockAuditRepository)
		store.On("QueryAll", mock.Anything, mock.Anything).Return(entries, nil)

		res, err := NewAuditService(store, nil).Export(context.Background(), model.AuditQuery{}, "JSON")
		require.NoError(t, err)
		assert.Equal(t, "application/json", res.ContentType)
		assert.Equal(t, 2, res.Count)
	})

	t.Run("bad input", func(t *testing.T) {
		svc := NewAuditService(new(repository.MockAuditRepository), nil)

		_, err := svc.Export(context.Background(), model.AuditQuery{}, "xlsx")
		requireStatus(t, err, http.StatusBadRequest)

		_, err = svc.Export(context.Background(), model.AuditQuery{From: "yesterday"}, "csv")
		requireStatus(t, err, http.StatusBadRequest)

		_, _, err = svc.Query(context.Background(), model.AuditQuery{From: "2026-03-05", To: "2026-03-01"})
		requireStatus(t, err, http.StatusBadRequest)
	})
}

func TestAuditService_DateRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		wantFrom string
		wantTo   string
	}{
		{"date-only to covers the whole day", "2026-03-01", "2026-03-01", "2026-03-01T00:00:00Z", "2026-03-01T23:59:59.999999Z"},
		{"timestamps pass through in UTC", "2026-03-01T10:00:00+02:00", "2026-03-01T18:30:00Z", "2026-03-01T08:00:00Z", "2026-03-01T18:30:00Z"},
		{"open start", "", "2026-03-31", "", "2026-03-31T23:59:59.999999Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(repository.MockAuditRepository)
			store.On("Query", mock.Anything, mock.MatchedBy(func(q model.AuditQuery) bool {
				return q.From == tt.wantFrom && q.To == tt.wantTo
			})).Return([]model.AuditEntry{}, model.Meta{}, nil)

			_, _, err := NewAuditService(store, nil).Query(context.Background(), model.AuditQuery{From: tt.from, To: tt.to})
			require.NoError(t, err)
			store.AssertExpectations(t)
		})
	}
}
