package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/model"
)

func listFixture() []model.MMPFile {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC) }
	mk := func(id, name, hub string, status model.MMPStatus, uploaded time.Time) model.MMPFile {
		return model.MMPFile{
			ID: id, MMPID: "M-032026-V1.0-" + id, Name: name, Hub: hub, Status: status,
			UploadedBy: "amal", UploadedAt: uploaded, UpdatedAt: uploaded, ProjectID: "p-1",
		}
	}
	return []model.MMPFile{
		mk("A", "Kassala west", "Kassala", model.MMPStatusPending, day(5)),
		mk("B", "Khartoum north", "Khartoum", model.MMPStatusApproved, day(4)),
		mk("C", "Kassala east", "Kassala", model.MMPStatusRejected, day(3)),
		mk("D", "Darfur", "El Fasher", model.MMPStatusDeleted, day(2)),
	}
}

func TestMMPService_List(t *testing.T) {
	admin := model.Viewer{UserID: "u-1", Role: model.RoleAdmin}

	tests := []struct {
		name      string
		viewer    model.Viewer
		query     model.MMPQuery
		wantIDs   []string
		wantTotal int
		summary   string
	}{
		{name: "hides deleted by default", viewer: admin, wantIDs: []string{"A", "B", "C"}, wantTotal: 3, summary: "3 of 3"},
		{name: "deleted on request", viewer: admin, query: model.MMPQuery{Status: "deleted"}, wantIDs: []string{"D"}, wantTotal: 4, summary: "1 of 4"},
		{name: "search is case insensitive", viewer: admin, query: model.MMPQuery{Search: "KASSALA"}, wantIDs: []string{"A", "C"}, wantTotal: 3, summary: "2 of 3"},
		{name: "search matches code", viewer: admin, query: model.MMPQuery{Search: "v1.0-b"}, wantIDs: []string{"B"}, wantTotal: 3, summary: "1 of 3"},
		{name: "no match", viewer: admin, query: model.MMPQuery{Search: "nyala"}, wantIDs: []string{}, wantTotal: 3, summary: "0 of 3"},
		{name: "status filter", viewer: admin, query: model.MMPQuery{Status: "approved"}, wantIDs: []string{"B"}, wantTotal: 3, summary: "1 of 3"},
		{name: "upload range by date", viewer: admin, query: model.MMPQuery{UploadedFrom: "2026-03-03", UploadedTo: "2026-03-04"}, wantIDs: []string{"B", "C"}, wantTotal: 3, summary: "2 of 3"},
		{name: "fom sees own hub", viewer: model.Viewer{UserID: "u-2", Role: model.RoleFOM, Hub: "kassala"}, wantIDs: []string{"A", "C"}, wantTotal: 2, summary: "2 of 2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newMMPFixture(t)
			fx.store.On("List", mock.Anything).Return(listFixture(), nil)

			list, meta, err := fx.svc.List(context.Background(), tc.viewer, tc.query)
			require.NoError(t, err)

			ids := make([]string, 0, len(list.Items))
			for _, f := range list.Items {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
			assert.Equal(t, tc.wantTotal, list.Total)
			assert.Equal(t, tc.summary, list.Summary)
			assert.Equal(t, len(tc.wantIDs), meta.Total)
			assert.False(t, list.Degraded)
		})
	}
}

func TestMMPService_ListPagination(t *testing.T) {
	fx := newMMPFixture(t)
	fx.store.On("List", mock.Anything).Return(listFixture(), nil)

	list, meta, err := fx.svc.List(context.Background(), model.Viewer{Role: model.RoleAdmin}, model.MMPQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "C", list.Items[0].ID)
	assert.Equal(t, 2, meta.TotalPages)
	assert.Equal(t, "3 of 3", list.Summary)
}

func TestMMPService_ListValidation(t *testing.T) {
	fx := newMMPFixture(t)

	_, _, err := fx.svc.List(context.Background(), model.Viewer{}, model.MMPQuery{Status: "draft"})
	assert.Error(t, err)

	_, _, err = fx.svc.List(context.Background(), model.Viewer{}, model.MMPQuery{UploadedFrom: "03/01/2026"})
	assert.Error(t, err)

	_, _, err = fx.svc.List(context.Background(), model.Viewer{}, model.MMPQuery{UploadedFrom: "2026-03-05", UploadedTo: "2026-03-01"})
	assert.Error(t, err)
	fx.store.AssertNotCalled(t, "List", mock.Anything)
}

func TestMMPService_ListFallback(t *testing.T) {
	t.Run("serves the mirror when the store is down", func(t *testing.T) {
		fx := newMMPFixture(t)
		require.NoError(t, fx.mirror.Snapshot(listFixture()))
		fx.store.On("List", mock.Anything).Return(nil, errors.New("connection reset"))

		list, meta, err := fx.svc.List(context.Background(), model.Viewer{Role: model.RoleAdmin}, model.MMPQuery{})
		require.NoError(t, err)
		assert.True(t, list.Degraded)
		assert.NotEmpty(t, meta.Warning)
		assert.Len(t, list.Items, 3)
	})

	t.Run("newer local copies override the store", func(t *testing.T) {
		fx := newMMPFixture(t)
		stored := listFixture()
		local := stored[0].Clone()
		local.Status = model.MMPStatusApproved
		local.UpdatedAt = local.UpdatedAt.Add(time.Hour)
		require.NoError(t, fx.mirror.Upsert(local))
		fx.store.On("List", mock.Anything).Return(stored, nil)

		list, _, err := fx.svc.List(context.Background(), model.Viewer{Role: model.RoleAdmin}, model.MMPQuery{Status: "approved"})
		require.NoError(t, err)
		assert.Len(t, list.Items, 2)
		assert.Equal(t, 4, fx.svc.cache.Len())

		snapshot, err := fx.mirror.All()
		require.NoError(t, err)
		assert.Len(t, snapshot, 4)
	})
}
