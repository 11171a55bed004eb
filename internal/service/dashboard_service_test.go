package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/event"
	"mmp-tracker/internal/model"
	"mmp-tracker/internal/repository"
)

type dashboardFixture struct {
	mmpFixture
	budgets *repository.MockBudgetRepository
	svc     *DashboardService
}

func newDashboardFixture(t *testing.T) dashboardFixture {
	t.Helper()
	fx := newMMPFixture(t)
	budgets := new(repository.MockBudgetRepository)
	audit := NewAuditService(fx.audit, nil)
	return dashboardFixture{
		mmpFixture: fx,
		budgets:    budgets,
		svc:        NewDashboardService(fx.svc, NewBudgetService(budgets, fx.svc, audit, event.NewBus(), nil), audit),
	}
}

func TestDashboardService_Build(t *testing.T) {
	recent := []model.AuditEntry{{Action: "upload", Status: model.AuditStatusSuccess}}

	t.Run("admin sees every hub and the budget", func(t *testing.T) {
		fx := newDashboardFixture(t)
		fx.store.On("List", mock.Anything).Return(listFixture(), nil)
		fx.budgets.On("ListProjectBudgets", mock.Anything).Return([]model.ProjectBudget{
			{ID: "pb-1", Ledger: model.Ledger{AllocatedBudgetCents: 10000, SpentBudgetCents: 2500}},
		}, nil)
		fx.budgets.On("ListMMPBudgets", mock.Anything, "").Return([]model.MMPBudget{}, nil)
		fx.audit.On("Query", mock.Anything, mock.Anything).Return(recent, model.Meta{}, nil)

		d, err := fx.svc.Build(context.Background(), model.Viewer{Role: model.RoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, 4, d.TotalFiles)
		assert.Equal(t, 1, d.Statuses.Pending)
		assert.Equal(t, 1, d.Statuses.Deleted)
		require.NotNil(t, d.Budget)
		assert.Equal(t, int64(10000), d.Budget.TotalBudgetCents)
		assert.Len(t, d.RecentActivity, 1)
		assert.False(t, d.Degraded)
	})

	t.Run("hub-restricted viewer gets no budget", func(t *testing.T) {
		fx := newDashboardFixture(t)
		fx.store.On("List", mock.Anything).Return(listFixture(), nil)

		d, err := fx.svc.Build(context.Background(), model.Viewer{Role: model.RoleFOM, Hub: "Kassala"})
		require.NoError(t, err)
		assert.Equal(t, "Kassala", d.Hub)
		assert.Equal(t, 2, d.TotalFiles)
		assert.Nil(t, d.Budget)
		assert.Empty(t, d.RecentActivity)
		fx.budgets.AssertNotCalled(t, "ListProjectBudgets", mock.Anything)
	})

	t.Run("budget outage leaves the rest intact", func(t *testing.T) {
		fx := newDashboardFixture(t)
		fx.store.On("List", mock.Anything).Return(listFixture(), nil)
		fx.budgets.On("ListProjectBudgets", mock.Anything).Return(nil, errors.New("connection reset"))
		fx.audit.On("Query", mock.Anything, mock.Anything).Return(recent, model.Meta{}, nil)

		d, err := fx.svc.Build(context.Background(), model.Viewer{Role: model.RoleAdmin})
		require.NoError(t, err)
		assert.Nil(t, d.Budget)
		assert.Equal(t, 4, d.TotalFiles)
	})

	t.Run("cancelled request fails instead of serving an empty dashboard", func(t *testing.T) {
		fx := newDashboardFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fx.store.On("List", mock.Anything).Return(nil, context.Canceled)
		fx.budgets.On("ListProjectBudgets", mock.Anything).Return(nil, context.Canceled).Maybe()
		fx.audit.On("Query", mock.Anything, mock.Anything).Return(nil, model.Meta{}, context.Canceled).Maybe()

		_, err := fx.svc.Build(ctx, model.Viewer{Role: model.RoleAdmin})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
