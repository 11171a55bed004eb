package repository

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"mmp-tracker/internal/model"
)

type MockMMPRepository struct {
	mock.Mock
}

func (m *MockMMPRepository) Create(ctx context.Context, f model.MMPFile) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockMMPRepository) Save(ctx context.Context, f model.MMPFile) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockMMPRepository) Get(ctx context.Context, id string) (model.MMPFile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.MMPFile), args.Error(1)
}

func (m *MockMMPRepository) List(ctx context.Context) ([]model.MMPFile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MMPFile), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Get(1).(model.Meta), args.Error(2)
	}
	return args.Get(0).([]model.AuditEntry), args.Get(1).(model.Meta), args.Error(2)
}

func (m *MockAuditRepository) QueryAll(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEntry), args.Error(1)
}

type MockBudgetRepository struct {
	mock.Mock
}

func (m *MockBudgetRepository) CreateProjectBudget(ctx context.Context, p model.ProjectBudget, txn model.BudgetTransaction) error {
	args := m.Called(ctx, p, txn)
	return args.Error(0)
}

func (m *MockBudgetRepository) UpdateProjectBudget(ctx context.Context, p model.ProjectBudget, txn *model.BudgetTransaction) error {
	args := m.Called(ctx, p, txn)
	return args.Error(0)
}

func (m *MockBudgetRepository) GetProjectBudget(ctx context.Context, id string) (model.ProjectBudget, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.ProjectBudget), args.Error(1)
}

func (m *MockBudgetRepository) ListProjectBudgets(ctx context.Context) ([]model.ProjectBudget, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProjectBudget), args.Error(1)
}

func (m *MockBudgetRepository) CreateMMPBudget(ctx context.Context, b model.MMPBudget, txn model.BudgetTransaction) error {
	args := m.Called(ctx, b, txn)
	return args.Error(0)
}

func (m *MockBudgetRepository) UpdateMMPBudget(ctx context.Context, b model.MMPBudget, txn *model.BudgetTransaction) error {
	args := m.Called(ctx, b, txn)
	return args.Error(0)
}

func (m *MockBudgetRepository) GetMMPBudget(ctx context.Context, id string) (model.MMPBudget, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.MMPBudget), args.Error(1)
}

func (m *MockBudgetRepository) ListMMPBudgets(ctx context.Context, mmpFileID string) ([]model.MMPBudget, error) {
	args := m.Called(ctx, mmpFileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MMPBudget), args.Error(1)
}

func (m *MockBudgetRepository) ListTransactions(ctx context.Context, kind model.BudgetKind, budgetID string) ([]model.BudgetTransaction, error) {
	args := m.Called(ctx, kind, budgetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BudgetTransaction), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, u model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context) ([]model.AuthUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuthUser), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Store(ctx context.Context, token string, userID string, expiresAt time.Time) error {
	args := m.Called(ctx, token, userID, expiresAt)
	return args.Error(0)
}

func (m *MockTokenRepository) Validate(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockTokenRepository) Revoke(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
