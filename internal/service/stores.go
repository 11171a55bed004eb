package service

import (
	"context"
	"time"

	"mmp-tracker/internal/model"
)

// MMPStore is the authoritative store for MMP files (Postgres in production).
type MMPStore interface {
	Create(ctx context.Context, f model.MMPFile) error
	Save(ctx context.Context, f model.MMPFile) error
	Get(ctx context.Context, id string) (model.MMPFile, error)
	List(ctx context.Context) ([]model.MMPFile, error)
}

// FallbackStore is the local mirror used when MMPStore is unavailable.
type FallbackStore interface {
	Upsert(f model.MMPFile) error
	Get(id string) (model.MMPFile, bool, error)
	All() ([]model.MMPFile, error)
	Snapshot(files []model.MMPFile) error
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
	QueryAll(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error)
}

type BudgetStore interface {
	CreateProjectBudget(ctx context.Context, p model.ProjectBudget, txn model.BudgetTransaction) error
	UpdateProjectBudget(ctx context.Context, p model.ProjectBudget, txn *model.BudgetTransaction) error
	GetProjectBudget(ctx context.Context, id string) (model.ProjectBudget, error)
	ListProjectBudgets(ctx context.Context) ([]model.ProjectBudget, error)
	CreateMMPBudget(ctx context.Context, b model.MMPBudget, txn model.BudgetTransaction) error
	UpdateMMPBudget(ctx context.Context, b model.MMPBudget, txn *model.BudgetTransaction) error
	GetMMPBudget(ctx context.Context, id string) (model.MMPBudget, error)
	ListMMPBudgets(ctx context.Context, mmpFileID string) ([]model.MMPBudget, error)
	ListTransactions(ctx context.Context, kind model.BudgetKind, budgetID string) ([]model.BudgetTransaction, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, u model.User) error
	List(ctx context.Context) ([]model.AuthUser, error)
	Count(ctx context.Context) (int, error)
}

type TokenStore interface {
	Store(ctx context.Context, token string, userID string, expiresAt time.Time) error
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	CleanExpired(ctx context.Context) (int64, error)
}
