package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mmp-tracker/internal/model"
)

const projectBudgetColumns = `id, project_id, name, period, allocated_budget_cents, committed_budget_cents,
	spent_budget_cents, remaining_budget_cents, category_breakdown, status, created_by, created_at, updated_at`

const mmpBudgetColumns = `id, mmp_file_id, COALESCE(project_budget_id::text, ''), allocated_budget_cents,
	spent_budget_cents, remaining_budget_cents, total_sites, average_cost_per_site_cents, category_breakdown,
	source_type, notes, status, created_by, created_at, updated_at`

// BudgetRepository stores project and MMP budgets together with their ledger transactions.
// Every ledger change is written in the same transaction as its budget_transactions line.
type BudgetRepository struct {
	pool *pgxpool.Pool
}

func NewBudgetRepository(pool *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{pool: pool}
}

func (r *BudgetRepository) CreateProjectBudget(ctx context.Context, p model.ProjectBudget, txn model.BudgetTransaction) error {
	breakdown, err := marshalNullable(p.CategoryBreakdown)
	if err != nil {
		return fmt.Errorf("marshal category breakdown: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO project_budgets (`+projectBudgetColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, p.ProjectID, p.Name, string(p.Period), p.AllocatedBudgetCents, p.CommittedBudgetCents,
			p.SpentBudgetCents, p.RemainingBudgetCents, breakdown, string(p.Status), p.CreatedBy, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert project budget: %w", err)
		}
		return insertTransaction(ctx, tx, txn)
	})
}

// UpdateProjectBudget writes the ledger figures. txn may be nil for derived updates such as
// committing part of the budget to an MMP.
func (r *BudgetRepository) UpdateProjectBudget(ctx context.Context, p model.ProjectBudget, txn *model.BudgetTransaction) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE project_budgets SET
			   allocated_budget_cents = $2, committed_budget_cents = $3, spent_budget_cents = $4,
			   remaining_budget_cents = $5, status = $6, updated_at = $7
			 WHERE id = $1`,
			p.ID, p.AllocatedBudgetCents, p.CommittedBudgetCents, p.SpentBudgetCents,
			p.RemainingBudgetCents, string(p.Status), p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update project budget: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrBudgetNotFound
		}
		if txn == nil {
			return nil
		}
		return insertTransaction(ctx, tx, *txn)
	})
}

func (r *BudgetRepository) GetProjectBudget(ctx context.Context, id string) (model.ProjectBudget, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectBudgetColumns+` FROM project_budgets WHERE id = $1`, id)
	p, err := scanProjectBudget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ProjectBudget{}, model.ErrBudgetNotFound
	}
	if err != nil {
		return model.ProjectBudget{}, fmt.Errorf("get project budget: %w", err)
	}
	return p, nil
}

func (r *BudgetRepository) ListProjectBudgets(ctx context.Context) ([]model.ProjectBudget, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectBudgetColumns+` FROM project_budgets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list project budgets: %w", err)
	}
	defer rows.Close()

	out := make([]model.ProjectBudget, 0)
	for rows.Next() {
		p, err := scanProjectBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project budget: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateMMPBudget is a single insert plus its allocation ledger line.
func (r *BudgetRepository) CreateMMPBudget(ctx context.Context, b model.MMPBudget, txn model.BudgetTransaction) error {
	breakdown, err := marshalNullable(b.CategoryBreakdown)
	if err != nil {
		return fmt.Errorf("marshal category breakdown: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO mmp_budgets (id, mmp_file_id, project_budget_id, allocated_budget_cents,
			   spent_budget_cents, remaining_budget_cents, total_sites, average_cost_per_site_cents,
			   category_breakdown, source_type, notes, status, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			b.ID, b.MMPFileID, nullString(b.ProjectBudgetID), b.AllocatedBudgetCents,
			b.SpentBudgetCents, b.RemainingBudgetCents, b.TotalSites, b.AverageCostPerSiteCents,
			breakdown, string(b.SourceType), b.Notes, string(b.Status), b.CreatedBy, b.CreatedAt, b.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert mmp budget: %w", err)
		}
		return insertTransaction(ctx, tx, txn)
	})
}

func (r *BudgetRepository) UpdateMMPBudget(ctx context.Context, b model.MMPBudget, txn *model.BudgetTransaction) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE mmp_budgets SET
			   allocated_budget_cents = $2, spent_budget_cents = $3, remaining_budget_cents = $4,
			   average_cost_per_site_cents = $5, status = $6, updated_at = $7
			 WHERE id = $1`,
			b.ID, b.AllocatedBudgetCents, b.SpentBudgetCents, b.RemainingBudgetCents,
			b.AverageCostPerSiteCents, string(b.Status), b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update mmp budget: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrBudgetNotFound
		}
		if txn == nil {
			return nil
		}
		return insertTransaction(ctx, tx, *txn)
	})
}

func (r *BudgetRepository) GetMMPBudget(ctx context.Context, id string) (model.MMPBudget, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mmpBudgetColumns+` FROM mmp_budgets WHERE id = $1`, id)
	b, err := scanMMPBudget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MMPBudget{}, model.ErrBudgetNotFound
	}
	if err != nil {
		return model.MMPBudget{}, fmt.Errorf("get mmp budget: %w", err)
	}
	return b, nil
}

// ListMMPBudgets returns all MMP budgets, or only those of one file when mmpFileID is set.
func (r *BudgetRepository) ListMMPBudgets(ctx context.Context, mmpFileID string) ([]model.MMPBudget, error) {
	sql := `SELECT ` + mmpBudgetColumns + ` FROM mmp_budgets`
	args := []any{}
	if mmpFileID != "" {
		sql += ` WHERE mmp_file_id = $1`
		args = append(args, mmpFileID)
	}
	sql += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list mmp budgets: %w", err)
	}
	defer rows.Close()

	out := make([]model.MMPBudget, 0)
	for rows.Next() {
		b, err := scanMMPBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mmp budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BudgetRepository) ListTransactions(ctx context.Context, kind model.BudgetKind, budgetID string) ([]model.BudgetTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, budget_kind, budget_id, type, amount_cents, category, description, created_by, created_at
		 FROM budget_transactions
		 WHERE budget_kind = $1 AND budget_id = $2
		 ORDER BY created_at DESC`, string(kind), budgetID)
	if err != nil {
		return nil, fmt.Errorf("list budget transactions: %w", err)
	}
	defer rows.Close()

	out := make([]model.BudgetTransaction, 0)
	for rows.Next() {
		var t model.BudgetTransaction
		var kindRaw, typeRaw, category string
		if err := rows.Scan(&t.ID, &kindRaw, &t.BudgetID, &typeRaw, &t.AmountCents, &category,
			&t.Description, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan budget transaction: %w", err)
		}
		t.BudgetKind = model.BudgetKind(kindRaw)
		t.Type = model.TransactionType(typeRaw)
		t.Category = model.BudgetCategory(category)
		out = append(out, t)
	}
	return out, rows.Err()
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t model.BudgetTransaction) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO budget_transactions
		 (id, budget_kind, budget_id, type, amount_cents, category, description, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, string(t.BudgetKind), t.BudgetID, string(t.Type), t.AmountCents, string(t.Category),
		t.Description, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert budget transaction: %w", err)
	}
	return nil
}

func scanProjectBudget(row pgx.Row) (model.ProjectBudget, error) {
	var p model.ProjectBudget
	var period, status string
	var breakdown []byte
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Name, &period, &p.AllocatedBudgetCents, &p.CommittedBudgetCents,
		&p.SpentBudgetCents, &p.RemainingBudgetCents, &breakdown, &status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.ProjectBudget{}, err
	}
	p.Period = model.BudgetPeriod(period)
	p.Status = model.BudgetStatus(status)
	if err := unmarshalNullable(breakdown, &p.CategoryBreakdown); err != nil {
		return model.ProjectBudget{}, fmt.Errorf("decode category breakdown: %w", err)
	}
	return p, nil
}

func scanMMPBudget(row pgx.Row) (model.MMPBudget, error) {
	var b model.MMPBudget
	var source, status string
	var breakdown []byte
	if err := row.Scan(&b.ID, &b.MMPFileID, &b.ProjectBudgetID, &b.AllocatedBudgetCents,
		&b.SpentBudgetCents, &b.RemainingBudgetCents, &b.TotalSites, &b.AverageCostPerSiteCents, &breakdown,
		&source, &b.Notes, &status, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.MMPBudget{}, err
	}
	b.SourceType = model.BudgetSource(source)
	b.Status = model.BudgetStatus(status)
	if err := unmarshalNullable(breakdown, &b.CategoryBreakdown); err != nil {
		return model.MMPBudget{}, fmt.Errorf("decode category breakdown: %w", err)
	}
	return b, nil
}
