package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialMigrationSQL string

//go:embed migrations/002_budgets.up.sql
var budgetsMigrationSQL string

var requiredTables = []string{
	"users",
	"refresh_tokens",
	"audit_entries",
	"mmp_files",
	"mmp_site_entries",
}

var budgetTables = []string{
	"project_budgets",
	"mmp_budgets",
	"budget_transactions",
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasTables(ctx, requiredTables)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if !exists {
		slog.Info("database schema missing tables; applying initial migration")
		if _, err := db.Pool.Exec(ctx, initialMigrationSQL); err != nil {
			return fmt.Errorf("apply initial migration: %w", err)
		}

		exists, err = db.hasTables(ctx, requiredTables)
		if err != nil {
			return fmt.Errorf("re-check tables after migration: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema initialization incomplete: required tables are still missing")
		}
	}

	// 002: budget ledger tables.
	if err := db.applyBudgets(ctx); err != nil {
		return fmt.Errorf("apply budgets migration: %w", err)
	}

	slog.Info("database schema ensured")
	return nil
}

// applyBudgets runs migration 002. The SQL uses IF NOT EXISTS so it is safe to re-run.
func (db *DB) applyBudgets(ctx context.Context) error {
	exists, err := db.hasTables(ctx, budgetTables)
	if err != nil {
		return fmt.Errorf("check budget tables: %w", err)
	}

	if !exists {
		slog.Info("applying budgets migration (002)")
		if _, err := db.Pool.Exec(ctx, budgetsMigrationSQL); err != nil {
			return fmt.Errorf("exec budgets SQL: %w", err)
		}
		slog.Info("budgets migration applied")
	}

	return nil
}

func (db *DB) hasTables(ctx context.Context, tables []string) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, tables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(tables), nil
}
