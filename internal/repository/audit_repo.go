package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"mmp-tracker/internal/model"
)

const auditColumns = `id, action, category, description, details, occurred_at,
	actor_id, actor_name, actor_role, actor_ip,
	status, resource, before_data, after_data, metadata, error_text`

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	beforeJSON, err := marshalNullable(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal before data: %w", err)
	}
	afterJSON, err := marshalNullable(entry.After)
	if err != nil {
		return fmt.Errorf("marshal after data: %w", err)
	}
	var metadataJSON []byte
	if len(entry.Metadata) > 0 {
		if metadataJSON, err = json.Marshal(entry.Metadata); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_entries
		 (action, category, description, details, occurred_at,
		  actor_id, actor_name, actor_role, actor_ip,
		  status, resource, before_data, after_data, metadata, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.Action, entry.Category, entry.Description, entry.Details, entry.OccurredAt,
		entry.Actor.UserID, entry.Actor.Username, entry.Actor.Role, entry.Actor.IP,
		entry.Status, entry.Resource, beforeJSON, afterJSON, metadataJSON, entry.Error)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

// Query returns one page of entries matching the filters, newest first.
func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	whereClause, args := auditWhere(query)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}

	offset := (query.Page - 1) * query.Limit
	argIdx := len(args) + 1
	dataQuery := fmt.Sprintf(
		`SELECT %s FROM audit_entries %s
		 ORDER BY occurred_at DESC
		 LIMIT $%d OFFSET $%d`, auditColumns, whereClause, argIdx, argIdx+1)
	args = append(args, query.Limit, offset)

	entries, err := r.scan(ctx, dataQuery, args...)
	if err != nil {
		return nil, model.Meta{}, err
	}
	return entries, meta, nil
}

// QueryAll returns every entry matching the filters, for export.
func (r *AuditRepository) QueryAll(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	whereClause, args := auditWhere(query)
	dataQuery := fmt.Sprintf(`SELECT %s FROM audit_entries %s ORDER BY occurred_at DESC`, auditColumns, whereClause)
	return r.scan(ctx, dataQuery, args...)
}

func auditWhere(query model.AuditQuery) (string, []any) {
	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if action := strings.TrimSpace(query.Action); action != "" {
		where = append(where, fmt.Sprintf("lower(action) = lower($%d)", argIdx))
		args = append(args, action)
		argIdx++
	}
	if category := strings.TrimSpace(query.Category); category != "" {
		where = append(where, fmt.Sprintf("lower(category) = lower($%d)", argIdx))
		args = append(args, category)
		argIdx++
	}
	if actorID := strings.TrimSpace(query.ActorID); actorID != "" {
		where = append(where, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, actorID)
		argIdx++
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		where = append(where, fmt.Sprintf("lower(status) = lower($%d)", argIdx))
		args = append(args, status)
		argIdx++
	}
	if resource := strings.TrimSpace(query.Resource); resource != "" {
		where = append(where, fmt.Sprintf("lower(resource) LIKE lower($%d)", argIdx))
		args = append(args, "%"+resource+"%")
		argIdx++
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		where = append(where, fmt.Sprintf(
			"(description ILIKE $%[1]d OR details ILIKE $%[1]d OR actor_name ILIKE $%[1]d OR action ILIKE $%[1]d)", argIdx))
		args = append(args, "%"+search+"%")
		argIdx++
	}
	if from := strings.TrimSpace(query.From); from != "" {
		where = append(where, fmt.Sprintf("occurred_at >= $%d::timestamptz", argIdx))
		args = append(args, from)
		argIdx++
	}
	if to := strings.TrimSpace(query.To); to != "" {
		where = append(where, fmt.Sprintf("occurred_at <= $%d::timestamptz", argIdx))
		args = append(args, to)
	}

	if len(where) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(where, " AND "), args
}

func (r *AuditRepository) scan(ctx context.Context, sql string, args ...any) ([]model.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var beforeJSON, afterJSON, metadataJSON []byte

		if err := rows.Scan(
			&e.ID, &e.Action, &e.Category, &e.Description, &e.Details, &e.OccurredAt,
			&e.Actor.UserID, &e.Actor.Username, &e.Actor.Role, &e.Actor.IP,
			&e.Status, &e.Resource, &beforeJSON, &afterJSON, &metadataJSON, &e.Error,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()

		if len(beforeJSON) > 0 {
			var before any
			if jsonErr := json.Unmarshal(beforeJSON, &before); jsonErr == nil {
				e.Before = before
			}
		}
		if len(afterJSON) > 0 {
			var after any
			if jsonErr := json.Unmarshal(afterJSON, &after); jsonErr == nil {
				e.After = after
			}
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &e.Metadata)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
