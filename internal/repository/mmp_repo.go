package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mmp-tracker/internal/model"
)

const mmpColumns = `id, mmp_id, name, project_id, hub, region, status, entries, processed_entries,
	version_major, version_minor, uploaded_by, uploaded_at,
	reviewed_by, reviewed_at, verified_by, verified_at, approved_by, approved_at,
	rejected_by, rejection_reason, rejected_at, archived_by, archived_at, deleted_by, deleted_at,
	approval_workflow, comprehensive_verification, permits, financial, performance, modification_history,
	created_at, updated_at`

const siteColumns = `id, mmp_file_id, position, site_code, site_name, hub_office, state, locality,
	cp_name, main_activity, site_activity, visit_type, visit_date, visited_by, in_moda, status, comments,
	is_flagged, flag_reason, flagged_by, flagged_at,
	verification_status, verification_notes, verified_by, verified_at`

// MMPRepository persists MMP files in mmp_files with their site entries in mmp_site_entries.
// Nested documents (workflow, verification, permits, financial, performance, history) are JSONB.
type MMPRepository struct {
	pool *pgxpool.Pool
}

func NewMMPRepository(pool *pgxpool.Pool) *MMPRepository {
	return &MMPRepository{pool: pool}
}

func (r *MMPRepository) Create(ctx context.Context, f model.MMPFile) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		args, err := fileArgs(f)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO mmp_files (`+mmpColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			         $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34)`,
			args...); err != nil {
			return fmt.Errorf("insert mmp file: %w", err)
		}
		return insertSites(ctx, tx, f.ID, f.SiteEntries)
	})
}

// Save overwrites the file row and replaces its site entries. Last write wins.
func (r *MMPRepository) Save(ctx context.Context, f model.MMPFile) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		args, err := fileArgs(f)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE mmp_files SET
			   mmp_id = $2, name = $3, project_id = $4, hub = $5, region = $6, status = $7,
			   entries = $8, processed_entries = $9, version_major = $10, version_minor = $11,
			   uploaded_by = $12, uploaded_at = $13, reviewed_by = $14, reviewed_at = $15,
			   verified_by = $16, verified_at = $17, approved_by = $18, approved_at = $19,
			   rejected_by = $20, rejection_reason = $21, rejected_at = $22,
			   archived_by = $23, archived_at = $24, deleted_by = $25, deleted_at = $26,
			   approval_workflow = $27, comprehensive_verification = $28, permits = $29,
			   financial = $30, performance = $31, modification_history = $32,
			   created_at = $33, updated_at = $34
			 WHERE id = $1`, args...)
		if err != nil {
			return fmt.Errorf("update mmp file: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrMMPNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM mmp_site_entries WHERE mmp_file_id = $1`, f.ID); err != nil {
			return fmt.Errorf("clear site entries: %w", err)
		}
		return insertSites(ctx, tx, f.ID, f.SiteEntries)
	})
}

func (r *MMPRepository) Get(ctx context.Context, id string) (model.MMPFile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mmpColumns+` FROM mmp_files WHERE id = $1`, id)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MMPFile{}, model.ErrMMPNotFound
	}
	if err != nil {
		return model.MMPFile{}, fmt.Errorf("get mmp file: %w", err)
	}

	sites, err := r.sites(ctx, `WHERE mmp_file_id = $1`, id)
	if err != nil {
		return model.MMPFile{}, err
	}
	f.SiteEntries = sites[id]
	if f.SiteEntries == nil {
		f.SiteEntries = []model.SiteEntry{}
	}
	return f, nil
}

// List returns every file, newest upload first, with site entries attached.
func (r *MMPRepository) List(ctx context.Context) ([]model.MMPFile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+mmpColumns+` FROM mmp_files ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list mmp files: %w", err)
	}
	defer rows.Close()

	files := make([]model.MMPFile, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mmp file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mmp files: %w", err)
	}

	sites, err := r.sites(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].SiteEntries = sites[files[i].ID]
		if files[i].SiteEntries == nil {
			files[i].SiteEntries = []model.SiteEntry{}
		}
	}
	return files, nil
}

func (r *MMPRepository) sites(ctx context.Context, where string, args ...any) (map[string][]model.SiteEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+siteColumns+` FROM mmp_site_entries `+where+` ORDER BY mmp_file_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("query site entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.SiteEntry)
	for rows.Next() {
		var s model.SiteEntry
		var verification string
		if err := rows.Scan(
			&s.ID, &s.MMPFileID, &s.Position, &s.SiteCode, &s.SiteName, &s.HubOffice, &s.State, &s.Locality,
			&s.CPName, &s.MainActivity, &s.SiteActivity, &s.VisitType, &s.VisitDate, &s.VisitedBy,
			&s.InMoDa, &s.Status, &s.Comments,
			&s.IsFlagged, &s.FlagReason, &s.FlaggedBy, &s.FlaggedAt,
			&verification, &s.VerificationNotes, &s.VerifiedBy, &s.VerifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan site entry: %w", err)
		}
		s.VerificationStatus = model.Decision(verification)
		out[s.MMPFileID] = append(out[s.MMPFileID], s)
	}
	return out, rows.Err()
}

func insertSites(ctx context.Context, tx pgx.Tx, fileID string, sites []model.SiteEntry) error {
	if len(sites) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, s := range sites {
		batch.Queue(
			`INSERT INTO mmp_site_entries (`+siteColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			         $18, $19, $20, $21, $22, $23, $24, $25)`,
			s.ID, fileID, i, s.SiteCode, s.SiteName, s.HubOffice, s.State, s.Locality,
			s.CPName, s.MainActivity, s.SiteActivity, s.VisitType, s.VisitDate, s.VisitedBy,
			s.InMoDa, s.Status, s.Comments,
			s.IsFlagged, s.FlagReason, s.FlaggedBy, utcPtr(s.FlaggedAt),
			string(s.VerificationStatus), s.VerificationNotes, s.VerifiedBy, utcPtr(s.VerifiedAt),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert site entries: %w", err)
	}
	return nil
}

func fileArgs(f model.MMPFile) ([]any, error) {
	workflow, err := marshalNullable(f.ApprovalWorkflow)
	if err != nil {
		return nil, fmt.Errorf("marshal approval workflow: %w", err)
	}
	verification, err := marshalNullable(f.ComprehensiveVerification)
	if err != nil {
		return nil, fmt.Errorf("marshal verification: %w", err)
	}
	permits, err := marshalNullable(f.Permits)
	if err != nil {
		return nil, fmt.Errorf("marshal permits: %w", err)
	}
	financial, err := marshalNullable(f.Financial)
	if err != nil {
		return nil, fmt.Errorf("marshal financial: %w", err)
	}
	performance, err := marshalNullable(f.Performance)
	if err != nil {
		return nil, fmt.Errorf("marshal performance: %w", err)
	}
	history, err := marshalNullable(f.ModificationHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal modification history: %w", err)
	}

	return []any{
		f.ID, f.MMPID, f.Name, f.ProjectID, f.Hub, f.Region, string(f.Status), f.Entries, f.ProcessedEntries,
		f.Version.Major, f.Version.Minor, f.UploadedBy, f.UploadedAt.UTC(),
		f.ReviewedBy, utcPtr(f.ReviewedAt), f.VerifiedBy, utcPtr(f.VerifiedAt), f.ApprovedBy, utcPtr(f.ApprovedAt),
		f.RejectedBy, f.RejectionReason, utcPtr(f.RejectedAt), f.ArchivedBy, utcPtr(f.ArchivedAt),
		f.DeletedBy, utcPtr(f.DeletedAt),
		workflow, verification, permits, financial, performance, history,
		f.CreatedAt.UTC(), f.UpdatedAt.UTC(),
	}, nil
}

func scanFile(row pgx.Row) (model.MMPFile, error) {
	var f model.MMPFile
	var status string
	var workflow, verification, permits, financial, performance, history []byte

	err := row.Scan(
		&f.ID, &f.MMPID, &f.Name, &f.ProjectID, &f.Hub, &f.Region, &status, &f.Entries, &f.ProcessedEntries,
		&f.Version.Major, &f.Version.Minor, &f.UploadedBy, &f.UploadedAt,
		&f.ReviewedBy, &f.ReviewedAt, &f.VerifiedBy, &f.VerifiedAt, &f.ApprovedBy, &f.ApprovedAt,
		&f.RejectedBy, &f.RejectionReason, &f.RejectedAt, &f.ArchivedBy, &f.ArchivedAt,
		&f.DeletedBy, &f.DeletedAt,
		&workflow, &verification, &permits, &financial, &performance, &history,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return model.MMPFile{}, err
	}
	f.Status = model.MMPStatus(status)

	if err := unmarshalNullable(workflow, &f.ApprovalWorkflow); err != nil {
		return model.MMPFile{}, fmt.Errorf("decode approval workflow: %w", err)
	}
	if err := unmarshalNullable(verification, &f.ComprehensiveVerification); err != nil {
		return model.MMPFile{}, fmt.Errorf("decode verification: %w", err)
	}
	if err := unmarshalNullable(permits, &f.Permits); err != nil {
		return model.MMPFile{}, fmt.Errorf("decode permits: %w", err)
	}
	if err := unmarshalNullable(financial, &f.Financial); err != nil {
		return model.MMPFile{}, fmt.Errorf("decode financial: %w", err)
	}
	if err := unmarshalNullable(performance, &f.Performance); err != nil {
		return model.MMPFile{}, fmt.Errorf("decode performance: %w", err)
	}
	if err := unmarshalNullable(history, &f.ModificationHistory); err != nil {
		return model.MMPFile{}, fmt.Errorf("decode modification history: %w", err)
	}

	f.UploadedAt = f.UploadedAt.UTC()
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}
