package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/pkg/dbutil"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
)

type SummaryRepo struct {
	db *sql.DB
}

func NewSummaryRepo(db *sql.DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

func (r *SummaryRepo) Insert(ctx context.Context, s *model.Summary) error {
	const query = `
		INSERT INTO summaries (id, project_id, path, level, content, token_count, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.ProjectID, s.Path, s.Level, s.Content, s.TokenCount, s.Ctime)
	return err
}

// ReplaceForPath deletes older summaries at the same (path, level) and
// inserts the fresh one. Summaries are regenerated wholesale, never
// patched incrementally.
func (r *SummaryRepo) ReplaceForPath(ctx context.Context, s *model.Summary) error {
	const del = `DELETE FROM summaries WHERE project_id = $1 AND path = $2 AND level = $3`
	if _, err := r.db.ExecContext(ctx, del, s.ProjectID, s.Path, s.Level); err != nil {
		return err
	}
	return r.Insert(ctx, s)
}

func (r *SummaryRepo) GetByID(ctx context.Context, id string) (*model.Summary, error) {
	const query = `SELECT id, project_id, path, level, content, token_count, ctime FROM summaries WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	var s model.Summary
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Path, &s.Level, &s.Content, &s.TokenCount, &s.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetProjectSummary returns the newest project-level summary.
func (r *SummaryRepo) GetProjectSummary(ctx context.Context, projectID string) (*model.Summary, error) {
	const query = `
		SELECT id, project_id, path, level, content, token_count, ctime
		FROM summaries
		WHERE project_id = $1 AND level = $2
		ORDER BY ctime DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, projectID, model.SummaryLevelProject)
	var s model.Summary
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Path, &s.Level, &s.Content, &s.TokenCount, &s.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListFileSummaries returns the newest file-level summary per path, for
// the given paths.
func (r *SummaryRepo) ListFileSummaries(ctx context.Context, projectID string, paths []string) ([]model.Summary, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT ON (path) id, project_id, path, level, content, token_count, ctime
		FROM summaries
		WHERE project_id = ? AND level = ? AND path IN (?)
		ORDER BY path, ctime DESC
	`
	query, args, err := sqlx.In(query, projectID, model.SummaryLevelFile, paths)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, dbutil.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Summary
	for rows.Next() {
		var s model.Summary
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Path, &s.Level, &s.Content, &s.TokenCount, &s.Ctime); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *SummaryRepo) ListIDsByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM summaries WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SummaryRepo) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM summaries WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
