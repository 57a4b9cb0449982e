package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/ctxloom/ctxloom/internal/model"
)

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Insert writes the audit row for one assembly call. Write-once; there
// is no update path.
func (r *SessionRepo) Insert(ctx context.Context, s *model.ContextSession) error {
	pieces, err := json.Marshal(s.Pieces)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO context_sessions (id, project_id, model_name, total_tokens, pieces, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query, s.ID, s.ProjectID, s.ModelName, s.TotalTokens, pieces, s.Ctime)
	return err
}

func (r *SessionRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]model.ContextSession, error) {
	const query = `
		SELECT id, project_id, model_name, total_tokens, pieces, ctime
		FROM context_sessions
		WHERE project_id = $1
		ORDER BY ctime DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.ContextSession
	for rows.Next() {
		var s model.ContextSession
		var pieces []byte
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.ModelName, &s.TotalTokens, &pieces, &s.Ctime); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(pieces, &s.Pieces); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM context_sessions WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
