package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/pkg/dbutil"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

const chunkColumns = `id, project_id, path, "offset", token_count, content_hash, kind, language, ctime`

func scanChunk(row interface{ Scan(...interface{}) error }) (*model.Chunk, error) {
	var c model.Chunk
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Path, &c.Offset, &c.TokenCount, &c.ContentHash, &c.Kind, &c.Language, &c.Ctime); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertOrFetch inserts the chunk row, relying on the content_hash
// uniqueness constraint instead of any in-process lock: when two workers
// race on the same content, the loser's insert degrades into a fetch of
// the winner's row. created reports whether this call inserted the row.
func (r *ChunkRepo) InsertOrFetch(ctx context.Context, c *model.Chunk) (*model.Chunk, bool, error) {
	const query = `
		INSERT INTO chunks (id, project_id, path, "offset", token_count, content_hash, kind, language, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ProjectID, c.Path, c.Offset, c.TokenCount, c.ContentHash, c.Kind, c.Language, c.Ctime)
	if err == nil {
		return c, true, nil
	}
	if !dbutil.IsConflict(err) {
		return nil, false, err
	}
	existing, err := r.GetByContentHash(ctx, c.ContentHash)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*model.Chunk, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = $1`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return c, err
}

func (r *ChunkRepo) GetByContentHash(ctx context.Context, contentHash string) (*model.Chunk, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE content_hash = $1`, contentHash)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return c, err
}

func (r *ChunkRepo) queryChunks(ctx context.Context, query string, args ...interface{}) ([]model.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

// ListRecentByPaths returns the newest chunks for the given paths,
// similarity-blind. Used for the hot window.
func (r *ChunkRepo) ListRecentByPaths(ctx context.Context, projectID string, paths []string, limit int) ([]model.Chunk, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE project_id = ? AND path IN (?) AND kind != ? ORDER BY ctime DESC, "offset" ASC LIMIT ?`
	query, args, err := sqlx.In(query, projectID, paths, model.ChunkKindBinary, limit)
	if err != nil {
		return nil, err
	}
	return r.queryChunks(ctx, dbutil.Rebind(query), args...)
}

// ListRecentByKind returns the newest chunks of one kind by recency only.
// Used for conversation history.
func (r *ChunkRepo) ListRecentByKind(ctx context.Context, projectID string, kind model.ChunkKind, limit int) ([]model.Chunk, error) {
	const query = `
		SELECT id, project_id, path, "offset", token_count, content_hash, kind, language, ctime
		FROM chunks
		WHERE project_id = $1 AND kind = $2
		ORDER BY ctime DESC
		LIMIT $3
	`
	return r.queryChunks(ctx, query, projectID, kind, limit)
}

func (r *ChunkRepo) ListByProjectPath(ctx context.Context, projectID, path string) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"project_id": projectID,
		"path":       path,
		"_orderby":   `"offset" ASC`,
	}
	query, args, err := builder.BuildSelect("chunks",
		where, []string{"id", "project_id", "path", `"offset"`, "token_count", "content_hash", "kind", "language", "ctime"})
	if err != nil {
		return nil, err
	}
	return r.queryChunks(ctx, dbutil.Rebind(query), args...)
}

// ListStaleSummaryPaths returns paths whose newest chunk is newer than
// their file summary (or that have no file summary yet).
func (r *ChunkRepo) ListStaleSummaryPaths(ctx context.Context, limit int) ([]model.Chunk, error) {
	const query = `
		SELECT DISTINCT ON (c.project_id, c.path)
			c.id, c.project_id, c.path, c."offset", c.token_count, c.content_hash, c.kind, c.language, c.ctime
		FROM chunks c
		LEFT JOIN summaries s ON s.project_id = c.project_id AND s.path = c.path AND s.level = 'file'
		WHERE c.kind != 'binary' AND (s.id IS NULL OR c.ctime > s.ctime)
		ORDER BY c.project_id, c.path, c.ctime DESC
		LIMIT $1
	`
	return r.queryChunks(ctx, query, limit)
}

func (r *ChunkRepo) ListIDsByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM chunks WHERE project_id = $1`, projectID)
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

func (r *ChunkRepo) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ChunkRepo) CountByProject(ctx context.Context, projectID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chunks WHERE project_id = $1`, projectID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
