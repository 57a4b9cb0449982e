package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/ctxloom/ctxloom/internal/model"
)

// VectorRepo fronts the pgvector similarity index for chunk and summary
// embeddings, scoped by project.
type VectorRepo struct {
	db *sql.DB
}

func NewVectorRepo(db *sql.DB) *VectorRepo {
	return &VectorRepo{db: db}
}

func (r *VectorRepo) SaveChunkEmbedding(ctx context.Context, chunkID, projectID string, kind model.ChunkKind, embedding []float32, ctime int64) error {
	const query = `
		INSERT INTO chunk_embeddings (chunk_id, project_id, kind, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query, chunkID, projectID, kind, pgvector.NewVector(embedding), ctime)
	return err
}

func (r *VectorRepo) HasChunkEmbedding(ctx context.Context, chunkID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT 1 FROM chunk_embeddings WHERE chunk_id = $1`, chunkID)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *VectorRepo) SaveSummaryEmbedding(ctx context.Context, summaryID, projectID string, embedding []float32, ctime int64) error {
	const query = `
		INSERT INTO summary_embeddings (summary_id, project_id, embedding, ctime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (summary_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query, summaryID, projectID, pgvector.NewVector(embedding), ctime)
	return err
}

// ChunkMatch is one nearest-neighbor hit joined with its chunk metadata.
type ChunkMatch struct {
	Chunk model.Chunk
	Score float32
}

// SearchChunks runs a cosine nearest-neighbor query over the project's
// chunk embeddings, excluding binary placeholders. Scores are cosine
// similarity in [-1, 1]; callers apply their own floor.
func (r *VectorRepo) SearchChunks(ctx context.Context, projectID string, queryEmbedding []float32, topK int) ([]ChunkMatch, error) {
	const query = `
		SELECT c.id, c.project_id, c.path, c."offset", c.token_count, c.content_hash, c.kind, c.language, c.ctime,
			1 - (e.embedding <=> $1) AS score
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE e.project_id = $2 AND e.kind != $3
		ORDER BY e.embedding <=> $1 ASC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(queryEmbedding), projectID, model.ChunkKindBinary, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []ChunkMatch
	for rows.Next() {
		var m ChunkMatch
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.ProjectID, &m.Chunk.Path, &m.Chunk.Offset, &m.Chunk.TokenCount,
			&m.Chunk.ContentHash, &m.Chunk.Kind, &m.Chunk.Language, &m.Chunk.Ctime, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *VectorRepo) DeleteByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE project_id = $1`, projectID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM summary_embeddings WHERE project_id = $1`, projectID)
	return err
}
