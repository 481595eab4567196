package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// VectorStore keeps every session's chunk vectors in one pgvector table,
// partitioned by session id.
type VectorStore struct {
	config VectorStoreConfig
	table  string
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "document_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	// Searches are exact scans over one session's rows, located through
	// the primary key.
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (session_id, chunk_index)
		)`, vs.table, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Build replaces the session's stored chunks in a single transaction and
// returns an index over them. Building with no chunks clears the session.
func (vs *VectorStore) Build(ctx context.Context, sessionID string, chunks []models.Chunk, vectors [][]float32) (types.VectorIndex, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", types.ErrLengthMismatch, len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != vs.config.VectorDim {
			return nil, fmt.Errorf("vector %d has dimension %d, table expects %d", i, len(v), vs.config.VectorDim)
		}
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", vs.table), sessionID); err != nil {
		return nil, fmt.Errorf("failed to clear session chunks: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (session_id, chunk_index, content, start_offset, end_offset, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`, vs.table)

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(stmt,
			sessionID,
			chunk.Index,
			sanitizeUTF8(chunk.Text),
			chunk.Start,
			chunk.End,
			pgvector.NewVector(vectors[i]),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &SessionIndex{store: vs, sessionID: sessionID}, nil
}

func (vs *VectorStore) query(ctx context.Context, sessionID string, embedding []float32, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT chunk_index, content, start_offset, end_offset, 1 - (embedding <=> $2)
		FROM %s
		WHERE session_id = $1
		ORDER BY embedding <=> $2, chunk_index
		LIMIT $3`, vs.table)

	rows, err := vs.pool.Query(ctx, query, sessionID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		if err := rows.Scan(&sc.Index, &sc.Text, &sc.Start, &sc.End, &sc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return results, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// SessionIndex searches the rows stored for one session.
type SessionIndex struct {
	store     *VectorStore
	sessionID string
}

func (si *SessionIndex) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	return si.store.query(ctx, si.sessionID, query, k)
}

// Postgres rejects NUL bytes and invalid UTF-8 in TEXT columns.
func sanitizeUTF8(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
