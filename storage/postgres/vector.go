// Package postgres provides a PostgreSQL + pgvector implementation of
// storage.MemoryRepository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/mindex/core"
	"github.com/poiesic/mindex/storage"
)

const memoryColumns = `namespace, id, document_id, content, source, user_id, agent_id, chunk_index, embedding, created_at`

// MemoryRepository stores memory records in a PostgreSQL table with a
// pgvector embedding column. Similarity is cosine, computed by the server.
type MemoryRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.MemoryRepository = (*MemoryRepository)(nil)

// Open connects to the database at url, registers the pgvector types on
// every connection and creates the memories table if missing.
// dimensions fixes the embedding column width; 0 leaves it unconstrained.
func Open(ctx context.Context, url string, dimensions int) (*MemoryRepository, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if err := createExtension(ctx, url); err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	repo := &MemoryRepository{
		pool:   pool,
		logger: slog.Default().With("component", "postgres"),
	}
	if err := repo.migrate(ctx, dimensions); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// createExtension runs on a plain connection because pool connections
// register the vector type in AfterConnect and fail without it.
func createExtension(ctx context.Context, url string) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	return nil
}

func (r *MemoryRepository) migrate(ctx context.Context, dimensions int) error {
	column := "vector"
	if dimensions > 0 {
		column = fmt.Sprintf("vector(%d)", dimensions)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
		namespace   TEXT NOT NULL,
		id          TEXT NOT NULL,
		document_id TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL,
		source      TEXT NOT NULL DEFAULT '',
		user_id     TEXT NOT NULL,
		agent_id    TEXT NOT NULL DEFAULT '',
		chunk_index INTEGER NOT NULL DEFAULT 0,
		embedding   %s,
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (namespace, id)
	)`, column)
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}
	r.logger.Debug("schema ready", "dimensions", dimensions)
	return nil
}

// Close closes the connection pool.
func (r *MemoryRepository) Close() error {
	r.pool.Close()
	return nil
}

// Upsert writes records under namespace in one transaction.
func (r *MemoryRepository) Upsert(ctx context.Context, namespace string, records ...*core.MemoryRecord) error {
	for _, record := range records {
		if record == nil {
			return fmt.Errorf("%w: record is nil", core.ErrInvalidMemoryRecord)
		}
		if record.Namespace == "" {
			record.Namespace = namespace
		}
		if record.Namespace != namespace {
			return fmt.Errorf("%w: %q written to %q", storage.ErrNamespaceMismatch, record.Namespace, namespace)
		}
		if err := core.ValidateMemoryRecord(record); err != nil {
			return err
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`INSERT INTO memories (`+memoryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (namespace, id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				content     = EXCLUDED.content,
				source      = EXCLUDED.source,
				user_id     = EXCLUDED.user_id,
				agent_id    = EXCLUDED.agent_id,
				chunk_index = EXCLUDED.chunk_index,
				embedding   = EXCLUDED.embedding`,
			namespace, record.ID, record.DocumentID, record.Content, record.Source,
			record.UserID, record.AgentID, record.ChunkIndex, toVector(record.Vector), record.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert memories: %w", err)
	}
	return tx.Commit(ctx)
}

// Query returns the records in namespace closest to vector by cosine distance.
func (r *MemoryRepository) Query(ctx context.Context, namespace string, vector []float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", storage.ErrInvalidQuery)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+memoryColumns+`, 1 - (embedding <=> $2) AS score
		FROM memories
		WHERE namespace = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`, namespace, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var results []*core.SearchResult
	for rows.Next() {
		var score float64
		record, err := scanRecord(rows, &score)
		if err != nil {
			return nil, err
		}
		results = append(results, &core.SearchResult{Record: record, Score: float32(score)})
	}
	return results, rows.Err()
}

// GetMemory retrieves a single record.
func (r *MemoryRepository) GetMemory(ctx context.Context, namespace, id string) (*core.MemoryRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memoryColumns+` FROM memories WHERE namespace = $1 AND id = $2`, namespace, id)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return record, err
}

// ScanMemories calls fn for every stored record.
func (r *MemoryRepository) ScanMemories(ctx context.Context, fn func(*core.MemoryRecord) error) error {
	rows, err := r.pool.Query(ctx, `SELECT `+memoryColumns+` FROM memories ORDER BY namespace, id`)
	if err != nil {
		return fmt.Errorf("scan memories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountMemories returns the number of stored records.
func (r *MemoryRepository) CountMemories(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM memories`).Scan(&count)
	return count, err
}

func scanRecord(row pgx.Row, extra ...any) (*core.MemoryRecord, error) {
	var (
		record    core.MemoryRecord
		embedding *pgvector.Vector
	)
	dest := []any{
		&record.Namespace, &record.ID, &record.DocumentID, &record.Content, &record.Source,
		&record.UserID, &record.AgentID, &record.ChunkIndex, &embedding, &record.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if embedding != nil {
		record.Vector = embedding.Slice()
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}

// toVector maps an empty embedding to SQL NULL; pgvector rejects zero-width vectors.
func toVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
