// Package vectorstore persists sentence embeddings and serves cosine
// similarity search over them.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/makkenzo/codename-symbiont/envelope"
	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/pkg/retry"
)

const (
	// DefaultTable stores one row per embedded sentence.
	DefaultTable = "document_embeddings"

	// DefaultDimensions matches the preprocess embedding model.
	DefaultDimensions = 768
)

// Point is one embedded sentence ready for persistence.
type Point struct {
	ID        string
	Embedding []float32
	Payload   envelope.PointPayload
}

// VectorStore stores points and answers nearest-neighbour queries.
type VectorStore interface {
	// Upsert writes points, replacing rows with matching ids.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to topK points ranked by cosine similarity to
	// the query embedding, best first.
	Search(ctx context.Context, embedding []float32, topK int) ([]envelope.ResultItem, error)

	// Close releases the underlying connections.
	Close() error
}

// Config configures the Postgres-backed store.
type Config struct {
	// ConnString is a pgx connection string or URL.
	ConnString string

	// Table defaults to DefaultTable.
	Table string

	// Dimensions defaults to DefaultDimensions.
	Dimensions int

	// Retry bounds the initial connection attempts. Zero value uses
	// retry.Persistent().
	Retry retry.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// PGStore implements VectorStore on Postgres with the pgvector extension.
type PGStore struct {
	pool   *pgxpool.Pool
	table  string
	dims   int
	logger *slog.Logger
}

// NewPG connects to Postgres, ensures the vector extension, table, and
// cosine index exist, and returns the store. Connection attempts follow
// cfg.Retry; the final failure is fatal.
func NewPG(ctx context.Context, cfg Config) (*PGStore, error) {
	if cfg.ConnString == "" {
		return nil, symerrors.NewValidation("vectorstore", "conn_string", "is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Persistent()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := retry.DoWithResult(ctx, cfg.Retry, func() (*pgxpool.Pool, error) {
		p, err := pgxpool.New(ctx, cfg.ConnString)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, symerrors.WrapFatal(err, "vectorstore", "NewPG", "connect to postgres")
	}

	s := &PGStore{pool: pool, table: cfg.Table, dims: cfg.Dimensions, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return symerrors.WrapFatal(err, "vectorstore", "ensureSchema", "create vector extension")
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			original_document_id TEXT NOT NULL,
			source_url TEXT NOT NULL,
			sentence_text TEXT NOT NULL,
			sentence_order INTEGER NOT NULL,
			model_name TEXT NOT NULL,
			processed_at_ms BIGINT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.table, s.dims)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return symerrors.WrapFatal(err, "vectorstore", "ensureSchema", "create table")
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, s.table, s.table)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return symerrors.WrapFatal(err, "vectorstore", "ensureSchema", "create cosine index")
	}

	return nil
}

// Upsert writes points in one transaction.
func (s *PGStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return symerrors.WrapTransient(err, "vectorstore", "Upsert", "begin transaction")
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, original_document_id, source_url, sentence_text,
			sentence_order, model_name, processed_at_ms, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sentence_text = EXCLUDED.sentence_text,
			model_name = EXCLUDED.model_name,
			processed_at_ms = EXCLUDED.processed_at_ms,
			embedding = EXCLUDED.embedding`, s.table)

	for _, p := range points {
		if len(p.Embedding) != s.dims {
			return symerrors.NewValidation("vectorstore", "embedding",
				fmt.Sprintf("has %d dimensions, store expects %d", len(p.Embedding), s.dims))
		}
		_, err := tx.Exec(ctx, stmt,
			p.ID,
			p.Payload.OriginalDocumentID,
			p.Payload.SourceURL,
			p.Payload.SentenceText,
			int32(p.Payload.SentenceOrder),
			p.Payload.ModelName,
			p.Payload.ProcessedAtMs,
			pgvector.NewVector(p.Embedding),
		)
		if err != nil {
			return symerrors.WrapTransient(err, "vectorstore", "Upsert", "insert point "+p.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return symerrors.WrapTransient(err, "vectorstore", "Upsert", "commit transaction")
	}
	return nil
}

// Search ranks stored points by cosine similarity. Scores are 1 - distance,
// so identical vectors score 1.0.
func (s *PGStore) Search(ctx context.Context, embedding []float32, topK int) ([]envelope.ResultItem, error) {
	if len(embedding) != s.dims {
		return nil, symerrors.NewValidation("vectorstore", "embedding",
			fmt.Sprintf("has %d dimensions, store expects %d", len(embedding), s.dims))
	}
	if topK <= 0 {
		return nil, symerrors.NewValidation("vectorstore", "top_k", "must be positive")
	}

	query := fmt.Sprintf(`
		SELECT id, original_document_id, source_url, sentence_text,
			sentence_order, model_name, processed_at_ms,
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, symerrors.WrapTransient(err, "vectorstore", "Search", "query points")
	}
	defer rows.Close()

	results := []envelope.ResultItem{}
	for rows.Next() {
		var item envelope.ResultItem
		var order int32
		var score float64
		err := rows.Scan(
			&item.PointID,
			&item.Payload.OriginalDocumentID,
			&item.Payload.SourceURL,
			&item.Payload.SentenceText,
			&order,
			&item.Payload.ModelName,
			&item.Payload.ProcessedAtMs,
			&score,
		)
		if err != nil {
			return nil, symerrors.WrapKind(symerrors.KindDecode, err, "vectorstore", "Search", "scan row")
		}
		item.Payload.SentenceOrder = uint32(order)
		item.Score = float32(score)
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, symerrors.WrapTransient(err, "vectorstore", "Search", "iterate rows")
	}

	return results, nil
}

// Close shuts the connection pool down.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
