// Package graphstore persists documents, their sentences, and their tokens
// as a relational graph.
//
// The schema models three node kinds (documents, sentences, tokens) and two
// edge kinds (document has sentence at order N, document contains token).
// Sentences and tokens are shared across documents, so repeated ingestion of
// the same text is idempotent.
package graphstore

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/pkg/retry"
)

// Document is one tokenized text ready for graph persistence.
type Document struct {
	OriginalID    string
	SourceURL     string
	Sentences     []string
	Tokens        []string
	ProcessedAtMs int64
}

// GraphStore persists documents idempotently.
type GraphStore interface {
	// Persist upserts the document node, its sentence and token nodes,
	// and the edges between them in one transaction.
	Persist(ctx context.Context, doc Document) error

	// Close releases the underlying connections.
	Close()
}

// Config configures the Postgres-backed store.
type Config struct {
	// ConnString is a pgx connection string or URL.
	ConnString string

	// Retry bounds the initial connection attempts. Zero value uses
	// retry.Persistent().
	Retry retry.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// PGGraph implements GraphStore on plain Postgres tables.
type PGGraph struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		original_id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		processed_at_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sentences (
		id BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS document_sentences (
		document_id TEXT NOT NULL REFERENCES documents(original_id),
		sentence_id BIGINT NOT NULL REFERENCES sentences(id),
		sentence_order INTEGER NOT NULL,
		PRIMARY KEY (document_id, sentence_order)
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		text_lc TEXT PRIMARY KEY,
		text_original TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS document_tokens (
		document_id TEXT NOT NULL REFERENCES documents(original_id),
		token_text_lc TEXT NOT NULL REFERENCES tokens(text_lc),
		PRIMARY KEY (document_id, token_text_lc)
	)`,
}

// NewPG connects to Postgres, ensures the schema, and returns the store.
// Connection attempts follow cfg.Retry; the final failure is fatal.
func NewPG(ctx context.Context, cfg Config) (*PGGraph, error) {
	if cfg.ConnString == "" {
		return nil, symerrors.NewValidation("graphstore", "conn_string", "is required")
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
		return nil, symerrors.WrapFatal(err, "graphstore", "NewPG", "connect to postgres")
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, symerrors.WrapFatal(err, "graphstore", "NewPG", "ensure schema")
		}
	}

	return &PGGraph{pool: pool, logger: logger}, nil
}

// Persist upserts the document and its sentence/token graph. Empty sentences
// and tokens are skipped; token identity is case-insensitive with the latest
// original casing retained.
func (g *PGGraph) Persist(ctx context.Context, doc Document) error {
	if doc.OriginalID == "" {
		return symerrors.NewValidation("graphstore", "original_id", "must not be empty")
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return symerrors.WrapTransient(err, "graphstore", "Persist", "begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (original_id, source_url, processed_at_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (original_id) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			processed_at_ms = EXCLUDED.processed_at_ms`,
		doc.OriginalID, doc.SourceURL, doc.ProcessedAtMs)
	if err != nil {
		return symerrors.WrapTransient(err, "graphstore", "Persist", "upsert document")
	}

	if err := g.persistSentences(ctx, tx, doc); err != nil {
		return err
	}
	if err := g.persistTokens(ctx, tx, doc); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return symerrors.WrapTransient(err, "graphstore", "Persist", "commit transaction")
	}
	return nil
}

func (g *PGGraph) persistSentences(ctx context.Context, tx pgx.Tx, doc Document) error {
	for order, sentence := range doc.Sentences {
		text := strings.TrimSpace(sentence)
		if text == "" {
			continue
		}

		var sentenceID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO sentences (text) VALUES ($1)
			ON CONFLICT (text) DO UPDATE SET text = EXCLUDED.text
			RETURNING id`, text).Scan(&sentenceID)
		if err != nil {
			return symerrors.WrapTransient(err, "graphstore", "Persist", "upsert sentence")
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO document_sentences (document_id, sentence_id, sentence_order)
			VALUES ($1, $2, $3)
			ON CONFLICT (document_id, sentence_order) DO UPDATE SET
				sentence_id = EXCLUDED.sentence_id`,
			doc.OriginalID, sentenceID, int32(order))
		if err != nil {
			return symerrors.WrapTransient(err, "graphstore", "Persist", "link sentence")
		}
	}
	return nil
}

func (g *PGGraph) persistTokens(ctx context.Context, tx pgx.Tx, doc Document) error {
	for _, token := range doc.Tokens {
		text := strings.TrimSpace(token)
		if text == "" {
			continue
		}
		textLC := strings.ToLower(text)

		_, err := tx.Exec(ctx, `
			INSERT INTO tokens (text_lc, text_original) VALUES ($1, $2)
			ON CONFLICT (text_lc) DO UPDATE SET
				text_original = EXCLUDED.text_original`,
			textLC, text)
		if err != nil {
			return symerrors.WrapTransient(err, "graphstore", "Persist", "upsert token")
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO document_tokens (document_id, token_text_lc)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			doc.OriginalID, textLC)
		if err != nil {
			return symerrors.WrapTransient(err, "graphstore", "Persist", "link token")
		}
	}
	return nil
}

// Close shuts the connection pool down.
func (g *PGGraph) Close() {
	if g.pool != nil {
		g.pool.Close()
	}
}
