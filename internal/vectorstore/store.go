// Package vectorstore persists embedded documents in PostgreSQL + pgvector.
//
// Two collections exist: question embeddings for retrieval and answer
// embeddings for cross-country comparison. The store is read-heavy during
// query serving; the only writer is the offline corpus rebuild, which swaps
// both collections wholesale inside one transaction so readers never observe
// a partial rebuild.
//
// The store is authoritative for vectors only. Canonical text lives in the
// corpus; Content is carried here for retrieval display and debugging.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound indicates the requested document does not exist in the
// collection, typically because the corpus and the embedding store are out
// of sync. Callers recover by skipping the document.
var ErrNotFound = errors.New("document not found")

// searchTimeout bounds a single vector search so a slow query cannot block
// the request pipeline indefinitely.
const searchTimeout = 10 * time.Second

// DB is the subset of pgxpool.Pool the store needs. Defined here, by the
// consumer, so tests can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store manages the two embedded-document collections.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Get fetches a single document, including its embedding, by ID.
// Returns ErrNotFound if the ID is absent.
func (s *Store) Get(ctx context.Context, col Collection, id string) (*Document, error) {
	if !col.valid() {
		return nil, fmt.Errorf("unknown collection %q", col)
	}

	row := s.db.QueryRow(ctx,
		`SELECT id, content, embedding, metadata, created_at FROM `+string(col)+` WHERE id = $1`,
		id)

	var (
		doc       Document
		vec       pgvector.Vector
		metaJSON  []byte
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&doc.ID, &doc.Content, &vec, &metaJSON, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q in %s", ErrNotFound, id, col)
		}
		return nil, fmt.Errorf("fetching document %q: %w", id, err)
	}

	doc.Embedding = vec.Slice()
	doc.Metadata = parseMetadata(metaJSON, doc.ID, s.logger)
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	return &doc, nil
}

// Search runs a cosine similarity search over the collection, most similar
// first. Country and category filters are applied server-side so the
// requested top-k is computed over the filtered population.
func (s *Store) Search(ctx context.Context, col Collection, embedding []float32, opts ...SearchOption) ([]Result, error) {
	if !col.valid() {
		return nil, fmt.Errorf("unknown collection %q", col)
	}
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	// Filters are bound as parameters; the table name comes from the
	// Collection whitelist, never from input.
	sql := `SELECT id, content, embedding, metadata, created_at,
		1 - (embedding <=> $1) AS similarity
	FROM ` + string(col)
	args := []any{pgvector.NewVector(embedding)}

	var conds []string
	if cfg.category != "" {
		filterJSON, err := json.Marshal(map[string]string{MetaCategory: cfg.category})
		if err != nil {
			return nil, fmt.Errorf("marshaling category filter: %w", err)
		}
		args = append(args, filterJSON)
		conds = append(conds, fmt.Sprintf("metadata @> $%d", len(args)))
	}
	if len(cfg.countries) > 0 {
		args = append(args, cfg.countries)
		conds = append(conds, fmt.Sprintf("metadata->>'country_code' = ANY($%d)", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			sql += " WHERE " + cond
		} else {
			sql += " AND " + cond
		}
	}

	args = append(args, cfg.topK)
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.db.Query(queryCtx, sql, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc       Document
			vec       pgvector.Vector
			metaJSON  []byte
			createdAt pgtype.Timestamptz
			sim       float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &vec, &metaJSON, &createdAt, &sim); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		doc.Embedding = vec.Slice()
		doc.Metadata = parseMetadata(metaJSON, doc.ID, s.logger)
		if createdAt.Valid {
			doc.CreatedAt = createdAt.Time
		}
		results = append(results, Result{Document: doc, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return results, nil
}

// ReplaceAll atomically swaps the full contents of a collection. Readers see
// either the old contents or the new, never a mix.
func (s *Store) ReplaceAll(ctx context.Context, col Collection, docs []Document) error {
	if !col.valid() {
		return fmt.Errorf("unknown collection %q", col)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer func() {
		// No-op after commit.
		_ = tx.Rollback(ctx)
	}()

	if err := replaceInTx(ctx, tx, col, docs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing rebuild: %w", err)
	}

	s.logger.Debug("collection replaced", "collection", col, "documents", len(docs))
	return nil
}

// ReplaceCorpus swaps both collections inside one transaction. A corpus
// rebuild must never pair new questions with old answers, so the two
// swaps commit together; that is the visibility guarantee the comparison
// engine depends on.
func (s *Store) ReplaceCorpus(ctx context.Context, questions, answers []Document) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer func() {
		// No-op after commit.
		_ = tx.Rollback(ctx)
	}()

	if err := replaceInTx(ctx, tx, Questions, questions); err != nil {
		return err
	}
	if err := replaceInTx(ctx, tx, Answers, answers); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing rebuild: %w", err)
	}

	s.logger.Debug("corpus replaced",
		"questions", len(questions), "answers", len(answers))
	return nil
}

func replaceInTx(ctx context.Context, tx pgx.Tx, col Collection, docs []Document) error {
	if _, err := tx.Exec(ctx, `DELETE FROM `+string(col)); err != nil {
		return fmt.Errorf("clearing collection %s: %w", col, err)
	}

	for _, doc := range docs {
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}
		createdAt := pgtype.Timestamptz{Time: doc.CreatedAt, Valid: !doc.CreatedAt.IsZero()}
		if !createdAt.Valid {
			createdAt = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
		}
		vec := pgvector.NewVector(doc.Embedding)
		_, err = tx.Exec(ctx,
			`INSERT INTO `+string(col)+` (id, content, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			doc.ID, doc.Content, &vec, metaJSON, createdAt)
		if err != nil {
			return fmt.Errorf("inserting document %q: %w", doc.ID, err)
		}
	}
	return nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, col Collection) (int, error) {
	if !col.valid() {
		return 0, fmt.Errorf("unknown collection %q", col)
	}
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM `+string(col)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", col, err)
	}
	return int(count), nil
}

func parseMetadata(raw []byte, docID string, logger *slog.Logger) map[string]string {
	var metadata map[string]string
	if err := json.Unmarshal(raw, &metadata); err != nil {
		logger.Warn("failed to parse metadata", "document_id", docID, "error", err)
		return make(map[string]string)
	}
	return metadata
}
