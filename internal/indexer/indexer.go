// Package indexer rebuilds the vector store from the canonical corpus.
//
// A rebuild embeds every question and answer and swaps both collections
// in one transaction, so query serving observes either the old corpus or
// the new one. A file lock serializes rebuilds across processes.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/skyrules/skyrules/internal/corpus"
	"github.com/skyrules/skyrules/internal/vectorstore"
)

// ErrRebuildInProgress indicates another rebuild holds the lock.
var ErrRebuildInProgress = errors.New("another rebuild is already running")

// Embedder is the embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the document sink, implemented by vectorstore.Store.
type Store interface {
	ReplaceCorpus(ctx context.Context, questions, answers []vectorstore.Document) error
}

// Stats summarizes one rebuild.
type Stats struct {
	Questions int
	Documents int
	Duration  time.Duration
}

// Indexer rebuilds the two document collections.
type Indexer struct {
	embedder Embedder
	store    Store
	lockPath string
	logger   *slog.Logger
}

// New creates an Indexer. lockPath is the rebuild lock file; a nil
// logger falls back to slog.Default().
func New(embedder Embedder, store Store, lockPath string, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		store:    store,
		lockPath: lockPath,
		logger:   logger.With("component", "indexer"),
	}
}

// Rebuild embeds the full corpus and replaces both collections. Returns
// ErrRebuildInProgress without waiting if another rebuild holds the
// lock. Any embedding failure aborts the rebuild before either
// collection is touched.
func (ix *Indexer) Rebuild(ctx context.Context, c *corpus.Corpus) (Stats, error) {
	lock := flock.New(ix.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return Stats{}, fmt.Errorf("acquiring rebuild lock: %w", err)
	}
	if !locked {
		return Stats{}, ErrRebuildInProgress
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			ix.logger.Warn("releasing rebuild lock failed", "error", err)
		}
	}()

	start := time.Now()
	now := start.UTC()

	var questionDocs, answerDocs []vectorstore.Document
	for _, q := range c.All() {
		// One embedding per question text, shared across its country
		// documents; the per-country split exists for filtering, not
		// because the text differs.
		questionVec, err := ix.embedder.Embed(ctx, q.QuestionText)
		if err != nil {
			return Stats{}, fmt.Errorf("embedding question %q: %w", q.QuestionID, err)
		}

		for _, code := range sortedCountries(q) {
			answer := q.AnswersByCountry[code]
			meta := map[string]string{
				vectorstore.MetaQuestionID:  q.QuestionID,
				vectorstore.MetaCountryCode: code,
				vectorstore.MetaCategory:    q.Category,
			}

			questionDocs = append(questionDocs, vectorstore.Document{
				ID:        vectorstore.QuestionKey(q.QuestionID, code),
				Content:   q.QuestionText,
				Embedding: questionVec,
				Metadata:  meta,
				CreatedAt: now,
			})

			answerVec, err := ix.embedder.Embed(ctx, answer.AnswerText)
			if err != nil {
				return Stats{}, fmt.Errorf("embedding answer %s/%s: %w", q.QuestionID, code, err)
			}
			answerDocs = append(answerDocs, vectorstore.Document{
				ID:        vectorstore.AnswerKey(q.QuestionID, code),
				Content:   answer.AnswerText,
				Embedding: answerVec,
				Metadata:  meta,
				CreatedAt: now,
			})
		}
	}

	if err := ix.store.ReplaceCorpus(ctx, questionDocs, answerDocs); err != nil {
		return Stats{}, fmt.Errorf("replacing collections: %w", err)
	}

	stats := Stats{
		Questions: c.Len(),
		Documents: len(questionDocs) + len(answerDocs),
		Duration:  time.Since(start),
	}
	ix.logger.Info("corpus rebuilt",
		"questions", stats.Questions,
		"documents", stats.Documents,
		"duration", stats.Duration,
	)
	return stats, nil
}

func sortedCountries(q *corpus.RuleQuestion) []string {
	codes := make([]string, 0, len(q.AnswersByCountry))
	for code := range q.AnswersByCountry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
