// Package retrieval answers regulatory questions by filtered similarity
// search over the question collection.
//
// The engine embeds the (optionally reformulated) query, searches with
// server-side country and category filters, optionally reranks, and
// resolves the surviving hits back to canonical corpus text. Optional
// enhancement steps (reformulation, reranking) degrade silently on
// failure; only embedding and search errors propagate.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skyrules/skyrules/internal/corpus"
	"github.com/skyrules/skyrules/internal/vectorstore"
)

// Embedder is the embedding capability the engine consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the similarity-search capability, implemented by
// vectorstore.Store.
type Searcher interface {
	Search(ctx context.Context, col vectorstore.Collection, embedding []float32, opts ...vectorstore.SearchOption) ([]vectorstore.Result, error)
}

// Reformulator rewrites colloquial queries into retrieval-friendly
// phrasing. Optional; a nil Reformulator skips the step.
type Reformulator interface {
	Reformulate(ctx context.Context, query string) (string, error)
}

// Match is one retrieved question with the answer for the matching
// country. Texts come from the corpus, which is authoritative; the
// vector store contributed only the ranking.
type Match struct {
	Question *corpus.RuleQuestion
	Answer   corpus.Answer
	Score    float64
}

// Config tunes the engine.
type Config struct {
	// TopK is the default result count when the caller passes 0.
	TopK int
	// SimilarityThreshold drops candidates scoring below it before
	// reranking. Zero disables the cutoff.
	SimilarityThreshold float64
}

// DefaultConfig returns the retrieval defaults.
func DefaultConfig() Config {
	return Config{
		TopK:                5,
		SimilarityThreshold: 0.3,
	}
}

// Engine performs retrieval over the question collection.
type Engine struct {
	embedder     Embedder
	searcher     Searcher
	corpus       *corpus.Corpus
	reformulator Reformulator
	reranker     Reranker
	cfg          Config
	logger       *slog.Logger
}

// New creates an Engine. reformulator may be nil to skip reformulation;
// a nil reranker becomes a NoopReranker; a nil logger falls back to
// slog.Default().
func New(embedder Embedder, searcher Searcher, c *corpus.Corpus, reformulator Reformulator, reranker Reranker, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if reranker == nil {
		reranker = NoopReranker{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Engine{
		embedder:     embedder,
		searcher:     searcher,
		corpus:       c,
		reformulator: reformulator,
		reranker:     reranker,
		cfg:          cfg,
		logger:       logger.With("component", "retrieval"),
	}
}

// Retrieve returns up to topK matches for the query. countries restricts
// results server-side when non-empty; category likewise. Both empty means
// unrestricted global retrieval.
func (e *Engine) Retrieve(ctx context.Context, query string, countries []string, topK int, category string) ([]Match, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	searchQuery := query
	if e.reformulator != nil {
		reformulated, err := e.reformulator.Reformulate(ctx, query)
		if err != nil {
			e.logger.Debug("reformulation failed, using original query", "error", err)
		} else if reformulated != "" {
			searchQuery = reformulated
		}
	}

	embedding, err := e.embedder.Embed(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Request top_k per requested country so one country's phrasing
	// cannot crowd the others out of the raw candidate set.
	requested := topK
	if len(countries) > 0 {
		requested = topK * len(countries)
	}

	candidates, err := e.searcher.Search(ctx, vectorstore.Questions, embedding,
		vectorstore.WithTopK(requested),
		vectorstore.WithCountries(countries),
		vectorstore.WithCategory(category),
	)
	if err != nil {
		return nil, fmt.Errorf("searching questions: %w", err)
	}

	if e.cfg.SimilarityThreshold > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			if c.Similarity >= e.cfg.SimilarityThreshold {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	ranked, err := e.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		e.logger.Debug("reranking failed, keeping search order", "error", err)
		ranked = candidates
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	return e.resolve(ranked), nil
}

// resolve maps search hits back to canonical corpus text. Hits whose
// question or answer is missing from the corpus indicate a stale index
// and are skipped with a warning.
func (e *Engine) resolve(hits []vectorstore.Result) []Match {
	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		questionID := hit.Document.Metadata[vectorstore.MetaQuestionID]
		countryCode := hit.Document.Metadata[vectorstore.MetaCountryCode]

		q, err := e.corpus.Question(questionID)
		if err != nil {
			e.logger.Warn("indexed document has no corpus question",
				"document_id", hit.Document.ID, "question_id", questionID)
			continue
		}
		answer, ok := q.Answer(countryCode)
		if !ok {
			e.logger.Warn("indexed document has no corpus answer",
				"document_id", hit.Document.ID,
				"question_id", questionID, "country_code", countryCode)
			continue
		}
		matches = append(matches, Match{Question: q, Answer: answer, Score: hit.Similarity})
	}
	return matches
}
