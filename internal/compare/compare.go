// Package compare finds regulatory differences between countries by
// pairwise semantic distance over answer embeddings.
//
// Questions missing an answer or an embedding for any requested country
// are skipped entirely rather than compared over a partial country
// subset; partial comparison would make the result set asymmetric in
// the requested countries. Recomputation is idempotent given stable
// embeddings, so results are never cached.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/skyrules/skyrules/internal/corpus"
	"github.com/skyrules/skyrules/internal/vecmath"
	"github.com/skyrules/skyrules/internal/vectorstore"
)

// ErrTooFewCountries indicates fewer than two distinct countries were
// requested.
var ErrTooFewCountries = errors.New("comparison requires at least two countries")

// AnswerSource fetches answer-embedding documents, implemented by
// vectorstore.Store.
type AnswerSource interface {
	Get(ctx context.Context, col vectorstore.Collection, id string) (*vectorstore.Document, error)
}

// Difference is one divergent country pair for one question. Countries
// are ordered alphabetically within the pair so the same comparison
// always yields the same entries regardless of input order.
type Difference struct {
	QuestionID   string
	QuestionText string
	CountryA     string
	CountryB     string
	Distance     float64 // cosine distance, 1 - similarity
	TextA        string
	TextB        string
}

// ComparisonResult is the ranked outcome of one comparison. Ephemeral:
// computed on demand, never cached.
type ComparisonResult struct {
	Countries   []string // sorted
	Tag         string
	Differences []Difference // descending by Distance
}

// Config tunes the engine.
type Config struct {
	// MaxQuestions caps how many questions one comparison examines when
	// the caller passes 0.
	MaxQuestions int
	// MinDifference is the distance below which a pair is treated as
	// equivalent, used when the caller passes a negative value.
	MinDifference float64
}

// DefaultConfig returns the comparison defaults.
func DefaultConfig() Config {
	return Config{
		MaxQuestions:  50,
		MinDifference: 0.1,
	}
}

// Engine computes cross-country comparisons.
type Engine struct {
	source AnswerSource
	corpus *corpus.Corpus
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine. A nil logger falls back to slog.Default().
func New(source AnswerSource, c *corpus.Corpus, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 50
	}
	return &Engine{
		source: source,
		corpus: c,
		cfg:    cfg,
		logger: logger.With("component", "compare"),
	}
}

// Compare ranks the semantic differences between the requested countries
// over questions matching tag (all questions when tag is empty).
// maxQuestions <= 0 and minDifference < 0 take the configured defaults.
// Pairs closer than minDifference are treated as the same regulation in
// different wording and excluded.
func (e *Engine) Compare(ctx context.Context, countries []string, tag string, maxQuestions int, minDifference float64) (*ComparisonResult, error) {
	codes := normalizeCountries(countries)
	if len(codes) < 2 {
		return nil, fmt.Errorf("%w: got %v", ErrTooFewCountries, countries)
	}
	if maxQuestions <= 0 {
		maxQuestions = e.cfg.MaxQuestions
	}
	if minDifference < 0 {
		minDifference = e.cfg.MinDifference
	}

	result := &ComparisonResult{Countries: codes, Tag: tag}

	for _, q := range e.corpus.SelectByTag(tag, maxQuestions) {
		embeddings, ok, err := e.answerEmbeddings(ctx, q, codes)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		// codes is sorted, so i < j gives alphabetical pair order.
		for i := 0; i < len(codes); i++ {
			for j := i + 1; j < len(codes); j++ {
				a, b := codes[i], codes[j]
				distance := vecmath.CosineDistance(embeddings[a], embeddings[b])
				if distance < minDifference {
					continue
				}
				ansA, _ := q.Answer(a)
				ansB, _ := q.Answer(b)
				result.Differences = append(result.Differences, Difference{
					QuestionID:   q.QuestionID,
					QuestionText: q.QuestionText,
					CountryA:     a,
					CountryB:     b,
					Distance:     distance,
					TextA:        ansA.AnswerText,
					TextB:        ansB.AnswerText,
				})
			}
		}
	}

	sort.SliceStable(result.Differences, func(i, j int) bool {
		di, dj := result.Differences[i], result.Differences[j]
		if di.Distance != dj.Distance {
			return di.Distance > dj.Distance
		}
		if di.QuestionID != dj.QuestionID {
			return di.QuestionID < dj.QuestionID
		}
		if di.CountryA != dj.CountryA {
			return di.CountryA < dj.CountryA
		}
		return di.CountryB < dj.CountryB
	})

	return result, nil
}

// answerEmbeddings fetches the answer embedding for every requested
// country. Returns ok=false when the question lacks a corpus answer or a
// stored embedding for any country; such questions are skipped whole.
func (e *Engine) answerEmbeddings(ctx context.Context, q *corpus.RuleQuestion, codes []string) (map[string][]float32, bool, error) {
	embeddings := make(map[string][]float32, len(codes))
	for _, code := range codes {
		if _, ok := q.Answer(code); !ok {
			return nil, false, nil
		}

		doc, err := e.source.Get(ctx, vectorstore.Answers, vectorstore.AnswerKey(q.QuestionID, code))
		if err != nil {
			if errors.Is(err, vectorstore.ErrNotFound) {
				e.logger.Warn("answer embedding missing, skipping question",
					"question_id", q.QuestionID, "country_code", code)
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("fetching answer embedding for %s/%s: %w", q.QuestionID, code, err)
		}
		if len(doc.Embedding) == 0 {
			e.logger.Warn("answer document has empty embedding, skipping question",
				"question_id", q.QuestionID, "country_code", code)
			return nil, false, nil
		}
		embeddings[code] = doc.Embedding
	}
	return embeddings, true, nil
}

// normalizeCountries uppercases, deduplicates, and sorts the codes.
func normalizeCountries(countries []string) []string {
	seen := make(map[string]struct{}, len(countries))
	out := make([]string, 0, len(countries))
	for _, c := range countries {
		code := strings.ToUpper(strings.TrimSpace(c))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
