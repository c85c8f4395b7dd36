// Package pipeline runs one query end to end: classify, dispatch to the
// retrieval or comparison engine, synthesize.
//
// Each query is a single logical invocation with no background workers;
// cancellation of the request context propagates into every in-flight
// capability call. Partial results are discarded, never emitted.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/skyrules/skyrules/internal/compare"
	"github.com/skyrules/skyrules/internal/retrieval"
	"github.com/skyrules/skyrules/internal/router"
)

// Classifier decides the handling path.
type Classifier interface {
	Classify(ctx context.Context, messages []string) router.Decision
}

// Retriever answers single-topic rules queries.
type Retriever interface {
	Retrieve(ctx context.Context, query string, countries []string, topK int, category string) ([]retrieval.Match, error)
}

// Comparer ranks cross-country differences.
type Comparer interface {
	Compare(ctx context.Context, countries []string, tag string, maxQuestions int, minDifference float64) (*compare.ComparisonResult, error)
}

// Synthesizer renders engine output as user-facing text.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, countries []string, matches []retrieval.Match) (string, error)
	SynthesizeComparison(ctx context.Context, result *compare.ComparisonResult) (string, error)
}

// DatabaseLookup serves the airport-data path. The real lookup lives
// outside this pipeline; UnavailableDatabase stands in when none is
// wired.
type DatabaseLookup interface {
	Lookup(ctx context.Context, query string, countries []string) (string, error)
}

// UnavailableDatabase is the null DatabaseLookup.
type UnavailableDatabase struct{}

// Lookup reports that airport data is not wired up.
func (UnavailableDatabase) Lookup(context.Context, string, []string) (string, error) {
	return "Airport database lookups are not available in this installation.", nil
}

// Response is the outcome of one query.
type Response struct {
	RequestID  string
	Decision   router.Decision
	Answer     string
	Matches    []retrieval.Match         // set on the rules path
	Comparison *compare.ComparisonResult // set when multiple countries were compared
}

// Pipeline wires the engines together.
type Pipeline struct {
	classifier  Classifier
	retriever   Retriever
	comparer    Comparer
	synthesizer Synthesizer
	database    DatabaseLookup
	logger      *slog.Logger
}

// New creates a Pipeline. A nil database falls back to
// UnavailableDatabase; a nil logger falls back to slog.Default().
func New(classifier Classifier, retriever Retriever, comparer Comparer, synthesizer Synthesizer, database DatabaseLookup, logger *slog.Logger) *Pipeline {
	if database == nil {
		database = UnavailableDatabase{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:  classifier,
		retriever:   retriever,
		comparer:    comparer,
		synthesizer: synthesizer,
		database:    database,
		logger:      logger.With("component", "pipeline"),
	}
}

// Ask processes one conversation turn. The last element of messages is
// the current query.
func (p *Pipeline) Ask(ctx context.Context, messages []string) (*Response, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("empty conversation")
	}
	query := messages[len(messages)-1]
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID)

	decision := p.classifier.Classify(ctx, messages)
	logger.Debug("query classified",
		"path", decision.Path.String(),
		"confidence", decision.Confidence,
		"countries", decision.Countries,
		"reasoning", decision.Reasoning,
	)

	resp := &Response{RequestID: requestID, Decision: decision}

	switch decision.Path {
	case router.PathRules:
		if err := p.rules(ctx, query, decision.Countries, resp); err != nil {
			return nil, err
		}
	case router.PathDatabase:
		answer, err := p.database.Lookup(ctx, query, decision.Countries)
		if err != nil {
			return nil, fmt.Errorf("database lookup: %w", err)
		}
		resp.Answer = answer
	case router.PathBoth:
		if err := p.rules(ctx, query, decision.Countries, resp); err != nil {
			return nil, err
		}
		dbAnswer, err := p.database.Lookup(ctx, query, decision.Countries)
		if err != nil {
			return nil, fmt.Errorf("database lookup: %w", err)
		}
		resp.Answer = resp.Answer + "\n\n" + dbAnswer
	default:
		return nil, fmt.Errorf("unhandled path %v", decision.Path)
	}

	return resp, nil
}

// rules serves the regulatory side of a query: a comparison when the
// decision names two or more countries, a retrieval otherwise.
func (p *Pipeline) rules(ctx context.Context, query string, countries []string, resp *Response) error {
	if len(countries) >= 2 {
		result, err := p.comparer.Compare(ctx, countries, "", 0, -1)
		if err != nil {
			return fmt.Errorf("comparing countries: %w", err)
		}
		answer, err := p.synthesizer.SynthesizeComparison(ctx, result)
		if err != nil {
			return fmt.Errorf("synthesizing comparison: %w", err)
		}
		resp.Comparison = result
		resp.Answer = answer
		return nil
	}

	matches, err := p.retriever.Retrieve(ctx, query, countries, 0, "")
	if err != nil {
		return fmt.Errorf("retrieving rules: %w", err)
	}
	answer, err := p.synthesizer.Synthesize(ctx, query, countries, matches)
	if err != nil {
		return fmt.Errorf("synthesizing answer: %w", err)
	}
	resp.Matches = matches
	resp.Answer = answer
	return nil
}

// Compare answers an explicit comparison request, bypassing
// classification.
func (p *Pipeline) Compare(ctx context.Context, countries []string, tag string) (*Response, error) {
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID)

	result, err := p.comparer.Compare(ctx, countries, tag, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("comparing countries: %w", err)
	}
	logger.Debug("comparison computed",
		"countries", strings.Join(result.Countries, ","),
		"differences", len(result.Differences),
	)

	answer, err := p.synthesizer.SynthesizeComparison(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("synthesizing comparison: %w", err)
	}

	return &Response{
		RequestID:  requestID,
		Answer:     answer,
		Comparison: result,
	}, nil
}
