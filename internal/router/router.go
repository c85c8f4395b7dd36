// Package router classifies incoming queries into a handling path:
// regulatory rules lookup, airport database lookup, or both.
//
// Classification is two-stage. A keyword fast path answers the
// unambiguous cases without any model call; everything else falls back
// to structured LLM classification. A classification failure never
// blocks the request pipeline: the classifier degrades to a default
// database decision instead of returning an error.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/skyrules/skyrules/internal/country"
)

// Path selects which engine handles a query.
type Path int

const (
	// PathRules routes to the regulatory rules retrieval engine.
	PathRules Path = iota
	// PathDatabase routes to the airport database lookup.
	PathDatabase
	// PathBoth routes to both engines.
	PathBoth
)

// String returns the wire form of the path.
func (p Path) String() string {
	switch p {
	case PathRules:
		return "rules"
	case PathDatabase:
		return "database"
	case PathBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParsePath converts a wire-form path string into a Path.
func ParsePath(s string) (Path, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rules":
		return PathRules, nil
	case "database":
		return PathDatabase, nil
	case "both":
		return PathBoth, nil
	default:
		return PathDatabase, fmt.Errorf("unknown path %q", s)
	}
}

// Decision is the per-query classification result. It is ephemeral:
// produced fresh for each query turn and consumed immediately by the
// dispatcher, never persisted.
type Decision struct {
	Path       Path
	Confidence float64
	Countries  []string // sorted ISO-2 codes
	Reasoning  string
}

// rulesKeywords indicate a regulatory question.
var rulesKeywords = []string{
	"rule", "regulation", "vfr", "ifr", "allowed", "legal", "permitted",
	"airspace", "minima", "license", "licence", "requirement", "mandatory",
	"transponder", "flight plan", "night flying",
}

// databaseKeywords indicate an airport data lookup.
var databaseKeywords = []string{
	"airport", "airfield", "runway", "frequency", "fuel", "avgas", "elevation",
	"opening hours", "notam", "coordinates", "tower",
}

// notificationKeywords, combined with a concrete ICAO code, force the
// database path: a specific-airport notification lookup is answerable
// from airport data even when rules vocabulary co-occurs.
var notificationKeywords = []string{
	"notification", "notify", "customs", "immigration", "ppr", "prior permission",
}

// llmClassifier is the structured-output classification capability the
// fallback stage consumes. Implemented by GenkitClassifier in production
// and by fakes in tests.
type llmClassifier interface {
	Classify(ctx context.Context, messages []string) (llmResult, error)
}

// Config tunes the classifier.
type Config struct {
	// FastPathConfidence is emitted for unambiguous keyword matches.
	FastPathConfidence float64
	// CountryWindow bounds how many recent messages the country
	// resolver scans.
	CountryWindow int
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		FastPathConfidence: 0.95,
		CountryWindow:      country.DefaultWindow,
	}
}

// Classifier decides the handling path for a query.
type Classifier struct {
	llm    llmClassifier
	cfg    Config
	logger *slog.Logger
}

// NewClassifier creates a Classifier. A nil logger falls back to
// slog.Default().
func NewClassifier(llm llmClassifier, cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FastPathConfidence <= 0 {
		cfg.FastPathConfidence = 0.95
	}
	if cfg.CountryWindow <= 0 {
		cfg.CountryWindow = country.DefaultWindow
	}
	return &Classifier{
		llm:    llm,
		cfg:    cfg,
		logger: logger.With("component", "router"),
	}
}

// Classify produces a Decision for the conversation. The last element of
// messages is the current query. Classify never fails: any error in the
// LLM fallback degrades to the default database decision.
func (c *Classifier) Classify(ctx context.Context, messages []string) Decision {
	if len(messages) == 0 {
		return defaultDecision()
	}

	latest := strings.ToLower(messages[len(messages)-1])
	countries := country.Extract(messages, c.cfg.CountryWindow)

	// Disambiguation override, checked before the generic keyword test:
	// an explicit ICAO code plus notification vocabulary means the user
	// wants a specific-airport lookup, regardless of rules keywords.
	if country.HasICAOToken(messages[len(messages)-1]) && matchesAny(latest, notificationKeywords) {
		return Decision{
			Path:       PathDatabase,
			Confidence: c.cfg.FastPathConfidence,
			Countries:  countries,
			Reasoning:  "specific airport with notification keywords",
		}
	}

	rulesHit := matchesAny(latest, rulesKeywords)
	dbHit := matchesAny(latest, databaseKeywords)

	switch {
	case rulesHit && !dbHit:
		return Decision{
			Path:       PathRules,
			Confidence: c.cfg.FastPathConfidence,
			Countries:  countries,
			Reasoning:  "matched rules keywords",
		}
	case dbHit && !rulesHit:
		return Decision{
			Path:       PathDatabase,
			Confidence: c.cfg.FastPathConfidence,
			Countries:  countries,
			Reasoning:  "matched database keywords",
		}
	}

	// Ambiguous or no keyword signal: structured LLM classification.
	res, err := c.llm.Classify(ctx, messages)
	if err != nil {
		c.logger.Warn("llm classification failed, defaulting", "error", err)
		return defaultDecision()
	}

	path, err := ParsePath(res.Path)
	if err != nil {
		c.logger.Warn("llm returned unparseable path, defaulting", "path", res.Path)
		return defaultDecision()
	}

	return Decision{
		Path:       path,
		Confidence: clamp01(res.Confidence),
		Countries:  unionCountries(countries, res.Countries),
		Reasoning:  res.Reasoning,
	}
}

func defaultDecision() Decision {
	return Decision{
		Path:       PathDatabase,
		Confidence: 0.0,
		Reasoning:  "classification failed, defaulting",
	}
}

// matchesAny reports whether any keyword occurs as a whole word (or
// whole phrase) in lowered. A trailing plural "s" on the match is
// tolerated, so "rule" also hits "rules". Substring hits inside longer
// words do not count: "ppr" must not hit "approach".
func matchesAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWord(lowered, kw) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		if !letterBefore(s, start) && pluralBoundary(s, end) {
			return true
		}
		idx = start + 1
	}
}

func letterBefore(s string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r)
}

// pluralBoundary reports whether position end closes a word, allowing
// one trailing "s" before the boundary.
func pluralBoundary(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, size := utf8.DecodeRuneInString(s[end:])
	if !unicode.IsLetter(r) {
		return true
	}
	if r != 's' {
		return false
	}
	next, _ := utf8.DecodeRuneInString(s[end+size:])
	return !unicode.IsLetter(next)
}

// unionCountries merges the lexical resolver's codes with the LLM's.
// The LLM may reason about implicit context the resolver misses; the
// resolver catches ICAO codes the LLM mis-classifies. Invalid codes
// from the LLM are dropped.
func unionCountries(resolved, fromLLM []string) []string {
	seen := make(map[string]struct{}, len(resolved)+len(fromLLM))
	for _, code := range resolved {
		seen[code] = struct{}{}
	}
	for _, code := range fromLLM {
		code = strings.ToUpper(strings.TrimSpace(code))
		if country.IsValidCode(code) {
			seen[code] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
