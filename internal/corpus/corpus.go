// Package corpus owns the canonical rule texts.
//
// The JSON corpus is the single source of truth for question and answer
// content; the vector store is rebuilt from it and is authoritative only for
// retrieval, never for text. Answers are immutable once loaded and are
// replaced wholesale on corpus rebuild.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/skyrules/skyrules/internal/country"
)

var (
	// ErrDuplicateQuestionID indicates the corpus contains the same
	// question ID twice.
	ErrDuplicateQuestionID = errors.New("duplicate question id")

	// ErrInvalidCountryCode indicates an answer is keyed by a code that is
	// not a known ISO-2 country code.
	ErrInvalidCountryCode = errors.New("invalid country code")

	// ErrQuestionNotFound indicates a lookup for an unknown question ID.
	ErrQuestionNotFound = errors.New("question not found")
)

// Answer is a per-country response to a RuleQuestion. It carries a
// back-reference to its parent question and is never patched in place.
type Answer struct {
	QuestionID  string `json:"question_id"`
	CountryCode string `json:"country_code"`
	AnswerText  string `json:"answer_text"`
}

// RuleQuestion is a canonical regulatory question with per-country answers.
type RuleQuestion struct {
	QuestionID       string            `json:"question_id"`
	QuestionText     string            `json:"question_text"`
	Category         string            `json:"category"`
	Tags             []string          `json:"tags"`
	AnswersByCountry map[string]Answer `json:"answers_by_country"`
}

// Answer returns the answer for the given country, if present.
func (q *RuleQuestion) Answer(countryCode string) (Answer, bool) {
	a, ok := q.AnswersByCountry[countryCode]
	return a, ok
}

// HasTag reports whether the question carries the given tag.
func (q *RuleQuestion) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Corpus is the in-memory rule corpus, loaded once at startup and read-only
// afterwards.
type Corpus struct {
	questions map[string]*RuleQuestion
	ordered   []string // question IDs, sorted
}

// rawQuestion is the on-disk shape: answers keyed by country code with text
// only; the loader fills in the back-references.
type rawQuestion struct {
	QuestionID   string            `json:"question_id"`
	QuestionText string            `json:"question_text"`
	Category     string            `json:"category"`
	Tags         []string          `json:"tags"`
	Answers      map[string]string `json:"answers"`
}

// Load reads a JSON corpus file and validates its invariants: unique
// question IDs and valid ISO-2 answer keys.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse builds a Corpus from JSON read from r.
func Parse(r io.Reader) (*Corpus, error) {
	var raw []rawQuestion
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding corpus: %w", err)
	}

	c := &Corpus{questions: make(map[string]*RuleQuestion, len(raw))}
	for _, rq := range raw {
		if rq.QuestionID == "" {
			return nil, fmt.Errorf("question with empty id (text %q)", rq.QuestionText)
		}
		if _, exists := c.questions[rq.QuestionID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateQuestionID, rq.QuestionID)
		}

		q := &RuleQuestion{
			QuestionID:       rq.QuestionID,
			QuestionText:     rq.QuestionText,
			Category:         rq.Category,
			Tags:             rq.Tags,
			AnswersByCountry: make(map[string]Answer, len(rq.Answers)),
		}
		for code, text := range rq.Answers {
			if !country.IsValidCode(code) {
				return nil, fmt.Errorf("%w: %q in question %q", ErrInvalidCountryCode, code, rq.QuestionID)
			}
			q.AnswersByCountry[code] = Answer{
				QuestionID:  rq.QuestionID,
				CountryCode: code,
				AnswerText:  text,
			}
		}
		c.questions[rq.QuestionID] = q
		c.ordered = append(c.ordered, rq.QuestionID)
	}

	sort.Strings(c.ordered)
	return c, nil
}

// Len returns the number of questions in the corpus.
func (c *Corpus) Len() int {
	return len(c.questions)
}

// Question returns the question with the given ID.
func (c *Corpus) Question(id string) (*RuleQuestion, error) {
	q, ok := c.questions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrQuestionNotFound, id)
	}
	return q, nil
}

// All returns every question ordered by question ID. The order is stable
// across runs regardless of corpus file ordering.
func (c *Corpus) All() []*RuleQuestion {
	out := make([]*RuleQuestion, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.questions[id])
	}
	return out
}

// SelectByTag returns questions carrying the tag, ordered by question ID and
// capped at maxQuestions (0 means no cap). An empty tag selects all
// questions. Sorting by ID, not insertion order, keeps comparison results
// reproducible across runs.
func (c *Corpus) SelectByTag(tag string, maxQuestions int) []*RuleQuestion {
	out := make([]*RuleQuestion, 0, len(c.ordered))
	for _, id := range c.ordered {
		q := c.questions[id]
		if tag != "" && !q.HasTag(tag) {
			continue
		}
		out = append(out, q)
		if maxQuestions > 0 && len(out) == maxQuestions {
			break
		}
	}
	return out
}
