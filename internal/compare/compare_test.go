package compare

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/skyrules/skyrules/internal/corpus"
	"github.com/skyrules/skyrules/internal/log"
	"github.com/skyrules/skyrules/internal/vectorstore"
)

const testCorpusJSON = `[
	{
		"question_id": "q-customs-notice",
		"question_text": "How much notice is required for customs?",
		"category": "customs",
		"tags": ["customs"],
		"answers": {"FR": "4 hours notice.", "DE": "24 hours notice.", "GB": "GAR form, 12 hours."}
	},
	{
		"question_id": "q-night-vfr",
		"question_text": "Is night VFR permitted?",
		"category": "flight_rules",
		"tags": ["vfr"],
		"answers": {"FR": "Yes, with conditions.", "DE": "Yes."}
	},
	{
		"question_id": "q-transponder",
		"question_text": "Is a transponder mandatory?",
		"category": "equipment",
		"tags": ["equipment"],
		"answers": {"FR": "Above FL115 or in RMZ.", "DE": "In TMZ airspace."}
	}
]`

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Parse(strings.NewReader(testCorpusJSON))
	if err != nil {
		t.Fatalf("parsing test corpus: %v", err)
	}
	return c
}

type fakeSource struct {
	docs map[string][]float32
	err  error
}

func (f *fakeSource) Get(_ context.Context, _ vectorstore.Collection, id string) (*vectorstore.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", vectorstore.ErrNotFound, id)
	}
	return &vectorstore.Document{ID: id, Embedding: vec}, nil
}

func answerVec(questionID, code string, vec []float32) (string, []float32) {
	return vectorstore.AnswerKey(questionID, code), vec
}

func sourceWith(entries ...func(map[string][]float32)) *fakeSource {
	docs := make(map[string][]float32)
	for _, e := range entries {
		e(docs)
	}
	return &fakeSource{docs: docs}
}

func entry(questionID, code string, vec []float32) func(map[string][]float32) {
	return func(docs map[string][]float32) {
		k, v := answerVec(questionID, code, vec)
		docs[k] = v
	}
}

func newTestEngine(t *testing.T, source AnswerSource) *Engine {
	t.Helper()
	return New(source, testCorpus(t), DefaultConfig(), log.NewNop())
}

func TestCompareExcludesNearIdenticalAnswers(t *testing.T) {
	// Same regulation, locale-specific wording: near-identical vectors.
	source := sourceWith(
		entry("q-night-vfr", "FR", []float32{1, 0, 0}),
		entry("q-night-vfr", "DE", []float32{1, 0.001, 0}),
		entry("q-transponder", "FR", []float32{1, 0, 0}),
		entry("q-transponder", "DE", []float32{0, 1, 0}),
	)
	e := newTestEngine(t, source)

	result, err := e.Compare(context.Background(), []string{"FR", "DE"}, "", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if len(result.Differences) != 1 {
		t.Fatalf("differences = %+v, want only q-transponder", result.Differences)
	}
	if result.Differences[0].QuestionID != "q-transponder" {
		t.Errorf("question = %q, want q-transponder", result.Differences[0].QuestionID)
	}
}

func TestCompareRankedDescending(t *testing.T) {
	source := sourceWith(
		entry("q-night-vfr", "FR", []float32{1, 0}),
		entry("q-night-vfr", "DE", []float32{0.8, 0.6}), // moderate distance
		entry("q-transponder", "FR", []float32{1, 0}),
		entry("q-transponder", "DE", []float32{0, 1}), // orthogonal, distance 1
	)
	e := newTestEngine(t, source)

	result, err := e.Compare(context.Background(), []string{"FR", "DE"}, "", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if len(result.Differences) != 2 {
		t.Fatalf("len(differences) = %d, want 2", len(result.Differences))
	}
	if result.Differences[0].QuestionID != "q-transponder" {
		t.Errorf("most divergent = %q, want q-transponder", result.Differences[0].QuestionID)
	}
	for i := 1; i < len(result.Differences); i++ {
		if result.Differences[i].Distance > result.Differences[i-1].Distance {
			t.Errorf("differences not sorted descending at %d", i)
		}
	}
	for _, d := range result.Differences {
		if d.Distance < 0.1 {
			t.Errorf("distance %v below min_difference", d.Distance)
		}
	}
}

func TestCompareSymmetry(t *testing.T) {
	source := sourceWith(
		entry("q-night-vfr", "FR", []float32{1, 0}),
		entry("q-night-vfr", "DE", []float32{0, 1}),
	)
	e := newTestEngine(t, source)

	first, err := e.Compare(context.Background(), []string{"FR", "DE"}, "vfr", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare(FR,DE) error: %v", err)
	}
	second, err := e.Compare(context.Background(), []string{"DE", "FR"}, "vfr", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare(DE,FR) error: %v", err)
	}

	if !slices.Equal(first.Countries, second.Countries) {
		t.Errorf("countries differ: %v vs %v", first.Countries, second.Countries)
	}
	if len(first.Differences) != len(second.Differences) {
		t.Fatalf("difference counts differ: %d vs %d", len(first.Differences), len(second.Differences))
	}
	for i := range first.Differences {
		a, b := first.Differences[i], second.Differences[i]
		if a.QuestionID != b.QuestionID || a.CountryA != b.CountryA || a.CountryB != b.CountryB || a.Distance != b.Distance {
			t.Errorf("entry %d differs: %+v vs %+v", i, a, b)
		}
		if a.CountryA >= a.CountryB {
			t.Errorf("pair %q/%q not in alphabetical order", a.CountryA, a.CountryB)
		}
	}
}

func TestCompareSkipsQuestionMissingEmbedding(t *testing.T) {
	// q-night-vfr has a DE corpus answer but no DE embedding: the whole
	// question is skipped, not compared over the FR-only subset.
	source := sourceWith(
		entry("q-night-vfr", "FR", []float32{1, 0}),
		entry("q-transponder", "FR", []float32{1, 0}),
		entry("q-transponder", "DE", []float32{0, 1}),
	)
	e := newTestEngine(t, source)

	result, err := e.Compare(context.Background(), []string{"FR", "DE"}, "", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if len(result.Differences) != 1 || result.Differences[0].QuestionID != "q-transponder" {
		t.Errorf("differences = %+v, want only q-transponder", result.Differences)
	}
}

func TestCompareSkipsQuestionMissingCorpusAnswer(t *testing.T) {
	// q-night-vfr has no GB answer at all; comparing FR/GB must not
	// touch it even if embeddings existed.
	source := sourceWith(
		entry("q-customs-notice", "FR", []float32{1, 0}),
		entry("q-customs-notice", "GB", []float32{0, 1}),
		entry("q-night-vfr", "FR", []float32{1, 0}),
		entry("q-night-vfr", "GB", []float32{0, 1}),
	)
	e := newTestEngine(t, source)

	result, err := e.Compare(context.Background(), []string{"FR", "GB"}, "", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	for _, d := range result.Differences {
		if d.QuestionID == "q-night-vfr" {
			t.Errorf("q-night-vfr compared despite missing GB answer")
		}
	}
}

func TestCompareTagFilter(t *testing.T) {
	source := sourceWith(
		entry("q-customs-notice", "FR", []float32{1, 0}),
		entry("q-customs-notice", "DE", []float32{0, 1}),
		entry("q-night-vfr", "FR", []float32{1, 0}),
		entry("q-night-vfr", "DE", []float32{0, 1}),
	)
	e := newTestEngine(t, source)

	result, err := e.Compare(context.Background(), []string{"FR", "DE"}, "customs", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if len(result.Differences) != 1 || result.Differences[0].QuestionID != "q-customs-notice" {
		t.Errorf("differences = %+v, want only the customs question", result.Differences)
	}
}

func TestCompareTooFewCountries(t *testing.T) {
	e := newTestEngine(t, &fakeSource{})

	for _, countries := range [][]string{nil, {"FR"}, {"FR", "fr", " FR "}} {
		if _, err := e.Compare(context.Background(), countries, "", 0, 0.1); !errors.Is(err, ErrTooFewCountries) {
			t.Errorf("Compare(%v) error = %v, want ErrTooFewCountries", countries, err)
		}
	}
}

func TestCompareStoreErrorPropagates(t *testing.T) {
	e := newTestEngine(t, &fakeSource{err: errors.New("connection refused")})

	if _, err := e.Compare(context.Background(), []string{"FR", "DE"}, "", 0, 0.1); err == nil {
		t.Fatal("Compare() expected error for store failure")
	}
}

func TestCompareTextsComeFromCorpus(t *testing.T) {
	source := sourceWith(
		entry("q-night-vfr", "FR", []float32{1, 0}),
		entry("q-night-vfr", "DE", []float32{0, 1}),
	)
	e := newTestEngine(t, source)

	result, err := e.Compare(context.Background(), []string{"FR", "DE"}, "vfr", 0, 0.1)
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	d := result.Differences[0]
	if d.TextA != "Yes." || d.TextB != "Yes, with conditions." {
		t.Errorf("texts = %q / %q, want corpus answer texts", d.TextA, d.TextB)
	}
}
