package retrieval

import (
	"context"
	"errors"
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
		"answers": {"FR": "4 hours notice via PN.", "DE": "24 hours notice."}
	},
	{
		"question_id": "q-night-vfr",
		"question_text": "Is night VFR permitted?",
		"category": "flight_rules",
		"tags": ["vfr", "night"],
		"answers": {"FR": "Yes, with conditions.", "DE": "Yes."}
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

func questionHit(questionID, countryCode string, sim float64) vectorstore.Result {
	return vectorstore.Result{
		Document: vectorstore.Document{
			ID: vectorstore.QuestionKey(questionID, countryCode),
			Metadata: map[string]string{
				vectorstore.MetaQuestionID:  questionID,
				vectorstore.MetaCountryCode: countryCode,
			},
		},
		Similarity: sim,
	}
}

type fakeEmbedder struct {
	vec      []float32
	err      error
	lastText string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.lastText = text
	return f.vec, f.err
}

type fakeSearcher struct {
	results []vectorstore.Result
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ vectorstore.Collection, _ []float32, _ ...vectorstore.SearchOption) ([]vectorstore.Result, error) {
	f.calls++
	return f.results, f.err
}

type fakeReformulator struct {
	out string
	err error
}

func (f *fakeReformulator) Reformulate(_ context.Context, _ string) (string, error) {
	return f.out, f.err
}

type failingReranker struct{}

func (failingReranker) Rerank(_ context.Context, _ string, _ []vectorstore.Result, _ int) ([]vectorstore.Result, error) {
	return nil, errors.New("reranker unavailable")
}

func newTestEngine(t *testing.T, searcher *fakeSearcher, embedder *fakeEmbedder, reformulator Reformulator, reranker Reranker) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0 // individual tests opt in
	return New(embedder, searcher, testCorpus(t), reformulator, reranker, cfg, log.NewNop())
}

func TestRetrieveResolvesFromCorpus(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.Result{
		questionHit("q-customs-notice", "FR", 0.9),
		questionHit("q-night-vfr", "FR", 0.7),
	}}
	e := newTestEngine(t, searcher, &fakeEmbedder{vec: []float32{1}}, nil, nil)

	matches, err := e.Retrieve(context.Background(), "customs requirements", []string{"FR"}, 5, "")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].Question.QuestionID != "q-customs-notice" {
		t.Errorf("matches[0] = %q, want q-customs-notice first", matches[0].Question.QuestionID)
	}
	if matches[0].Answer.AnswerText != "4 hours notice via PN." {
		t.Errorf("answer text = %q, want corpus text", matches[0].Answer.AnswerText)
	}
	if matches[0].Score != 0.9 {
		t.Errorf("score = %v, want 0.9", matches[0].Score)
	}
	for _, m := range matches {
		if m.Answer.CountryCode != "FR" {
			t.Errorf("country = %q, want FR", m.Answer.CountryCode)
		}
	}
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.Result{
		questionHit("q-customs-notice", "FR", 0.9),
		questionHit("q-customs-notice", "DE", 0.8),
		questionHit("q-night-vfr", "FR", 0.7),
	}}
	e := newTestEngine(t, searcher, &fakeEmbedder{vec: []float32{1}}, nil, nil)

	matches, err := e.Retrieve(context.Background(), "customs", []string{"FR", "DE"}, 2, "")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("len(matches) = %d, want 2", len(matches))
	}
}

func TestRetrieveReformulationUsed(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	e := newTestEngine(t, &fakeSearcher{}, embedder,
		&fakeReformulator{out: "customs notification requirements"}, nil)

	if _, err := e.Retrieve(context.Background(), "do i need to tell customs", nil, 5, ""); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if embedder.lastText != "customs notification requirements" {
		t.Errorf("embedded %q, want reformulated query", embedder.lastText)
	}
}

func TestRetrieveReformulationFailureFallsBack(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	e := newTestEngine(t, &fakeSearcher{}, embedder,
		&fakeReformulator{err: errors.New("model down")}, nil)

	if _, err := e.Retrieve(context.Background(), "do i need to tell customs", nil, 5, ""); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if embedder.lastText != "do i need to tell customs" {
		t.Errorf("embedded %q, want original query", embedder.lastText)
	}
}

func TestRetrieveRerankFailureKeepsSearchOrder(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.Result{
		questionHit("q-customs-notice", "FR", 0.9),
		questionHit("q-night-vfr", "FR", 0.7),
	}}
	e := newTestEngine(t, searcher, &fakeEmbedder{vec: []float32{1}}, nil, failingReranker{})

	matches, err := e.Retrieve(context.Background(), "customs", []string{"FR"}, 5, "")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(matches) != 2 || matches[0].Question.QuestionID != "q-customs-notice" {
		t.Errorf("matches = %+v, want search order preserved", matches)
	}
}

func TestRetrieveSimilarityThreshold(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.Result{
		questionHit("q-customs-notice", "FR", 0.9),
		questionHit("q-night-vfr", "FR", 0.1),
	}}
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0.3
	e := New(&fakeEmbedder{vec: []float32{1}}, searcher, testCorpus(t), nil, nil, cfg, log.NewNop())

	matches, err := e.Retrieve(context.Background(), "customs", []string{"FR"}, 5, "")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1 (low-similarity hit dropped)", len(matches))
	}
}

func TestRetrieveSkipsStaleIndexEntries(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.Result{
		questionHit("q-deleted", "FR", 0.9),
		questionHit("q-night-vfr", "GB", 0.8), // no GB answer in corpus
		questionHit("q-night-vfr", "FR", 0.7),
	}}
	e := newTestEngine(t, searcher, &fakeEmbedder{vec: []float32{1}}, nil, nil)

	matches, err := e.Retrieve(context.Background(), "night vfr", nil, 5, "")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(matches) != 1 || matches[0].Question.QuestionID != "q-night-vfr" {
		t.Errorf("matches = %+v, want only the resolvable hit", matches)
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	e := newTestEngine(t, &fakeSearcher{}, &fakeEmbedder{err: errors.New("quota")}, nil, nil)

	if _, err := e.Retrieve(context.Background(), "customs", nil, 5, ""); err == nil {
		t.Fatal("Retrieve() expected error when embedding fails")
	}
}

func TestRetrieveEmptyResultIsNotAnError(t *testing.T) {
	e := newTestEngine(t, &fakeSearcher{}, &fakeEmbedder{vec: []float32{1}}, nil, nil)

	matches, err := e.Retrieve(context.Background(), "gliding in iceland", []string{"IS"}, 5, "")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %+v, want empty", matches)
	}
}
