package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skyrules/skyrules/internal/compare"
	"github.com/skyrules/skyrules/internal/corpus"
	"github.com/skyrules/skyrules/internal/retrieval"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func sampleMatches() []retrieval.Match {
	q := &corpus.RuleQuestion{
		QuestionID:   "q-customs-notice",
		QuestionText: "How much notice is required for customs?",
	}
	return []retrieval.Match{
		{
			Question: q,
			Answer: corpus.Answer{
				QuestionID:  "q-customs-notice",
				CountryCode: "FR",
				AnswerText:  "4 hours notice via PN form.",
			},
			Score: 0.9,
		},
	}
}

func TestSynthesizePromptGrounding(t *testing.T) {
	completer := &fakeCompleter{reply: "In France, 4 hours notice is required."}
	s := New(completer)

	got, err := s.Synthesize(context.Background(), "customs notice France", []string{"FR"}, sampleMatches())
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if got != completer.reply {
		t.Errorf("Synthesize() = %q, want completer reply", got)
	}

	// The prompt must carry the question, the extracts, and the
	// grounding instruction.
	for _, want := range []string{
		"customs notice France",
		"4 hours notice via PN form.",
		"[FR]",
		"ONLY the regulatory extracts",
		"Never invent",
	} {
		if !strings.Contains(completer.lastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, completer.lastPrompt)
		}
	}
}

func TestSynthesizeEmptyMatchesSkipsModel(t *testing.T) {
	completer := &fakeCompleter{}
	s := New(completer)

	got, err := s.Synthesize(context.Background(), "anything", nil, nil)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if got == "" {
		t.Error("Synthesize() returned empty no-results message")
	}
	if completer.lastPrompt != "" {
		t.Error("completer called for empty match set")
	}
}

func TestSynthesizeCompleterError(t *testing.T) {
	s := New(&fakeCompleter{err: errors.New("model down")})

	if _, err := s.Synthesize(context.Background(), "q", nil, sampleMatches()); err == nil {
		t.Fatal("Synthesize() expected error")
	}
}

func TestSynthesizeComparisonPrompt(t *testing.T) {
	completer := &fakeCompleter{reply: "France requires more notice than Germany."}
	s := New(completer)

	result := &compare.ComparisonResult{
		Countries: []string{"DE", "FR"},
		Differences: []compare.Difference{
			{
				QuestionID:   "q-customs-notice",
				QuestionText: "How much notice is required for customs?",
				CountryA:     "DE",
				CountryB:     "FR",
				Distance:     0.6,
				TextA:        "24 hours notice.",
				TextB:        "4 hours notice.",
			},
		},
	}

	got, err := s.SynthesizeComparison(context.Background(), result)
	if err != nil {
		t.Fatalf("SynthesizeComparison() error: %v", err)
	}
	if got != completer.reply {
		t.Errorf("SynthesizeComparison() = %q, want completer reply", got)
	}
	for _, want := range []string{"DE, FR", "[DE] 24 hours notice.", "[FR] 4 hours notice.", "Never invent"} {
		if !strings.Contains(completer.lastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, completer.lastPrompt)
		}
	}
}

func TestSynthesizeComparisonEmpty(t *testing.T) {
	completer := &fakeCompleter{}
	s := New(completer)

	got, err := s.SynthesizeComparison(context.Background(), &compare.ComparisonResult{Countries: []string{"DE", "FR"}})
	if err != nil {
		t.Fatalf("SynthesizeComparison() error: %v", err)
	}
	if got == "" || completer.lastPrompt != "" {
		t.Errorf("want fixed message without model call, got %q (prompt %q)", got, completer.lastPrompt)
	}
}
