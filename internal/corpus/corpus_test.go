package corpus

import (
	"errors"
	"strings"
	"testing"
)

const sampleCorpus = `[
  {
    "question_id": "q-customs-notice",
    "question_text": "Is prior customs notification required for private flights?",
    "category": "customs",
    "tags": ["customs", "border"],
    "answers": {
      "FR": "Yes, 24h prior notice via the PN form.",
      "DE": "Yes, notification to the customs office of the airport of entry."
    }
  },
  {
    "question_id": "q-night-vfr",
    "question_text": "Is night VFR permitted?",
    "category": "flight-rules",
    "tags": ["vfr", "night"],
    "answers": {
      "FR": "Permitted on designated routes or with an instrument rating.",
      "DE": "Permitted with a night rating.",
      "GB": "Permitted; no separate rating required."
    }
  },
  {
    "question_id": "q-transponder",
    "question_text": "Where is a transponder mandatory?",
    "category": "equipment",
    "tags": ["equipment"],
    "answers": {
      "FR": "Above FL115 and in designated TMZ areas."
    }
  }
]`

func mustParse(t *testing.T, src string) *Corpus {
	t.Helper()
	c, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return c
}

func TestParse(t *testing.T) {
	c := mustParse(t, sampleCorpus)

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}

	q, err := c.Question("q-night-vfr")
	if err != nil {
		t.Fatalf("Question() error: %v", err)
	}
	a, ok := q.Answer("DE")
	if !ok {
		t.Fatal("missing DE answer")
	}
	if a.QuestionID != "q-night-vfr" || a.CountryCode != "DE" {
		t.Errorf("answer back-reference wrong: %+v", a)
	}
}

func TestParseDuplicateID(t *testing.T) {
	src := `[
	  {"question_id": "q1", "question_text": "a", "answers": {}},
	  {"question_id": "q1", "question_text": "b", "answers": {}}
	]`
	_, err := Parse(strings.NewReader(src))
	if !errors.Is(err, ErrDuplicateQuestionID) {
		t.Errorf("Parse() error = %v, want ErrDuplicateQuestionID", err)
	}
}

func TestParseInvalidCountry(t *testing.T) {
	src := `[{"question_id": "q1", "question_text": "a", "answers": {"XX": "text"}}]`
	_, err := Parse(strings.NewReader(src))
	if !errors.Is(err, ErrInvalidCountryCode) {
		t.Errorf("Parse() error = %v, want ErrInvalidCountryCode", err)
	}
}

func TestQuestionNotFound(t *testing.T) {
	c := mustParse(t, sampleCorpus)
	if _, err := c.Question("nope"); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("Question() error = %v, want ErrQuestionNotFound", err)
	}
}

func TestAllOrderedByID(t *testing.T) {
	c := mustParse(t, sampleCorpus)
	all := c.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].QuestionID > all[i].QuestionID {
			t.Fatalf("All() not sorted by id: %q before %q", all[i-1].QuestionID, all[i].QuestionID)
		}
	}
}

func TestSelectByTag(t *testing.T) {
	c := mustParse(t, sampleCorpus)

	got := c.SelectByTag("customs", 0)
	if len(got) != 1 || got[0].QuestionID != "q-customs-notice" {
		t.Errorf("SelectByTag(customs) = %v", ids(got))
	}

	all := c.SelectByTag("", 0)
	if len(all) != 3 {
		t.Errorf("SelectByTag(\"\") returned %d questions, want 3", len(all))
	}

	capped := c.SelectByTag("", 2)
	if len(capped) != 2 {
		t.Errorf("SelectByTag cap = %d results, want 2", len(capped))
	}
	// Cap is applied after deterministic ordering: first two IDs.
	if capped[0].QuestionID != "q-customs-notice" || capped[1].QuestionID != "q-night-vfr" {
		t.Errorf("SelectByTag capped selection = %v", ids(capped))
	}
}

func ids(qs []*RuleQuestion) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.QuestionID
	}
	return out
}
