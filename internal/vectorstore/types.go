package vectorstore

import "time"

// Dimension is the embedding vector width for both collections. The Gemini
// embedding model is truncated to this size via OutputDimensionality; the
// pgvector schema in db/migrations must match.
const Dimension = 768

// Collection names a logical document collection. Values double as table
// names, so anything outside the two constants is rejected before reaching
// SQL.
type Collection string

const (
	// Questions holds one embedded document per question/country pair,
	// keyed "{question_id}_{country_code}". Used for retrieval.
	Questions Collection = "question_documents"

	// Answers holds one embedded document per answer, keyed
	// "{question_id}_{country_code}_answer". Used for comparison.
	Answers Collection = "answer_documents"
)

func (c Collection) valid() bool {
	return c == Questions || c == Answers
}

// Metadata keys present on every stored document.
const (
	MetaQuestionID  = "question_id"
	MetaCountryCode = "country_code"
	MetaCategory    = "category"
)

// QuestionKey builds the document ID for a question/country pair.
func QuestionKey(questionID, countryCode string) string {
	return questionID + "_" + countryCode
}

// AnswerKey builds the document ID for a country's answer.
func AnswerKey(questionID, countryCode string) string {
	return questionID + "_" + countryCode + "_answer"
}

// Document is a stored (text, embedding, metadata) triple.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
	CreatedAt time.Time
}

// Result is a search hit with its cosine similarity to the query vector.
type Result struct {
	Document   Document
	Similarity float64
}

// SearchOption configures Search via the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK      int
	countries []string
	category  string
}

// WithTopK sets the maximum number of results. Default 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithCountries restricts results to documents whose country_code metadata
// is in the given set. An empty set means unrestricted.
func WithCountries(codes []string) SearchOption {
	return func(c *searchConfig) {
		c.countries = codes
	}
}

// WithCategory restricts results to one question category.
func WithCategory(category string) SearchOption {
	return func(c *searchConfig) {
		c.category = category
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
