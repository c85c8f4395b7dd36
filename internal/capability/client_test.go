package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"google.golang.org/genai"
)

// fakeEmbedder implements ai.Embedder and records the last request.
type fakeEmbedder struct {
	lastReq *ai.EmbedRequest
	vec     []float32
	err     error
}

func (f *fakeEmbedder) Name() string { return "fake/embedder" }

func (f *fakeEmbedder) Register(r api.Registry) {}

func (f *fakeEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: f.vec}}}, nil
}

func TestEmbedCarriesConfiguredOptions(t *testing.T) {
	dim := int32(768)
	opts := &genai.EmbedContentConfig{OutputDimensionality: &dim}
	fake := &fakeEmbedder{vec: []float32{0.1, 0.2}}

	c := testClient()
	c.embedder = fake
	c.embedOpts = opts

	vec, err := c.Embed(context.Background(), "night vfr")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("len(vec) = %d, want 2", len(vec))
	}

	got, ok := fake.lastReq.Options.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("request options = %T, want *genai.EmbedContentConfig", fake.lastReq.Options)
	}
	if got.OutputDimensionality == nil || *got.OutputDimensionality != 768 {
		t.Errorf("OutputDimensionality = %v, want 768", got.OutputDimensionality)
	}
}

func TestEmbedWithoutOptions(t *testing.T) {
	fake := &fakeEmbedder{vec: []float32{0.5}}
	c := testClient()
	c.embedder = fake

	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if fake.lastReq.Options != nil {
		t.Errorf("request options = %v, want nil when none configured", fake.lastReq.Options)
	}
}

func TestEmbedEmptyResponse(t *testing.T) {
	c := testClient()
	c.embedder = &fakeEmbedder{vec: nil}

	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Fatal("Embed() expected error on empty embedding")
	}
}

func TestEmbedPropagatesError(t *testing.T) {
	permanent := errors.New("400 invalid argument")
	c := testClient()
	c.embedder = &fakeEmbedder{err: permanent}

	if _, err := c.Embed(context.Background(), "text"); !errors.Is(err, permanent) {
		t.Errorf("Embed() error = %v, want wrapped %v", err, permanent)
	}
}
