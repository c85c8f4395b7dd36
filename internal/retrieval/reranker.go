package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/skyrules/skyrules/internal/vecmath"
	"github.com/skyrules/skyrules/internal/vectorstore"
)

// Reranker reorders an initial candidate set by a second-pass relevance
// score and truncates to topK. Selected by configuration at construction
// time; NoopReranker serves the "none" case so retrieval logic carries no
// conditional branching.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []vectorstore.Result, topK int) ([]vectorstore.Result, error)
}

// Completer is the plain-text completion capability the LLM reranker
// consumes.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewReranker builds the reranker named by kind: "none", "embedding", or
// "llm".
func NewReranker(kind string, embedder Embedder, completer Completer) (Reranker, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return NoopReranker{}, nil
	case "embedding":
		return &EmbeddingReranker{embedder: embedder}, nil
	case "llm":
		return &LLMReranker{completer: completer}, nil
	default:
		return nil, fmt.Errorf("unknown reranker %q", kind)
	}
}

// NoopReranker preserves the search ordering.
type NoopReranker struct{}

// Rerank returns the candidates unchanged, truncated to topK.
func (NoopReranker) Rerank(_ context.Context, _ string, candidates []vectorstore.Result, topK int) ([]vectorstore.Result, error) {
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// EmbeddingReranker re-scores candidates by cosine similarity between a
// fresh query embedding and each candidate's stored embedding. Cheap
// second pass; useful when the search-side scoring was diluted by
// country-fairness over-fetching.
type EmbeddingReranker struct {
	embedder Embedder
}

// Rerank re-embeds the query, scores candidates, and returns the topK
// highest. Candidates without a stored embedding keep their search score.
func (r *EmbeddingReranker) Rerank(ctx context.Context, query string, candidates []vectorstore.Result, topK int) ([]vectorstore.Result, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding rerank query: %w", err)
	}

	ranked := make([]vectorstore.Result, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		if len(ranked[i].Document.Embedding) > 0 {
			ranked[i].Similarity = vecmath.CosineSimilarity(queryVec, ranked[i].Document.Embedding)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

const rerankPrompt = `Rank the numbered documents by relevance to the query.
Reply with the document numbers only, most relevant first, comma separated
(for example: 3,1,2). Do not explain.

Query: %s

Documents:
%s`

// LLMReranker asks the completion capability to order candidates,
// cross-encoder style. More accurate than embedding similarity and much
// more expensive.
type LLMReranker struct {
	completer Completer
}

// Rerank sends the numbered candidates to the model and reorders them by
// the returned index list. Indices the model omits are dropped; an
// unparseable reply is an error so the caller can keep the search order.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []vectorstore.Result, topK int) ([]vectorstore.Result, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Document.Content)
	}

	reply, err := r.completer.Complete(ctx, fmt.Sprintf(rerankPrompt, query, sb.String()))
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}

	order, err := parseRankOrder(reply, len(candidates))
	if err != nil {
		return nil, fmt.Errorf("parsing rerank reply %q: %w", reply, err)
	}

	ranked := make([]vectorstore.Result, 0, len(order))
	for pos, idx := range order {
		c := candidates[idx]
		// Positional rerank score, 1.0 for the top pick.
		c.Similarity = 1 - float64(pos)/float64(len(order))
		ranked = append(ranked, c)
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// parseRankOrder extracts a 1-based index list from the model reply and
// converts it to deduplicated 0-based indices.
func parseRankOrder(reply string, n int) ([]int, error) {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r < '0' || r > '9'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no indices found")
	}

	seen := make(map[int]struct{}, n)
	order := make([]int, 0, n)
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n {
			continue
		}
		if _, dup := seen[v-1]; dup {
			continue
		}
		seen[v-1] = struct{}{}
		order = append(order, v-1)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no valid indices in range 1..%d", n)
	}
	return order, nil
}
