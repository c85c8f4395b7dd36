package retrieval

import (
	"context"
	"fmt"
	"strings"
)

const reformulatePrompt = `Rewrite the pilot's question as a short, formal
aviation-regulation search query. Keep country names, airport codes, and
regulatory terms. Reply with the rewritten query only.

Question: %s`

// LLMReformulator rewrites colloquial queries via the completion
// capability. Purely a text transform; the engine falls back to the
// original query when it fails.
type LLMReformulator struct {
	completer Completer
}

// NewLLMReformulator creates an LLMReformulator.
func NewLLMReformulator(completer Completer) *LLMReformulator {
	return &LLMReformulator{completer: completer}
}

// Reformulate returns the rewritten query.
func (r *LLMReformulator) Reformulate(ctx context.Context, query string) (string, error) {
	reply, err := r.completer.Complete(ctx, fmt.Sprintf(reformulatePrompt, query))
	if err != nil {
		return "", fmt.Errorf("reformulation completion: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
