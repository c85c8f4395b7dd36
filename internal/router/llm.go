package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/skyrules/skyrules/internal/capability"
)

// llmResult is the structured-output contract for the classification
// fallback. Field names match the schema the model is asked to fill.
type llmResult struct {
	Path       string   `json:"path"`       // rules | database | both
	Confidence float64  `json:"confidence"` // 0.0 - 1.0
	Countries  []string `json:"countries"`  // ISO-2 codes
	Reasoning  string   `json:"reasoning"`
}

const classifyPrompt = `You route general-aviation pilot questions to the right backend.

Paths:
- "rules": regulatory questions (VFR/IFR rules, airspace, licensing, equipment requirements)
- "database": airport data lookups (frequencies, runways, fuel, customs notification for a specific airport)
- "both": questions needing regulations and airport data together

Classify the LATEST message using the conversation for context.
Return the path, your confidence (0.0-1.0), the ISO-2 codes of any
countries the question concerns, and a one-sentence reasoning.

Conversation (oldest first):
%s`

// GenkitClassifier is the production llmClassifier backed by the
// capability adapter's structured-output generation.
type GenkitClassifier struct {
	client *capability.Client
}

// NewGenkitClassifier creates a GenkitClassifier.
func NewGenkitClassifier(client *capability.Client) *GenkitClassifier {
	return &GenkitClassifier{client: client}
}

// Classify invokes the model with a structured-output schema and decodes
// the result.
func (g *GenkitClassifier) Classify(ctx context.Context, messages []string) (llmResult, error) {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString("- ")
		sb.WriteString(m)
		sb.WriteString("\n")
	}

	resp, err := g.client.Generate(ctx,
		ai.WithPrompt(fmt.Sprintf(classifyPrompt, sb.String())),
		ai.WithOutputType(llmResult{}),
	)
	if err != nil {
		return llmResult{}, fmt.Errorf("classification generate: %w", err)
	}

	var out llmResult
	if err := resp.Output(&out); err != nil {
		return llmResult{}, fmt.Errorf("decode classification output: %w", err)
	}
	return out, nil
}
