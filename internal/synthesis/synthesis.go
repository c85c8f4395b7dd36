// Package synthesis renders retrieved rules or computed differences into
// natural-language answers. It is a thin delegation to the completion
// capability; the grounding requirement (cite only the provided
// documents, never invent regulatory claims) lives in the prompt
// contract and is verified by tests, not enforceable in code.
package synthesis

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/skyrules/skyrules/internal/compare"
	"github.com/skyrules/skyrules/internal/retrieval"
)

// Completer is the plain-text completion capability.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var tmplFuncs = template.FuncMap{"join": strings.Join}

var answerTmpl = template.Must(template.New("answer").Funcs(tmplFuncs).Parse(
	`You are an aviation regulations assistant for general-aviation pilots.

Answer the pilot's question using ONLY the regulatory extracts below.
If the extracts do not cover the question, say that no matching rule was
found. Never invent regulatory claims, figures, or requirements that are
not in the extracts. Cite the country for every statement.

Question: {{.Query}}
{{- if .Countries}}
Countries of interest: {{join .Countries ", "}}
{{- end}}

Regulatory extracts:
{{- range .Matches}}
[{{.Answer.CountryCode}}] {{.Question.QuestionText}}
{{.Answer.AnswerText}}
{{- end}}
`))

var comparisonTmpl = template.Must(template.New("comparison").Funcs(tmplFuncs).Parse(
	`You are an aviation regulations assistant for general-aviation pilots.

Summarize how the regulations differ between {{join .Countries ", "}}.
Use ONLY the differences listed below; they are ordered most divergent
first. Never invent regulatory claims that are not in the listed texts.

Differences:
{{- range .Differences}}
{{.QuestionText}}
  [{{.CountryA}}] {{.TextA}}
  [{{.CountryB}}] {{.TextB}}
{{- end}}
`))

// Synthesizer turns engine output into user-facing text.
type Synthesizer struct {
	completer Completer
}

// New creates a Synthesizer.
func New(completer Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Synthesize answers a query from retrieved matches. An empty match set
// short-circuits to a fixed no-results response without a model call.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, countries []string, matches []retrieval.Match) (string, error) {
	if len(matches) == 0 {
		return "No matching rules were found for that question.", nil
	}

	prompt, err := render(answerTmpl, struct {
		Query     string
		Countries []string
		Matches   []retrieval.Match
	}{query, countries, matches})
	if err != nil {
		return "", err
	}
	return s.completer.Complete(ctx, prompt)
}

// SynthesizeComparison summarizes a comparison result. An empty
// difference list short-circuits without a model call.
func (s *Synthesizer) SynthesizeComparison(ctx context.Context, result *compare.ComparisonResult) (string, error) {
	if result == nil || len(result.Differences) == 0 {
		return "No significant regulatory differences were found between the requested countries.", nil
	}

	prompt, err := render(comparisonTmpl, result)
	if err != nil {
		return "", err
	}
	return s.completer.Complete(ctx, prompt)
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}
