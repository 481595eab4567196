package llm

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// DefaultSystemTemplate is rendered with the answer language and the
// retrieved passages.
const DefaultSystemTemplate = `Always respond in {{.language}} only.
Use the retrieved document excerpts below to answer the question.
If the question is outside the scope of the documents, answer from your own knowledge.

Retrieved excerpts:
{{.context}}`

func newSystemPrompt(template string) prompts.PromptTemplate {
	return prompts.NewPromptTemplate(template, []string{"language", "context"})
}

func renderSystemPrompt(tmpl prompts.PromptTemplate, language string, passages []string) (string, error) {
	text, err := tmpl.Format(map[string]any{
		"language": language,
		"context":  strings.Join(passages, "\n\n"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return text, nil
}
