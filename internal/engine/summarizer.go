package engine

import (
	"context"
	"fmt"
	"strings"
)

const summarySystem = `You summarize code changes for a project chat. One or two sentences, plain language, no markdown.`

// RequestSummary asks the completion service for a short natural-language
// description of the applied changes. This is a low-stakes call: any
// failure degrades to a static fallback, never aborting the run.
func RequestSummary(ctx context.Context, llm CompletionClient, executed []Action) string {
	fallback := fmt.Sprintf("Applied %d file change(s) to the project.", len(executed))

	var b strings.Builder
	for _, a := range executed {
		fmt.Fprintf(&b, "- %s %s", a.Kind, a.TargetPath)
		if a.Message != "" {
			fmt.Fprintf(&b, ": %s", a.Message)
		}
		b.WriteString("\n")
	}

	callCtx, cancel := context.WithTimeout(ctx, SummaryTimeout)
	defer cancel()

	resp, err := llm.Complete(callCtx, []ChatMessage{
		{Role: RoleSystem, Content: summarySystem},
		{Role: RoleUser, Content: "Summarize these changes:\n\n" + b.String()},
	}, CompletionOptions{Timeout: SummaryTimeout, MaxTokens: SummaryMaxTokens})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return fallback
	}
	return strings.TrimSpace(resp.Text)
}
