package research

import (
	"context"
	"fmt"
	"strings"
)

// WriteReport composes the final Markdown report from the research result.
func WriteReport(ctx context.Context, llm Completer, query string, findings, visitedURLs []string) (string, error) {
	prompt := fmt.Sprintf(reportPromptTemplate, query, strings.Join(findings, "\n"), strings.Join(visitedURLs, "\n"))

	resp, err := llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}
	return stripFences(resp), nil
}

// stripFences removes a ``` or ```markdown fence wrapping the whole answer.
// Fences inside the report are left alone.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	first, rest, ok := strings.Cut(s, "\n")
	if !ok {
		return strings.Trim(first, "`")
	}
	lang := strings.TrimSpace(strings.TrimPrefix(first, "```"))
	if lang != "" && lang != "markdown" && lang != "md" {
		return s
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}
