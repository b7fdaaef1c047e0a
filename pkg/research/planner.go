package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// QueryPlanner turns a topic and what is already known into sub-queries.
type QueryPlanner interface {
	PlanQueries(ctx context.Context, topic string, findings []string, n int) ([]SubQuery, error)
}

// LLMPlanner asks the model for up to n tagged query/goal pairs.
type LLMPlanner struct {
	LLM    Completer
	Logger *slog.Logger
}

func NewLLMPlanner(llm Completer) *LLMPlanner {
	return &LLMPlanner{LLM: llm, Logger: slog.Default()}
}

func (p *LLMPlanner) PlanQueries(ctx context.Context, topic string, findings []string, n int) ([]SubQuery, error) {
	prompt := fmt.Sprintf(serpPromptTemplate, n, topic, strings.Join(findings, "\n"))

	resp, err := p.LLM.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("query generation failed: %w", err)
	}

	queries := extractTagged(resp, "serp_query")
	goals := extractTagged(resp, "goal")
	planned := zipQueries(queries, goals, n)

	if p.Logger != nil {
		p.Logger.Info("Generated SERP queries", "requested", n, "queries", len(queries), "goals", len(goals), "planned", len(planned))
	}
	return planned, nil
}
