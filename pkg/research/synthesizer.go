package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
)

// ResultSynthesizer extracts findings and follow-up questions from one
// query's search results.
type ResultSynthesizer interface {
	Synthesize(ctx context.Context, query string, docs []search.Document, maxFindings, maxFollowUps int) (Synthesis, error)
}

// LLMSynthesizer prompts the model with the joined document contents. When
// Splitter is set and MaxChunks > 0 only the first MaxChunks chunks are sent.
type LLMSynthesizer struct {
	LLM       Completer
	Splitter  *splitter.TextSplitter
	MaxChunks int
	Logger    *slog.Logger
}

func NewLLMSynthesizer(llm Completer) *LLMSynthesizer {
	return &LLMSynthesizer{LLM: llm, Logger: slog.Default()}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, query string, docs []search.Document, maxFindings, maxFollowUps int) (Synthesis, error) {
	contents := make([]string, 0, len(docs))
	for _, d := range docs {
		contents = append(contents, d.Content)
	}
	joined := strings.Join(contents, "\n")

	if s.Splitter != nil && s.MaxChunks > 0 {
		bounded, err := s.Splitter.Head(joined, s.MaxChunks)
		if err != nil {
			return Synthesis{}, fmt.Errorf("failed to split contents: %w", err)
		}
		joined = bounded
	}

	s.logger().Info("Processing search results", "query", query, "documents", len(docs))

	prompt := fmt.Sprintf(resultPromptTemplate, query, maxFindings, maxFollowUps, joined)
	resp, err := s.LLM.Complete(ctx, prompt)
	if err != nil {
		return Synthesis{}, fmt.Errorf("result synthesis failed: %w", err)
	}

	out := Synthesis{
		Findings:          capList(extractTagged(resp, "learning"), maxFindings),
		FollowUpQuestions: capList(extractTagged(resp, "follow_Q"), maxFollowUps),
	}
	s.logger().Info("Extracted learnings", "query", query, "learnings", len(out.Findings), "follow_ups", len(out.FollowUpQuestions))
	return out, nil
}

func (s *LLMSynthesizer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
