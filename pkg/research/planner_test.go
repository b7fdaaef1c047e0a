package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
)

func cannedLLM(reply string, prompts *[]string) Completer {
	return CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		if prompts != nil {
			*prompts = append(*prompts, prompt)
		}
		return reply, nil
	})
}

func failingLLM(err error) Completer {
	return CompleterFunc(func(context.Context, string) (string, error) { return "", err })
}

func TestPlanQueries(t *testing.T) {
	reply := `<serp_query>battery chemistry 2025</serp_query><serp_query>solid state cells</serp_query><serp_query>sodium ion</serp_query>
<goal>map the market</goal><goal>find timelines</goal><goal>compare costs</goal>`

	var prompts []string
	p := NewLLMPlanner(cannedLLM(reply, &prompts))
	p.Logger = nil

	got, err := p.PlanQueries(context.Background(), "EV batteries", []string{"lithium is expensive", "cobalt is scarce"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []SubQuery{
		{Query: "battery chemistry 2025", ResearchGoal: "map the market"},
		{Query: "solid state cells", ResearchGoal: "find timelines"},
	}, got)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Return a maximum of 2 queries")
	assert.Contains(t, prompts[0], "User prompt: EV batteries")
	assert.Contains(t, prompts[0], "lithium is expensive\ncobalt is scarce")
}

func TestPlanQueriesMismatchedCounts(t *testing.T) {
	reply := "<serp_query>a</serp_query><serp_query>b</serp_query><goal>only one</goal>"
	p := NewLLMPlanner(cannedLLM(reply, nil))

	got, err := p.PlanQueries(context.Background(), "t", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []SubQuery{{Query: "a", ResearchGoal: "only one"}}, got)
}

func TestPlanQueriesUnstructuredReply(t *testing.T) {
	p := NewLLMPlanner(cannedLLM("I cannot help with that.", nil))

	got, err := p.PlanQueries(context.Background(), "t", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPlanQueriesError(t *testing.T) {
	cause := errors.New("quota exceeded")
	p := NewLLMPlanner(failingLLM(cause))

	_, err := p.PlanQueries(context.Background(), "t", nil, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "query generation failed")
}

func TestSynthesize(t *testing.T) {
	reply := `<learning>one</learning><learning>two</learning><learning>three</learning><learning>four</learning>
<follow_Q>why?</follow_Q><follow_Q>how?</follow_Q><follow_Q>when?</follow_Q>`

	var prompts []string
	s := NewLLMSynthesizer(cannedLLM(reply, &prompts))
	docs := []search.Document{{Content: "alpha"}, {Content: "beta"}}

	got, err := s.Synthesize(context.Background(), "q", docs, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got.Findings)
	assert.Equal(t, []string{"why?", "how?"}, got.FollowUpQuestions)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "<serp_query>q</serp_query>")
	assert.Contains(t, prompts[0], "Return a maximum of 3 learnings")
	assert.Contains(t, prompts[0], "Return a maximum of 2 follow-up questions")
	assert.Contains(t, prompts[0], "alpha\nbeta")
}

func TestSynthesizeEmptyDocuments(t *testing.T) {
	s := NewLLMSynthesizer(cannedLLM("nothing to learn", nil))

	got, err := s.Synthesize(context.Background(), "q", nil, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, got.Findings)
	assert.Empty(t, got.FollowUpQuestions)
}

func TestSynthesizeBoundsContent(t *testing.T) {
	var prompts []string
	s := NewLLMSynthesizer(cannedLLM("<learning>x</learning>", &prompts))
	s.Splitter = splitter.NewRecursiveCharacterTextSplitter(20, 0)
	s.MaxChunks = 1

	docs := []search.Document{
		{Content: "first paragraph here"},
		{Content: "second paragraph that should be cut off entirely"},
	}
	_, err := s.Synthesize(context.Background(), "q", docs, 3, 1)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.NotContains(t, prompts[0], "cut off entirely")
}

func TestSynthesizeError(t *testing.T) {
	cause := errors.New("model down")
	s := NewLLMSynthesizer(failingLLM(cause))

	_, err := s.Synthesize(context.Background(), "q", []search.Document{{Content: "c"}}, 3, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "result synthesis failed")
}
