package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel answers GenerateContent from a list of canned replies. A nil
// response with a nil error means "no choices".
type scriptedModel struct {
	mu       sync.Mutex
	replies  []scriptedReply
	calls    int
	messages [][]llms.MessageContent
	temps    []float64
}

type scriptedReply struct {
	text  string
	empty bool
	err   error
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages)
	m.temps = append(m.temps, opts.Temperature)

	r := m.replies[min(m.calls, len(m.replies)-1)]
	m.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: r.text}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newTestCompleter(m llms.Model) *ModelCompleter {
	c := NewModelCompleter(m, 0.3)
	c.Backoff = time.Millisecond
	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return c
}

func TestModelCompleterSendsSystemPromptFirst(t *testing.T) {
	m := &scriptedModel{replies: []scriptedReply{{text: "hello"}}}
	c := newTestCompleter(m)

	out, err := c.Complete(context.Background(), "what is new?")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	require.Len(t, m.messages, 1)
	msgs := m.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Parts[0].(llms.TextContent).Text, "You are an expert researcher")
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, "what is new?", msgs[1].Parts[0].(llms.TextContent).Text)
	assert.Equal(t, []float64{0.3}, m.temps)
}

func TestModelCompleterRetries(t *testing.T) {
	tests := []struct {
		name      string
		replies   []scriptedReply
		want      string
		wantErr   string
		wantCalls int
	}{
		{
			name:      "recovers after an error",
			replies:   []scriptedReply{{err: errors.New("503")}, {text: "ok"}},
			want:      "ok",
			wantCalls: 2,
		},
		{
			name:      "recovers after no choices",
			replies:   []scriptedReply{{empty: true}, {empty: true}, {text: "ok"}},
			want:      "ok",
			wantCalls: 3,
		},
		{
			name:      "gives up after max retries",
			replies:   []scriptedReply{{err: errors.New("503")}},
			wantErr:   "operation failed after 3 retries: llm generation failed: 503",
			wantCalls: 3,
		},
		{
			name:      "no choices on every attempt",
			replies:   []scriptedReply{{empty: true}},
			wantErr:   "llm returned no choices",
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &scriptedModel{replies: tt.replies}
			out, err := newTestCompleter(m).Complete(context.Background(), "p")

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out)
			}
			assert.Equal(t, tt.wantCalls, m.calls)
		})
	}
}

func TestModelCompleterStopsOnCancel(t *testing.T) {
	m := &scriptedModel{replies: []scriptedReply{{err: errors.New("503")}}}
	c := newTestCompleter(m)
	c.Backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.calls)
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}
