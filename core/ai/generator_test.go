package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply  string
	err    error
	budget []int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.budget = append(s.budget, maxTokens)
	return s.reply, s.err
}

func TestGeneratorUsesTokenBudgets(t *testing.T) {
	stub := &stubCompleter{reply: `[{"question":"Q","answer":"A"}]`}
	g := NewGenerator(stub, time.Second)

	g.Summarize(context.Background(), "content")
	g.GenerateFlashcards(context.Background(), "content")
	g.ExtractKeywords(context.Background(), "content")

	assert.Equal(t, []int{SummaryMaxTokens, FlashcardsMaxTokens, KeywordsMaxTokens}, stub.budget)
}

func TestGeneratorSwallowsFailures(t *testing.T) {
	g := NewGenerator(&stubCompleter{err: errors.New("boom")}, time.Second)

	assert.Equal(t, "", g.Summarize(context.Background(), "content"))
	assert.Empty(t, g.GenerateFlashcards(context.Background(), "content"))
	assert.Empty(t, g.ExtractKeywords(context.Background(), "content"))
}

func TestGeneratorSwallowsUnparseableOutput(t *testing.T) {
	g := NewGenerator(&stubCompleter{reply: "[not json]"}, time.Second)
	assert.Empty(t, g.GenerateFlashcards(context.Background(), "content"))
	assert.Empty(t, g.ExtractKeywords(context.Background(), "content"))
}

func TestDisabledGenerator(t *testing.T) {
	g := NewGenerator(nil, 0)
	assert.False(t, g.Enabled())
	assert.Equal(t, "", g.Summarize(context.Background(), "content"))
}

func TestClientOpenAIFormat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Provider: ProviderOpenAI, APIBaseURL: srv.URL + "/", APIKey: "key", Model: "m1"})
	text, err := c.Complete(context.Background(), "prompt", 1000)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "m1", got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "prompt", got.Messages[0].Content)
}

func TestClientAnthropicFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		w.Write([]byte(`{"content":[{"type":"text","text":"summary"}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Provider: ProviderAnthropic, APIBaseURL: srv.URL, APIKey: "key", Model: "m"})
	text, err := c.Complete(context.Background(), "prompt", 1000)
	require.NoError(t, err)
	assert.Equal(t, "summary", text)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBaseURL: srv.URL, APIKey: "key", Model: "m"})
	_, err := c.Complete(context.Background(), "prompt", 10)
	assert.Error(t, err)

	g := NewGenerator(c, time.Second)
	assert.Equal(t, "", g.Summarize(context.Background(), "content"))
}

func TestGeneratorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := NewGenerator(NewClient(ClientConfig{APIBaseURL: srv.URL, Model: "m"}), 50*time.Millisecond)
	start := time.Now()
	assert.Equal(t, "", g.Summarize(context.Background(), "content"))
	assert.Less(t, time.Since(start), time.Second)
}
