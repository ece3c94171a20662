package chatgpt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/location-insights/pkg/metrics"
)

func TestGenerateSendsSingleUserMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		require.Equal(t, "user", req.Messages[0].Role)
		require.Equal(t, "pick five", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  [ ]  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":3,"total_tokens":12}}`))
	}))
	defer srv.Close()

	client, err := NewClient("sk-test", srv.URL+"/", "", 0.7, time.Second)
	require.NoError(t, err)

	completion, err := client.Generate(context.Background(), "pick five")
	require.NoError(t, err)
	require.Equal(t, "[ ]", completion.Text)
	require.Equal(t, metrics.TokenUsage{PromptTokens: 9, CompletionTokens: 3, TotalTokens: 12}, completion.Usage)
}

func TestGenerateReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient("sk-test", srv.URL, "gpt-4o", 0, time.Second)
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=429")
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient("sk-test", srv.URL, "gpt-4o", 0, time.Second)
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "x")
	require.EqualError(t, err, "chatgpt returned no choices")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", "", "", 0, 0)
	require.Error(t, err)
}
