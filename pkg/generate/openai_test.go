package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

func TestOpenAIClientGenerate(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", WithBaseURL(srv.URL+"/v1"))

	cfg := conversation.NewGenerationConfig()
	cfg.Temperature = 0.5
	cfg.MaxOutputTokens = 256
	cfg.StopSequences = []string{"END"}
	cfg.JSONMode = true

	out, err := c.Generate(context.Background(), "gpt-4", "hello", cfg, []Turn{
		{Role: conversation.RoleUser, Content: "earlier question"},
		{Role: conversation.RoleAssistant, Content: "earlier answer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)

	assert.Equal(t, "gpt-4", captured["model"])
	msgs, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]interface{})
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "hello", last["content"])
	assert.InDelta(t, 0.5, captured["temperature"], 1e-6)
	assert.EqualValues(t, 256, captured["max_tokens"])
	assert.Equal(t, []interface{}{"END"}, captured["stop"])
	rf, ok := captured["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", rf["type"])
}

func TestOpenAIClientGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("bad-key", WithBaseURL(srv.URL+"/v1"))

	_, err := c.Generate(context.Background(), "gpt-4", "hello", nil, nil)
	require.Error(t, err)

	var collabErr *CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, "generate", collabErr.Op)
	assert.Equal(t, "gpt-4", collabErr.Model)
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestOpenAIClientGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4", "choices": []}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", WithBaseURL(srv.URL+"/v1"))

	_, err := c.Generate(context.Background(), "gpt-4", "hello", nil, nil)
	require.Error(t, err)

	var collabErr *CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Contains(t, err.Error(), "no completion choices")
}

func TestOpenAIModelOutputCeiling(t *testing.T) {
	c := NewOpenAIClient("test-key")

	assert.Equal(t, 8192, c.ModelOutputCeiling(context.Background(), "gpt-4"))
	assert.Equal(t, FallbackModelOutputCeiling, c.ModelOutputCeiling(context.Background(), "some-new-model"))
}

func TestCountTokensApproximation(t *testing.T) {
	c := NewOpenAIClient("test-key")

	n, err := c.CountTokens(context.Background(), "gpt-4", "hello world")
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	again, err := c.CountTokens(context.Background(), "gpt-4", "hello world")
	require.NoError(t, err)
	assert.Equal(t, n, again)
}
