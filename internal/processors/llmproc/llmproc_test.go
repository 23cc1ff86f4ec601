package llmproc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancai/orchestrator/internal/model"
)

func chatCompletionResponse(t *testing.T, body string) []byte {
	t.Helper()
	payload := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": body,
				},
				"finish_reason": "stop",
			},
		},
	}
	out, err := json.Marshal(payload)
	require.NoError(t, err)
	return out
}

func newTestProcessor(t *testing.T, handler http.HandlerFunc) *Processor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{
		Name:    "llm",
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Weight:  0.6,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestExtract_ParsesValidStructuredOutput(t *testing.T) {
	content := `{"descriptions":[{"type":"LOCATION","content":"a crumbling tower","char_start":0,"char_end":18,"confidence":0.8}]}`
	p := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(chatCompletionResponse(t, content))
	})

	out, err := p.Extract(context.Background(), &model.Chapter{Content: "A crumbling tower loomed overhead."})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.TypeLocation, out[0].Type)
	assert.Equal(t, "a crumbling tower", out[0].Content)
	assert.InDelta(t, 0.8, out[0].Confidence, 0.0001)
}

func TestExtract_RejectsOutputFailingSchema(t *testing.T) {
	content := `{"descriptions":[{"type":"LOCATION","content":"x"}]}` // missing required fields
	p := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(chatCompletionResponse(t, content))
	})

	_, err := p.Extract(context.Background(), &model.Chapter{Content: "text"})
	require.Error(t, err)
}

func TestExtract_RejectsMalformedJSON(t *testing.T) {
	p := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(chatCompletionResponse(t, "not json at all"))
	})

	_, err := p.Extract(context.Background(), &model.Chapter{Content: "text"})
	require.Error(t, err)
}

func TestIsAvailable_FalseOnUnreachableServer(t *testing.T) {
	p := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.False(t, p.IsAvailable(context.Background()))
}

func TestIsAvailable_TrueWhenModelsListSucceeds(t *testing.T) {
	p := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[]}`))
	})
	assert.True(t, p.IsAvailable(context.Background()))
}
