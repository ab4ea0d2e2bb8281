package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeMakeRequest(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("Expected messages endpoint, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("Expected API key header, got %q", r.Header.Get("X-Api-Key"))
		}

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "{\"content\": \"ok\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`))
	}))
	defer server.Close()

	c, err := NewClaude("test-key", "", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := c.MakeRequest(context.Background(), Request{
		Prompt:        "tailor this",
		CachedContent: "PROFILE",
		MaxTokens:     1000,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"content": "ok"}`, resp.Text)
	assert.Equal(t, 120, resp.Usage.InputTokens)
	assert.Equal(t, 30, resp.Usage.OutputTokens)

	assert.Equal(t, ClaudeModel, gotBody["model"])
	assert.EqualValues(t, 1000, gotBody["max_tokens"])

	messages, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
	raw, _ := json.Marshal(messages[0])
	assert.Contains(t, string(raw), "PROFILE\\n\\ntailor this")
}

func TestClaudeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	c, err := NewClaude("test-key", "claude-opus-4", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = c.MakeRequest(context.Background(), Request{Prompt: "x"})
	assert.Error(t, err)
}

func TestClaudeRequiresKey(t *testing.T) {
	_, err := NewClaude("  ", "")
	assert.Error(t, err)
}

func TestClaudeEmptyPrompt(t *testing.T) {
	c, err := NewClaude("k", "")
	require.NoError(t, err)

	_, err = c.MakeRequest(context.Background(), Request{})
	assert.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	req := Request{
		Prompt:        strings.Repeat("a", 4000),
		CachedContent: strings.Repeat("b", 40000),
		MaxTokens:     2000,
	}

	claude := &Claude{model: ClaudeModel}
	assert.False(t, claude.SupportsPromptCaching())

	est := claude.EstimateCost(req)
	assert.InDelta(t, 11000*3.0/1_000_000, est.InputCost, 1e-9)
	assert.InDelta(t, 2000*15.0/1_000_000, est.OutputCost, 1e-9)
	assert.Zero(t, est.CachingSavings)
	assert.InDelta(t, est.InputCost+est.OutputCost, est.TotalCost, 1e-12)

	gemini := &Gemini{modelName: GeminiModel}
	assert.True(t, gemini.SupportsPromptCaching())

	gest := gemini.EstimateCost(req)
	assert.InDelta(t, 1000*1.25/1_000_000+10000*0.31/1_000_000, gest.InputCost, 1e-9)
	assert.InDelta(t, 10000*(1.25-0.31)/1_000_000, gest.CachingSavings, 1e-9)
	assert.Greater(t, gest.CachingSavings, 0.0)
}

func TestEstimateDefaultsMaxTokens(t *testing.T) {
	est := estimate(Pricing{Output: 1}, Request{Prompt: "hi"}, false)
	assert.InDelta(t, float64(DefaultMaxTokens)/1_000_000, est.OutputCost, 1e-12)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestPricingFor(t *testing.T) {
	assert.Equal(t, 15.0, PricingFor("claude-opus-4-1").Input)
	assert.Equal(t, 3.0, PricingFor("claude-sonnet-4-20250514").Input)
	assert.Equal(t, 0.3, PricingFor("gemini-2.5-flash").Input)
	assert.Equal(t, 1.25, PricingFor("gemini-2.5-pro").Input)
	assert.Equal(t, 3.0, PricingFor("unknown").Input)
}

func TestPricingCost(t *testing.T) {
	p := Pricing{Input: 2, Output: 10, CachedInput: 1}
	cost := p.Cost(Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000, CachedTokens: 500_000})
	assert.InDelta(t, 1.0+0.5+10.0, cost, 1e-9)
}

func TestUsageAdd(t *testing.T) {
	sum := Usage{InputTokens: 1, OutputTokens: 2}.Add(Usage{InputTokens: 3, OutputTokens: 4, CachedTokens: 5})
	assert.Equal(t, Usage{InputTokens: 4, OutputTokens: 6, CachedTokens: 5}, sum)
}

func TestFullPrompt(t *testing.T) {
	assert.Equal(t, "p", FullPrompt(Request{Prompt: "p"}))
	assert.Equal(t, "c\n\np", FullPrompt(Request{Prompt: "p", CachedContent: " c "}))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "openai", APIKey: "k"})
	assert.Error(t, err)

	p, err := New(context.Background(), Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, NameClaude, p.Name())
	assert.Equal(t, ClaudeModel, p.Model())
}
