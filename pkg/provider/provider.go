// Package provider gives the pipeline a uniform view of text-generation backends.
package provider

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens = 8192

// Request is a single prompt sent to a backend.
type Request struct {
	// Prompt is the per-call text.
	Prompt string
	// CachedContent is a large, stable prefix (the scoped profile). Backends that support
	// prompt caching store it once; others prepend it to the prompt.
	CachedContent string
	MaxTokens     int
}

// Usage is token accounting for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedTokens int `json:"cached_tokens,omitempty"`
}

// Add sums two usages.
func (u Usage) Add(other Usage) (sum Usage) {
	sum = Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		CachedTokens: u.CachedTokens + other.CachedTokens,
	}
	return sum
}

// Response is the text returned by a backend plus its usage.
type Response struct {
	Text  string
	Usage Usage
}

// CostEstimate is a pre-flight cost estimate in USD.
type CostEstimate struct {
	InputCost      float64 `json:"input_cost"`
	OutputCost     float64 `json:"output_cost"`
	CachingSavings float64 `json:"caching_savings"`
	TotalCost      float64 `json:"total_cost"`
}

// Provider is a text-generation backend.
type Provider interface {
	Name() string
	Model() string
	EstimateCost(req Request) CostEstimate
	MakeRequest(ctx context.Context, req Request) (Response, error)
	SupportsPromptCaching() bool
}

// Options selects and configures a backend.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	Logger   *zap.Logger
}

// New builds the backend named in opts.
func New(ctx context.Context, opts Options) (p Provider, err error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", NameClaude:
		p, err = NewClaude(opts.APIKey, opts.Model)
	case NameGemini:
		p, err = NewGemini(ctx, opts.APIKey, opts.Model, opts.Logger)
	default:
		err = errors.Errorf("unknown provider %q", opts.Provider)
	}
	return p, err
}

// FullPrompt joins cached content and prompt for backends without caching.
func FullPrompt(req Request) (prompt string) {
	cached := strings.TrimSpace(req.CachedContent)
	if cached == "" {
		prompt = req.Prompt
		return prompt
	}
	prompt = cached + "\n\n" + req.Prompt
	return prompt
}

func maxTokens(req Request) (n int) {
	n = req.MaxTokens
	if n <= 0 {
		n = DefaultMaxTokens
	}
	return n
}
