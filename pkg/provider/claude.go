package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

const (
	// NameClaude is the Anthropic backend name.
	NameClaude = "claude"
	// ClaudeModel is the default Anthropic model.
	ClaudeModel = "claude-sonnet-4-20250514"
)

// Claude is the Anthropic Messages API backend. It has no prompt cache, so cached content
// is sent inline ahead of the prompt.
type Claude struct {
	client anthropic.Client
	model  string
}

// NewClaude creates a Claude backend. Extra request options are appended after the API key.
func NewClaude(apiKey, model string, opts ...option.RequestOption) (c *Claude, err error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		err = errors.New("anthropic api key is required")
		return c, err
	}

	if model = strings.TrimSpace(model); model == "" {
		model = ClaudeModel
	}

	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	c = &Claude{
		client: anthropic.NewClient(options...),
		model:  model,
	}
	return c, err
}

func (c *Claude) Name() (name string) {
	name = NameClaude
	return name
}

func (c *Claude) Model() (model string) {
	model = c.model
	return model
}

func (c *Claude) SupportsPromptCaching() (ok bool) {
	return ok
}

// EstimateCost prices the request with cached content billed as ordinary input.
func (c *Claude) EstimateCost(req Request) (est CostEstimate) {
	est = estimate(PricingFor(c.model), req, false)
	return est
}

// MakeRequest sends a single user message and concatenates the text blocks of the reply.
func (c *Claude) MakeRequest(ctx context.Context, req Request) (resp Response, err error) {
	prompt := FullPrompt(req)
	if strings.TrimSpace(prompt) == "" {
		err = errors.New("prompt must not be empty")
		return resp, err
	}

	var msg *anthropic.Message
	msg, err = c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens(req)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		err = errors.Wrapf(err, "claude request failed (model %s)", c.model)
		return resp, err
	}

	var builder strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		builder.WriteString(block.Text)
	}

	resp.Text = strings.TrimSpace(builder.String())
	if resp.Text == "" {
		err = errors.New("no text content in claude response")
		return resp, err
	}

	resp.Usage = Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		CachedTokens: int(msg.Usage.CacheReadInputTokens),
	}

	return resp, err
}
