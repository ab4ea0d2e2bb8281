package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/nikogura/resume-forge/pkg/logging"
)

const (
	// NameGemini is the Google Gemini backend name.
	NameGemini = "gemini"
	// GeminiModel is the default Gemini model.
	GeminiModel = "gemini-2.5-pro"

	cacheTTL = 24 * time.Hour
)

// Gemini is the Google GenAI backend. Cached content is stored once per content hash in a
// Gemini cached-content resource and referenced on every later call.
type Gemini struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger

	cacheMu sync.Mutex
	caches  map[string]string
}

// NewGemini creates a Gemini backend for the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (g *Gemini, err error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		err = errors.New("gemini api key is required")
		return g, err
	}

	if model = strings.TrimSpace(model); model == "" {
		model = GeminiModel
	}

	var client *genai.Client
	client, err = genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		err = errors.Wrap(err, "create genai client")
		return g, err
	}

	g = &Gemini{
		client:    client,
		modelName: model,
		logger:    logging.WithCommonFields(logger, NameGemini, model),
		caches:    make(map[string]string),
	}
	return g, err
}

func (g *Gemini) Name() (name string) {
	name = NameGemini
	return name
}

func (g *Gemini) Model() (model string) {
	model = g.modelName
	return model
}

func (g *Gemini) SupportsPromptCaching() (ok bool) {
	ok = true
	return ok
}

// EstimateCost prices the request with cached content at the cached-input rate.
func (g *Gemini) EstimateCost(req Request) (est CostEstimate) {
	est = estimate(PricingFor(g.modelName), req, true)
	return est
}

// MakeRequest generates content, referencing a cache for req.CachedContent when one can be
// created. Cache creation failures fall back to sending the content inline.
func (g *Gemini) MakeRequest(ctx context.Context, req Request) (resp Response, err error) {
	if g == nil || g.client == nil {
		err = errors.New("gemini provider is not initialized")
		return resp, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		err = errors.New("prompt must not be empty")
		return resp, err
	}

	cfg := &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens(req))}

	if strings.TrimSpace(req.CachedContent) != "" {
		cacheName, cacheErr := g.ensureCache(ctx, req.CachedContent)
		if cacheErr != nil {
			g.logger.Warn("prompt cache unavailable, sending content inline", zap.Error(cacheErr))
			prompt = FullPrompt(req)
		} else {
			cfg.CachedContent = cacheName
		}
	}

	var result *genai.GenerateContentResponse
	result, err = g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), cfg)
	if err != nil {
		err = errors.Wrapf(err, "gemini request failed (model %s)", g.modelName)
		return resp, err
	}

	resp.Text = collectText(result)
	if resp.Text == "" {
		err = errors.New("gemini api returned empty response")
		return resp, err
	}

	if md := result.UsageMetadata; md != nil {
		resp.Usage = Usage{
			InputTokens:  int(md.PromptTokenCount),
			OutputTokens: int(md.CandidatesTokenCount),
			CachedTokens: int(md.CachedContentTokenCount),
		}
	}

	return resp, err
}

func (g *Gemini) ensureCache(ctx context.Context, content string) (name string, err error) {
	payload := strings.TrimSpace(content)
	sum := sha256.Sum256([]byte(payload))
	hash := hex.EncodeToString(sum[:])

	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	if existing, ok := g.caches[hash]; ok {
		name = existing
		return name, err
	}

	var cached *genai.CachedContent
	cached, err = g.client.Caches.Create(ctx, g.modelName, &genai.CreateCachedContentConfig{
		DisplayName: "profile-" + hash[:12],
		TTL:         cacheTTL,
		Contents: []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: payload}},
		}},
	})
	if err != nil {
		err = errors.Wrap(err, "create content cache")
		return name, err
	}

	name = strings.TrimSpace(cached.Name)
	if name == "" {
		err = errors.New("gemini api returned empty cache name")
		return name, err
	}

	g.caches[hash] = name
	g.logger.Debug("created content cache", zap.String("cache", name))

	return name, err
}

func collectText(result *genai.GenerateContentResponse) (text string) {
	var builder strings.Builder
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(strings.TrimSpace(part.Text))
		}
	}
	text = strings.TrimSpace(builder.String())
	return text
}
