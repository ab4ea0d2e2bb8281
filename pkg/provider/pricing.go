package provider

import (
	"math"
	"strings"
)

// Pricing is USD per million tokens.
type Pricing struct {
	Input       float64
	Output      float64
	CachedInput float64
}

// Cost prices an actual usage.
func (p Pricing) Cost(u Usage) (cost float64) {
	uncached := u.InputTokens - u.CachedTokens
	if uncached < 0 {
		uncached = 0
	}
	cost = perToken(p.Input)*float64(uncached) +
		perToken(p.CachedInput)*float64(u.CachedTokens) +
		perToken(p.Output)*float64(u.OutputTokens)
	return cost
}

type modelPrice struct {
	prefix  string
	pricing Pricing
}

// Longest prefixes first; the first match wins.
//
//nolint:gochecknoglobals // Pricing table
var priceTable = []modelPrice{
	{prefix: "claude-opus", pricing: Pricing{Input: 15, Output: 75, CachedInput: 1.5}},
	{prefix: "claude-haiku", pricing: Pricing{Input: 0.8, Output: 4, CachedInput: 0.08}},
	{prefix: "claude-3-5-haiku", pricing: Pricing{Input: 0.8, Output: 4, CachedInput: 0.08}},
	{prefix: "claude", pricing: Pricing{Input: 3, Output: 15, CachedInput: 0.3}},
	{prefix: "gemini-2.5-flash-lite", pricing: Pricing{Input: 0.1, Output: 0.4, CachedInput: 0.025}},
	{prefix: "gemini-2.5-flash", pricing: Pricing{Input: 0.3, Output: 2.5, CachedInput: 0.075}},
	{prefix: "gemini", pricing: Pricing{Input: 1.25, Output: 10, CachedInput: 0.31}},
}

// PricingFor returns the pricing for a model name, defaulting to the mid-tier Claude price.
func PricingFor(model string) (pricing Pricing) {
	model = strings.ToLower(model)
	for _, mp := range priceTable {
		if strings.HasPrefix(model, mp.prefix) {
			pricing = mp.pricing
			return pricing
		}
	}
	pricing = Pricing{Input: 3, Output: 15, CachedInput: 0.3}
	return pricing
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) (tokens int) {
	tokens = int(math.Ceil(float64(len(text)) / 4.0))
	return tokens
}

// estimate prices a request before it is sent. When caching is false the cached content
// is billed as ordinary input.
func estimate(p Pricing, req Request, caching bool) (est CostEstimate) {
	input := EstimateTokens(req.Prompt)
	cached := EstimateTokens(req.CachedContent)
	output := maxTokens(req)

	if !caching {
		input += cached
		cached = 0
	}

	est.InputCost = perToken(p.Input)*float64(input) + perToken(p.CachedInput)*float64(cached)
	est.OutputCost = perToken(p.Output) * float64(output)
	est.CachingSavings = perToken(p.Input-p.CachedInput) * float64(cached)
	est.TotalCost = est.InputCost + est.OutputCost

	return est
}

func perToken(perMillion float64) (v float64) {
	v = perMillion / 1_000_000
	return v
}
