// Package providertest provides a scripted provider for pipeline tests.
package providertest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/nikogura/resume-forge/pkg/provider"
)

// Scripted replays canned replies in order and records every request it receives.
type Scripted struct {
	Caching bool
	// Replies are returned in order. Once exhausted, the last reply repeats.
	Replies []string
	// Reply, when set, overrides Replies and computes the reply from the request.
	Reply func(call int, req provider.Request) (string, error)

	mu       sync.Mutex
	requests []provider.Request
}

func (s *Scripted) Name() string  { return "scripted" }
func (s *Scripted) Model() string { return "scripted-model" }

func (s *Scripted) SupportsPromptCaching() bool { return s.Caching }

func (s *Scripted) EstimateCost(req provider.Request) provider.CostEstimate {
	return provider.CostEstimate{TotalCost: float64(provider.EstimateTokens(req.Prompt)) / 1_000_000}
}

func (s *Scripted) MakeRequest(_ context.Context, req provider.Request) (resp provider.Response, err error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	s.mu.Unlock()

	var text string
	switch {
	case s.Reply != nil:
		text, err = s.Reply(call, req)
	case len(s.Replies) == 0:
		err = errors.New("no scripted replies")
	case call <= len(s.Replies):
		text = s.Replies[call-1]
	default:
		text = s.Replies[len(s.Replies)-1]
	}
	if err != nil {
		return resp, err
	}

	resp = provider.Response{
		Text:  text,
		Usage: provider.Usage{InputTokens: provider.EstimateTokens(req.Prompt), OutputTokens: provider.EstimateTokens(text)},
	}
	return resp, err
}

// Requests returns a copy of the requests received so far.
func (s *Scripted) Requests() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the number of requests received.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
