// Package classify provides the Classifier Gateway: an ordered chain of AI
// providers that turns a signal into a triage decision, with a per-instance
// request budget on the primary provider and a safe default when every
// provider fails.
package classify

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

const (
	// DefaultRateLimit is the primary-provider budget per window.
	DefaultRateLimit = 100

	// DefaultRateWindow is the budget window.
	DefaultRateWindow = 60 * time.Second
)

// fallbackReasoning is attached to the safe default decision when the whole
// provider chain is down.
const fallbackReasoning = "AI services unavailable - escalating for human review"

// ErrAllProvidersFailed accompanies the safe default decision when every
// provider in the chain failed. Callers apply the decision regardless and use
// the error for accounting only.
var ErrAllProvidersFailed = errors.New("all classification providers failed")

// Hooks are optional observability callbacks invoked by the Gateway.
type Hooks struct {
	OnProviderCall func(provider, outcome string, duration float64)
	OnRateLimited  func()
}

// Gateway abstracts over the ordered provider chain. The first provider is
// the specialist, consulted under the rate budget; later providers are
// fallbacks tried on any failure.
type Gateway struct {
	providers []Provider
	limiter   *RateLimiter
	logger    log.Logger
	hooks     Hooks
}

// New creates a Gateway over the given providers, specialist first.
func New(providers []Provider, limiter *RateLimiter, logger log.Logger, hooks Hooks) *Gateway {
	if logger == nil {
		logger = log.Nop()
	}
	if limiter == nil {
		limiter = NewRateLimiter(DefaultRateLimit, DefaultRateWindow)
	}
	return &Gateway{
		providers: providers,
		limiter:   limiter,
		logger:    logger,
		hooks:     hooks,
	}
}

// Classify obtains a triage decision for the signal. The decision is always
// usable: provider failures, bad JSON, and schema violations all advance to
// the next provider in the chain, and a fully exhausted chain yields the safe
// default escalate decision alongside ErrAllProvidersFailed, so every signal
// reaches a human-reviewable outcome while the caller can still count the
// failure.
func (g *Gateway) Classify(ctx context.Context, sig *signal.Signal) (*signal.TriageDecision, error) {
	system := buildSystemPrompt()
	user := buildContextBlock(sig)

	for i, p := range g.providers {
		if i == 0 && !g.limiter.Allow() {
			g.logger.Info(ctx, "rate budget exhausted, skipping primary provider",
				"provider", p.Name(), "signal_id", sig.ID)
			if g.hooks.OnRateLimited != nil {
				g.hooks.OnRateLimited()
			}
			continue
		}

		d, err := g.callProvider(ctx, p, system, user)
		if err != nil {
			g.logger.Warn(ctx, "provider failed, falling back",
				"provider", p.Name(), "signal_id", sig.ID, "error", err)
			continue
		}
		return d, nil
	}

	g.logger.Warn(ctx, "all providers failed, returning safe default", "signal_id", sig.ID)
	return &signal.TriageDecision{
		Decision:   signal.DecisionEscalate,
		Confidence: 0,
		Reasoning:  fallbackReasoning,
	}, ErrAllProvidersFailed
}

// AnalyzeOne is the ad hoc single-request classification path. It uses the
// primary provider and only falls back on transient failures (429/5xx or an
// exhausted rate budget); any other failure, including a malformed decision,
// is surfaced to the caller.
func (g *Gateway) AnalyzeOne(ctx context.Context, sig *signal.Signal) (*signal.TriageDecision, error) {
	system := buildSystemPrompt()
	user := buildContextBlock(sig)

	primary := g.providers[0]
	if g.limiter.Allow() {
		d, err := g.callProvider(ctx, primary, system, user)
		if err == nil {
			return d, nil
		}
		pe, ok := AsProviderError(err)
		if !ok || !pe.Transient() || len(g.providers) < 2 {
			return nil, err
		}
		g.logger.Warn(ctx, "primary transiently unavailable, using fallback",
			"provider", primary.Name(), "signal_id", sig.ID, "status", pe.Status)
	} else {
		if g.hooks.OnRateLimited != nil {
			g.hooks.OnRateLimited()
		}
		if len(g.providers) < 2 {
			return nil, &ProviderError{Provider: primary.Name(), Status: 429, Body: "instance rate budget exhausted"}
		}
	}

	return g.callProvider(ctx, g.providers[1], system, user)
}

// callProvider invokes one provider and parses its content into a validated
// decision. Schema-validation failure is an error, same as a provider error.
func (g *Gateway) callProvider(ctx context.Context, p Provider, system, user string) (*signal.TriageDecision, error) {
	start := time.Now()
	content, err := p.Classify(ctx, system, user)
	dur := time.Since(start).Seconds()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if g.hooks.OnProviderCall != nil {
		g.hooks.OnProviderCall(p.Name(), outcome, dur)
	}
	if err != nil {
		return nil, err
	}

	return signal.ParseTriageDecision([]byte(extractJSON(content)))
}
