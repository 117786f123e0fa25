// Package router selects a provider/model candidate for each request and
// falls back across the capability table on transient failures.
package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/metapromptlabs/metaprompt/internal/llm"
)

// Candidate is one provider/model entry in the capability table.
type Candidate struct {
	Provider  string   `json:"provider"`
	Model     string   `json:"model"`
	Priority  int      `json:"priority"`
	AuthScope string   `json:"auth_scope,omitempty"`
	Strengths []string `json:"strengths,omitempty"`
}

func (c Candidate) key() string { return c.Provider + "/" + c.Model }

// AttemptFailure records one failed candidate attempt.
type AttemptFailure struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Kind     llm.ErrorKind `json:"kind"`
	Cause    string        `json:"cause"`
}

// Decision summarizes how a request was routed.
type Decision struct {
	Candidates    []string         `json:"candidates"`
	Used          Candidate        `json:"used"`
	AttemptCount  int              `json:"attempt_count"`
	Latency       time.Duration    `json:"latency_ns"`
	Attempts      []AttemptFailure `json:"attempts,omitempty"`
	EstimatedCost float64          `json:"estimated_cost_usd"`
}

// Router routes completion requests across the candidate table.
type Router struct {
	candidates     []Candidate
	providers      map[string]llm.Provider
	attemptTimeout time.Duration
	logger         *zap.Logger
}

// New creates a router. providers maps provider name to a client; a
// candidate whose provider has no client is skipped at plan time.
func New(candidates []Candidate, providers map[string]llm.Provider, attemptTimeout time.Duration, logger *zap.Logger) *Router {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	return &Router{
		candidates:     sorted,
		providers:      providers,
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

// Plan orders candidates for a request: exact model matches first, then
// candidates on the same provider as the requested model, then the rest.
// Each group keeps priority order. An empty model yields the full table.
func (r *Router) Plan(requestedModel string) []Candidate {
	available := make([]Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		if _, ok := r.providers[c.Provider]; ok {
			available = append(available, c)
		}
	}
	if requestedModel == "" {
		return available
	}

	requestedProvider := ""
	for _, c := range available {
		if c.Model == requestedModel {
			requestedProvider = c.Provider
			break
		}
	}

	var exact, sameProvider, rest []Candidate
	for _, c := range available {
		switch {
		case c.Model == requestedModel:
			exact = append(exact, c)
		case requestedProvider != "" && c.Provider == requestedProvider:
			sameProvider = append(sameProvider, c)
		default:
			rest = append(rest, c)
		}
	}
	plan := append(exact, sameProvider...)
	return append(plan, rest...)
}

// Route runs the request against the plan, advancing on transient
// failures. An invalid-request failure aborts immediately; an auth
// failure kills its credential scope and skips every candidate sharing
// it. When every candidate has failed or been skipped, the returned
// error is an *ExhaustedError carrying the per-attempt causes.
func (r *Router) Route(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, *Decision, error) {
	plan := r.Plan(req.Model)
	if len(plan) == 0 {
		return nil, nil, &ExhaustedError{}
	}

	decision := &Decision{Candidates: make([]string, len(plan))}
	for i, c := range plan {
		decision.Candidates[i] = c.key()
	}

	start := time.Now()
	deadScopes := make(map[string]bool)

	for _, c := range plan {
		if err := ctx.Err(); err != nil {
			decision.Latency = time.Since(start)
			return nil, decision, fmt.Errorf("routing: %w", err)
		}
		if c.AuthScope != "" && deadScopes[c.AuthScope] {
			r.logger.Debug("skipping candidate in dead credential scope",
				zap.String("candidate", c.key()), zap.String("scope", c.AuthScope))
			continue
		}

		decision.AttemptCount++
		resp, err := r.attempt(ctx, c, req)
		if err == nil {
			decision.Used = c
			decision.Latency = time.Since(start)
			decision.EstimatedCost = llm.EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
			return resp, decision, nil
		}

		pe, ok := llm.AsProviderError(err)
		if !ok {
			pe = &llm.ProviderError{Provider: c.Provider, Model: c.Model, Kind: llm.KindServerFault, Err: err}
		}
		decision.Attempts = append(decision.Attempts, AttemptFailure{
			Provider: c.Provider,
			Model:    c.Model,
			Kind:     pe.Kind,
			Cause:    pe.Error(),
		})

		switch pe.Kind {
		case llm.KindInvalidRequest:
			decision.Latency = time.Since(start)
			return nil, decision, pe
		case llm.KindAuth:
			if c.AuthScope != "" {
				deadScopes[c.AuthScope] = true
			}
			r.logger.Warn("credential scope failed auth, skipping its candidates",
				zap.String("candidate", c.key()), zap.String("scope", c.AuthScope))
		default:
			r.logger.Warn("candidate failed, advancing",
				zap.String("candidate", c.key()), zap.String("kind", string(pe.Kind)), zap.Error(pe))
		}
	}

	decision.Latency = time.Since(start)
	return nil, decision, &ExhaustedError{Attempts: decision.Attempts}
}

// attempt calls one candidate under the per-attempt timeout. When the
// timeout fires the call's context is cancelled; a late result from an
// abandoned call is never used.
func (r *Router) attempt(ctx context.Context, c Candidate, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	provider := r.providers[c.Provider]

	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	req.Model = c.Model
	return provider.Complete(attemptCtx, req)
}
