package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/metapromptlabs/metaprompt/internal/llm"
)

type scriptedProvider struct {
	name  string
	calls int
	// fail maps model to the error kind to return; models not present
	// succeed.
	fail map[string]llm.ErrorKind
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if kind, ok := p.fail[req.Model]; ok {
		return nil, &llm.ProviderError{Provider: p.name, Model: req.Model, Kind: kind, Err: errors.New("scripted failure")}
	}
	return &llm.CompletionResponse{
		Content: fmt.Sprintf("response from %s/%s", p.name, req.Model),
		Model:   req.Model,
	}, nil
}

func table() []Candidate {
	return []Candidate{
		{Provider: "anthropic", Model: "model-a", Priority: 1, AuthScope: "anthropic-key"},
		{Provider: "openai", Model: "model-b", Priority: 2, AuthScope: "openai-key"},
		{Provider: "openai", Model: "model-c", Priority: 3, AuthScope: "openai-key"},
		{Provider: "google", Model: "model-d", Priority: 4, AuthScope: "google-key"},
	}
}

func newTestRouter(providers map[string]llm.Provider) *Router {
	return New(table(), providers, time.Second, zap.NewNop())
}

func TestPlanExactMatchFirst(t *testing.T) {
	r := newTestRouter(map[string]llm.Provider{
		"anthropic": &scriptedProvider{name: "anthropic"},
		"openai":    &scriptedProvider{name: "openai"},
		"google":    &scriptedProvider{name: "google"},
	})

	plan := r.Plan("model-c")
	want := []string{"openai/model-c", "openai/model-b", "anthropic/model-a", "google/model-d"}
	if len(plan) != len(want) {
		t.Fatalf("plan has %d candidates, want %d", len(plan), len(want))
	}
	for i, c := range plan {
		if c.key() != want[i] {
			t.Errorf("plan[%d] = %s, want %s", i, c.key(), want[i])
		}
	}
}

func TestPlanSkipsUnknownProviders(t *testing.T) {
	r := newTestRouter(map[string]llm.Provider{
		"openai": &scriptedProvider{name: "openai"},
	})
	plan := r.Plan("")
	if len(plan) != 2 {
		t.Fatalf("expected only openai candidates, got %d", len(plan))
	}
}

func TestRouteFirstCandidateSucceeds(t *testing.T) {
	providers := map[string]llm.Provider{
		"anthropic": &scriptedProvider{name: "anthropic"},
		"openai":    &scriptedProvider{name: "openai"},
		"google":    &scriptedProvider{name: "google"},
	}
	r := newTestRouter(providers)

	resp, decision, err := r.Route(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if resp.Model != "model-a" {
		t.Errorf("used model %q, want model-a", resp.Model)
	}
	if decision.AttemptCount != 1 || len(decision.Attempts) != 0 {
		t.Errorf("decision = %+v, want single clean attempt", decision)
	}
}

func TestRouteFallbackOrder(t *testing.T) {
	anthropic := &scriptedProvider{name: "anthropic", fail: map[string]llm.ErrorKind{"model-a": llm.KindServerFault}}
	openai := &scriptedProvider{name: "openai", fail: map[string]llm.ErrorKind{"model-b": llm.KindRateLimit}}
	google := &scriptedProvider{name: "google"}
	r := newTestRouter(map[string]llm.Provider{"anthropic": anthropic, "openai": openai, "google": google})

	resp, decision, err := r.Route(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if resp.Model != "model-c" {
		t.Errorf("used model %q, want model-c", resp.Model)
	}
	if decision.AttemptCount != 3 {
		t.Errorf("attempt count = %d, want 3", decision.AttemptCount)
	}
	if len(decision.Attempts) != 2 {
		t.Fatalf("recorded %d failures, want 2", len(decision.Attempts))
	}
	if decision.Attempts[0].Kind != llm.KindServerFault || decision.Attempts[1].Kind != llm.KindRateLimit {
		t.Errorf("failure kinds = %v", decision.Attempts)
	}
	if decision.Used.Model != "model-c" {
		t.Errorf("decision.Used = %+v", decision.Used)
	}
}

func TestRouteInvalidRequestAborts(t *testing.T) {
	anthropic := &scriptedProvider{name: "anthropic", fail: map[string]llm.ErrorKind{"model-a": llm.KindInvalidRequest}}
	openai := &scriptedProvider{name: "openai"}
	r := newTestRouter(map[string]llm.Provider{"anthropic": anthropic, "openai": openai})

	_, _, err := r.Route(context.Background(), llm.CompletionRequest{})
	pe, ok := llm.AsProviderError(err)
	if !ok || pe.Kind != llm.KindInvalidRequest {
		t.Fatalf("expected invalid_request abort, got %v", err)
	}
	if openai.calls != 0 {
		t.Errorf("routing continued past invalid_request: %d extra calls", openai.calls)
	}
}

func TestRouteAuthKillsScope(t *testing.T) {
	anthropic := &scriptedProvider{name: "anthropic", fail: map[string]llm.ErrorKind{"model-a": llm.KindServerFault}}
	openai := &scriptedProvider{name: "openai", fail: map[string]llm.ErrorKind{"model-b": llm.KindAuth}}
	google := &scriptedProvider{name: "google"}
	r := newTestRouter(map[string]llm.Provider{"anthropic": anthropic, "openai": openai, "google": google})

	resp, decision, err := r.Route(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	// model-c shares openai-key with model-b and must be skipped.
	if resp.Model != "model-d" {
		t.Errorf("used model %q, want model-d", resp.Model)
	}
	if openai.calls != 1 {
		t.Errorf("openai called %d times, want 1 (scope dead after auth failure)", openai.calls)
	}
	if decision.AttemptCount != 3 {
		t.Errorf("attempt count = %d, want 3", decision.AttemptCount)
	}
}

func TestRouteExhaustion(t *testing.T) {
	fail := func(name string, models ...string) *scriptedProvider {
		f := make(map[string]llm.ErrorKind, len(models))
		for _, m := range models {
			f[m] = llm.KindServerFault
		}
		return &scriptedProvider{name: name, fail: f}
	}
	r := newTestRouter(map[string]llm.Provider{
		"anthropic": fail("anthropic", "model-a"),
		"openai":    fail("openai", "model-b", "model-c"),
		"google":    fail("google", "model-d"),
	})

	_, decision, err := r.Route(context.Background(), llm.CompletionRequest{})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if len(exhausted.Attempts) != 4 {
		t.Errorf("exhaustion carries %d attempts, want 4", len(exhausted.Attempts))
	}
	if decision.AttemptCount != 4 {
		t.Errorf("attempt count = %d, want 4", decision.AttemptCount)
	}
}

func TestRouteHonorsCancelledContext(t *testing.T) {
	r := newTestRouter(map[string]llm.Provider{"anthropic": &scriptedProvider{name: "anthropic"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Route(ctx, llm.CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
