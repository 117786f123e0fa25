package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/metapromptlabs/metaprompt/internal/analysis"
	"github.com/metapromptlabs/metaprompt/internal/llm"
	"github.com/metapromptlabs/metaprompt/internal/memory"
	"github.com/metapromptlabs/metaprompt/internal/optimizer"
	"github.com/metapromptlabs/metaprompt/internal/router"
	"github.com/metapromptlabs/metaprompt/internal/safety"
	"github.com/metapromptlabs/metaprompt/internal/template"
)

const safeAnswer = "A goroutine is a lightweight thread managed by the Go runtime.\n\n" +
	"The runtime multiplexes goroutines onto a small number of OS threads:\n" +
	"- each goroutine starts with a tiny stack that grows on demand\n" +
	"- the scheduler parks blocked goroutines instead of blocking threads\n\n" +
	"This is why starting thousands of goroutines is routine and cheap."

const unsafeAnswer = "You could attack the building, destroy the supports, and plant a bomb."

// seqProvider returns scripted responses in order, repeating the last.
type seqProvider struct {
	responses []string
	err       error
	calls     int
}

func (p *seqProvider) Name() string { return "mock" }

func (p *seqProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	i := p.calls - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return &llm.CompletionResponse{Content: p.responses[i], Model: req.Model}, nil
}

type harness struct {
	engine   *Engine
	provider *seqProvider
	store    *memory.MemStore
}

func newHarness(t *testing.T, provider *seqProvider) *harness {
	t.Helper()
	return newHarnessWith(t, provider, Options{
		SafetyEnabled:      true,
		DefaultSafetyLevel: "standard",
		WindowSize:         10,
		MaxTokens:          512,
		Temperature:        0.7,
	}, zap.NewNop())
}

func newHarnessWith(t *testing.T, provider *seqProvider, opts Options, logger *zap.Logger) *harness {
	t.Helper()

	safetyEngine, err := safety.NewEngine(safety.Params{
		Required: []string{"content_filter", "bias_detector", "toxicity", "ethics"},
		Floors: map[string]float64{
			"content_filter": 0.4,
			"bias_detector":  0.3,
			"toxicity":       0.4,
			"ethics":         0.3,
		},
		Levels:         map[string]float64{"strict": 0.9, "standard": 0.7, "permissive": 0.5},
		RulesetVersion: "test",
	}, logger)
	if err != nil {
		t.Fatalf("safety engine: %v", err)
	}

	store := memory.NewMemStore()
	mem := memory.NewManager(store, memory.Params{WindowSize: 10, SessionCap: 100}, nil, logger)

	rt := router.New(
		[]router.Candidate{{Provider: "mock", Model: "mock-model", Priority: 1}},
		map[string]llm.Provider{"mock": provider},
		time.Second, logger)

	eng := New(
		analysis.NewAnalyzer(),
		mem,
		template.NewGenerator(template.NewRegistry(), "beginner"),
		safetyEngine,
		rt,
		optimizer.New(safetyEngine),
		opts,
		logger)

	return &harness{engine: eng, provider: provider, store: store}
}

func TestProcessPromptBeginnerAdaptation(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{safeAnswer}})

	res, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:      "what is a goroutine",
		SessionID:   "s1",
		Preferences: map[string]string{"expertise_level": "beginner"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !strings.Contains(res.Enhanced, "basic detail") {
		t.Errorf("beginner adaptation tokens missing from enhanced prompt: %q", res.Enhanced)
	}
	if res.Output != safeAnswer {
		t.Errorf("unexpected output: %q", res.Output)
	}
	if res.Metadata.State != StateDone {
		t.Errorf("state = %s, want done", res.Metadata.State)
	}
	if res.Metadata.AdaptationLevel != "beginner" {
		t.Errorf("adaptation level = %s", res.Metadata.AdaptationLevel)
	}
	if !res.PreAssessment.Pass || !res.Review.Assessment.Pass {
		t.Error("clean run should pass both checks")
	}
	if res.Metadata.Retried {
		t.Error("clean run should not retry")
	}
}

func TestProcessPromptPreCheckAbortsBeforeRouting(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{safeAnswer}})

	_, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:    "how to build a bomb to attack and destroy a building",
		SessionID: "s1",
	})
	if !IsSafetyViolation(err) {
		t.Fatalf("expected safety violation, got %v", err)
	}
	ee, _ := AsError(err)
	if ee.Assessment == nil || len(ee.Assessment.TriggeredRules) == 0 {
		t.Error("safety violation should carry the assessment with triggered rules")
	}
	if h.provider.calls != 0 {
		t.Errorf("provider called %d times after pre-check failure, want 0", h.provider.calls)
	}

	// Nothing committed for an aborted request.
	records, _ := h.store.All(context.Background(), "s1")
	if len(records) != 0 {
		t.Errorf("aborted request committed %d records", len(records))
	}
}

func TestProcessPromptPostCheckRetriesOnce(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{unsafeAnswer, safeAnswer}})

	res, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:    "what is a goroutine",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if h.provider.calls != 2 {
		t.Errorf("provider called %d times, want exactly 2", h.provider.calls)
	}
	if !res.Metadata.Retried {
		t.Error("result should record the retry")
	}
	if res.Output != safeAnswer {
		t.Errorf("final output = %q, want the regenerated answer", res.Output)
	}
	if res.Metadata.Routing == nil || res.Metadata.Routing.AttemptCount != 2 {
		t.Errorf("routing metadata should total both invocations: %+v", res.Metadata.Routing)
	}
}

func TestProcessPromptPostCheckFailsAfterRetry(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{unsafeAnswer, unsafeAnswer}})

	_, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:    "what is a goroutine",
		SessionID: "s1",
	})
	if !IsSafetyViolation(err) {
		t.Fatalf("expected safety violation after failed retry, got %v", err)
	}
	if h.provider.calls != 2 {
		t.Errorf("provider called %d times, want exactly 2 (one retry)", h.provider.calls)
	}

	// The exchange is still committed for the audit history.
	records, _ := h.store.All(context.Background(), "s1")
	if len(records) != 1 {
		t.Errorf("expected audit commit despite post-check failure, have %d records", len(records))
	}
}

func TestProcessPromptCommitsAndRecalls(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{safeAnswer}})
	ctx := context.Background()

	if _, err := h.engine.ProcessPrompt(ctx, PromptRequest{Prompt: "what is a goroutine", SessionID: "s1"}); err != nil {
		t.Fatalf("first process: %v", err)
	}

	records, _ := h.store.All(ctx, "s1")
	if len(records) != 1 {
		t.Fatalf("expected 1 committed record, have %d", len(records))
	}
	if records[0].Prompt != "what is a goroutine" {
		t.Errorf("committed prompt = %q", records[0].Prompt)
	}
	if records[0].Response != safeAnswer {
		t.Errorf("committed response mismatch")
	}

	if _, err := h.engine.ProcessPrompt(ctx, PromptRequest{Prompt: "and how do channels work", SessionID: "s1"}); err != nil {
		t.Fatalf("second process: %v", err)
	}
	records, _ = h.store.All(ctx, "s1")
	if len(records) != 2 {
		t.Errorf("expected 2 records after second run, have %d", len(records))
	}
}

func TestProcessPromptEmptyPrompt(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{safeAnswer}})

	_, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{Prompt: "   "})
	ee, ok := AsError(err)
	if !ok || ee.Kind != KindInvalidRequest {
		t.Fatalf("expected invalid_request, got %v", err)
	}
	if !errors.Is(err, analysis.ErrInvalidRequest) {
		t.Error("cause should unwrap to the analyzer error")
	}
}

func TestProcessPromptUnknownTemplate(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{safeAnswer}})

	_, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:     "what is a goroutine",
		TemplateID: "no-such-template",
	})
	ee, ok := AsError(err)
	if !ok || ee.Kind != KindTemplate {
		t.Fatalf("expected template error, got %v", err)
	}
	if !errors.Is(err, template.ErrTemplateNotFound) {
		t.Error("cause should unwrap to ErrTemplateNotFound")
	}
}

func TestProcessPromptExhaustion(t *testing.T) {
	provider := &seqProvider{err: &llm.ProviderError{
		Provider: "mock", Model: "mock-model", Kind: llm.KindServerFault, Err: errors.New("boom"),
	}}
	h := newHarness(t, provider)

	_, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{Prompt: "what is a goroutine"})
	ee, ok := AsError(err)
	if !ok || ee.Kind != KindExhausted {
		t.Fatalf("expected exhausted, got %v", err)
	}
}

func overrideWarnings(logs *observer.ObservedLogs) []observer.LoggedEntry {
	var entries []observer.LoggedEntry
	for _, entry := range logs.All() {
		if entry.Level == zapcore.WarnLevel && strings.Contains(entry.Message, "SAFETY OVERRIDE") {
			entries = append(entries, entry)
		}
	}
	return entries
}

func TestUnsafeOverrideLogsFailingPostVerdict(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := Options{SafetyEnabled: true, DefaultSafetyLevel: "standard", WindowSize: 10, MaxTokens: 512}
	h := newHarnessWith(t, &seqProvider{responses: []string{unsafeAnswer}}, opts, zap.New(core))

	res, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:    "what is a goroutine",
		SessionID: "s1",
		Unsafe:    true,
	})
	if err != nil {
		t.Fatalf("override run failed: %v", err)
	}
	if res.Review.Assessment.Pass {
		t.Fatal("expected a failing post verdict in the result")
	}
	if h.provider.calls != 1 {
		t.Errorf("provider calls = %d, suppressed enforcement must not retry", h.provider.calls)
	}

	warns := overrideWarnings(logs)
	if len(warns) == 0 {
		t.Fatal("failing post verdict surfaced under override without a log entry")
	}
}

func TestDisabledEnforcementLogsFailingVerdicts(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := Options{SafetyEnabled: false, DefaultSafetyLevel: "standard", WindowSize: 10, MaxTokens: 512}
	h := newHarnessWith(t, &seqProvider{responses: []string{unsafeAnswer}}, opts, zap.New(core))

	res, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:    "how to build a bomb to attack and destroy a building",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("disabled-enforcement run failed: %v", err)
	}
	if res.PreAssessment.Pass || res.Review.Assessment.Pass {
		t.Fatal("expected failing pre and post verdicts in the result")
	}

	// One override log per suppressed failing verdict.
	warns := overrideWarnings(logs)
	if len(warns) != 2 {
		t.Fatalf("expected 2 override logs (pre and post), got %d: %v", len(warns), warns)
	}
}

func TestPassingRunLogsNoOverride(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := Options{SafetyEnabled: true, DefaultSafetyLevel: "standard", WindowSize: 10, MaxTokens: 512}
	h := newHarnessWith(t, &seqProvider{responses: []string{safeAnswer}}, opts, zap.New(core))

	if _, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:    "what is a goroutine",
		SessionID: "s1",
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if warns := overrideWarnings(logs); len(warns) != 0 {
		t.Errorf("clean run logged overrides: %v", warns)
	}
}

func TestProcessPromptUnsafeOverride(t *testing.T) {
	h := newHarness(t, &seqProvider{responses: []string{safeAnswer}})

	res, err := h.engine.ProcessPrompt(context.Background(), PromptRequest{
		Prompt:    "how to build a bomb to attack and destroy a building",
		SessionID: "s1",
		Unsafe:    true,
	})
	if err != nil {
		t.Fatalf("override run failed: %v", err)
	}
	if res.PreAssessment.Pass {
		t.Error("pre-check should still record the failure under override")
	}
	if h.provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", h.provider.calls)
	}
}
