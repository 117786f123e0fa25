// Package engine drives a prompt through the full pipeline: context
// enrichment, memory merge, template rendering, the safety pre-check,
// provider routing, the post-generation review, and the memory commit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/metapromptlabs/metaprompt/internal/analysis"
	"github.com/metapromptlabs/metaprompt/internal/llm"
	"github.com/metapromptlabs/metaprompt/internal/memory"
	"github.com/metapromptlabs/metaprompt/internal/optimizer"
	"github.com/metapromptlabs/metaprompt/internal/router"
	"github.com/metapromptlabs/metaprompt/internal/safety"
	"github.com/metapromptlabs/metaprompt/internal/template"
)

// State names a pipeline stage. The request advances through states in
// order; Aborted is terminal from any state.
type State string

const (
	StateReceived        State = "received"
	StateContextEnriched State = "context_enriched"
	StatePromptBuilt     State = "prompt_built"
	StatePreChecked      State = "pre_checked"
	StateRouted          State = "routed"
	StatePostChecked     State = "post_checked"
	StateCommitted       State = "committed"
	StateDone            State = "done"
	StateAborted         State = "aborted"
)

// steeringClause is appended to the prompt for the single post-check
// regeneration attempt.
const steeringClause = "\n\nKeep the response strictly safe: no harmful, biased, toxic, or unethical content."

// PromptRequest is the boundary input for one pipeline run.
type PromptRequest struct {
	Prompt      string            `json:"prompt"`
	Context     string            `json:"context,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	Model       string            `json:"model,omitempty"`
	TemplateID  string            `json:"template_id,omitempty"`
	SafetyLevel string            `json:"safety_level,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	// Unsafe suppresses safety enforcement for this request. Checks still
	// run and are recorded; overrides are logged loudly.
	Unsafe bool `json:"unsafe,omitempty"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	State           State            `json:"state"`
	AdaptationLevel string           `json:"adaptation_level"`
	TemplateID      string           `json:"template_id"`
	TemplateHash    string           `json:"template_hash"`
	RulesetVersion  string           `json:"ruleset_version"`
	Retried         bool             `json:"retried"`
	Routing         *router.Decision `json:"routing,omitempty"`
}

// Result is the boundary output of one pipeline run.
type Result struct {
	Original      string            `json:"original"`
	Enhanced      string            `json:"enhanced"`
	Output        string            `json:"output"`
	PreAssessment safety.Assessment `json:"pre_assessment"`
	Review        optimizer.Review  `json:"review"`
	Confidence    float64           `json:"confidence"`
	Elapsed       time.Duration     `json:"elapsed_ns"`
	Metadata      Metadata          `json:"metadata"`
}

// Options shapes pipeline behavior.
type Options struct {
	SafetyEnabled      bool
	DefaultSafetyLevel string
	WindowSize         int
	MaxTokens          int
	Temperature        float64
	RequestDeadline    time.Duration
}

// Engine is the pipeline controller.
type Engine struct {
	analyzer  *analysis.Analyzer
	memory    *memory.Manager
	generator *template.Generator
	safety    *safety.Engine
	router    *router.Router
	optimizer *optimizer.Optimizer
	opts      Options
	logger    *zap.Logger
}

// New wires the pipeline components into an engine.
func New(
	analyzer *analysis.Analyzer,
	mem *memory.Manager,
	gen *template.Generator,
	safetyEngine *safety.Engine,
	rt *router.Router,
	opt *optimizer.Optimizer,
	opts Options,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		analyzer:  analyzer,
		memory:    mem,
		generator: gen,
		safety:    safetyEngine,
		router:    rt,
		optimizer: opt,
		opts:      opts,
		logger:    logger,
	}
}

// ProcessPrompt runs the full pipeline for one request.
//
// A failed pre-check aborts before any provider call. The post-check may
// trigger at most one regeneration; a second failure surfaces a safety
// violation. The memory commit always follows the post-check and its
// failure never loses a computed result.
func (e *Engine) ProcessPrompt(ctx context.Context, req PromptRequest) (*Result, error) {
	start := time.Now()
	state := StateReceived

	if e.opts.RequestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RequestDeadline)
		defer cancel()
	}

	fail := func(kind Kind, assessment *safety.Assessment, err error) (*Result, error) {
		return nil, &Error{Kind: kind, Stage: state, Assessment: assessment, Err: err}
	}

	// Enrich.
	sctx, err := e.analyzer.Enrich(analysis.Input{
		Prompt:      req.Prompt,
		Context:     req.Context,
		Preferences: req.Preferences,
	}, analysis.SessionContext{SessionID: req.SessionID})
	if err != nil {
		return fail(KindInvalidRequest, nil, err)
	}

	// Merge memory. Recall errors already degraded to an empty history.
	records := e.memory.Recall(ctx, req.SessionID, e.opts.WindowSize)
	records = e.memory.Reweight(ctx, req.SessionID, req.Prompt, records)
	sctx = e.memory.Merge(sctx, records)
	state = StateContextEnriched

	// Render.
	templateID := req.TemplateID
	if templateID == "" {
		templateID = sctx.Signals.Intent
	}
	binding, err := e.generator.Render(template.Target{
		TemplateID: templateID,
		Values:     map[string]string{"prompt": req.Prompt},
	}, sctx)
	if err != nil {
		return fail(KindTemplate, nil, err)
	}
	state = StatePromptBuilt

	// Pre-check. A failed pre-check never reaches a provider.
	level := req.SafetyLevel
	if level == "" {
		level = e.opts.DefaultSafetyLevel
	}
	pre := e.safety.Assess(ctx, binding.Text, level)
	if !pre.Pass {
		switch {
		case !e.opts.SafetyEnabled:
			e.logger.Warn("SAFETY OVERRIDE: pre-check failed but enforcement is disabled in config",
				zap.String("session", req.SessionID),
				zap.String("risk", pre.RiskLevel),
				zap.Strings("rules", pre.TriggeredRules))
		case req.Unsafe:
			e.logger.Warn("SAFETY OVERRIDE: pre-check failed but enforcement suppressed by request",
				zap.String("session", req.SessionID),
				zap.String("risk", pre.RiskLevel),
				zap.Strings("rules", pre.TriggeredRules))
		default:
			state = StateAborted
			return fail(KindSafetyViolation, &pre, fmt.Errorf("pre-check rejected prompt: rules %v", pre.TriggeredRules))
		}
	}
	state = StatePreChecked

	// Route.
	resp, decision, err := e.complete(ctx, req.Model, binding.Text)
	if err != nil {
		state = StateAborted
		return e.routeFailure(state, err)
	}
	state = StateRouted

	// Post-check, with at most one steered regeneration.
	review := e.optimizer.Review(ctx, binding.Text, resp.Content, level)
	retried := false
	if !review.Assessment.Pass && e.opts.SafetyEnabled && !req.Unsafe {
		e.logger.Warn("post-check failed, regenerating once with steering clause",
			zap.String("session", req.SessionID),
			zap.Strings("rules", review.Assessment.TriggeredRules))
		retried = true

		resp2, decision2, err := e.complete(ctx, req.Model, binding.Text+steeringClause)
		if err != nil {
			state = StateAborted
			return e.routeFailure(state, err)
		}
		resp = resp2
		decision = mergeDecisions(decision, decision2)
		review = e.optimizer.Review(ctx, binding.Text, resp.Content, level)
	}
	state = StatePostChecked

	postFailed := !review.Assessment.Pass && e.opts.SafetyEnabled && !req.Unsafe

	// A result that carries a failing post verdict only exists because
	// enforcement was suppressed; that override is always logged.
	if !review.Assessment.Pass && !postFailed {
		reason := "enforcement suppressed by request"
		if !e.opts.SafetyEnabled {
			reason = "enforcement is disabled in config"
		}
		e.logger.Warn("SAFETY OVERRIDE: result carries a failing post-check verdict",
			zap.String("session", req.SessionID),
			zap.String("reason", reason),
			zap.String("risk", review.Assessment.RiskLevel),
			zap.Strings("rules", review.Assessment.TriggeredRules))
	}

	// Commit the exchange for the audit history regardless of the post
	// verdict; a write failure never loses the computed result.
	if err := e.memory.Commit(ctx, req.SessionID, req.Prompt, resp.Content, review.Confidence); err != nil {
		e.logger.Error("memory commit failed, result unaffected",
			zap.String("session", req.SessionID), zap.Error(err))
	} else {
		state = StateCommitted
	}

	if postFailed {
		state = StateAborted
		return nil, &Error{
			Kind:       KindSafetyViolation,
			Stage:      state,
			Assessment: &review.Assessment,
			Err:        errors.New("output failed post-check after regeneration"),
		}
	}
	state = StateDone

	return &Result{
		Original:      req.Prompt,
		Enhanced:      binding.Text,
		Output:        resp.Content,
		PreAssessment: pre,
		Review:        review,
		Confidence:    review.Confidence,
		Elapsed:       time.Since(start),
		Metadata: Metadata{
			State:           state,
			AdaptationLevel: binding.Level,
			TemplateID:      binding.TemplateID,
			TemplateHash:    binding.Hash,
			RulesetVersion:  pre.RulesetVersion,
			Retried:         retried,
			Routing:         decision,
		},
	}, nil
}

// complete routes one completion for the enhanced prompt.
func (e *Engine) complete(ctx context.Context, model, prompt string) (*llm.CompletionResponse, *router.Decision, error) {
	return e.router.Route(ctx, llm.CompletionRequest{
		Model:       model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
}

// routeFailure classifies a routing error into the pipeline taxonomy.
func (e *Engine) routeFailure(state State, err error) (*Result, error) {
	kind := KindProvider
	var exhausted *router.ExhaustedError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &exhausted):
		kind = KindExhausted
	default:
		if pe, ok := llm.AsProviderError(err); ok && pe.Kind == llm.KindInvalidRequest {
			kind = KindInvalidRequest
		}
	}
	return nil, &Error{Kind: kind, Stage: state, Err: err}
}

// mergeDecisions folds the retry's routing decision into the first one
// so attempt counts and failures stay visible.
func mergeDecisions(a, b *router.Decision) *router.Decision {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	merged := *b
	merged.AttemptCount = a.AttemptCount + b.AttemptCount
	merged.Attempts = append(append([]router.AttemptFailure{}, a.Attempts...), b.Attempts...)
	merged.Latency = a.Latency + b.Latency
	return &merged
}
