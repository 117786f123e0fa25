package template

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/metapromptlabs/metaprompt/internal/analysis"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"question", "instruction", "analysis", "creative", "general"} {
		if _, err := r.Get(id); err != nil {
			t.Errorf("builtin %s missing: %v", id, err)
		}
	}
}

func TestRegistryUnknownID(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("no-such-template")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestLoadDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	doc := `id: question
text: "Custom: {prompt}"
variables:
  - name: prompt
    required: true
`
	if err := os.WriteFile(filepath.Join(dir, "question.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}

	def, err := r.Get("question")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.HasPrefix(def.Text, "Custom:") {
		t.Errorf("user template did not override builtin: %q", def.Text)
	}
}

func TestLoadDirNested(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `id: review
text: "Review this: {prompt}"
variables:
  - name: prompt
    required: true
`
	if err := os.WriteFile(filepath.Join(dir, "sub", "review.yml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if _, err := r.Get("review"); err != nil {
		t.Errorf("nested template not loaded: %v", err)
	}
}

func TestLoadDirMissingIsNoop(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadDir(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("missing dir should be a no-op, got %v", err)
	}
}

func TestRenderBeginnerStyle(t *testing.T) {
	g := NewGenerator(NewRegistry(), "")
	sctx := analysis.SessionContext{
		Preferences: map[string]string{"expertise_level": "beginner"},
	}

	b, err := g.Render(Target{TemplateID: "question", Values: map[string]string{"prompt": "what is a goroutine"}}, sctx)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b.Level != "beginner" {
		t.Errorf("level = %q, want beginner", b.Level)
	}
	if !strings.Contains(b.Text, "basic detail") {
		t.Errorf("beginner render missing basic detail: %q", b.Text)
	}
	if !strings.Contains(b.Text, "what is a goroutine") {
		t.Errorf("prompt not substituted: %q", b.Text)
	}
	if strings.Contains(b.Text, "{") {
		t.Errorf("unresolved placeholder remains: %q", b.Text)
	}
}

func TestRenderUnknownLevelFallsBack(t *testing.T) {
	g := NewGenerator(NewRegistry(), "")
	sctx := analysis.SessionContext{
		Preferences: map[string]string{"expertise_level": "wizard"},
	}

	b, err := g.Render(Target{TemplateID: "general", Values: map[string]string{"prompt": "hi"}}, sctx)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b.Level != "beginner" {
		t.Errorf("unmapped level should degrade to beginner, got %q", b.Level)
	}
}

func TestRenderExpertDiffersFromBeginner(t *testing.T) {
	g := NewGenerator(NewRegistry(), "")

	beginner, err := g.Render(Target{TemplateID: "question", Values: map[string]string{"prompt": "p"}},
		analysis.SessionContext{Preferences: map[string]string{"expertise_level": "beginner"}})
	if err != nil {
		t.Fatal(err)
	}
	expert, err := g.Render(Target{TemplateID: "question", Values: map[string]string{"prompt": "p"}},
		analysis.SessionContext{Preferences: map[string]string{"expertise_level": "expert"}})
	if err != nil {
		t.Fatal(err)
	}
	if beginner.Text == expert.Text {
		t.Error("expected adaptation to change the rendered prompt")
	}
	if beginner.Hash == expert.Hash {
		t.Error("expected distinct binding hashes")
	}
}

func TestRenderMissingRequiredVariable(t *testing.T) {
	g := NewGenerator(NewRegistry(), "")

	_, err := g.Render(Target{TemplateID: "question"}, analysis.SessionContext{})
	var missing *MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingVariableError, got %v", err)
	}
	if missing.Variable != "prompt" {
		t.Errorf("error names variable %q, want prompt", missing.Variable)
	}
}

func TestRenderDeterministic(t *testing.T) {
	g := NewGenerator(NewRegistry(), "")
	target := Target{TemplateID: "analysis", Values: map[string]string{"prompt": "compare A and B"}}
	sctx := analysis.SessionContext{Preferences: map[string]string{"expertise_level": "intermediate"}}

	a, err := g.Render(target, sctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Render(target, sctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.Text != b.Text || a.Hash != b.Hash {
		t.Error("render is not deterministic for identical input")
	}
}

func TestExplicitValueWinsOverStyle(t *testing.T) {
	g := NewGenerator(NewRegistry(), "")
	target := Target{TemplateID: "question", Values: map[string]string{
		"prompt":       "p",
		"detail_level": "exhaustive",
	}}
	b, err := g.Render(target, analysis.SessionContext{Preferences: map[string]string{"expertise_level": "expert"}})
	if err != nil {
		t.Fatal(err)
	}
	if b.Values["detail_level"] != "exhaustive" {
		t.Errorf("explicit value lost: %q", b.Values["detail_level"])
	}
}
