package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// builtins are the shipped templates, keyed by the intent labels the
// analyzer produces so every request has a renderable template.
var builtins = []Definition{
	{
		ID: "question",
		Text: "Answer the following question with {detail_level} detail, prioritizing {priority_aspect}.\n" +
			"Include {example_type} examples where they aid understanding.\n\n" +
			"Question: {prompt}",
		Variables: []VariableSpec{
			{Name: "prompt", Required: true},
			{Name: "detail_level", Default: "moderate"},
			{Name: "example_type", Default: "practical"},
			{Name: "priority_aspect", Default: "clarity"},
		},
	},
	{
		ID: "instruction",
		Text: "Carry out the following task. Work step by step with {detail_level} detail " +
			"and prioritize {priority_aspect}.\n\nTask: {prompt}",
		Variables: []VariableSpec{
			{Name: "prompt", Required: true},
			{Name: "detail_level", Default: "moderate"},
			{Name: "priority_aspect", Default: "correctness"},
		},
	},
	{
		ID: "analysis",
		Text: "Analyze the following with {detail_level} rigor. Compare alternatives, weigh " +
			"trade-offs, and prioritize {priority_aspect}. Support claims with {example_type} evidence.\n\n" +
			"Subject: {prompt}",
		Variables: []VariableSpec{
			{Name: "prompt", Required: true},
			{Name: "detail_level", Default: "moderate"},
			{Name: "example_type", Default: "practical"},
			{Name: "priority_aspect", Default: "depth"},
		},
	},
	{
		ID: "creative",
		Text: "Write a creative response to the brief below. Aim for {detail_level} elaboration " +
			"and let {priority_aspect} guide the tone.\n\nBrief: {prompt}",
		Variables: []VariableSpec{
			{Name: "prompt", Required: true},
			{Name: "detail_level", Default: "moderate"},
			{Name: "priority_aspect", Default: "originality"},
		},
	},
	{
		ID:   "general",
		Text: "Respond helpfully with {detail_level} detail, prioritizing {priority_aspect}.\n\n{prompt}",
		Variables: []VariableSpec{
			{Name: "prompt", Required: true},
			{Name: "detail_level", Default: "moderate"},
			{Name: "priority_aspect", Default: "clarity"},
		},
	},
}

// Registry is an in-memory Store seeded with the built-in templates.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns a registry holding the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition, len(builtins))}
	for _, def := range builtins {
		r.defs[def.ID] = def
	}
	return r
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if def.Text == "" {
		return fmt.Errorf("template %s: text is required", def.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
	return nil
}

func (r *Registry) Get(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return &def, nil
}

// IDs returns the registered template ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir loads every *.yaml / *.yml definition under dir (recursively)
// into the registry. User templates override built-ins with the same id.
func (r *Registry) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.{yaml,yml}"))
	if err != nil {
		return fmt.Errorf("scanning template dir %s: %w", dir, err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", path, err)
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parsing template %s: %w", path, err)
		}
		if err := r.Register(def); err != nil {
			return fmt.Errorf("template %s: %w", path, err)
		}
	}
	return nil
}
