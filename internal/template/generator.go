package template

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/metapromptlabs/metaprompt/internal/analysis"
)

// Style is the set of rendering parameters derived from the session's
// expertise level.
type Style struct {
	DetailLevel    string `json:"detail_level"`
	ExampleType    string `json:"example_type"`
	PriorityAspect string `json:"priority_aspect"`
}

// adaptationStyles maps expertise level to rendering style. Unknown
// levels fall back to beginner rather than failing.
var adaptationStyles = map[string]Style{
	"beginner":     {DetailLevel: "basic", ExampleType: "simple", PriorityAspect: "clarity"},
	"intermediate": {DetailLevel: "moderate", ExampleType: "mixed", PriorityAspect: "balance"},
	"expert":       {DetailLevel: "concise", ExampleType: "advanced", PriorityAspect: "depth"},
}

const fallbackLevel = "beginner"

// Target names the template to render and any explicit variable values.
type Target struct {
	TemplateID string
	Values     map[string]string
}

// Binding is the result of a render. It is a value and never mutated
// after Render returns it.
type Binding struct {
	TemplateID string            `json:"template_id"`
	Level      string            `json:"level"`
	Style      Style             `json:"style"`
	Values     map[string]string `json:"values"`
	Text       string            `json:"text"`
	Hash       string            `json:"hash"`
}

// Generator renders templates against session context.
type Generator struct {
	store        Store
	defaultLevel string
}

// NewGenerator creates a generator over the given store. defaultLevel is
// used when the session carries no expertise preference.
func NewGenerator(store Store, defaultLevel string) *Generator {
	if defaultLevel == "" {
		defaultLevel = fallbackLevel
	}
	return &Generator{store: store, defaultLevel: defaultLevel}
}

// Render resolves the target template and produces an enhanced prompt.
// Variable resolution order: explicit target values, then style-derived
// values, then schema defaults. A required variable left unresolved
// fails with MissingVariableError.
func (g *Generator) Render(target Target, sctx analysis.SessionContext) (*Binding, error) {
	def, err := g.store.Get(target.TemplateID)
	if err != nil {
		return nil, err
	}

	level := sctx.Expertise()
	if level == "" {
		level = g.defaultLevel
	}
	style, ok := adaptationStyles[level]
	if !ok {
		level = fallbackLevel
		style = adaptationStyles[fallbackLevel]
	}

	derived := map[string]string{
		"detail_level":    style.DetailLevel,
		"example_type":    style.ExampleType,
		"priority_aspect": style.PriorityAspect,
		"intent":          sctx.Signals.Intent,
	}

	values := make(map[string]string, len(def.Variables))
	for _, spec := range def.Variables {
		switch {
		case target.Values[spec.Name] != "":
			values[spec.Name] = target.Values[spec.Name]
		case derived[spec.Name] != "":
			values[spec.Name] = derived[spec.Name]
		case spec.Default != "":
			values[spec.Name] = spec.Default
		case spec.Required:
			return nil, &MissingVariableError{TemplateID: def.ID, Variable: spec.Name}
		}
	}

	text := substitute(def.Text, values)
	return &Binding{
		TemplateID: def.ID,
		Level:      level,
		Style:      style,
		Values:     values,
		Text:       text,
		Hash:       bindingHash(def.ID, values, text),
	}, nil
}

// substitute replaces {name} placeholders. Placeholders with no bound
// value are left as-is.
func substitute(text string, values map[string]string) string {
	out := text
	for name, value := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// bindingHash is a stable content hash over the template id, resolved
// values, and rendered text, for audit trails.
func bindingHash(id string, values map[string]string, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", id)

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\n", name, values[name])
	}
	fmt.Fprintf(h, "%s", text)
	return hex.EncodeToString(h.Sum(nil))
}
