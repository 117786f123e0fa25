// Package template holds prompt template definitions and renders them
// into enhanced prompts adapted to the session context.
package template

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned when no definition exists for an id.
var ErrTemplateNotFound = errors.New("template not found")

// MissingVariableError reports a required template variable with no value.
type MissingVariableError struct {
	TemplateID string
	Variable   string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %s: missing required variable %q", e.TemplateID, e.Variable)
}

// VariableSpec declares one template variable. Required variables with no
// explicit, adapted, or default value fail the render.
type VariableSpec struct {
	Name     string `yaml:"name" json:"name"`
	Required bool   `yaml:"required" json:"required"`
	Default  string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Definition is one prompt template. Text uses {name} placeholders.
type Definition struct {
	ID        string         `yaml:"id" json:"id"`
	Text      string         `yaml:"text" json:"text"`
	Variables []VariableSpec `yaml:"variables" json:"variables"`
}

// Store resolves template definitions by id.
type Store interface {
	Get(id string) (*Definition, error)
}
