package engine

import (
	"errors"
	"fmt"

	"github.com/metapromptlabs/metaprompt/internal/safety"
)

// Kind classifies a pipeline failure. Safety rejections are always
// distinguishable from infrastructure failures.
type Kind string

const (
	KindInvalidRequest  Kind = "invalid_request"
	KindTemplate        Kind = "template"
	KindSafetyViolation Kind = "safety_violation"
	KindProvider        Kind = "provider"
	KindExhausted       Kind = "exhausted"
	KindTimeout         Kind = "timeout"
)

// Error is a classified pipeline failure. Assessment is set for safety
// violations so the caller can report the triggered rules.
type Error struct {
	Kind       Kind
	Stage      State
	Assessment *safety.Assessment
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a pipeline *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsSafetyViolation reports whether err is a safety rejection rather
// than an infrastructure failure.
func IsSafetyViolation(err error) bool {
	ee, ok := AsError(err)
	return ok && ee.Kind == KindSafetyViolation
}
