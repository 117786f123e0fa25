package router

import (
	"fmt"
	"strings"
)

// ExhaustedError is returned when every candidate has failed or been
// skipped without producing a completion.
type ExhaustedError struct {
	Attempts []AttemptFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no routable candidates"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s/%s (%s)", a.Provider, a.Model, a.Kind)
	}
	return fmt.Sprintf("all %d candidates exhausted: %s", len(e.Attempts), strings.Join(parts, ", "))
}
