package generator

import (
	"errors"
	"fmt"
)

// ConfigError aborts a run before any row is processed: unresolvable columns,
// missing credentials, invalid row ranges.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// GenerationError is terminal for a single row: every model and both
// providers were exhausted. The run continues with the next row.
type GenerationError struct {
	Last error
}

func (e *GenerationError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("all models and providers exhausted: %v", e.Last)
	}
	return "all models and providers exhausted"
}

func (e *GenerationError) Unwrap() error { return e.Last }

// ErrInvalidText marks model output rejected by the validator. It is treated
// like a transient provider fault: retry the same model, then escalate.
var ErrInvalidText = errors.New("empty or non-target-language model output")
