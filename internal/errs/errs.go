// Package errs defines the small set of error kinds the memory core
// distinguishes (see SPEC_FULL.md §7), following the teacher's plain
// fmt.Errorf wrapping idiom rather than a class hierarchy.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a sentinel error identifying one of the error categories from
// SPEC_FULL.md §7. Use errors.Is(err, errs.NotFound) etc. to classify a
// wrapped error returned from the core.
type Kind struct {
	name string
}

func (k *Kind) Error() string { return k.name }

var (
	// Validation marks a schema violation on input.
	Validation = &Kind{"validation_error"}
	// NotFound marks a missing bank/memory/mental-model/directive/entity/operation.
	NotFound = &Kind{"not_found"}
	// DuplicateDetected marks a dedup short-circuit during retain; informational.
	DuplicateDetected = &Kind{"duplicate_detected"}
	// LLMErr marks an extraction/consolidation/reflect LLM call failure.
	LLMErr = &Kind{"llm_error"}
	// IndexInconsistency marks a vector/FTS/row mismatch.
	IndexInconsistency = &Kind{"index_inconsistency"}
	// Cancelled marks a cooperatively aborted async operation.
	Cancelled = &Kind{"cancelled"}
	// TransportErr marks an event-stream or HTTP-layer error.
	TransportErr = &Kind{"transport_error"}
)

// maxErrorMessageLen is the persistence truncation length from SPEC_FULL.md §7/§4.9.
const maxErrorMessageLen = 5000

// New wraps msg with the given kind so errors.Is(err, kind) succeeds.
func New(kind *Kind, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// Wrap attaches kind to an existing error while preserving its chain.
func Wrap(kind *Kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", err, kind)
}

// Is reports whether err (or any error it wraps) is the given kind.
func Is(err error, kind *Kind) bool {
	return errors.Is(err, kind)
}

// Truncate clamps msg to the persistence length limit shared by
// error_message and Async Operation error fields.
func Truncate(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	return msg[:maxErrorMessageLen]
}
