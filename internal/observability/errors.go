package observability

import (
	"errors"
	"fmt"
)

// AggregateErrors folds the non-nil errors of one fan-out operation into a
// single error, logging the partial failure once. Returns nil when every
// error is nil.
func AggregateErrors(operation string, errList []error, fields ...Field) error {
	kept := make([]error, 0, len(errList))
	for _, err := range errList {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	messages := make([]string, len(kept))
	for i, err := range kept {
		messages[i] = err.Error()
	}
	Log().Error(operation+" failed",
		append(fields, F("failed", len(kept)), F("errors", messages))...)
	return fmt.Errorf("%s: %w", operation, errors.Join(kept...))
}
