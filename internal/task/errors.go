package task

import (
	"errors"
	"fmt"
	"syscall"
)

// FatalError marks a failure the run cannot recover from: the executor stops
// the unit loop early instead of continuing with the next unit. Completed
// units are never rolled back.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err so the executor treats it as operation-fatal.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err should stop the run. Backends can mark errors
// explicitly with Fatal; a full or quota-exhausted destination medium is
// always fatal.
func IsFatal(err error) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT)
}
