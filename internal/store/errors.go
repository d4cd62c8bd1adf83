package store

import "fmt"

// PersistenceError wraps a failure from the underlying database after the
// store's own retry accommodation (see WithRetry) has been exhausted.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistent store: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
