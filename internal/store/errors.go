package store

import "fmt"

// JobNotFoundError is returned by Get and Disable for unknown ids.
type JobNotFoundError struct {
	ID int64
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job #%d not found", e.ID)
}

// StoreWriteError wraps a failed durable write. The operation did not happen.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
