package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates an operation was attempted on a closed transport.
	ErrNotConnected = errors.New("ledger: not connected")
	// ErrAccountNotFound indicates the account does not exist on the ledger yet.
	ErrAccountNotFound = errors.New("ledger: account not found")
)

// StartupError is fatal: the initial connection could not be established
// within the configured retry budget. The process exits non-zero.
type StartupError struct {
	Attempts int
	Err      error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("ledger: startup failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// ConnectionError is a transient transport failure. Callers treat it as a
// failed cycle and retry on the next tick.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SubmissionError indicates a transaction reached the ledger but settled
// with a non-success engine result. The order must not be assumed created.
type SubmissionError struct {
	Hash       string
	ResultCode string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("ledger: transaction %s settled %s", e.Hash, e.ResultCode)
}
