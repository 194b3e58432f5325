package runner

import (
	"errors"
	"time"
)

// State is the lifecycle state of a Controller.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateFlushing  State = "flushing"
	StateAborted   State = "aborted"
	StateCompleted State = "completed"
)

// Reason tells why a run ended.
type Reason string

const (
	// ReasonCompleted means every group was processed.
	ReasonCompleted Reason = "completed"

	// ReasonQuotaExceeded means the API quota ran out. This is a normal end.
	ReasonQuotaExceeded Reason = "quota_exceeded"

	// ReasonInterrupted means the run context was cancelled.
	ReasonInterrupted Reason = "interrupted"

	// ReasonError means an unclassified error, a flush failure or a panic.
	ReasonError Reason = "error"
)

var (
	// ErrQuotaExceeded is recorded in Summary.Cause when the run stopped on quota.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrInterrupted is returned when the run context is cancelled.
	ErrInterrupted = errors.New("run interrupted")

	// ErrPanic wraps a recovered panic.
	ErrPanic = errors.New("run panicked")

	// ErrAlreadyStarted is returned when Run is called on a used Controller.
	ErrAlreadyStarted = errors.New("controller already started")
)

// Summary reports what a run did.
type Summary struct {
	Reason Reason

	// Cause is the error that ended the run early, if any. For quota it wraps
	// ErrQuotaExceeded while Run itself returns nil.
	Cause error

	Groups         int
	GroupsDrained  int
	GroupsFailed   int
	Pages          int
	Records        int
	SkippedItems   int
	TimeoutRetries int
	Flushes        int
	FlushedRecords int

	// LastGroup is the index of the last group a fetch was issued for, -1 if none.
	LastGroup int

	Duration time.Duration
}
