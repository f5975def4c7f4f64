package session

import "fmt"

// The conditions below are routine outcomes of the tracking API, not server
// faults. They are typed so handlers can match them with errors.As and render
// structured payloads instead of parsing messages.

type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return e.Reason
}

// ScheduleLockedError carries the evaluator's structured countdown so clients
// can render "opens in HH:MM:SS" without re-evaluating the window.
type ScheduleLockedError struct {
	Reason          string
	StartsInSeconds *int64
	Countdown       string
}

func (e *ScheduleLockedError) Error() string {
	return fmt.Sprintf("schedule locked: %s", e.Reason)
}

type AlreadyCompletedError struct {
	SubTaskID uint
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("sub-task %d is already completed", e.SubTaskID)
}

type NoActiveSessionError struct {
	SubTaskID uint
	UserID    uint
}

func (e *NoActiveSessionError) Error() string {
	return fmt.Sprintf("no active session for sub-task %d", e.SubTaskID)
}

// RetryableError wraps a transaction that failed twice. The client may retry;
// no partial state was committed.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("transient storage failure: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
