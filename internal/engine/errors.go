package engine

import "errors"

// Caller contract violations. None of them changes session state.
var (
	ErrStageNotFound      = errors.New("stage not found")
	ErrNoActiveAttempt    = errors.New("no stage attempt in progress")
	ErrTurnInFlight       = errors.New("a turn is already in flight")
	ErrInstructionTooLong = errors.New("instruction exceeds the current limit")
	ErrRewardIndex        = errors.New("reward index out of range")
	ErrNotCleared         = errors.New("stage has not been cleared")
	ErrAlreadySettled     = errors.New("stage clear already settled")
)
