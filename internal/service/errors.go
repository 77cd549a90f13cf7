package service

import "errors"

// Admission errors: the request itself is malformed or underfunded.
var (
	ErrQuestionEmpty        = errors.New("question cannot be empty")
	ErrQuestionTooLong      = errors.New("question too long")
	ErrStakeTooLow          = errors.New("stake below minimum")
	ErrInsufficientBalance  = errors.New("insufficient balance for stake")
	ErrConfidenceOutOfRange = errors.New("confidence must be between 0 and 1")
	ErrExecutionTimeInvalid = errors.New("execution time out of range")
	ErrChallengeStakeTooLow = errors.New("challenge stake must exceed evaluation stake")
)

// State errors: the entity exists but is not in a status that permits the
// requested transition.
var (
	ErrIntentNotPending        = errors.New("intent is not pending")
	ErrIntentNotInProgress     = errors.New("intent is not in progress")
	ErrIntentExpired           = errors.New("intent deadline has passed")
	ErrEvaluationNotOpen       = errors.New("evaluation cannot be challenged")
	ErrEvaluationNotChallenged = errors.New("evaluation is not in challenged state")
	ErrAlreadyFinalized        = errors.New("evaluation already finalized")
	ErrChallengeWindowOpen     = errors.New("challenge window still open")
	ErrChallengeWindowClosed   = errors.New("challenge window has closed")
)

// Authorization and reference errors.
var (
	ErrWrongSolver            = errors.New("evaluation belongs to a different solver")
	ErrEvaluationMismatch     = errors.New("evaluation does not belong to this intent")
	ErrChallengeMismatch      = errors.New("challenge does not belong to this evaluation")
	ErrSolverNotRegistered    = errors.New("solver not registered")
	ErrSolverInactive         = errors.New("solver is not active")
	ErrSolverExists           = errors.New("solver already registered")
	ErrInsufficientReputation = errors.New("reputation too low for this reward")
	ErrIntentNotFound         = errors.New("intent not found")
	ErrEvaluationNotFound     = errors.New("evaluation not found")
	ErrChallengeNotFound      = errors.New("challenge not found")
	ErrAccountNotFound        = errors.New("account not found")
)
