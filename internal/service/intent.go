package service

import (
	"context"
	"errors"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultDeadlineMinutes applies when a submitted intent names none.
	DefaultDeadlineMinutes = 60

	// HighRewardMultiple marks the reward size above which accepting an
	// intent requires an established reputation.
	HighRewardMultiple = 5

	// MinAcceptReputation is the reputation floor for high-reward intents.
	MinAcceptReputation = 0.7
)

type IntentService struct {
	intents  domain.IntentStore
	evals    domain.EvaluationStore
	solvers  domain.SolverStore
	accounts domain.AccountStore
	clock    domain.Clock
	tx       domain.TxRunner
	logger   *zap.Logger

	minStake int64
}

func NewIntentService(is domain.IntentStore, es domain.EvaluationStore, ss domain.SolverStore,
	as domain.AccountStore, clock domain.Clock, tx domain.TxRunner, minStake int64, logger *zap.Logger) *IntentService {
	return &IntentService{
		intents:  is,
		evals:    es,
		solvers:  ss,
		accounts: as,
		clock:    clock,
		tx:       tx,
		logger:   logger,
		minStake: minStake,
	}
}

// Create escrows the initiator's stake and opens a pending intent.
// Reward mirrors stake at creation.
func (s *IntentService) Create(ctx context.Context, initiator int64, question string, deadlineMinutes int, stake int64) (*domain.Intent, error) {
	if question == "" {
		return nil, ErrQuestionEmpty
	}
	if len(question) > domain.MaxQuestionLength {
		return nil, ErrQuestionTooLong
	}
	if stake < s.minStake {
		return nil, ErrStakeTooLow
	}
	if deadlineMinutes <= 0 {
		deadlineMinutes = DefaultDeadlineMinutes
	}

	now := s.clock.Now()
	intent := &domain.Intent{
		Type:      domain.IntentTypeCredibilityEvaluation,
		Initiator: initiator,
		Question:  question,
		Stake:     stake,
		Reward:    stake,
		Deadline:  now.Add(time.Duration(deadlineMinutes) * time.Minute),
		Status:    domain.IntentStatusPending,
		CreatedAt: now,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Debit(ctx, initiator, stake); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				return ErrInsufficientBalance
			}
			return err
		}
		return s.intents.Create(ctx, intent)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("intent created",
		zap.Int64("intent_id", intent.ID),
		zap.Int64("initiator", initiator),
		zap.Int64("stake", stake),
		zap.Time("deadline", intent.Deadline))

	return intent, nil
}

// Accept is the optional claim step: a registered, active solver marks a
// pending intent in progress. High-reward intents gate on reputation.
func (s *IntentService) Accept(ctx context.Context, intentID, solverID int64) error {
	solver, err := s.solvers.GetByID(ctx, solverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSolverNotRegistered
		}
		return err
	}
	if !solver.IsActive {
		return ErrSolverInactive
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		intent, err := s.intents.GetByIDForUpdate(ctx, intentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrIntentNotFound
			}
			return err
		}
		if intent.Status != domain.IntentStatusPending {
			return ErrIntentNotPending
		}
		if s.clock.Now().After(intent.Deadline) {
			return ErrIntentExpired
		}
		if intent.Reward > HighRewardMultiple*s.minStake && solver.ReputationScore < MinAcceptReputation {
			return ErrInsufficientReputation
		}

		intent.Status = domain.IntentStatusInProgress
		return s.intents.Update(ctx, intent)
	})
	if err != nil {
		return err
	}

	s.logger.Info("intent accepted",
		zap.Int64("intent_id", intentID),
		zap.Int64("solver", solverID))
	return nil
}

// Complete closes an in-progress intent against the solver's evaluation and
// bumps the initiator's aggregate stake-committed counter.
func (s *IntentService) Complete(ctx context.Context, intentID, evaluationID, solverID int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		intent, err := s.intents.GetByIDForUpdate(ctx, intentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrIntentNotFound
			}
			return err
		}
		if intent.Status != domain.IntentStatusInProgress {
			return ErrIntentNotInProgress
		}

		eval, err := s.evals.GetByID(ctx, evaluationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrEvaluationNotFound
			}
			return err
		}
		if eval.Solver != solverID {
			return ErrWrongSolver
		}
		if eval.IntentID != intentID {
			return ErrEvaluationMismatch
		}

		intent.Status = domain.IntentStatusCompleted
		intent.EvaluationID = &evaluationID
		if err := s.intents.Update(ctx, intent); err != nil {
			return err
		}
		return s.accounts.AddStakeCommitted(ctx, intent.Initiator, intent.Stake)
	})
	if err != nil {
		return err
	}

	s.logger.Info("intent completed",
		zap.Int64("intent_id", intentID),
		zap.Int64("evaluation_id", evaluationID),
		zap.Int64("solver", solverID))
	return nil
}

func (s *IntentService) GetByID(ctx context.Context, id int64) (*domain.Intent, error) {
	intent, err := s.intents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return intent, nil
}

func (s *IntentService) ListByStatus(ctx context.Context, status domain.IntentStatus, limit int) ([]domain.Intent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.intents.ListByStatus(ctx, status, limit)
}

func (s *IntentService) ListByInitiator(ctx context.Context, initiator int64, limit int) ([]domain.Intent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.intents.ListByInitiator(ctx, initiator, limit)
}
