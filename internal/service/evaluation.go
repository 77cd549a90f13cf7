package service

import (
	"context"
	"errors"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/store"
	"go.uber.org/zap"
)

// MaxExecutionTimeMs bounds the reported evaluation runtime (5 minutes).
const MaxExecutionTimeMs = 300_000

type EvaluationService struct {
	intents    domain.IntentStore
	evals      domain.EvaluationStore
	solvers    domain.SolverStore
	accounts   domain.AccountStore
	reputation *ReputationService
	clock      domain.Clock
	tx         domain.TxRunner
	logger     *zap.Logger

	minStake        int64
	challengePeriod time.Duration
}

func NewEvaluationService(is domain.IntentStore, es domain.EvaluationStore, ss domain.SolverStore,
	as domain.AccountStore, rep *ReputationService, clock domain.Clock, tx domain.TxRunner,
	minStake int64, challengePeriod time.Duration, logger *zap.Logger) *EvaluationService {
	return &EvaluationService{
		intents:         is,
		evals:           es,
		solvers:         ss,
		accounts:        as,
		reputation:      rep,
		clock:           clock,
		tx:              tx,
		logger:          logger,
		minStake:        minStake,
		challengePeriod: challengePeriod,
	}
}

// Submit records a solver's staked answer against an intent and moves the
// intent in progress. A pending intent is always admissible; an in-progress
// one only if it was claimed via accept and carries no evaluation yet.
func (s *EvaluationService) Submit(ctx context.Context, intentID, solverID int64, answer bool,
	confidence float64, sources []domain.Source, executionTimeMs int64, stake int64) (*domain.Evaluation, error) {
	if stake < s.minStake {
		return nil, ErrStakeTooLow
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrConfidenceOutOfRange
	}
	if err := domain.ValidateSources(sources); err != nil {
		return nil, err
	}
	if executionTimeMs < 0 || executionTimeMs > MaxExecutionTimeMs {
		return nil, ErrExecutionTimeInvalid
	}

	if _, err := s.solvers.GetByID(ctx, solverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSolverNotRegistered
		}
		return nil, err
	}

	eval := &domain.Evaluation{
		IntentID:        intentID,
		Solver:          solverID,
		Answer:          answer,
		Confidence:      confidence,
		Sources:         sources,
		ExecutionTimeMs: executionTimeMs,
		Stake:           stake,
		Status:          domain.EvaluationStatusSubmitted,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		intent, err := s.intents.GetByIDForUpdate(ctx, intentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrIntentNotFound
			}
			return err
		}

		admissible := intent.Status == domain.IntentStatusPending ||
			(intent.Status == domain.IntentStatusInProgress && intent.EvaluationID == nil)
		if !admissible {
			return ErrIntentNotPending
		}

		now := s.clock.Now()
		if now.After(intent.Deadline) {
			return ErrIntentExpired
		}

		if err := s.accounts.Debit(ctx, solverID, stake); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				return ErrInsufficientBalance
			}
			return err
		}

		eval.Question = intent.Question
		eval.SubmittedAt = now
		if err := s.evals.Create(ctx, eval); err != nil {
			return err
		}

		intent.Status = domain.IntentStatusInProgress
		intent.EvaluationID = &eval.ID
		return s.intents.Update(ctx, intent)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("evaluation submitted",
		zap.Int64("evaluation_id", eval.ID),
		zap.Int64("intent_id", intentID),
		zap.Int64("solver", solverID),
		zap.Float64("confidence", confidence),
		zap.Int64("stake", stake))

	return eval, nil
}

// UnopposedReward computes the payout for an evaluation that survived the
// challenge window untouched. Stake and reward arithmetic stays in integer
// units; the multipliers are ranking-style floats truncated at the end.
func UnopposedReward(intentReward, evalStake int64, reputation float64, executionTimeMs int64) int64 {
	base := intentReward + evalStake

	multiplier := 1 + (reputation-0.5)*0.5

	speedBonus := 0.0
	execSeconds := float64(executionTimeMs) / 1000
	if execSeconds < 60 {
		speedBonus = (60 - execSeconds) / 60 * 0.1
	}

	return int64(float64(base) * multiplier * (1 + speedBonus))
}

// Finalize confirms an unopposed evaluation once its challenge window has
// elapsed, pays the reward, and records a successful resolution.
func (s *EvaluationService) Finalize(ctx context.Context, evaluationID int64) (int64, error) {
	var reward int64

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		eval, err := s.evals.GetByIDForUpdate(ctx, evaluationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrEvaluationNotFound
			}
			return err
		}
		switch eval.Status {
		case domain.EvaluationStatusSubmitted:
		case domain.EvaluationStatusChallenged:
			return ErrEvaluationNotOpen
		default:
			return ErrAlreadyFinalized
		}

		now := s.clock.Now()
		if !now.After(eval.SubmittedAt.Add(s.challengePeriod)) {
			return ErrChallengeWindowOpen
		}

		intent, err := s.intents.GetByIDForUpdate(ctx, eval.IntentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrIntentNotFound
			}
			return err
		}

		// Reputation multiplier uses the score as of finalization, before
		// this resolution is folded in.
		solver, err := s.solvers.GetByID(ctx, eval.Solver)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSolverNotRegistered
			}
			return err
		}

		reward = UnopposedReward(intent.Reward, eval.Stake, solver.ReputationScore, eval.ExecutionTimeMs)
		if err := s.accounts.Credit(ctx, eval.Solver, reward); err != nil {
			return err
		}

		eval.Status = domain.EvaluationStatusConfirmed
		if err := s.evals.Update(ctx, eval); err != nil {
			return err
		}

		if !intent.Status.Terminal() {
			intent.Status = domain.IntentStatusSettled
			if err := s.intents.Update(ctx, intent); err != nil {
				return err
			}
		}

		return s.reputation.ApplyResolution(ctx, eval.Solver, domain.Resolution{
			Success:         true,
			HasEvaluation:   true,
			ExecutionTimeMs: eval.ExecutionTimeMs,
			Confidence:      eval.Confidence,
			SourceCount:     len(eval.Sources),
			Reward:          reward,
			ResolvedAt:      now,
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("evaluation finalized unopposed",
		zap.Int64("evaluation_id", evaluationID),
		zap.Int64("reward", reward))
	return reward, nil
}

func (s *EvaluationService) GetByID(ctx context.Context, id int64) (*domain.Evaluation, error) {
	eval, err := s.evals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEvaluationNotFound
		}
		return nil, err
	}
	return eval, nil
}
