package service

import (
	"context"
	"errors"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/store"
	"go.uber.org/zap"
)

// DisputeService adjudicates challenges against evaluations. Settlement is
// the one place pooled value changes hands between two parties, so every
// settle call runs as a single transaction: entity status flips, ledger
// credits, and reputation updates commit together or not at all.
type DisputeService struct {
	intents    domain.IntentStore
	evals      domain.EvaluationStore
	challenges domain.ChallengeStore
	accounts   domain.AccountStore
	reputation *ReputationService
	clock      domain.Clock
	tx         domain.TxRunner
	logger     *zap.Logger

	challengePeriod time.Duration
}

func NewDisputeService(is domain.IntentStore, es domain.EvaluationStore, cs domain.ChallengeStore,
	as domain.AccountStore, rep *ReputationService, clock domain.Clock, tx domain.TxRunner,
	challengePeriod time.Duration, logger *zap.Logger) *DisputeService {
	return &DisputeService{
		intents:         is,
		evals:           es,
		challenges:      cs,
		accounts:        as,
		reputation:      rep,
		clock:           clock,
		tx:              tx,
		logger:          logger,
		challengePeriod: challengePeriod,
	}
}

// SubmitChallenge opens a counter-claim against a submitted evaluation.
// The challenge stake must strictly exceed the evaluation's stake, and the
// window closes challenge_period after the evaluation's submission.
func (s *DisputeService) SubmitChallenge(ctx context.Context, evaluationID, challenger int64,
	counterSources []domain.Source, stake int64) (*domain.Challenge, error) {
	if err := domain.ValidateSources(counterSources); err != nil {
		return nil, err
	}

	challenge := &domain.Challenge{
		EvaluationID:   evaluationID,
		Challenger:     challenger,
		CounterSources: counterSources,
		Stake:          stake,
		Status:         domain.ChallengeStatusSubmitted,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		eval, err := s.evals.GetByIDForUpdate(ctx, evaluationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrEvaluationNotFound
			}
			return err
		}
		if stake <= eval.Stake {
			return ErrChallengeStakeTooLow
		}
		if eval.Status != domain.EvaluationStatusSubmitted {
			return ErrEvaluationNotOpen
		}

		now := s.clock.Now()
		if now.After(eval.SubmittedAt.Add(s.challengePeriod)) {
			return ErrChallengeWindowClosed
		}

		if err := s.accounts.Debit(ctx, challenger, stake); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				return ErrInsufficientBalance
			}
			return err
		}

		challenge.SubmittedAt = now
		if err := s.challenges.Create(ctx, challenge); err != nil {
			return err
		}

		eval.Status = domain.EvaluationStatusChallenged
		if err := s.evals.Update(ctx, eval); err != nil {
			return err
		}

		// InProgress -> Disputed on the parent intent.
		intent, err := s.intents.GetByIDForUpdate(ctx, eval.IntentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrIntentNotFound
			}
			return err
		}
		if intent.Status == domain.IntentStatusInProgress {
			intent.Status = domain.IntentStatusDisputed
			return s.intents.Update(ctx, intent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge submitted",
		zap.Int64("challenge_id", challenge.ID),
		zap.Int64("evaluation_id", evaluationID),
		zap.Int64("challenger", challenger),
		zap.Int64("stake", stake))

	return challenge, nil
}

// Settle resolves a challenged evaluation, single-shot. The pooled stakes
// move to exactly one side (or back to both on a tie); the three branches
// conserve the pool exactly.
func (s *DisputeService) Settle(ctx context.Context, evaluationID, challengeID int64, winner domain.Winner) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		eval, err := s.evals.GetByIDForUpdate(ctx, evaluationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrEvaluationNotFound
			}
			return err
		}
		challenge, err := s.challenges.GetByIDForUpdate(ctx, challengeID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrChallengeNotFound
			}
			return err
		}
		if challenge.EvaluationID != eval.ID {
			return ErrChallengeMismatch
		}
		if eval.Status != domain.EvaluationStatusChallenged {
			return ErrEvaluationNotChallenged
		}

		now := s.clock.Now()
		pool := eval.Stake + challenge.Stake

		switch winner {
		case domain.WinnerEvaluator:
			if err := s.accounts.Credit(ctx, eval.Solver, pool); err != nil {
				return err
			}
			eval.Status = domain.EvaluationStatusConfirmed
			challenge.Status = domain.ChallengeStatusFailed

			if err := s.reputation.ApplyResolution(ctx, eval.Solver, domain.Resolution{
				Success:           true,
				HasEvaluation:     true,
				ExecutionTimeMs:   eval.ExecutionTimeMs,
				Confidence:        eval.Confidence,
				SourceCount:       len(eval.Sources),
				Reward:            pool,
				ChallengeReceived: true,
				ChallengeDefended: true,
				ResolvedAt:        now,
			}); err != nil {
				return err
			}
			if err := s.reputation.ApplyResolution(ctx, challenge.Challenger, domain.Resolution{
				Success:    false,
				ResolvedAt: now,
			}); err != nil {
				return err
			}

		case domain.WinnerChallenger:
			if err := s.accounts.Credit(ctx, challenge.Challenger, pool); err != nil {
				return err
			}
			eval.Status = domain.EvaluationStatusRefuted
			challenge.Status = domain.ChallengeStatusSuccessful

			if err := s.reputation.ApplyResolution(ctx, challenge.Challenger, domain.Resolution{
				Success:    true,
				ResolvedAt: now,
			}); err != nil {
				return err
			}
			if err := s.reputation.ApplyResolution(ctx, eval.Solver, domain.Resolution{
				Success:           false,
				HasEvaluation:     true,
				ExecutionTimeMs:   eval.ExecutionTimeMs,
				Confidence:        eval.Confidence,
				SourceCount:       len(eval.Sources),
				StakeLost:         eval.Stake,
				ChallengeReceived: true,
				ResolvedAt:        now,
			}); err != nil {
				return err
			}

		case domain.WinnerTie:
			if err := s.accounts.Credit(ctx, eval.Solver, eval.Stake); err != nil {
				return err
			}
			if err := s.accounts.Credit(ctx, challenge.Challenger, challenge.Stake); err != nil {
				return err
			}
			eval.Status = domain.EvaluationStatusConfirmed
			challenge.Status = domain.ChallengeStatusFailed
		}

		if err := s.evals.Update(ctx, eval); err != nil {
			return err
		}
		if err := s.challenges.Update(ctx, challenge); err != nil {
			return err
		}

		// Disputed -> Settled on the parent intent.
		intent, err := s.intents.GetByIDForUpdate(ctx, eval.IntentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrIntentNotFound
			}
			return err
		}
		if !intent.Status.Terminal() {
			intent.Status = domain.IntentStatusSettled
			return s.intents.Update(ctx, intent)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("dispute settled",
		zap.Int64("evaluation_id", evaluationID),
		zap.Int64("challenge_id", challengeID),
		zap.String("winner", winner.String()))
	return nil
}

func (s *DisputeService) GetChallenge(ctx context.Context, id int64) (*domain.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return challenge, nil
}
