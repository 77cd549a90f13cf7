package service

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/store"
	"go.uber.org/zap"
)

const (
	// Weighted performance score terms.
	activityBonusWeight   = 0.1
	defenseBonusWeight    = 0.2
	unchallengedFlatBonus = 0.1
	speedBonusNumerator   = 300_000 // ms
	speedBonusCap         = 0.3
)

// RankedSolver pairs a solver with its computed performance score.
type RankedSolver struct {
	Solver domain.Solver `json:"solver"`
	Score  float64       `json:"score"`
}

// LeaderboardCache is an optional read-through cache for top-performer
// queries. A nil cache disables caching entirely.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) ([]RankedSolver, bool)
	Set(ctx context.Context, limit int, ranked []RankedSolver)
	Invalidate(ctx context.Context)
}

// ReputationService owns solver registration, reputation bookkeeping, the
// weighted performance score, and proportional reward distribution.
type ReputationService struct {
	solvers  domain.SolverStore
	accounts domain.AccountStore
	clock    domain.Clock
	tx       domain.TxRunner
	logger   *zap.Logger

	minStake int64
	cache    LeaderboardCache
}

func NewReputationService(ss domain.SolverStore, as domain.AccountStore, clock domain.Clock,
	tx domain.TxRunner, minStake int64, logger *zap.Logger) *ReputationService {
	return &ReputationService{
		solvers:  ss,
		accounts: as,
		clock:    clock,
		tx:       tx,
		logger:   logger,
		minStake: minStake,
	}
}

// SetCache wires an optional leaderboard cache.
func (s *ReputationService) SetCache(c LeaderboardCache) {
	s.cache = c
}

// Register creates a solver record for the account. The attached stake is
// the registration bond, tracked separately from per-evaluation stakes.
func (s *ReputationService) Register(ctx context.Context, accountID int64, stake int64, specializations []string) (*domain.Solver, error) {
	if stake < s.minStake {
		return nil, ErrStakeTooLow
	}

	solver := &domain.Solver{
		ID:              accountID,
		ReputationScore: 1.0, // optimistic prior: unrated solvers are fully trusted
		TotalStake:      stake,
		IsActive:        true,
		Metrics: domain.PerformanceMetrics{
			Specializations: specializations,
			UptimeScore:     1.0,
		},
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Debit(ctx, accountID, stake); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				return ErrInsufficientBalance
			}
			return err
		}
		if err := s.solvers.Create(ctx, solver); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrSolverExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("solver registered",
		zap.Int64("solver", accountID),
		zap.Int64("stake", stake))
	return solver, nil
}

func (s *ReputationService) GetByID(ctx context.Context, id int64) (*domain.Solver, error) {
	solver, err := s.solvers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSolverNotRegistered
		}
		return nil, err
	}
	return solver, nil
}

// ApplyResolution folds a resolved outcome into the solver's record. The
// update is best-effort: accounts that never registered as solvers (e.g. a
// pure challenger) are skipped. Must run inside the caller's transaction.
func (s *ReputationService) ApplyResolution(ctx context.Context, accountID int64, r domain.Resolution) error {
	solver, err := s.solvers.GetByIDForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug("resolution for unregistered account skipped",
				zap.Int64("account", accountID))
			return nil
		}
		return err
	}

	solver.Apply(r)
	if err := s.solvers.Update(ctx, solver); err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}

	s.logger.Debug("solver resolution applied",
		zap.Int64("solver", accountID),
		zap.Bool("success", r.Success),
		zap.Float64("reputation", solver.ReputationScore))
	return nil
}

// PerformanceScore computes the weighted composite used for proportional
// reward distribution: reputation, log-damped activity, challenge-defense
// rate, and average speed. It never drives settlement.
func PerformanceScore(s *domain.Solver) float64 {
	score := s.ReputationScore

	n := float64(s.TotalEvaluations)
	if n < 1 {
		n = 1
	}
	score += math.Log(n) * activityBonusWeight

	if s.Metrics.ChallengesReceived == 0 {
		score += unchallengedFlatBonus
	} else {
		defended := float64(s.Metrics.ChallengesDefended) / float64(s.Metrics.ChallengesReceived)
		score += defended * defenseBonusWeight
	}

	if s.Metrics.AvgExecutionTimeMs > 0 {
		score += math.Min(speedBonusNumerator/s.Metrics.AvgExecutionTimeMs, speedBonusCap)
	}

	return score
}

// Distribute pays the reward pool to active, rated solvers proportionally
// to their performance scores, integer-truncated per share. The eligible
// set is read once inside the transaction so it stays stable for the pass.
func (s *ReputationService) Distribute(ctx context.Context, pool int64) error {
	if pool <= 0 {
		return nil
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		eligible, err := s.solvers.ListEligible(ctx)
		if err != nil {
			return err
		}

		var sum float64
		scores := make([]float64, len(eligible))
		for i := range eligible {
			scores[i] = PerformanceScore(&eligible[i])
			sum += scores[i]
		}
		if sum == 0 {
			return nil
		}

		for i := range eligible {
			share := int64(scores[i] / sum * float64(pool))
			if share <= 0 {
				continue
			}
			solver, err := s.solvers.GetByIDForUpdate(ctx, eligible[i].ID)
			if err != nil {
				return err
			}
			solver.Metrics.RewardsEarned += share
			if err := s.solvers.Update(ctx, solver); err != nil {
				return err
			}
			if err := s.accounts.Credit(ctx, solver.ID, share); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}

	s.logger.Info("rewards distributed", zap.Int64("pool", pool))
	return nil
}

// TopPerformers lists eligible solvers ranked by performance score.
func (s *ReputationService) TopPerformers(ctx context.Context, limit int) ([]RankedSolver, error) {
	if limit <= 0 {
		limit = 10
	}

	if s.cache != nil {
		if ranked, ok := s.cache.Get(ctx, limit); ok {
			return ranked, nil
		}
	}

	eligible, err := s.solvers.ListEligible(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedSolver, 0, len(eligible))
	for i := range eligible {
		ranked = append(ranked, RankedSolver{
			Solver: eligible[i],
			Score:  PerformanceScore(&eligible[i]),
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	if s.cache != nil {
		s.cache.Set(ctx, limit, ranked)
	}
	return ranked, nil
}
