package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oraclestake/arbiter/internal/domain"
)

type SolverStore struct {
	db *DB
}

func NewSolverStore(db *DB) *SolverStore {
	return &SolverStore{db: db}
}

const solverColumns = `id, reputation_score, total_evaluations, successful_evaluations,
	total_stake, is_active, avg_execution_time_ms, avg_confidence, avg_source_count,
	challenges_received, challenges_defended, rewards_earned, stakes_lost,
	last_active_at, specializations, uptime_score, registered_at`

func (s *SolverStore) Create(ctx context.Context, sv *domain.Solver) error {
	err := s.db.querier(ctx).QueryRow(ctx,
		`INSERT INTO solvers (id, reputation_score, total_evaluations, successful_evaluations,
		   total_stake, is_active, specializations, uptime_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING registered_at`,
		sv.ID, sv.ReputationScore, sv.TotalEvaluations, sv.SuccessfulEvaluations,
		sv.TotalStake, sv.IsActive, sv.Metrics.Specializations, sv.Metrics.UptimeScore,
	).Scan(&sv.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SolverStore) GetByID(ctx context.Context, id int64) (*domain.Solver, error) {
	return scanSolver(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+solverColumns+` FROM solvers WHERE id = $1`, id))
}

func (s *SolverStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Solver, error) {
	return scanSolver(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+solverColumns+` FROM solvers WHERE id = $1 FOR UPDATE`, id))
}

func (s *SolverStore) Update(ctx context.Context, sv *domain.Solver) error {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`UPDATE solvers SET
		   reputation_score = $2, total_evaluations = $3, successful_evaluations = $4,
		   total_stake = $5, is_active = $6, avg_execution_time_ms = $7,
		   avg_confidence = $8, avg_source_count = $9, challenges_received = $10,
		   challenges_defended = $11, rewards_earned = $12, stakes_lost = $13,
		   last_active_at = $14, specializations = $15, uptime_score = $16
		 WHERE id = $1`,
		sv.ID, sv.ReputationScore, sv.TotalEvaluations, sv.SuccessfulEvaluations,
		sv.TotalStake, sv.IsActive, sv.Metrics.AvgExecutionTimeMs,
		sv.Metrics.AvgConfidence, sv.Metrics.AvgSourceCount, sv.Metrics.ChallengesReceived,
		sv.Metrics.ChallengesDefended, sv.Metrics.RewardsEarned, sv.Metrics.StakesLost,
		sv.Metrics.LastActiveAt, sv.Metrics.Specializations, sv.Metrics.UptimeScore,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SolverStore) ListEligible(ctx context.Context) ([]domain.Solver, error) {
	rows, err := s.db.querier(ctx).Query(ctx,
		`SELECT `+solverColumns+` FROM solvers
		 WHERE is_active AND total_evaluations > 0
		 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solvers []domain.Solver
	for rows.Next() {
		sv, err := scanSolver(rows)
		if err != nil {
			return nil, err
		}
		solvers = append(solvers, *sv)
	}
	return solvers, rows.Err()
}

func scanSolver(row pgx.Row) (*domain.Solver, error) {
	sv := &domain.Solver{}
	err := row.Scan(&sv.ID, &sv.ReputationScore, &sv.TotalEvaluations, &sv.SuccessfulEvaluations,
		&sv.TotalStake, &sv.IsActive, &sv.Metrics.AvgExecutionTimeMs, &sv.Metrics.AvgConfidence,
		&sv.Metrics.AvgSourceCount, &sv.Metrics.ChallengesReceived, &sv.Metrics.ChallengesDefended,
		&sv.Metrics.RewardsEarned, &sv.Metrics.StakesLost, &sv.Metrics.LastActiveAt,
		&sv.Metrics.Specializations, &sv.Metrics.UptimeScore, &sv.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sv, nil
}
