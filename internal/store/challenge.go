package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oraclestake/arbiter/internal/domain"
)

type ChallengeStore struct {
	db *DB
}

func NewChallengeStore(db *DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

const challengeColumns = `id, evaluation_id, challenger, counter_sources, stake, status, submitted_at`

func (s *ChallengeStore) Create(ctx context.Context, c *domain.Challenge) error {
	return s.db.querier(ctx).QueryRow(ctx,
		`INSERT INTO challenges (evaluation_id, challenger, counter_sources, stake, status, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		c.EvaluationID, c.Challenger, c.CounterSources, c.Stake, c.Status, c.SubmittedAt,
	).Scan(&c.ID)
}

func (s *ChallengeStore) GetByID(ctx context.Context, id int64) (*domain.Challenge, error) {
	return scanChallenge(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
}

func (s *ChallengeStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Challenge, error) {
	return scanChallenge(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = $1 FOR UPDATE`, id))
}

func (s *ChallengeStore) Update(ctx context.Context, c *domain.Challenge) error {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`UPDATE challenges SET status = $2 WHERE id = $1`,
		c.ID, c.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ChallengeStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, max int) (int64, error) {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`DELETE FROM challenges WHERE id IN (
		   SELECT id FROM challenges
		   WHERE status IN ('successful', 'failed') AND submitted_at < $1
		   LIMIT $2
		 )`,
		cutoff, max,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanChallenge(row pgx.Row) (*domain.Challenge, error) {
	c := &domain.Challenge{}
	err := row.Scan(&c.ID, &c.EvaluationID, &c.Challenger, &c.CounterSources,
		&c.Stake, &c.Status, &c.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
