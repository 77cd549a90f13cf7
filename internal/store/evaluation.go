package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oraclestake/arbiter/internal/domain"
)

type EvaluationStore struct {
	db *DB
}

func NewEvaluationStore(db *DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

const evaluationColumns = `id, intent_id, solver, question, answer, confidence,
	sources, execution_time_ms, stake, status, submitted_at`

func (s *EvaluationStore) Create(ctx context.Context, e *domain.Evaluation) error {
	return s.db.querier(ctx).QueryRow(ctx,
		`INSERT INTO evaluations (intent_id, solver, question, answer, confidence,
		   sources, execution_time_ms, stake, status, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		e.IntentID, e.Solver, e.Question, e.Answer, e.Confidence,
		e.Sources, e.ExecutionTimeMs, e.Stake, e.Status, e.SubmittedAt,
	).Scan(&e.ID)
}

func (s *EvaluationStore) GetByID(ctx context.Context, id int64) (*domain.Evaluation, error) {
	return scanEvaluation(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE id = $1`, id))
}

func (s *EvaluationStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Evaluation, error) {
	return scanEvaluation(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE id = $1 FOR UPDATE`, id))
}

func (s *EvaluationStore) Update(ctx context.Context, e *domain.Evaluation) error {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`UPDATE evaluations SET status = $2 WHERE id = $1`,
		e.ID, e.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *EvaluationStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, max int) (int64, error) {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`DELETE FROM evaluations WHERE id IN (
		   SELECT e.id FROM evaluations e
		   WHERE e.status IN ('confirmed', 'refuted')
		     AND e.submitted_at < $1
		     AND NOT EXISTS (
		           SELECT 1 FROM challenges c
		           WHERE c.evaluation_id = e.id AND c.status = 'submitted')
		     AND NOT EXISTS (
		           SELECT 1 FROM intents i
		           WHERE i.evaluation_id = e.id
		             AND i.status NOT IN ('completed', 'settled', 'expired'))
		   LIMIT $2
		 )`,
		cutoff, max,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanEvaluation(row pgx.Row) (*domain.Evaluation, error) {
	e := &domain.Evaluation{}
	err := row.Scan(&e.ID, &e.IntentID, &e.Solver, &e.Question, &e.Answer, &e.Confidence,
		&e.Sources, &e.ExecutionTimeMs, &e.Stake, &e.Status, &e.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}
