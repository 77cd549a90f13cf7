package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oraclestake/arbiter/internal/domain"
)

type IntentStore struct {
	db *DB
}

func NewIntentStore(db *DB) *IntentStore {
	return &IntentStore{db: db}
}

const intentColumns = `id, intent_type, initiator, question, evaluation_id,
	stake, reward, deadline, status, created_at`

func (s *IntentStore) Create(ctx context.Context, i *domain.Intent) error {
	return s.db.querier(ctx).QueryRow(ctx,
		`INSERT INTO intents (intent_type, initiator, question, stake, reward, deadline, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		i.Type, i.Initiator, i.Question, i.Stake, i.Reward, i.Deadline, i.Status, i.CreatedAt,
	).Scan(&i.ID)
}

func (s *IntentStore) GetByID(ctx context.Context, id int64) (*domain.Intent, error) {
	return scanIntent(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM intents WHERE id = $1`, id))
}

func (s *IntentStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Intent, error) {
	return scanIntent(s.db.querier(ctx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM intents WHERE id = $1 FOR UPDATE`, id))
}

func (s *IntentStore) Update(ctx context.Context, i *domain.Intent) error {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`UPDATE intents SET evaluation_id = $2, status = $3 WHERE id = $1`,
		i.ID, i.EvaluationID, i.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *IntentStore) ListByStatus(ctx context.Context, status domain.IntentStatus, limit int) ([]domain.Intent, error) {
	rows, err := s.db.querier(ctx).Query(ctx,
		`SELECT `+intentColumns+` FROM intents WHERE status = $1 ORDER BY id LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectIntents(rows)
}

func (s *IntentStore) ListByInitiator(ctx context.Context, initiator int64, limit int) ([]domain.Intent, error) {
	rows, err := s.db.querier(ctx).Query(ctx,
		`SELECT `+intentColumns+` FROM intents WHERE initiator = $1 ORDER BY id LIMIT $2`,
		initiator, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectIntents(rows)
}

// ListExpiredPending relies on the (status, deadline) partial index so the
// sweep costs proportional to the work, not to total history. SKIP LOCKED
// lets concurrent sweepers split the backlog instead of blocking.
func (s *IntentStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Intent, error) {
	rows, err := s.db.querier(ctx).Query(ctx,
		`SELECT `+intentColumns+` FROM intents
		 WHERE status = 'pending' AND deadline < $1
		 ORDER BY deadline
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectIntents(rows)
}

// DeleteTerminalBefore never removes an intent whose evaluation is still
// live; retention is garbage collection, not settlement.
func (s *IntentStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, max int) (int64, error) {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`DELETE FROM intents WHERE id IN (
		   SELECT i.id FROM intents i
		   WHERE i.status IN ('completed', 'settled', 'expired')
		     AND i.created_at < $1
		     AND (i.evaluation_id IS NULL OR EXISTS (
		           SELECT 1 FROM evaluations e
		           WHERE e.id = i.evaluation_id AND e.status IN ('confirmed', 'refuted')))
		   LIMIT $2
		 )`,
		cutoff, max,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanIntent(row pgx.Row) (*domain.Intent, error) {
	i := &domain.Intent{}
	err := row.Scan(&i.ID, &i.Type, &i.Initiator, &i.Question, &i.EvaluationID,
		&i.Stake, &i.Reward, &i.Deadline, &i.Status, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return i, nil
}

func collectIntents(rows pgx.Rows) ([]domain.Intent, error) {
	defer rows.Close()

	var intents []domain.Intent
	for rows.Next() {
		i, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *i)
	}
	return intents, rows.Err()
}
