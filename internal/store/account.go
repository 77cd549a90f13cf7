package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oraclestake/arbiter/internal/domain"
)

type AccountStore struct {
	db *DB
}

func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, a *domain.Account) error {
	err := s.db.querier(ctx).QueryRow(ctx,
		`INSERT INTO accounts (name, api_key_hash, role, balance)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		a.Name, a.APIKeyHash, a.Role, a.Balance,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return s.scanOne(s.db.querier(ctx).QueryRow(ctx,
		`SELECT id, name, api_key_hash, role, balance, stake_committed, created_at
		 FROM accounts WHERE id = $1`,
		id,
	))
}

func (s *AccountStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Account, error) {
	return s.scanOne(s.db.querier(ctx).QueryRow(ctx,
		`SELECT id, name, api_key_hash, role, balance, stake_committed, created_at
		 FROM accounts WHERE api_key_hash = $1`,
		apiKeyHash,
	))
}

func (s *AccountStore) scanOne(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.Role, &a.Balance, &a.StakeCommitted, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AccountStore) Credit(ctx context.Context, id int64, amount int64) error {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AccountStore) Debit(ctx context.Context, id int64, amount int64) error {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
		id, amount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

func (s *AccountStore) AddStakeCommitted(ctx context.Context, id int64, amount int64) error {
	tag, err := s.db.querier(ctx).Exec(ctx,
		`UPDATE accounts SET stake_committed = stake_committed + $2 WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
