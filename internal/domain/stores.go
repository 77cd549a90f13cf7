package domain

import (
	"context"
	"time"
)

// Clock supplies "now" for all deadline math. Production uses the wall
// clock; tests substitute a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TxRunner executes fn as one atomic unit. Store calls made with the ctx
// passed to fn join the same transaction, and row locks taken by the
// ForUpdate variants hold until fn returns. This is what keeps a dispute
// from being settled twice under concurrent requests.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Account, error)
	// Credit is the ledger's pay primitive: irrevocable, never fails for
	// business reasons once invoked.
	Credit(ctx context.Context, id int64, amount int64) error
	// Debit takes stake at admission; fails with ErrInsufficientFunds
	// without touching the balance.
	Debit(ctx context.Context, id int64, amount int64) error
	AddStakeCommitted(ctx context.Context, id int64, amount int64) error
}

type SolverStore interface {
	Create(ctx context.Context, s *Solver) error
	GetByID(ctx context.Context, id int64) (*Solver, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Solver, error)
	Update(ctx context.Context, s *Solver) error
	// ListEligible returns active solvers with at least one resolved
	// evaluation, the population for scoring and distribution.
	ListEligible(ctx context.Context) ([]Solver, error)
}

type IntentStore interface {
	Create(ctx context.Context, i *Intent) error
	GetByID(ctx context.Context, id int64) (*Intent, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Intent, error)
	Update(ctx context.Context, i *Intent) error
	ListByStatus(ctx context.Context, status IntentStatus, limit int) ([]Intent, error)
	ListByInitiator(ctx context.Context, initiator int64, limit int) ([]Intent, error)
	// ListExpiredPending locks and returns pending intents whose deadline
	// passed, up to limit. Callers re-invoke until it returns nothing.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]Intent, error)
	// DeleteTerminalBefore prunes terminal intents created before cutoff
	// whose evaluation, if any, is itself terminal. Returns rows deleted.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, max int) (int64, error)
}

type EvaluationStore interface {
	Create(ctx context.Context, e *Evaluation) error
	GetByID(ctx context.Context, id int64) (*Evaluation, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Evaluation, error)
	Update(ctx context.Context, e *Evaluation) error
	// DeleteTerminalBefore prunes terminal evaluations submitted before
	// cutoff that are not referenced by a live challenge.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, max int) (int64, error)
}

type ChallengeStore interface {
	Create(ctx context.Context, c *Challenge) error
	GetByID(ctx context.Context, id int64) (*Challenge, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Challenge, error)
	Update(ctx context.Context, c *Challenge) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, max int) (int64, error)
}
