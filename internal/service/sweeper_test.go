package service

import (
	"context"
	"testing"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"go.uber.org/zap"
)

type sweeperFixture struct {
	svc        *SweeperService
	accounts   *mockAccountStore
	intents    *mockIntentStore
	evals      *mockEvaluationStore
	challenges *mockChallengeStore
	clock      *mockClock
}

func setupSweeperTest() *sweeperFixture {
	accounts := newMockAccountStore()
	intents := newMockIntentStore()
	evals := newMockEvaluationStore()
	challenges := newMockChallengeStore()
	clock := &mockClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewSweeperService(intents, evals, challenges, accounts, clock, mockTx{}, zap.NewNop())
	return &sweeperFixture{svc: svc, accounts: accounts, intents: intents, evals: evals, challenges: challenges, clock: clock}
}

func (f *sweeperFixture) overdueIntent(t *testing.T, initiator, stake int64) *domain.Intent {
	t.Helper()
	intent := &domain.Intent{
		Initiator: initiator,
		Question:  "q",
		Stake:     stake,
		Reward:    stake,
		Deadline:  f.clock.now.Add(-time.Minute),
		Status:    domain.IntentStatusPending,
		CreatedAt: f.clock.now.Add(-time.Hour),
	}
	if err := f.intents.Create(context.Background(), intent); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	return intent
}

func TestSweeperService_SweepExpired(t *testing.T) {
	f := setupSweeperTest()
	ctx := context.Background()

	initiator := &domain.Account{Name: "init", Role: domain.RoleUser, Balance: 0}
	_ = f.accounts.Create(ctx, initiator)

	overdue := f.overdueIntent(t, initiator.ID, 2_000_000)

	// A live intent must survive the sweep.
	live := &domain.Intent{
		Initiator: initiator.ID,
		Question:  "q",
		Stake:     1_000_000,
		Deadline:  f.clock.now.Add(time.Hour),
		Status:    domain.IntentStatusPending,
		CreatedAt: f.clock.now,
	}
	_ = f.intents.Create(ctx, live)

	expired, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}

	got, _ := f.intents.GetByID(ctx, overdue.ID)
	if got.Status != domain.IntentStatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
	gotLive, _ := f.intents.GetByID(ctx, live.ID)
	if gotLive.Status != domain.IntentStatusPending {
		t.Fatalf("expected live intent untouched, got %s", gotLive.Status)
	}

	// Full stake refunded to the initiator.
	account, _ := f.accounts.GetByID(ctx, initiator.ID)
	if account.Balance != 2_000_000 {
		t.Fatalf("expected refund, balance %d", account.Balance)
	}
}

func TestSweeperService_SweepExpired_Idempotent(t *testing.T) {
	f := setupSweeperTest()
	ctx := context.Background()

	initiator := &domain.Account{Name: "init", Role: domain.RoleUser}
	_ = f.accounts.Create(ctx, initiator)
	f.overdueIntent(t, initiator.ID, 2_000_000)

	if expired, _ := f.svc.SweepExpired(ctx); expired != 1 {
		t.Fatalf("expected 1 on first pass, got %d", expired)
	}
	if expired, _ := f.svc.SweepExpired(ctx); expired != 0 {
		t.Fatalf("expected 0 on second pass, got %d", expired)
	}

	// No double refund.
	account, _ := f.accounts.GetByID(ctx, initiator.ID)
	if account.Balance != 2_000_000 {
		t.Fatalf("expected single refund, balance %d", account.Balance)
	}
}

func TestSweeperService_SweepExpired_Batches(t *testing.T) {
	f := setupSweeperTest()
	ctx := context.Background()

	initiator := &domain.Account{Name: "init", Role: domain.RoleUser}
	_ = f.accounts.Create(ctx, initiator)

	// More overdue intents than one batch holds.
	total := sweepBatchSize + 50
	for i := 0; i < total; i++ {
		f.overdueIntent(t, initiator.ID, testMinStake)
	}

	expired, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if expired != total {
		t.Fatalf("expected %d expired, got %d", total, expired)
	}
}

func TestSweeperService_Prune(t *testing.T) {
	f := setupSweeperTest()
	ctx := context.Background()
	cutoffAge := 30 * 24 * time.Hour
	old := f.clock.now.Add(-cutoffAge - time.Hour)

	// Old terminal records of all three families.
	intent := &domain.Intent{Question: "q", Status: domain.IntentStatusSettled, CreatedAt: old}
	_ = f.intents.Create(ctx, intent)
	eval := &domain.Evaluation{IntentID: intent.ID, Status: domain.EvaluationStatusConfirmed, SubmittedAt: old}
	_ = f.evals.Create(ctx, eval)
	challenge := &domain.Challenge{EvaluationID: eval.ID, Status: domain.ChallengeStatusFailed, SubmittedAt: old}
	_ = f.challenges.Create(ctx, challenge)

	// A recent terminal record stays.
	recent := &domain.Intent{Question: "q", Status: domain.IntentStatusSettled, CreatedAt: f.clock.now}
	_ = f.intents.Create(ctx, recent)

	pruned, err := f.svc.Prune(ctx, cutoffAge, 100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pruned != 3 {
		t.Fatalf("expected 3 pruned, got %d", pruned)
	}

	if _, err := f.intents.GetByID(ctx, recent.ID); err != nil {
		t.Fatal("expected recent record to survive")
	}
	if _, err := f.intents.GetByID(ctx, intent.ID); err == nil {
		t.Fatal("expected old intent removed")
	}
}

func TestSweeperService_Prune_Bounded(t *testing.T) {
	f := setupSweeperTest()
	ctx := context.Background()
	old := f.clock.now.Add(-100 * 24 * time.Hour)

	for i := 0; i < 10; i++ {
		c := &domain.Challenge{EvaluationID: 1, Status: domain.ChallengeStatusFailed, SubmittedAt: old}
		_ = f.challenges.Create(ctx, c)
	}

	pruned, err := f.svc.Prune(ctx, 30*24*time.Hour, 4)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pruned != 4 {
		t.Fatalf("expected deletion cap honored, got %d", pruned)
	}
	if len(f.challenges.challenges) != 6 {
		t.Fatalf("expected 6 challenges left, got %d", len(f.challenges.challenges))
	}
}
