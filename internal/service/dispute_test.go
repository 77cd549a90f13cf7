package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"go.uber.org/zap"
)

type disputeFixture struct {
	svc        *DisputeService
	accounts   *mockAccountStore
	solvers    *mockSolverStore
	intents    *mockIntentStore
	evals      *mockEvaluationStore
	challenges *mockChallengeStore
	clock      *mockClock

	solverID     int64
	challengerID int64
	intent       *domain.Intent
	eval         *domain.Evaluation
}

// setupDisputeTest builds a challenged-ready world: a registered solver
// with a submitted evaluation (stake 1,500,000) on an in-progress intent
// (stake 2,000,000), and a funded challenger.
func setupDisputeTest(t *testing.T) *disputeFixture {
	t.Helper()
	ctx := context.Background()

	accounts := newMockAccountStore()
	solvers := newMockSolverStore()
	intents := newMockIntentStore()
	evals := newMockEvaluationStore()
	challenges := newMockChallengeStore()
	clock := &mockClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	rep := NewReputationService(solvers, accounts, clock, mockTx{}, testMinStake, zap.NewNop())
	svc := NewDisputeService(intents, evals, challenges, accounts, rep, clock, mockTx{},
		24*time.Hour, zap.NewNop())

	solverAcct := &domain.Account{Name: "solver", Role: domain.RoleUser, Balance: 10_000_000, APIKeyHash: "solver-key"}
	_ = accounts.Create(ctx, solverAcct)
	challengerAcct := &domain.Account{Name: "challenger", Role: domain.RoleUser, Balance: 10_000_000, APIKeyHash: "challenger-key"}
	_ = accounts.Create(ctx, challengerAcct)

	solvers.solvers[solverAcct.ID] = &domain.Solver{ID: solverAcct.ID, ReputationScore: 1.0, IsActive: true}

	intent := &domain.Intent{
		Initiator: 42,
		Question:  "Is the claim accurate?",
		Stake:     2_000_000,
		Reward:    2_000_000,
		Deadline:  clock.now.Add(time.Hour),
		Status:    domain.IntentStatusInProgress,
		CreatedAt: clock.now,
	}
	_ = intents.Create(ctx, intent)

	eval := &domain.Evaluation{
		IntentID:    intent.ID,
		Solver:      solverAcct.ID,
		Question:    intent.Question,
		Answer:      true,
		Confidence:  0.9,
		Sources:     testSources(),
		Stake:       1_500_000,
		Status:      domain.EvaluationStatusSubmitted,
		SubmittedAt: clock.now,

		ExecutionTimeMs: 30_000,
	}
	_ = evals.Create(ctx, eval)
	evalID := eval.ID
	intent.EvaluationID = &evalID
	_ = intents.Update(ctx, intent)

	// The evaluation stake is already escrowed.
	_ = accounts.Debit(ctx, solverAcct.ID, eval.Stake)

	return &disputeFixture{
		svc:          svc,
		accounts:     accounts,
		solvers:      solvers,
		intents:      intents,
		evals:        evals,
		challenges:   challenges,
		clock:        clock,
		solverID:     solverAcct.ID,
		challengerID: challengerAcct.ID,
		intent:       intent,
		eval:         eval,
	}
}

func TestDisputeService_SubmitChallenge(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	challenge, err := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), 1_600_000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if challenge.ID == 0 {
		t.Fatal("expected challenge ID to be set")
	}
	if challenge.Status != domain.ChallengeStatusSubmitted {
		t.Fatalf("expected submitted, got %s", challenge.Status)
	}

	gotEval, _ := f.evals.GetByID(ctx, f.eval.ID)
	if gotEval.Status != domain.EvaluationStatusChallenged {
		t.Fatalf("expected evaluation challenged, got %s", gotEval.Status)
	}
	gotIntent, _ := f.intents.GetByID(ctx, f.intent.ID)
	if gotIntent.Status != domain.IntentStatusDisputed {
		t.Fatalf("expected intent disputed, got %s", gotIntent.Status)
	}

	account, _ := f.accounts.GetByID(ctx, f.challengerID)
	if account.Balance != 8_400_000 {
		t.Fatalf("expected challenge stake escrowed, balance %d", account.Balance)
	}
}

func TestDisputeService_SubmitChallenge_StakeMustExceed(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	// Equal stake is not enough; the bar is strictly greater.
	for _, stake := range []int64{f.eval.Stake, f.eval.Stake - 1} {
		_, err := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), stake)
		if !errors.Is(err, ErrChallengeStakeTooLow) {
			t.Fatalf("stake %d: expected ErrChallengeStakeTooLow, got %v", stake, err)
		}
	}
}

func TestDisputeService_SubmitChallenge_WindowClosed(t *testing.T) {
	f := setupDisputeTest(t)
	f.clock.now = f.clock.now.Add(24*time.Hour + time.Second)

	_, err := f.svc.SubmitChallenge(context.Background(), f.eval.ID, f.challengerID, testSources(), 1_600_000)
	if !errors.Is(err, ErrChallengeWindowClosed) {
		t.Fatalf("expected ErrChallengeWindowClosed, got %v", err)
	}
}

func TestDisputeService_SubmitChallenge_DoubleChallenge(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	if _, err := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), 1_600_000); err != nil {
		t.Fatalf("first challenge: %v", err)
	}
	_, err := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), 1_700_000)
	if !errors.Is(err, ErrEvaluationNotOpen) {
		t.Fatalf("expected ErrEvaluationNotOpen, got %v", err)
	}
}

func TestDisputeService_Settle_EvaluatorWins(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	challenge, err := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), 1_600_000)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	if err := f.svc.Settle(ctx, f.eval.ID, challenge.ID, domain.WinnerEvaluator); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	gotEval, _ := f.evals.GetByID(ctx, f.eval.ID)
	if gotEval.Status != domain.EvaluationStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", gotEval.Status)
	}
	gotChallenge, _ := f.challenges.GetByID(ctx, challenge.ID)
	if gotChallenge.Status != domain.ChallengeStatusFailed {
		t.Fatalf("expected failed, got %s", gotChallenge.Status)
	}
	gotIntent, _ := f.intents.GetByID(ctx, f.intent.ID)
	if gotIntent.Status != domain.IntentStatusSettled {
		t.Fatalf("expected intent settled, got %s", gotIntent.Status)
	}

	// Solver started at 10M, escrowed 1.5M, then won the 3.1M pool.
	solverAcct, _ := f.accounts.GetByID(ctx, f.solverID)
	if solverAcct.Balance != 11_600_000 {
		t.Fatalf("expected solver balance 11,600,000, got %d", solverAcct.Balance)
	}

	solver, _ := f.solvers.GetByID(ctx, f.solverID)
	if solver.Metrics.ChallengesReceived != 1 || solver.Metrics.ChallengesDefended != 1 {
		t.Fatalf("expected defended challenge recorded, got %d/%d",
			solver.Metrics.ChallengesDefended, solver.Metrics.ChallengesReceived)
	}
	if solver.ReputationScore != 1.0 {
		t.Fatalf("expected reputation 1.0, got %v", solver.ReputationScore)
	}
}

func TestDisputeService_Settle_ChallengerWins(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	challenge, err := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), 1_600_000)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	if err := f.svc.Settle(ctx, f.eval.ID, challenge.ID, domain.WinnerChallenger); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	gotEval, _ := f.evals.GetByID(ctx, f.eval.ID)
	if gotEval.Status != domain.EvaluationStatusRefuted {
		t.Fatalf("expected refuted, got %s", gotEval.Status)
	}
	gotChallenge, _ := f.challenges.GetByID(ctx, challenge.ID)
	if gotChallenge.Status != domain.ChallengeStatusSuccessful {
		t.Fatalf("expected successful, got %s", gotChallenge.Status)
	}

	// Pool conservation: 1,500,000 + 1,600,000 = 3,100,000 to the
	// challenger, whose balance nets out to 10M - 1.6M + 3.1M.
	challengerAcct, _ := f.accounts.GetByID(ctx, f.challengerID)
	if challengerAcct.Balance != 11_500_000 {
		t.Fatalf("expected challenger balance 11,500,000, got %d", challengerAcct.Balance)
	}
	solverAcct, _ := f.accounts.GetByID(ctx, f.solverID)
	if solverAcct.Balance != 8_500_000 {
		t.Fatalf("expected solver balance 8,500,000, got %d", solverAcct.Balance)
	}

	solver, _ := f.solvers.GetByID(ctx, f.solverID)
	if solver.Metrics.StakesLost != 1_500_000 {
		t.Fatalf("expected stake loss recorded, got %d", solver.Metrics.StakesLost)
	}
	if solver.ReputationScore != 0.0 {
		t.Fatalf("expected reputation 0.0 after 0/1, got %v", solver.ReputationScore)
	}
	if solver.Metrics.ChallengesReceived != 1 || solver.Metrics.ChallengesDefended != 0 {
		t.Fatalf("expected lost challenge recorded, got %d/%d",
			solver.Metrics.ChallengesDefended, solver.Metrics.ChallengesReceived)
	}
}

func TestDisputeService_Settle_Tie(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	challenge, err := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), 1_600_000)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	if err := f.svc.Settle(ctx, f.eval.ID, challenge.ID, domain.WinnerTie); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Both sides refunded their own stakes.
	solverAcct, _ := f.accounts.GetByID(ctx, f.solverID)
	if solverAcct.Balance != 10_000_000 {
		t.Fatalf("expected solver refunded, got %d", solverAcct.Balance)
	}
	challengerAcct, _ := f.accounts.GetByID(ctx, f.challengerID)
	if challengerAcct.Balance != 10_000_000 {
		t.Fatalf("expected challenger refunded, got %d", challengerAcct.Balance)
	}

	gotEval, _ := f.evals.GetByID(ctx, f.eval.ID)
	if gotEval.Status != domain.EvaluationStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", gotEval.Status)
	}
	gotChallenge, _ := f.challenges.GetByID(ctx, challenge.ID)
	if gotChallenge.Status != domain.ChallengeStatusFailed {
		t.Fatalf("expected failed, got %s", gotChallenge.Status)
	}

	// A tie does not count as a resolution.
	solver, _ := f.solvers.GetByID(ctx, f.solverID)
	if solver.TotalEvaluations != 0 {
		t.Fatalf("expected no resolution recorded, got %d", solver.TotalEvaluations)
	}
}

func TestDisputeService_Settle_NotChallenged(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	challenge := &domain.Challenge{EvaluationID: f.eval.ID, Challenger: f.challengerID,
		Stake: 1_600_000, Status: domain.ChallengeStatusSubmitted}
	_ = f.challenges.Create(ctx, challenge)

	err := f.svc.Settle(ctx, f.eval.ID, challenge.ID, domain.WinnerEvaluator)
	if !errors.Is(err, ErrEvaluationNotChallenged) {
		t.Fatalf("expected ErrEvaluationNotChallenged, got %v", err)
	}
}

func TestDisputeService_Settle_ChallengeMismatch(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	challenge := &domain.Challenge{EvaluationID: f.eval.ID + 100, Challenger: f.challengerID,
		Stake: 1_600_000, Status: domain.ChallengeStatusSubmitted}
	_ = f.challenges.Create(ctx, challenge)

	err := f.svc.Settle(ctx, f.eval.ID, challenge.ID, domain.WinnerEvaluator)
	if !errors.Is(err, ErrChallengeMismatch) {
		t.Fatalf("expected ErrChallengeMismatch, got %v", err)
	}
}

func TestDisputeService_Settle_DoubleSettle(t *testing.T) {
	f := setupDisputeTest(t)
	ctx := context.Background()

	challenge, _ := f.svc.SubmitChallenge(ctx, f.eval.ID, f.challengerID, testSources(), 1_600_000)
	if err := f.svc.Settle(ctx, f.eval.ID, challenge.ID, domain.WinnerEvaluator); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	err := f.svc.Settle(ctx, f.eval.ID, challenge.ID, domain.WinnerEvaluator)
	if !errors.Is(err, ErrEvaluationNotChallenged) {
		t.Fatalf("expected ErrEvaluationNotChallenged, got %v", err)
	}
}
