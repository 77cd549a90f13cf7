package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type reputationFixture struct {
	svc      *ReputationService
	accounts *mockAccountStore
	solvers  *mockSolverStore
	clock    *mockClock
}

func setupReputationTest() *reputationFixture {
	accounts := newMockAccountStore()
	solvers := newMockSolverStore()
	clock := &mockClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewReputationService(solvers, accounts, clock, mockTx{}, testMinStake, zap.NewNop())
	return &reputationFixture{svc: svc, accounts: accounts, solvers: solvers, clock: clock}
}

func (f *reputationFixture) fundedAccount(t *testing.T, balance int64) int64 {
	t.Helper()
	a := &domain.Account{Name: "test", Role: domain.RoleUser, Balance: balance,
		APIKeyHash: fmt.Sprintf("test-key-%d", f.accounts.nextID+1)}
	if err := f.accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a.ID
}

func TestReputationService_Register(t *testing.T) {
	f := setupReputationTest()
	ctx := context.Background()
	accountID := f.fundedAccount(t, 10_000_000)

	solver, err := f.svc.Register(ctx, accountID, 2_000_000, []string{"news"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if solver.ReputationScore != 1.0 {
		t.Fatalf("expected initial reputation 1.0, got %v", solver.ReputationScore)
	}
	if !solver.IsActive {
		t.Fatal("expected solver active")
	}
	if solver.Metrics.UptimeScore != 1.0 {
		t.Fatalf("expected uptime score 1.0, got %v", solver.Metrics.UptimeScore)
	}

	account, _ := f.accounts.GetByID(ctx, accountID)
	if account.Balance != 8_000_000 {
		t.Fatalf("expected registration bond escrowed, balance %d", account.Balance)
	}
}

func TestReputationService_Register_StakeTooLow(t *testing.T) {
	f := setupReputationTest()
	accountID := f.fundedAccount(t, 10_000_000)

	_, err := f.svc.Register(context.Background(), accountID, testMinStake-1, nil)
	if !errors.Is(err, ErrStakeTooLow) {
		t.Fatalf("expected ErrStakeTooLow, got %v", err)
	}
}

func TestReputationService_Register_Duplicate(t *testing.T) {
	f := setupReputationTest()
	ctx := context.Background()
	accountID := f.fundedAccount(t, 10_000_000)

	if _, err := f.svc.Register(ctx, accountID, testMinStake, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := f.svc.Register(ctx, accountID, testMinStake, nil)
	if !errors.Is(err, ErrSolverExists) {
		t.Fatalf("expected ErrSolverExists, got %v", err)
	}
}

func TestReputationService_Register_InsufficientBalance(t *testing.T) {
	f := setupReputationTest()
	accountID := f.fundedAccount(t, testMinStake-1)

	_, err := f.svc.Register(context.Background(), accountID, testMinStake, nil)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestReputationService_ApplyResolution(t *testing.T) {
	f := setupReputationTest()
	ctx := context.Background()
	accountID := f.fundedAccount(t, 10_000_000)
	_, _ = f.svc.Register(ctx, accountID, testMinStake, nil)

	// Two successes, one failure: reputation is 2/3.
	for _, success := range []bool{true, true, false} {
		err := f.svc.ApplyResolution(ctx, accountID, domain.Resolution{
			Success:    success,
			ResolvedAt: f.clock.now,
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	solver, _ := f.solvers.GetByID(ctx, accountID)
	assert.InDelta(t, 2.0/3.0, solver.ReputationScore, 1e-9)
	assert.Equal(t, int64(3), solver.TotalEvaluations)
	if solver.Metrics.LastActiveAt == nil {
		t.Fatal("expected last active to be set")
	}
}

func TestReputationService_ApplyResolution_RunningAverages(t *testing.T) {
	f := setupReputationTest()
	ctx := context.Background()
	accountID := f.fundedAccount(t, 10_000_000)
	_, _ = f.svc.Register(ctx, accountID, testMinStake, nil)

	_ = f.svc.ApplyResolution(ctx, accountID, domain.Resolution{
		Success: true, HasEvaluation: true,
		ExecutionTimeMs: 20_000, Confidence: 0.8, SourceCount: 2,
		ResolvedAt: f.clock.now,
	})
	_ = f.svc.ApplyResolution(ctx, accountID, domain.Resolution{
		Success: true, HasEvaluation: true,
		ExecutionTimeMs: 40_000, Confidence: 0.6, SourceCount: 4,
		ResolvedAt: f.clock.now,
	})

	solver, _ := f.solvers.GetByID(ctx, accountID)
	assert.InDelta(t, 30_000, solver.Metrics.AvgExecutionTimeMs, 1e-9)
	assert.InDelta(t, 0.7, solver.Metrics.AvgConfidence, 1e-9)
	assert.InDelta(t, 3, solver.Metrics.AvgSourceCount, 1e-9)
}

func TestReputationService_ApplyResolution_UnregisteredSkipped(t *testing.T) {
	f := setupReputationTest()

	// A pure challenger never registered; the update is a silent no-op.
	err := f.svc.ApplyResolution(context.Background(), 999, domain.Resolution{Success: true})
	if err != nil {
		t.Fatalf("expected nil for unregistered account, got %v", err)
	}
}

func TestPerformanceScore_Unrated(t *testing.T) {
	// New solver: reputation 1.0, log(1)=0 activity, unchallenged flat
	// bonus, no speed data.
	s := &domain.Solver{ReputationScore: 1.0}
	assert.InDelta(t, 1.1, PerformanceScore(s), 1e-9)
}

func TestPerformanceScore_Components(t *testing.T) {
	s := &domain.Solver{
		ReputationScore:  0.8,
		TotalEvaluations: 10,
		Metrics: domain.PerformanceMetrics{
			ChallengesReceived: 4,
			ChallengesDefended: 3,
			AvgExecutionTimeMs: 60_000,
		},
	}
	// 0.8 + ln(10)*0.1 + 0.75*0.2 + min(300000/60000, 0.3)
	want := 0.8 + 0.2302585092994046 + 0.15 + 0.3
	assert.InDelta(t, want, PerformanceScore(s), 1e-9)
}

func TestPerformanceScore_SpeedCap(t *testing.T) {
	slow := &domain.Solver{ReputationScore: 1.0, Metrics: domain.PerformanceMetrics{AvgExecutionTimeMs: 3_000_000}}
	fast := &domain.Solver{ReputationScore: 1.0, Metrics: domain.PerformanceMetrics{AvgExecutionTimeMs: 1}}

	assert.InDelta(t, 1.1+0.1, PerformanceScore(slow), 1e-9)
	assert.InDelta(t, 1.1+0.3, PerformanceScore(fast), 1e-9)
}

func TestReputationService_Distribute(t *testing.T) {
	f := setupReputationTest()
	ctx := context.Background()

	// Two rated solvers with equal scores split the pool evenly.
	a := f.fundedAccount(t, 10_000_000)
	b := f.fundedAccount(t, 10_000_000)
	for _, id := range []int64{a, b} {
		_, _ = f.svc.Register(ctx, id, testMinStake, nil)
		_ = f.svc.ApplyResolution(ctx, id, domain.Resolution{Success: true, ResolvedAt: f.clock.now})
	}

	if err := f.svc.Distribute(ctx, 1_000_000); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, id := range []int64{a, b} {
		account, _ := f.accounts.GetByID(ctx, id)
		// 10M - 1M bond + 500k share.
		if account.Balance != 9_500_000 {
			t.Fatalf("solver %d: expected balance 9,500,000, got %d", id, account.Balance)
		}
		solver, _ := f.solvers.GetByID(ctx, id)
		if solver.Metrics.RewardsEarned != 500_000 {
			t.Fatalf("solver %d: expected rewards recorded, got %d", id, solver.Metrics.RewardsEarned)
		}
	}
}

func TestReputationService_Distribute_NoEligible(t *testing.T) {
	f := setupReputationTest()

	// Nobody rated: nothing moves, no error.
	if err := f.svc.Distribute(context.Background(), 1_000_000); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestReputationService_TopPerformers(t *testing.T) {
	f := setupReputationTest()
	ctx := context.Background()

	a := f.fundedAccount(t, 10_000_000)
	b := f.fundedAccount(t, 10_000_000)
	for _, id := range []int64{a, b} {
		_, _ = f.svc.Register(ctx, id, testMinStake, nil)
	}
	// a: 1/1, b: 0/1.
	_ = f.svc.ApplyResolution(ctx, a, domain.Resolution{Success: true, ResolvedAt: f.clock.now})
	_ = f.svc.ApplyResolution(ctx, b, domain.Resolution{Success: false, ResolvedAt: f.clock.now})

	ranked, err := f.svc.TopPerformers(ctx, 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked solvers, got %d", len(ranked))
	}
	if ranked[0].Solver.ID != a {
		t.Fatalf("expected solver %d ranked first, got %d", a, ranked[0].Solver.ID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatal("expected descending scores")
	}

	limited, _ := f.svc.TopPerformers(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit applied, got %d", len(limited))
	}
}

// stubCache counts leaderboard cache traffic.
type stubCache struct {
	entries     map[int][]RankedSolver
	hits        int
	invalidated int
}

func (c *stubCache) Get(ctx context.Context, limit int) ([]RankedSolver, bool) {
	ranked, ok := c.entries[limit]
	if ok {
		c.hits++
	}
	return ranked, ok
}

func (c *stubCache) Set(ctx context.Context, limit int, ranked []RankedSolver) {
	c.entries[limit] = ranked
}

func (c *stubCache) Invalidate(ctx context.Context) {
	c.entries = make(map[int][]RankedSolver)
	c.invalidated++
}

func TestReputationService_TopPerformers_Cache(t *testing.T) {
	f := setupReputationTest()
	ctx := context.Background()
	cache := &stubCache{entries: make(map[int][]RankedSolver)}
	f.svc.SetCache(cache)

	a := f.fundedAccount(t, 10_000_000)
	_, _ = f.svc.Register(ctx, a, testMinStake, nil)
	_ = f.svc.ApplyResolution(ctx, a, domain.Resolution{Success: true, ResolvedAt: f.clock.now})

	if _, err := f.svc.TopPerformers(ctx, 10); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := f.svc.TopPerformers(ctx, 10); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.hits)
	}

	// A new resolution invalidates the cached ranking.
	before := cache.invalidated
	_ = f.svc.ApplyResolution(ctx, a, domain.Resolution{Success: true, ResolvedAt: f.clock.now})
	if cache.invalidated != before+1 {
		t.Fatal("expected resolution to invalidate the cache")
	}
}
