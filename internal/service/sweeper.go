package service

import (
	"context"
	"sync"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = 5 * time.Minute
	sweepBatchSize       = 100
	defaultPruneLimit    = 1000
)

// SweeperService expires overdue pending intents (refunding their stakes)
// and prunes terminal records past the retention window. Both operations
// are bounded per pass; callers re-invoke until nothing remains.
type SweeperService struct {
	intents    domain.IntentStore
	evals      domain.EvaluationStore
	challenges domain.ChallengeStore
	accounts   domain.AccountStore
	clock      domain.Clock
	tx         domain.TxRunner
	logger     *zap.Logger

	interval  time.Duration
	retention time.Duration // 0 disables background pruning
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewSweeperService(is domain.IntentStore, es domain.EvaluationStore, cs domain.ChallengeStore,
	as domain.AccountStore, clock domain.Clock, tx domain.TxRunner, logger *zap.Logger) *SweeperService {
	return &SweeperService{
		intents:    is,
		evals:      es,
		challenges: cs,
		accounts:   as,
		clock:      clock,
		tx:         tx,
		logger:     logger,
		interval:   defaultSweepInterval,
		stopCh:     make(chan struct{}),
	}
}

func (s *SweeperService) SetInterval(d time.Duration) {
	s.interval = d
}

// SetRetention enables background pruning of terminal records older than d.
func (s *SweeperService) SetRetention(d time.Duration) {
	s.retention = d
}

// Start runs the sweeper on a periodic schedule in a background goroutine.
func (s *SweeperService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("sweeper started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("sweeper stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the sweeper.
func (s *SweeperService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *SweeperService) run(ctx context.Context) {
	expired, err := s.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("expired overdue intents", zap.Int("count", expired))
	}

	if s.retention <= 0 {
		return
	}
	pruned, err := s.Prune(ctx, s.retention, defaultPruneLimit)
	if err != nil {
		s.logger.Error("prune failed", zap.Error(err))
	} else if pruned > 0 {
		s.logger.Info("pruned terminal records", zap.Int64("count", pruned))
	}
}

// SweepExpired moves overdue pending intents to Expired and refunds the
// full stake to each initiator. Idempotent: an intent already expired is
// never revisited, so a second pass with no new work returns 0.
func (s *SweeperService) SweepExpired(ctx context.Context) (int, error) {
	total := 0
	for {
		batch := 0
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			intents, err := s.intents.ListExpiredPending(ctx, s.clock.Now(), sweepBatchSize)
			if err != nil {
				return err
			}
			for i := range intents {
				intent := &intents[i]
				intent.Status = domain.IntentStatusExpired
				if err := s.intents.Update(ctx, intent); err != nil {
					return err
				}
				if err := s.accounts.Credit(ctx, intent.Initiator, intent.Stake); err != nil {
					return err
				}
				s.logger.Debug("intent expired",
					zap.Int64("intent_id", intent.ID),
					zap.Int64("refund", intent.Stake))
			}
			batch = len(intents)
			return nil
		})
		if err != nil {
			return total, err
		}
		total += batch
		if batch < sweepBatchSize {
			return total, nil
		}
	}
}

// Prune garbage-collects terminal records older than retention, children
// first so no surviving record references a deleted one. maxDeletions caps
// the total work per call; <=0 falls back to the default cap.
func (s *SweeperService) Prune(ctx context.Context, retention time.Duration, maxDeletions int) (int64, error) {
	if maxDeletions <= 0 {
		maxDeletions = defaultPruneLimit
	}
	cutoff := s.clock.Now().Add(-retention)

	var total int64
	budget := maxDeletions

	n, err := s.challenges.DeleteTerminalBefore(ctx, cutoff, budget)
	if err != nil {
		return total, err
	}
	total += n
	budget -= int(n)
	if budget <= 0 {
		return total, nil
	}

	n, err = s.evals.DeleteTerminalBefore(ctx, cutoff, budget)
	if err != nil {
		return total, err
	}
	total += n
	budget -= int(n)
	if budget <= 0 {
		return total, nil
	}

	n, err = s.intents.DeleteTerminalBefore(ctx, cutoff, budget)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}
