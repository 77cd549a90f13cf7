package domain

import "time"

// Solver is a registered participant eligible to submit evaluations.
// The registration bond is tracked in TotalStake, separate from the
// per-evaluation stakes escrowed on submission.
type Solver struct {
	ID                    int64   `json:"id"` // account id
	ReputationScore       float64 `json:"reputation_score"`
	TotalEvaluations      int64   `json:"total_evaluations"`
	SuccessfulEvaluations int64   `json:"successful_evaluations"`
	TotalStake            int64   `json:"total_stake"`
	IsActive              bool    `json:"is_active"`

	Metrics PerformanceMetrics `json:"metrics"`

	RegisteredAt time.Time `json:"registered_at"`
}

// PerformanceMetrics carries the running averages and counters behind the
// weighted performance score. Averages advance with every resolution that
// carries evaluation data.
type PerformanceMetrics struct {
	AvgExecutionTimeMs float64    `json:"avg_execution_time_ms"`
	AvgConfidence      float64    `json:"avg_confidence"`
	AvgSourceCount     float64    `json:"avg_source_count"`
	ChallengesReceived int64      `json:"challenges_received"`
	ChallengesDefended int64      `json:"challenges_defended"`
	RewardsEarned      int64      `json:"rewards_earned"`
	StakesLost         int64      `json:"stakes_lost"`
	LastActiveAt       *time.Time `json:"last_active_at,omitempty"`
	Specializations    []string   `json:"specializations,omitempty"`
	UptimeScore        float64    `json:"uptime_score"`
}

// Resolution is one resolved outcome applied to a solver record. Fields
// other than Success are zero when the resolution carries no evaluation
// data (e.g. the challenger side of a settlement).
type Resolution struct {
	Success bool

	// Evaluation data; HasEvaluation gates the running-average update.
	HasEvaluation   bool
	ExecutionTimeMs int64
	Confidence      float64
	SourceCount     int

	Reward            int64
	StakeLost         int64
	ChallengeReceived bool
	ChallengeDefended bool
	ResolvedAt        time.Time
}

// Apply folds a resolution into the solver record: reputation is always
// successful/total, and running averages use the incremental-mean update
// with the post-increment total as n.
func (s *Solver) Apply(r Resolution) {
	s.TotalEvaluations++
	if r.Success {
		s.SuccessfulEvaluations++
	}
	s.ReputationScore = float64(s.SuccessfulEvaluations) / float64(s.TotalEvaluations)

	if r.HasEvaluation {
		n := float64(s.TotalEvaluations)
		s.Metrics.AvgExecutionTimeMs = incrementalMean(s.Metrics.AvgExecutionTimeMs, float64(r.ExecutionTimeMs), n)
		s.Metrics.AvgConfidence = incrementalMean(s.Metrics.AvgConfidence, r.Confidence, n)
		s.Metrics.AvgSourceCount = incrementalMean(s.Metrics.AvgSourceCount, float64(r.SourceCount), n)
	}

	s.Metrics.RewardsEarned += r.Reward
	s.Metrics.StakesLost += r.StakeLost
	if r.ChallengeReceived {
		s.Metrics.ChallengesReceived++
	}
	if r.ChallengeDefended {
		s.Metrics.ChallengesDefended++
	}
	t := r.ResolvedAt
	s.Metrics.LastActiveAt = &t
}

func incrementalMean(old, x, n float64) float64 {
	if n <= 1 {
		return x
	}
	return (old*(n-1) + x) / n
}
