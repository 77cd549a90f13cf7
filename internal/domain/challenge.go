package domain

import (
	"fmt"
	"time"
)

type ChallengeStatus string

const (
	ChallengeStatusSubmitted  ChallengeStatus = "submitted"
	ChallengeStatusSuccessful ChallengeStatus = "successful"
	ChallengeStatusFailed     ChallengeStatus = "failed"
)

func (s ChallengeStatus) Terminal() bool {
	return s == ChallengeStatusSuccessful || s == ChallengeStatusFailed
}

// Challenge is a staked counter-claim against an evaluation. Its stake must
// strictly exceed the evaluation's stake, and it may only be opened while
// the evaluation is Submitted and the challenge window is still open.
type Challenge struct {
	ID             int64           `json:"id"`
	EvaluationID   int64           `json:"evaluation_id"`
	Challenger     int64           `json:"challenger"`
	CounterSources []Source        `json:"counter_sources"`
	Stake          int64           `json:"stake"`
	Status         ChallengeStatus `json:"status"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// Winner is the closed three-way dispute outcome. Free-form input is parsed
// once at the boundary; everything downstream matches exhaustively.
type Winner int

const (
	WinnerEvaluator Winner = iota
	WinnerChallenger
	WinnerTie
)

func ParseWinner(s string) (Winner, error) {
	switch s {
	case "evaluator":
		return WinnerEvaluator, nil
	case "challenger":
		return WinnerChallenger, nil
	case "tie":
		return WinnerTie, nil
	}
	return 0, fmt.Errorf("invalid winner %q", s)
}

func (w Winner) String() string {
	switch w {
	case WinnerEvaluator:
		return "evaluator"
	case WinnerChallenger:
		return "challenger"
	case WinnerTie:
		return "tie"
	}
	return "unknown"
}
