package domain

import "time"

// Source is an evidence reference attached to an evaluation or challenge.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

const (
	MaxSources        = 10
	MaxURLLength      = 2048
	MaxQuestionLength = 1024
)

// ValidateSources checks the shared admission rules for evidence lists:
// non-empty, bounded count, each title non-empty, each URL bounded.
func ValidateSources(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	if len(sources) > MaxSources {
		return ErrTooManySources
	}
	for _, s := range sources {
		if s.Title == "" {
			return ErrSourceTitleEmpty
		}
		if len(s.URL) > MaxURLLength {
			return ErrSourceURLTooLong
		}
	}
	return nil
}

type EvaluationStatus string

const (
	EvaluationStatusSubmitted  EvaluationStatus = "submitted"
	EvaluationStatusChallenged EvaluationStatus = "challenged"
	EvaluationStatusConfirmed  EvaluationStatus = "confirmed"
	EvaluationStatusRefuted    EvaluationStatus = "refuted"
)

func (s EvaluationStatus) Terminal() bool {
	return s == EvaluationStatusConfirmed || s == EvaluationStatusRefuted
}

// Evaluation is a solver's staked answer to an intent, with evidence.
// At most one evaluation attaches to an intent; the intent's evaluation
// reference enforces that under a row lock.
type Evaluation struct {
	ID              int64            `json:"id"`
	IntentID        int64            `json:"intent_id"`
	Solver          int64            `json:"solver"`
	Question        string           `json:"question"`
	Answer          bool             `json:"answer"`
	Confidence      float64          `json:"confidence"`
	Sources         []Source         `json:"sources"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	Stake           int64            `json:"stake"`
	Status          EvaluationStatus `json:"status"`
	SubmittedAt     time.Time        `json:"submitted_at"`
}
