package domain

import "time"

type IntentType string

const (
	IntentTypeCredibilityEvaluation IntentType = "credibility_evaluation"
	IntentTypeRefutationChallenge   IntentType = "refutation_challenge"
	IntentTypeOracleSettlement      IntentType = "oracle_settlement"
)

type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "pending"
	IntentStatusInProgress IntentStatus = "in_progress"
	IntentStatusCompleted  IntentStatus = "completed"
	IntentStatusDisputed   IntentStatus = "disputed"
	IntentStatusSettled    IntentStatus = "settled"
	IntentStatusExpired    IntentStatus = "expired"
)

// Terminal reports whether no further transition can leave this status.
// Disputed is transient: settlement always follows.
func (s IntentStatus) Terminal() bool {
	switch s {
	case IntentStatusCompleted, IntentStatusSettled, IntentStatusExpired:
		return true
	}
	return false
}

// Intent is a staked request for a boolean judgment on a question.
// Reward mirrors stake at creation. Status only moves forward:
// Pending -> {InProgress, Expired}, InProgress -> {Completed, Disputed},
// Disputed -> Settled.
type Intent struct {
	ID           int64        `json:"id"`
	Type         IntentType   `json:"type"`
	Initiator    int64        `json:"initiator"`
	Question     string       `json:"question"`
	EvaluationID *int64       `json:"evaluation_id,omitempty"`
	Stake        int64        `json:"stake"`
	Reward       int64        `json:"reward"`
	Deadline     time.Time    `json:"deadline"`
	Status       IntentStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}
