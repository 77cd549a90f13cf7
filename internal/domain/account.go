package domain

import "time"

type AccountRole string

const (
	RoleUser    AccountRole = "user"
	RoleArbiter AccountRole = "arbiter"
)

// Account is a caller identity plus its ledger record. The balance is the
// only place value lives outside of escrowed stakes; every stake is debited
// from here at admission and every payout is credited back here.
type Account struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	APIKeyHash     string      `json:"-"`
	Role           AccountRole `json:"role"`
	Balance        int64       `json:"balance"`
	StakeCommitted int64       `json:"stake_committed"`
	CreatedAt      time.Time   `json:"created_at"`
}
