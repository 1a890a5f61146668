package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds. Every balance-affecting event carries one of these.
const (
	KindInitialAllocation    = "initial_allocation"
	KindProposalFund         = "proposal_fund"
	KindImplementationReward = "implementation_reward"
	KindVoteCost             = "vote_cost"
	KindPredictionCost       = "prediction_cost"
	KindPredictionReward     = "prediction_reward"
	KindAdminAdjustment      = "admin_adjustment"
)

// ValidKind reports whether kind is a known transaction kind
func ValidKind(kind string) bool {
	switch kind {
	case KindInitialAllocation, KindProposalFund, KindImplementationReward,
		KindVoteCost, KindPredictionCost, KindPredictionReward, KindAdminAdjustment:
		return true
	}
	return false
}

// UserCredit Model holds the denormalized spendable balance for one user.
// Mutated only through the ledger, always together with a CreditTransaction.
type UserCredit struct {
	ID          uint            `gorm:"primaryKey" json:"id"`                      // Primary key
	UserID      string          `gorm:"uniqueIndex;not null" json:"user_id"`       // One balance row per user
	Amount      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"` // Spendable credit balance
	LastUpdated time.Time       `gorm:"autoUpdateTime" json:"last_updated"`        // Timestamp of last mutation
}

// CreditTransaction Model is the append-only ledger entry.
// Negative amount = debit, positive = credit. Rows are never updated or deleted.
type CreditTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`                      // Monotonic, immutable ID
	UserID          string          `gorm:"index;not null" json:"user_id"`             // Account the amount applies to
	Amount          decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"` // Signed amount
	Kind            string          `gorm:"not null" json:"kind"`                      // One of the Kind* constants
	RelatedEntityID *uint           `json:"related_entity_id,omitempty"`               // Optional proposal/implementation reference
	CreatedAt       int64           `gorm:"autoCreateTime:milli" json:"created_at"`    // Timestamp of creation in milliseconds
}
