package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchingFund Model is a singleton row holding the pooled subsidy credits.
// The bonus calculation references it but never depletes it.
type MatchingFund struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`                            // Primary key
	TotalAmount          decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total_amount"` // Pooled amount, mutated by admin top-ups
	LastDistributionDate time.Time       `json:"last_distribution_date"`                          // Last external distribution
}
