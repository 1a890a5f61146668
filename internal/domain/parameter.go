package domain

import "time"

// Parameter names known to the system
const (
	ParamInitialCreditAmount       = "initial_credit_amount"
	ParamProposalFundingPeriodDays = "proposal_funding_period_days"
	ParamMatchingFundPercentage    = "matching_fund_percentage"
	ParamMatchingFundInitialAmount = "matching_fund_initial_amount"
)

// Parameter Model is a named configuration value stored as a string
type Parameter struct {
	ID          uint      `gorm:"primaryKey" json:"id"`             // Primary key
	Name        string    `gorm:"uniqueIndex;not null" json:"name"` // Parameter name
	Value       string    `gorm:"not null" json:"value"`            // Parameter value, parsed on read
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`
}
