package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Proposal statuses
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// ValidStatus reports whether status is a known proposal status
func ValidStatus(status string) bool {
	switch status {
	case StatusOpen, StatusClosed, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Proposal Model
type Proposal struct {
	ID               uint            `gorm:"primaryKey" json:"id"`                                     // Primary key
	Title            string          `gorm:"not null" json:"title"`                                    // Proposal title
	Description      string          `gorm:"type:text" json:"description"`                             // Proposal description
	DocumentID       string          `json:"document_id"`                                              // External document reference
	UserID           string          `gorm:"index;not null" json:"user_id"`                            // Creator
	Status           string          `gorm:"default:open" json:"status"`                               // One of the Status* constants
	CreditsAllocated decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"credits_allocated"`     // Raw sum of all allocations
	Deadline         time.Time       `json:"deadline"`                                                 // Funding deadline
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`                         // Timestamp of creation
	PriorityScore    float64         `gorm:"-" json:"priority_score"`                                  // Quadratic score, derived on read, never stored
}

// ProposalCredit Model is the cumulative allocation of one user to one proposal.
// The (proposal_id, user_id) pair is unique; repeated allocations accumulate.
type ProposalCredit struct {
	ID         uint            `gorm:"primaryKey" json:"id"`                                            // Primary key
	ProposalID uint            `gorm:"not null;uniqueIndex:idx_proposal_user" json:"proposal_id"`       // Target proposal
	UserID     string          `gorm:"not null;uniqueIndex:idx_proposal_user;size:191" json:"user_id"`  // Contributing user
	Amount     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`                       // Cumulative allocated credits
	CreatedAt  time.Time       `json:"created_at"`                                                      // Refreshed on every change
}
