package funding

import (
	"context"
	"errors"
	"time"

	"plura/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Decimal credit amounts
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/clause"           // For ON CONFLICT clauses
)

// AllocationBook owns the per-(proposal, user) allocation rows and derives
// the quadratic score for a proposal.
type AllocationBook struct {
	db *gorm.DB
}

// NewAllocationBook returns an AllocationBook backed by db
func NewAllocationBook(db *gorm.DB) *AllocationBook {
	return &AllocationBook{db: db}
}

// FindAllocation returns the allocation for the pair, or nil when absent
func (b *AllocationBook) FindAllocation(ctx context.Context, proposalID uint, userID string) (*domain.ProposalCredit, error) {
	var pc domain.ProposalCredit
	err := b.db.WithContext(ctx).
		Where("proposal_id = ? AND user_id = ?", proposalID, userID).
		First(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// ByProposal returns all allocations for a proposal, newest first
func (b *AllocationBook) ByProposal(ctx context.Context, proposalID uint) ([]domain.ProposalCredit, error) {
	var credits []domain.ProposalCredit
	err := b.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at desc").
		Find(&credits).Error
	if err != nil {
		return nil, err
	}
	return credits, nil
}

// ByUser returns a user's allocations across proposals, newest first
func (b *AllocationBook) ByUser(ctx context.Context, userID string, limit, offset int) ([]domain.ProposalCredit, error) {
	var credits []domain.ProposalCredit
	err := b.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&credits).Error
	if err != nil {
		return nil, err
	}
	return credits, nil
}

// UpsertAllocationTx adds delta to the pair's cumulative allocation, creating
// the row when absent. A single INSERT ... ON DUPLICATE KEY UPDATE against
// the (proposal_id, user_id) unique index, so concurrent allocations by the
// same user accumulate instead of overwriting each other, and a second row
// for the pair can never exist.
func (b *AllocationBook) UpsertAllocationTx(tx *gorm.DB, proposalID uint, userID string, delta decimal.Decimal) (domain.ProposalCredit, error) {
	pc := domain.ProposalCredit{
		ProposalID: proposalID,
		UserID:     userID,
		Amount:     delta,
		CreatedAt:  time.Now(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "proposal_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount":     gorm.Expr("amount + VALUES(amount)"),
			"created_at": time.Now(),
		}),
	}).Create(&pc).Error
	if err != nil {
		return domain.ProposalCredit{}, err
	}
	// Reload to return the cumulative amount, not just this delta
	err = tx.Where("proposal_id = ? AND user_id = ?", proposalID, userID).First(&pc).Error
	if err != nil {
		return domain.ProposalCredit{}, err
	}
	return pc, nil
}

// SquareRootContributions returns userID -> sqrt(max(0, amount)) for the proposal
func (b *AllocationBook) SquareRootContributions(ctx context.Context, proposalID uint) (map[string]float64, error) {
	credits, err := b.ByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return SquareRoots(credits), nil
}

// QuadraticScore returns the quadratic funding score for the proposal,
// zero when nothing has been allocated
func (b *AllocationBook) QuadraticScore(ctx context.Context, proposalID uint) (float64, error) {
	credits, err := b.ByProposal(ctx, proposalID)
	if err != nil {
		return 0, err
	}
	return Score(credits), nil
}

// MatchingBonus returns the non-negative excess of the quadratic score over
// the raw allocated total for the proposal
func (b *AllocationBook) MatchingBonus(ctx context.Context, proposalID uint) (float64, error) {
	credits, err := b.ByProposal(ctx, proposalID)
	if err != nil {
		return 0, err
	}
	return Bonus(Score(credits), RawTotal(credits)), nil
}
