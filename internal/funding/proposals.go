package funding

import (
	"context"
	"errors"

	"plura/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Decimal credit amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// ProposalState is the narrow view the engine needs before allocating
type ProposalState struct {
	IsOpen              bool
	RawCreditsAllocated decimal.Decimal
}

// ProposalRepo stores proposals and their running allocation totals
type ProposalRepo struct {
	db *gorm.DB
}

// NewProposalRepo returns a ProposalRepo backed by db
func NewProposalRepo(db *gorm.DB) *ProposalRepo {
	return &ProposalRepo{db: db}
}

// Create persists a new proposal
func (r *ProposalRepo) Create(ctx context.Context, p *domain.Proposal) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Find returns the proposal by ID, or ErrNotFound
func (r *ProposalRepo) Find(ctx context.Context, id uint) (domain.Proposal, error) {
	var p domain.Proposal
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Proposal{}, ErrNotFound
	}
	if err != nil {
		return domain.Proposal{}, err
	}
	return p, nil
}

// FindAll returns proposals ordered by allocated credits, most funded first.
// onlyOpen restricts to proposals still accepting allocations.
func (r *ProposalRepo) FindAll(ctx context.Context, onlyOpen bool, limit, offset int) ([]domain.Proposal, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Proposal{})
	if onlyOpen {
		query = query.Where("status = ?", domain.StatusOpen)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var ps []domain.Proposal
	if err := query.Order("credits_allocated desc").Offset(offset).Limit(limit).Find(&ps).Error; err != nil {
		return nil, 0, err
	}
	return ps, total, nil
}

// FindByUser returns proposals created by the user, newest first
func (r *ProposalRepo) FindByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Proposal, error) {
	var ps []domain.Proposal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&ps).Error
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// Update persists changes to an existing proposal
func (r *ProposalRepo) Update(ctx context.Context, p *domain.Proposal) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// GetState returns the open/closed state and raw allocated total
func (r *ProposalRepo) GetState(ctx context.Context, id uint) (ProposalState, error) {
	p, err := r.Find(ctx, id)
	if err != nil {
		return ProposalState{}, err
	}
	return ProposalState{
		IsOpen:              p.Status == domain.StatusOpen,
		RawCreditsAllocated: p.CreditsAllocated,
	}, nil
}

// IncrementRawTx adds delta to the proposal's running allocation total.
// The relative UPDATE avoids lost updates under concurrent allocations.
func (r *ProposalRepo) IncrementRawTx(tx *gorm.DB, id uint, delta decimal.Decimal) error {
	res := tx.Model(&domain.Proposal{}).
		Where("id = ?", id).
		Update("credits_allocated", gorm.Expr("credits_allocated + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
