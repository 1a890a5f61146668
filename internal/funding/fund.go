package funding

import (
	"context"
	"errors"
	"time"

	"plura/internal/domain" // Importing domain models
	"plura/internal/params" // Parameter accessor

	"github.com/shopspring/decimal" // Decimal credit amounts
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/clause"           // For ON CONFLICT clauses
)

// matchingFundID pins the singleton row
const matchingFundID = 1

// MatchingFundService manages the singleton pooled subsidy row.
// Top-ups are a separate administrative operation, never part of the
// per-proposal allocation transaction.
type MatchingFundService struct {
	db     *gorm.DB
	params params.Accessor
}

// NewMatchingFundService returns the service backed by db
func NewMatchingFundService(db *gorm.DB, p params.Accessor) *MatchingFundService {
	return &MatchingFundService{db: db, params: p}
}

// Get returns the matching fund, creating it with the configured initial
// amount on first access
func (s *MatchingFundService) Get(ctx context.Context) (domain.MatchingFund, error) {
	var f domain.MatchingFund
	err := s.db.WithContext(ctx).First(&f, matchingFundID).Error
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.MatchingFund{}, err
	}
	initial := decimal.NewFromFloat(s.params.GetFloat(domain.ParamMatchingFundInitialAmount, 1000))
	f = domain.MatchingFund{ID: matchingFundID, TotalAmount: initial, LastDistributionDate: time.Now()}
	// The fixed primary key turns a racing create into a no-op, so a second
	// row can never exist
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&f).Error; err != nil {
		return domain.MatchingFund{}, err
	}
	// Reread so a lost race resolves to the winning row's values
	err = s.db.WithContext(ctx).First(&f, matchingFundID).Error
	return f, err
}

// AddFunds adds amount (any sign) to the pooled total and returns the new
// total. The relative UPDATE makes concurrent top-ups additive.
func (s *MatchingFundService) AddFunds(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	f, err := s.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	res := s.db.WithContext(ctx).Model(&domain.MatchingFund{}).
		Where("id = ?", f.ID).
		Update("total_amount", gorm.Expr("total_amount + ?", amount))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if err := s.db.WithContext(ctx).First(&f, f.ID).Error; err != nil {
		return decimal.Zero, err
	}
	return f.TotalAmount, nil
}
