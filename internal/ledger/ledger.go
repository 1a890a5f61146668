package ledger

import (
	"context"
	"errors"
	"time"

	"plura/internal/domain"  // Importing domain models
	"plura/internal/funding" // Error taxonomy
	"plura/internal/params"  // Parameter accessor

	"github.com/shopspring/decimal" // Decimal credit amounts
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/clause"           // For ON CONFLICT clauses
)

// Ledger owns per-user balance state and the append-only transaction log.
// It is the single write path for balance mutations: every mutation adjusts
// the balance and appends a transaction in one store transaction, so the
// balance always equals the sum of the user's transactions.
type Ledger struct {
	db     *gorm.DB
	params params.Accessor
}

// New returns a Ledger backed by db, reading defaults from p
func New(db *gorm.DB, p params.Accessor) *Ledger {
	return &Ledger{db: db, params: p}
}

// GetOrCreateBalance returns the user's balance row, creating it seeded with
// the initial_credit_amount parameter on first access. The seed insert and
// its initial_allocation transaction commit as one unit.
func (l *Ledger) GetOrCreateBalance(ctx context.Context, userID string) (domain.UserCredit, error) {
	if userID == "" {
		return domain.UserCredit{}, funding.ErrInvalidUser
	}
	var uc domain.UserCredit
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&uc).Error
	if err == nil {
		return uc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserCredit{}, err
	}
	// First access: seed the row and log the initial allocation
	if err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.seedBalanceTx(tx, userID)
	}); err != nil {
		return domain.UserCredit{}, err
	}
	err = l.db.WithContext(ctx).Where("user_id = ?", userID).First(&uc).Error
	return uc, err
}

// seedBalanceTx inserts the seeded balance row and its matching transaction.
// The unique user_id index turns a racing insert into a no-op, so the
// initial_allocation transaction is logged at most once per user.
func (l *Ledger) seedBalanceTx(tx *gorm.DB, userID string) error {
	initial := decimal.NewFromFloat(l.params.GetFloat(domain.ParamInitialCreditAmount, 100))
	uc := domain.UserCredit{UserID: userID, Amount: initial, LastUpdated: time.Now()}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&uc)
	if res.Error != nil {
		return res.Error
	}
	// Another request created the row first
	if res.RowsAffected == 0 {
		return nil
	}
	if initial.IsZero() {
		return nil
	}
	t := domain.CreditTransaction{
		UserID: userID,
		Amount: initial,
		Kind:   domain.KindInitialAllocation,
	}
	return tx.Create(&t).Error
}

// RecordTransaction appends a transaction and adjusts the balance by the same
// amount, in its own store transaction. Either both effects commit or neither.
func (l *Ledger) RecordTransaction(ctx context.Context, userID string, amount decimal.Decimal, kind string, relatedEntityID *uint) (domain.CreditTransaction, error) {
	var t domain.CreditTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		t, txErr = l.RecordTransactionTx(tx, userID, amount, kind, relatedEntityID)
		return txErr
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	return t, nil
}

// RecordTransactionTx is the tx-scoped variant used by the funding engine so
// the debit participates in the engine's atomic unit. The balance mutation is
// a conditional UPDATE: a debit that would drive the balance negative matches
// zero rows and fails with ErrInsufficientCredits before any row changes.
func (l *Ledger) RecordTransactionTx(tx *gorm.DB, userID string, amount decimal.Decimal, kind string, relatedEntityID *uint) (domain.CreditTransaction, error) {
	if userID == "" {
		return domain.CreditTransaction{}, funding.ErrInvalidUser
	}
	if !domain.ValidKind(kind) {
		return domain.CreditTransaction{}, funding.ErrInvalidKind
	}
	if err := l.seedBalanceTx(tx, userID); err != nil {
		return domain.CreditTransaction{}, err
	}
	res := tx.Model(&domain.UserCredit{}).
		Where("user_id = ? AND amount + ? >= 0", userID, amount).
		Updates(map[string]any{
			"amount":       gorm.Expr("amount + ?", amount),
			"last_updated": time.Now(),
		})
	if res.Error != nil {
		return domain.CreditTransaction{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.CreditTransaction{}, funding.ErrInsufficientCredits
	}
	t := domain.CreditTransaction{
		UserID:          userID,
		Amount:          amount,
		Kind:            kind,
		RelatedEntityID: relatedEntityID,
	}
	if err := tx.Create(&t).Error; err != nil {
		return domain.CreditTransaction{}, err
	}
	return t, nil
}

// Transactions returns the user's transaction history, newest first, with the
// total count for pagination. Kind filters to one transaction kind when set.
func (l *Ledger) Transactions(ctx context.Context, userID, kind string, limit, offset int) ([]domain.CreditTransaction, int64, error) {
	query := l.db.WithContext(ctx).Model(&domain.CreditTransaction{}).Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.CreditTransaction
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}
