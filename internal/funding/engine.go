package funding

import (
	"context"
	"database/sql"

	"plura/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Decimal credit amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// TxRunner runs a function inside one store transaction. *gorm.DB satisfies it.
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// LedgerStore is the slice of the ledger the engine needs
type LedgerStore interface {
	GetOrCreateBalance(ctx context.Context, userID string) (domain.UserCredit, error)
	RecordTransactionTx(tx *gorm.DB, userID string, amount decimal.Decimal, kind string, relatedEntityID *uint) (domain.CreditTransaction, error)
}

// AllocationStore is the slice of the allocation book the engine needs
type AllocationStore interface {
	UpsertAllocationTx(tx *gorm.DB, proposalID uint, userID string, delta decimal.Decimal) (domain.ProposalCredit, error)
	QuadraticScore(ctx context.Context, proposalID uint) (float64, error)
	MatchingBonus(ctx context.Context, proposalID uint) (float64, error)
}

// ProposalStore is the narrow proposal interface the engine needs
type ProposalStore interface {
	Find(ctx context.Context, id uint) (domain.Proposal, error)
	GetState(ctx context.Context, id uint) (ProposalState, error)
	IncrementRawTx(tx *gorm.DB, id uint, delta decimal.Decimal) error
}

// AllocationResult is everything a committed allocation produced
type AllocationResult struct {
	Proposal       domain.Proposal          `json:"proposal"`
	Transaction    domain.CreditTransaction `json:"transaction"`
	Allocation     domain.ProposalCredit    `json:"allocation"`
	QuadraticScore float64                  `json:"quadratic_score"`
	MatchingBonus  float64                  `json:"matching_bonus"`
}

// Engine orchestrates a credit allocation as one atomic operation spanning
// the ledger, the allocation book and the proposal's running total.
type Engine struct {
	db        TxRunner
	ledger    LedgerStore
	book      AllocationStore
	proposals ProposalStore
}

// NewEngine wires the engine to its stores
func NewEngine(db TxRunner, l LedgerStore, b AllocationStore, p ProposalStore) *Engine {
	return &Engine{db: db, ledger: l, book: b, proposals: p}
}

// Allocate moves amount credits from the user to the proposal:
// debit + transaction log, cumulative allocation upsert and proposal total
// increment commit as one unit, then the quadratic score is recomputed from
// the committed rows. There is no idempotency key: calling Allocate twice
// with the same arguments allocates twice, by design.
func (e *Engine) Allocate(ctx context.Context, userID string, proposalID uint, amount decimal.Decimal) (AllocationResult, error) {
	if userID == "" {
		return AllocationResult{}, ErrInvalidUser
	}
	if amount.Sign() <= 0 {
		return AllocationResult{}, ErrInvalidAmount
	}
	state, err := e.proposals.GetState(ctx, proposalID)
	if err != nil {
		return AllocationResult{}, err
	}
	if !state.IsOpen {
		return AllocationResult{}, ErrProposalClosed
	}
	// Fast-path balance check; the conditional debit inside the transaction
	// is the authoritative guard under concurrency.
	balance, err := e.ledger.GetOrCreateBalance(ctx, userID)
	if err != nil {
		return AllocationResult{}, err
	}
	if balance.Amount.LessThan(amount) {
		return AllocationResult{}, ErrInsufficientCredits
	}

	var result AllocationResult
	err = e.db.Transaction(func(tx *gorm.DB) error {
		t, txErr := e.ledger.RecordTransactionTx(tx, userID, amount.Neg(), domain.KindProposalFund, &proposalID)
		if txErr != nil {
			return txErr
		}
		alloc, txErr := e.book.UpsertAllocationTx(tx, proposalID, userID, amount)
		if txErr != nil {
			return txErr
		}
		if txErr := e.proposals.IncrementRawTx(tx, proposalID, amount); txErr != nil {
			return txErr
		}
		result.Transaction = t
		result.Allocation = alloc
		return nil
	})
	if err != nil {
		return AllocationResult{}, err
	}

	// Derived reads after commit; the score is never persisted
	proposal, err := e.proposals.Find(ctx, proposalID)
	if err != nil {
		return AllocationResult{}, err
	}
	score, err := e.book.QuadraticScore(ctx, proposalID)
	if err != nil {
		return AllocationResult{}, err
	}
	bonus, err := e.book.MatchingBonus(ctx, proposalID)
	if err != nil {
		return AllocationResult{}, err
	}
	proposal.PriorityScore = score
	result.Proposal = proposal
	result.QuadraticScore = score
	result.MatchingBonus = bonus
	return result, nil
}
