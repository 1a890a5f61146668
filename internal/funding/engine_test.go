package funding

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"plura/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type allocKey struct {
	proposalID uint
	userID     string
}

// fakeStore is an in-memory stand-in for the ledger, allocation book and
// proposal repo. Its Transaction snapshots state and restores it on error,
// modelling the all-or-nothing commit of the real store.
type fakeStore struct {
	balances      map[string]decimal.Decimal
	txs           []domain.CreditTransaction
	allocs        map[allocKey]decimal.Decimal
	proposals     map[uint]domain.Proposal
	initialCredit decimal.Decimal
	failIncrement bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances:      map[string]decimal.Decimal{},
		allocs:        map[allocKey]decimal.Decimal{},
		proposals:     map[uint]domain.Proposal{},
		initialCredit: decimal.NewFromInt(100),
	}
}

func (f *fakeStore) addProposal(id uint, status string) {
	f.proposals[id] = domain.Proposal{ID: id, Status: status, CreditsAllocated: decimal.Zero}
}

// TxRunner

func (f *fakeStore) Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	balances := make(map[string]decimal.Decimal, len(f.balances))
	for k, v := range f.balances {
		balances[k] = v
	}
	allocs := make(map[allocKey]decimal.Decimal, len(f.allocs))
	for k, v := range f.allocs {
		allocs[k] = v
	}
	proposals := make(map[uint]domain.Proposal, len(f.proposals))
	for k, v := range f.proposals {
		proposals[k] = v
	}
	txs := append([]domain.CreditTransaction(nil), f.txs...)
	if err := fc(nil); err != nil {
		f.balances, f.allocs, f.proposals, f.txs = balances, allocs, proposals, txs
		return err
	}
	return nil
}

// LedgerStore

func (f *fakeStore) GetOrCreateBalance(ctx context.Context, userID string) (domain.UserCredit, error) {
	if userID == "" {
		return domain.UserCredit{}, ErrInvalidUser
	}
	if _, ok := f.balances[userID]; !ok {
		f.balances[userID] = f.initialCredit
		f.txs = append(f.txs, domain.CreditTransaction{
			ID: uint(len(f.txs) + 1), UserID: userID, Amount: f.initialCredit, Kind: domain.KindInitialAllocation,
		})
	}
	return domain.UserCredit{UserID: userID, Amount: f.balances[userID]}, nil
}

func (f *fakeStore) RecordTransactionTx(tx *gorm.DB, userID string, amount decimal.Decimal, kind string, relatedEntityID *uint) (domain.CreditTransaction, error) {
	if !domain.ValidKind(kind) {
		return domain.CreditTransaction{}, ErrInvalidKind
	}
	if _, err := f.GetOrCreateBalance(context.Background(), userID); err != nil {
		return domain.CreditTransaction{}, err
	}
	next := f.balances[userID].Add(amount)
	if next.Sign() < 0 {
		return domain.CreditTransaction{}, ErrInsufficientCredits
	}
	f.balances[userID] = next
	t := domain.CreditTransaction{
		ID: uint(len(f.txs) + 1), UserID: userID, Amount: amount, Kind: kind, RelatedEntityID: relatedEntityID,
	}
	f.txs = append(f.txs, t)
	return t, nil
}

// AllocationStore

func (f *fakeStore) UpsertAllocationTx(tx *gorm.DB, proposalID uint, userID string, delta decimal.Decimal) (domain.ProposalCredit, error) {
	key := allocKey{proposalID, userID}
	f.allocs[key] = f.allocs[key].Add(delta)
	return domain.ProposalCredit{ProposalID: proposalID, UserID: userID, Amount: f.allocs[key]}, nil
}

func (f *fakeStore) creditsFor(proposalID uint) []domain.ProposalCredit {
	var cs []domain.ProposalCredit
	for key, amount := range f.allocs {
		if key.proposalID == proposalID {
			cs = append(cs, domain.ProposalCredit{ProposalID: proposalID, UserID: key.userID, Amount: amount})
		}
	}
	return cs
}

func (f *fakeStore) QuadraticScore(ctx context.Context, proposalID uint) (float64, error) {
	return Score(f.creditsFor(proposalID)), nil
}

func (f *fakeStore) MatchingBonus(ctx context.Context, proposalID uint) (float64, error) {
	cs := f.creditsFor(proposalID)
	return Bonus(Score(cs), RawTotal(cs)), nil
}

// ProposalStore

func (f *fakeStore) Find(ctx context.Context, id uint) (domain.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return domain.Proposal{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetState(ctx context.Context, id uint) (ProposalState, error) {
	p, ok := f.proposals[id]
	if !ok {
		return ProposalState{}, ErrNotFound
	}
	return ProposalState{IsOpen: p.Status == domain.StatusOpen, RawCreditsAllocated: p.CreditsAllocated}, nil
}

func (f *fakeStore) IncrementRawTx(tx *gorm.DB, id uint, delta decimal.Decimal) error {
	if f.failIncrement {
		return errors.New("store unavailable")
	}
	p, ok := f.proposals[id]
	if !ok {
		return ErrNotFound
	}
	p.CreditsAllocated = p.CreditsAllocated.Add(delta)
	f.proposals[id] = p
	return nil
}

func (f *fakeStore) proposalFundTxs(userID string) []domain.CreditTransaction {
	var out []domain.CreditTransaction
	for _, t := range f.txs {
		if t.UserID == userID && t.Kind == domain.KindProposalFund {
			out = append(out, t)
		}
	}
	return out
}

func newTestEngine(f *fakeStore) *Engine {
	return NewEngine(f, f, f, f)
}

func TestAllocateDebitsAndLogs(t *testing.T) {
	f := newFakeStore()
	f.addProposal(1, domain.StatusOpen)
	engine := newTestEngine(f)

	// Balance 100, allocate 30 to an open proposal
	result, err := engine.Allocate(context.Background(), "alice", 1, decimal.NewFromInt(30))
	require.NoError(t, err)

	assert.True(t, f.balances["alice"].Equal(decimal.NewFromInt(70)), "balance should drop to 70")
	funds := f.proposalFundTxs("alice")
	require.Len(t, funds, 1)
	assert.True(t, funds[0].Amount.Equal(decimal.NewFromInt(-30)))
	require.NotNil(t, funds[0].RelatedEntityID)
	assert.Equal(t, uint(1), *funds[0].RelatedEntityID)
	assert.True(t, result.Allocation.Amount.Equal(decimal.NewFromInt(30)))
	assert.True(t, result.Proposal.CreditsAllocated.Equal(decimal.NewFromInt(30)))
	assert.InDelta(t, 30, result.QuadraticScore, 1e-9)
	assert.Equal(t, 0.0, result.MatchingBonus)
}

func TestAllocateThreeContributors(t *testing.T) {
	f := newFakeStore()
	f.addProposal(1, domain.StatusOpen)
	engine := newTestEngine(f)

	var last AllocationResult
	for _, user := range []string{"alice", "bob", "carol"} {
		var err error
		last, err = engine.Allocate(context.Background(), user, 1, decimal.NewFromInt(4))
		require.NoError(t, err)
	}
	assert.True(t, last.Proposal.CreditsAllocated.Equal(decimal.NewFromInt(12)))
	assert.InDelta(t, 36, last.QuadraticScore, 1e-9)
	assert.InDelta(t, 24, last.MatchingBonus, 1e-9)
}

func TestAllocateInsufficientCredits(t *testing.T) {
	f := newFakeStore()
	f.addProposal(1, domain.StatusOpen)
	f.balances["poor"] = decimal.NewFromInt(5)
	engine := newTestEngine(f)

	_, err := engine.Allocate(context.Background(), "poor", 1, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInsufficientCredits)

	// No mutation: balance intact, no transaction, no allocation
	assert.True(t, f.balances["poor"].Equal(decimal.NewFromInt(5)))
	assert.Empty(t, f.proposalFundTxs("poor"))
	assert.Empty(t, f.allocs)
	assert.True(t, f.proposals[1].CreditsAllocated.Equal(decimal.Zero))
}

func TestAllocateAccumulatesPerPair(t *testing.T) {
	f := newFakeStore()
	f.addProposal(1, domain.StatusOpen)
	engine := newTestEngine(f)

	_, err := engine.Allocate(context.Background(), "alice", 1, decimal.NewFromInt(3))
	require.NoError(t, err)
	result, err := engine.Allocate(context.Background(), "alice", 1, decimal.NewFromInt(2))
	require.NoError(t, err)

	// One cumulative allocation row, two separate debit transactions
	require.Len(t, f.allocs, 1)
	assert.True(t, f.allocs[allocKey{1, "alice"}].Equal(decimal.NewFromInt(5)))
	assert.True(t, result.Allocation.Amount.Equal(decimal.NewFromInt(5)))
	funds := f.proposalFundTxs("alice")
	require.Len(t, funds, 2)
	assert.True(t, funds[0].Amount.Equal(decimal.NewFromInt(-3)))
	assert.True(t, funds[1].Amount.Equal(decimal.NewFromInt(-2)))
	assert.True(t, f.balances["alice"].Equal(decimal.NewFromInt(95)))
}

func TestAllocateClosedProposal(t *testing.T) {
	f := newFakeStore()
	f.addProposal(2, domain.StatusClosed)
	engine := newTestEngine(f)

	_, err := engine.Allocate(context.Background(), "alice", 2, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrProposalClosed)
	assert.Empty(t, f.txs)
	assert.Empty(t, f.allocs)
}

func TestAllocateValidation(t *testing.T) {
	f := newFakeStore()
	f.addProposal(1, domain.StatusOpen)
	engine := newTestEngine(f)

	_, err := engine.Allocate(context.Background(), "alice", 1, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = engine.Allocate(context.Background(), "alice", 1, decimal.NewFromInt(-4))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = engine.Allocate(context.Background(), "", 1, decimal.NewFromInt(4))
	assert.ErrorIs(t, err, ErrInvalidUser)
	_, err = engine.Allocate(context.Background(), "alice", 99, decimal.NewFromInt(4))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.txs)
}

func TestAllocateRollsBackOnCommitFailure(t *testing.T) {
	f := newFakeStore()
	f.addProposal(1, domain.StatusOpen)
	f.failIncrement = true
	engine := newTestEngine(f)

	_, err := engine.Allocate(context.Background(), "alice", 1, decimal.NewFromInt(30))
	require.Error(t, err)

	// The debit and the allocation upsert were rolled back with the failure
	assert.True(t, f.balances["alice"].Equal(decimal.NewFromInt(100)))
	assert.Empty(t, f.proposalFundTxs("alice"))
	assert.Empty(t, f.allocs)
}
