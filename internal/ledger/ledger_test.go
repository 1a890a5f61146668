package ledger

import (
	"context"
	"testing"
	"time"

	"plura/internal/domain"
	"plura/internal/funding"
	"plura/internal/params"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// newMockLedger wires a Ledger to a sqlmock connection so the generated SQL
// and its row counts can be asserted without a live database
func newMockLedger(t *testing.T, initial string) (*Ledger, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	l := New(gdb, params.Fixed{domain.ParamInitialCreditAmount: initial})
	return l, mock, gdb
}

func TestRecordTransactionTxInsufficientCredits(t *testing.T) {
	l, mock, gdb := newMockLedger(t, "100")

	// Existing balance row, then a debit past zero matches no rows
	mock.ExpectExec("INSERT INTO `user_credits`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE `user_credits` SET").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := l.RecordTransactionTx(gdb, "alice", decimal.NewFromInt(-500), domain.KindProposalFund, nil)
	require.ErrorIs(t, err, funding.ErrInsufficientCredits)

	// No transaction row may be written after a rejected debit
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransactionTxWritesBalanceAndLog(t *testing.T) {
	l, mock, gdb := newMockLedger(t, "100")

	mock.ExpectExec("INSERT INTO `user_credits`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE `user_credits` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `credit_transactions`").WillReturnResult(sqlmock.NewResult(1, 1))

	tx, err := l.RecordTransactionTx(gdb, "alice", decimal.NewFromInt(-30), domain.KindProposalFund, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", tx.UserID)
	assert.Equal(t, domain.KindProposalFund, tx.Kind)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(-30)))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransactionTxRejectsUnknownKind(t *testing.T) {
	l, mock, gdb := newMockLedger(t, "100")

	_, err := l.RecordTransactionTx(gdb, "alice", decimal.NewFromInt(-1), "refund", nil)
	require.ErrorIs(t, err, funding.ErrInvalidKind)

	// Nothing may touch the store for an unknown kind
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedBalanceLogsInitialAllocation(t *testing.T) {
	l, mock, gdb := newMockLedger(t, "100")

	// Fresh user: the insert wins and the initial allocation is logged
	mock.ExpectExec("INSERT INTO `user_credits`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `credit_transactions`").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, l.seedBalanceTx(gdb, "alice"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedBalanceSkipsLogWhenRowExists(t *testing.T) {
	l, mock, gdb := newMockLedger(t, "100")

	// A racing request created the row first: zero rows affected, no log
	mock.ExpectExec("INSERT INTO `user_credits`").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.seedBalanceTx(gdb, "bob"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedBalanceZeroInitialSkipsLog(t *testing.T) {
	l, mock, gdb := newMockLedger(t, "0")

	// Zero seed amount never produces a zero-amount transaction row
	mock.ExpectExec("INSERT INTO `user_credits`").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, l.seedBalanceTx(gdb, "carol"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateBalanceReturnsExisting(t *testing.T) {
	l, mock, _ := newMockLedger(t, "100")

	rows := sqlmock.NewRows([]string{"id", "user_id", "amount", "last_updated"}).
		AddRow(1, "alice", "70", time.Now())
	mock.ExpectQuery("SELECT (.+) FROM `user_credits`").WillReturnRows(rows)

	uc, err := l.GetOrCreateBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", uc.UserID)
	assert.True(t, uc.Amount.Equal(decimal.NewFromInt(70)))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateBalanceSeedsOnFirstAccess(t *testing.T) {
	l, mock, _ := newMockLedger(t, "100")

	// Miss, then seed row + initial transaction in one store transaction
	mock.ExpectQuery("SELECT (.+) FROM `user_credits`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "last_updated"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `user_credits`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `credit_transactions`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT (.+) FROM `user_credits`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "last_updated"}).
			AddRow(1, "dave", "100", time.Now()))

	uc, err := l.GetOrCreateBalance(context.Background(), "dave")
	require.NoError(t, err)
	assert.True(t, uc.Amount.Equal(decimal.NewFromInt(100)))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateBalanceRejectsEmptyUser(t *testing.T) {
	l, mock, _ := newMockLedger(t, "100")

	_, err := l.GetOrCreateBalance(context.Background(), "")
	require.ErrorIs(t, err, funding.ErrInvalidUser)
	require.NoError(t, mock.ExpectationsWereMet())
}
