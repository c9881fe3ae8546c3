package service_test

import (
	"context"
	"sync"
	"testing"

	"clubledger/database"
	"clubledger/events"
	"clubledger/models"
	"clubledger/repository"
	"clubledger/repository/testutil"
	"clubledger/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerHarness struct {
	db          *database.DB
	reservation service.ReservationService
	settlement  service.SettlementService
	adjustment  service.AdjustmentService
	queries     service.LedgerQueryService
	admin       models.CallerIdentity
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()
	testDB := testutil.SetupTestDatabase(t)

	factory := repository.NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	retry := service.DefaultRetryPolicy(database.IsRetryable)
	admin := testutil.SeedAccount(t, testDB.DB, testutil.CreateTestAdmin())

	return &ledgerHarness{
		db:          testDB.DB,
		reservation: service.NewReservationService(factory),
		settlement:  service.NewSettlementService(factory, retry, nil),
		adjustment:  service.NewAdjustmentService(factory, retry, nil),
		queries:     service.NewLedgerQueryService(factory),
		admin:       models.CallerFromAccount(admin),
	}
}

func (h *ledgerHarness) summary(t *testing.T, accountID string) models.BalanceSummary {
	t.Helper()
	summary, err := h.reservation.GetBalanceSummary(context.Background(), h.admin, accountID)
	require.NoError(t, err)
	return *summary
}

func (h *ledgerHarness) chargeStatus(t *testing.T, chargeID string) models.ChargeStatus {
	t.Helper()
	var status string
	err := h.db.QueryRow(context.Background(), `SELECT status FROM charges WHERE id = $1`, chargeID).Scan(&status)
	require.NoError(t, err)
	return models.ChargeStatus(status)
}

// assertConserved checks that the stored balance equals the opening balance
// plus the effect of every approved transaction
func (h *ledgerHarness) assertConserved(t *testing.T, accountID, opening string) {
	t.Helper()
	ctx := context.Background()

	statement, err := h.queries.Statement(ctx, h.admin, accountID, 500)
	require.NoError(t, err)
	effects := decimal.Zero
	for _, tx := range statement {
		effects = effects.Add(tx.BalanceEffect())
	}

	entries, err := h.queries.LedgerEntries(ctx, h.admin, accountID, 500)
	require.NoError(t, err)
	changes := decimal.Zero
	for _, entry := range entries {
		assert.True(t, entry.IsConsistent())
		changes = changes.Add(entry.ChangeAmount)
	}

	moved := h.summary(t, accountID).Balance.Sub(testutil.Amount(opening))
	assert.True(t, moved.Equal(effects), "balance moved %s, approved effects %s", moved, effects)
	assert.True(t, moved.Equal(changes), "balance moved %s, ledger changes %s", moved, changes)
}

func athleteOf(account *models.Account) models.CallerIdentity {
	return models.CallerFromAccount(account)
}

func TestSettlement_FastPathPaysChargeInFull(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("100.00"))
	charge := testutil.SeedCharge(t, h.db, testutil.CreateTestCharge(account.ID, "100.00"))

	tx, err := h.settlement.SettleChargeFromBalanceInFull(ctx, athleteOf(account), charge.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusApproved, tx.Status)
	assert.Equal(t, models.ChargeStatusPaid, h.chargeStatus(t, charge.ID))
	summary := h.summary(t, account.ID)
	assert.True(t, summary.Balance.IsZero())
	assert.True(t, summary.Available.IsZero())

	_, err = h.settlement.SettleChargeFromBalanceInFull(ctx, athleteOf(account), charge.ID)
	assert.ErrorIs(t, err, service.ErrChargeNotPending)
}

func TestSettlement_MixedSubmissionReservesThenDebits(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("40.00"))
	charge := testutil.SeedCharge(t, h.db, testutil.CreateTestCharge(account.ID, "100.00"))

	tx, err := h.settlement.SubmitTransaction(ctx, athleteOf(account), service.SubmitRequest{
		ChargeID:          charge.ID,
		AmountFromBalance: testutil.Amount("40.00"),
		AmountFromReceipt: testutil.Amount("60.00"),
		ReceiptRef:        "receipts/" + account.ID + "/pix.png",
	})
	require.NoError(t, err)

	summary := h.summary(t, account.ID)
	assert.True(t, summary.Balance.Equal(testutil.Amount("40")))
	assert.True(t, summary.Available.IsZero())
	assert.Equal(t, models.ChargeStatusProcessing, h.chargeStatus(t, charge.ID))

	queue, err := h.queries.PendingReview(ctx, h.admin, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, tx.ID, queue[0].ID)

	_, err = h.settlement.Approve(ctx, h.admin, tx.ID)
	require.NoError(t, err)

	summary = h.summary(t, account.ID)
	assert.True(t, summary.Balance.IsZero())
	assert.True(t, summary.Available.IsZero())
	assert.Equal(t, models.ChargeStatusPaid, h.chargeStatus(t, charge.ID))
	h.assertConserved(t, account.ID, "40")
}

func TestSettlement_ConcurrentSubmissionsCannotOvercommit(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("100.00"))
	charges := []*models.Charge{
		testutil.SeedCharge(t, h.db, testutil.CreateTestCharge(account.ID, "80.00")),
		testutil.SeedCharge(t, h.db, testutil.CreateTestCharge(account.ID, "80.00")),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(charges))
	for i, charge := range charges {
		wg.Add(1)
		go func(i int, chargeID string) {
			defer wg.Done()
			_, errs[i] = h.settlement.SubmitTransaction(ctx, athleteOf(account), service.SubmitRequest{
				ChargeID:          chargeID,
				AmountFromBalance: testutil.Amount("80.00"),
			})
		}(i, charge.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, service.ErrInsufficientAvailableBalance)
	}
	assert.Equal(t, 1, succeeded)

	summary := h.summary(t, account.ID)
	assert.True(t, summary.Balance.Equal(testutil.Amount("100")))
	assert.True(t, summary.Available.Equal(testutil.Amount("20")))
	assert.False(t, summary.Available.IsNegative())
}

func TestSettlement_ConcurrentSubmissionsSettleChargeOnce(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("100.00"))
	charge := testutil.SeedCharge(t, h.db, testutil.CreateTestCharge(account.ID, "50.00"))

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.settlement.SubmitTransaction(ctx, athleteOf(account), service.SubmitRequest{
				ChargeID:          charge.ID,
				AmountFromBalance: testutil.Amount("50.00"),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, service.ErrChargeNotPending)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, models.ChargeStatusProcessing, h.chargeStatus(t, charge.ID))

	underReview, err := h.queries.ListTransactions(ctx, h.admin, models.TransactionFilter{
		AccountID: account.ID,
		Status:    models.TransactionStatusUnderReview,
	})
	require.NoError(t, err)
	require.Len(t, underReview, 1)
	chargeID, ok := underReview[0].ChargeID()
	require.True(t, ok)
	assert.Equal(t, charge.ID, chargeID)

	summary := h.summary(t, account.ID)
	assert.True(t, summary.Balance.Equal(testutil.Amount("100")))
	assert.True(t, summary.Available.Equal(testutil.Amount("50")))
}

func TestSettlement_AdjustmentMayOverdraw(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("0"))
	_, err := h.adjustment.AdjustBalance(ctx, h.admin, service.AdjustRequest{
		AccountID:    account.ID,
		SignedAmount: testutil.Amount("20.00"),
		Reason:       "opening balance",
	})
	require.NoError(t, err)

	tx, err := h.adjustment.AdjustBalance(ctx, h.admin, service.AdjustRequest{
		AccountID:    account.ID,
		SignedAmount: testutil.Amount("-50.00"),
		Reason:       "lost equipment",
	})
	require.NoError(t, err)

	assert.Equal(t, "lost equipment", tx.Note())
	summary := h.summary(t, account.ID)
	assert.True(t, summary.Balance.Equal(testutil.Amount("-30")), summary.Balance.String())
	h.assertConserved(t, account.ID, "0")
}

func TestSettlement_ResolutionIsApplyOnce(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("0"))
	tx, err := h.settlement.SubmitTransaction(ctx, athleteOf(account), service.SubmitRequest{
		AmountFromReceipt: testutil.Amount("25.00"),
		ReceiptRef:        "receipts/" + account.ID + "/r.png",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.settlement.Approve(ctx, h.admin, tx.ID)
		}(i)
	}
	wg.Wait()

	approved := 0
	for _, err := range errs {
		if err == nil {
			approved++
			continue
		}
		assert.ErrorIs(t, err, service.ErrTransactionNotPending)
	}
	assert.Equal(t, 1, approved)

	_, err = h.settlement.Reject(ctx, h.admin, tx.ID, "too late")
	assert.ErrorIs(t, err, service.ErrTransactionNotPending)

	assert.True(t, h.summary(t, account.ID).Balance.Equal(testutil.Amount("25")))
	h.assertConserved(t, account.ID, "0")
}

func TestSettlement_RejectionRestoresCharge(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("50.00"))
	charge := testutil.SeedCharge(t, h.db, testutil.CreateTestCharge(account.ID, "50.00"))
	caller := athleteOf(account)

	tx, err := h.settlement.SubmitTransaction(ctx, caller, service.SubmitRequest{
		ChargeID:          charge.ID,
		AmountFromBalance: testutil.Amount("50.00"),
	})
	require.NoError(t, err)
	assert.True(t, h.summary(t, account.ID).Available.IsZero())

	rejected, err := h.settlement.Reject(ctx, h.admin, tx.ID, "pay at the front desk")
	require.NoError(t, err)
	assert.Equal(t, "pay at the front desk", rejected.RejectionReason)

	assert.Equal(t, models.ChargeStatusPending, h.chargeStatus(t, charge.ID))
	summary := h.summary(t, account.ID)
	assert.True(t, summary.Balance.Equal(testutil.Amount("50")))
	assert.True(t, summary.Available.Equal(testutil.Amount("50")))

	// A rejected settlement leaves the charge open for a fresh attempt
	_, err = h.settlement.SettleChargeFromBalanceInFull(ctx, caller, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusPaid, h.chargeStatus(t, charge.ID))
	h.assertConserved(t, account.ID, "50")
}

func TestSettlement_RejectedTopUpNeverCounts(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	account := testutil.SeedAccount(t, h.db, testutil.CreateTestAccount("10.00"))
	tx, err := h.settlement.SubmitTransaction(ctx, athleteOf(account), service.SubmitRequest{
		AmountFromReceipt: testutil.Amount("500.00"),
		ReceiptRef:        "receipts/" + account.ID + "/fake.pdf",
	})
	require.NoError(t, err)

	// Top-ups reserve nothing while under review
	assert.True(t, h.summary(t, account.ID).Available.Equal(testutil.Amount("10")))

	_, err = h.settlement.Reject(ctx, h.admin, tx.ID, "receipt is not legible")
	require.NoError(t, err)

	summary := h.summary(t, account.ID)
	assert.True(t, summary.Balance.Equal(testutil.Amount("10")))
	assert.True(t, summary.Available.Equal(testutil.Amount("10")))

	history, err := h.queries.ListTransactions(ctx, athleteOf(account), models.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionStatusRejected, history[0].Status)
}
