package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind discriminates the kinds of money movement
type TransactionKind string

const (
	TransactionKindTopUp            TransactionKind = "topup"
	TransactionKindChargeSettlement TransactionKind = "charge-settlement"
	TransactionKindAdjustment       TransactionKind = "admin-adjustment"
)

// IsValid reports whether the kind is known
func (k TransactionKind) IsValid() bool {
	return k == TransactionKindTopUp || k == TransactionKindChargeSettlement || k == TransactionKindAdjustment
}

// TransactionStatus represents the review state of a transaction
type TransactionStatus string

const (
	TransactionStatusUnderReview TransactionStatus = "under-review"
	TransactionStatusApproved    TransactionStatus = "approved"
	TransactionStatusRejected    TransactionStatus = "rejected"
)

// IsValid reports whether the status is known
func (s TransactionStatus) IsValid() bool {
	return s == TransactionStatusUnderReview || s == TransactionStatusApproved || s == TransactionStatusRejected
}

var (
	// ErrInvalidTransaction is wrapped by every construction/validation failure
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrTransactionNotPending is returned when resolving a transaction that left under-review
	ErrTransactionNotPending = errors.New("transaction is not under review")
)

// TransactionDetails carries the fields that exist only for one kind of transaction.
// Implementations: TopUpDetails, ChargeSettlementDetails, AdjustmentDetails.
type TransactionDetails interface {
	Kind() TransactionKind
	isTransactionDetails()
}

// TopUpDetails is a balance top-up backed by a receipt
type TopUpDetails struct {
	ReceiptRef string
}

func (TopUpDetails) Kind() TransactionKind { return TransactionKindTopUp }
func (TopUpDetails) isTransactionDetails() {}

// ChargeSettlementDetails pays a charge; ReceiptRef is empty when nothing came from a receipt
type ChargeSettlementDetails struct {
	ChargeID    string
	ChargeTitle string
	ReceiptRef  string
}

func (ChargeSettlementDetails) Kind() TransactionKind { return TransactionKindChargeSettlement }
func (ChargeSettlementDetails) isTransactionDetails() {}

// AdjustmentDetails is an administrative correction
type AdjustmentDetails struct {
	Reason string
}

func (AdjustmentDetails) Kind() TransactionKind { return TransactionKindAdjustment }
func (AdjustmentDetails) isTransactionDetails() {}

// Transaction records an attempted or completed movement of money
type Transaction struct {
	ID                string             `db:"id"`
	AccountID         string             `db:"account_id"`
	Details           TransactionDetails `db:"-"`
	AmountTotal       decimal.Decimal    `db:"amount_total"`
	AmountFromBalance decimal.Decimal    `db:"amount_from_balance"`
	AmountFromReceipt decimal.Decimal    `db:"amount_from_receipt"`
	Status            TransactionStatus  `db:"status"`
	RejectionReason   string             `db:"rejection_reason"`
	SubmittedAt       time.Time          `db:"submitted_at"`
	ResolvedAt        *time.Time         `db:"resolved_at"`
	ResolvedBy        *string            `db:"resolved_by"`
}

// NewTopUp builds an under-review top-up for the receipt-covered amount
func NewTopUp(accountID string, amountFromReceipt decimal.Decimal, receiptRef string) (*Transaction, error) {
	tx := &Transaction{
		AccountID:         accountID,
		Details:           TopUpDetails{ReceiptRef: strings.TrimSpace(receiptRef)},
		AmountTotal:       amountFromReceipt,
		AmountFromBalance: decimal.Zero,
		AmountFromReceipt: amountFromReceipt,
		Status:            TransactionStatusUnderReview,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// NewChargeSettlement builds an under-review settlement of charge split between
// the wallet balance and a receipt. The two portions must add up to the charge amount.
func NewChargeSettlement(accountID string, charge *Charge, fromBalance, fromReceipt decimal.Decimal, receiptRef string) (*Transaction, error) {
	if charge == nil {
		return nil, fmt.Errorf("%w: charge is required", ErrInvalidTransaction)
	}
	total := fromBalance.Add(fromReceipt)
	if !total.Equal(charge.Amount) {
		return nil, fmt.Errorf("%w: balance portion %s plus receipt portion %s must equal charge amount %s",
			ErrInvalidTransaction, fromBalance.StringFixed(2), fromReceipt.StringFixed(2), charge.Amount.StringFixed(2))
	}
	tx := &Transaction{
		AccountID: accountID,
		Details: ChargeSettlementDetails{
			ChargeID:    charge.ID,
			ChargeTitle: charge.Title,
			ReceiptRef:  strings.TrimSpace(receiptRef),
		},
		AmountTotal:       total,
		AmountFromBalance: fromBalance,
		AmountFromReceipt: fromReceipt,
		Status:            TransactionStatusUnderReview,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// NewDirectSettlement builds an already-approved settlement paid entirely from balance
func NewDirectSettlement(accountID string, charge *Charge, resolvedBy string, now time.Time) (*Transaction, error) {
	tx, err := NewChargeSettlement(accountID, charge, charge.Amount, decimal.Zero, "")
	if err != nil {
		return nil, err
	}
	tx.SubmittedAt = now
	if err := tx.Approve(resolvedBy, now); err != nil {
		return nil, err
	}
	return tx, nil
}

// NewAdjustment builds an approved administrative balance correction
func NewAdjustment(accountID string, signedAmount decimal.Decimal, reason, adminID string, now time.Time) (*Transaction, error) {
	tx := &Transaction{
		AccountID:         accountID,
		Details:           AdjustmentDetails{Reason: strings.TrimSpace(reason)},
		AmountTotal:       signedAmount,
		AmountFromBalance: decimal.Zero,
		AmountFromReceipt: decimal.Zero,
		Status:            TransactionStatusUnderReview,
		SubmittedAt:       now,
	}
	if err := tx.Approve(adminID, now); err != nil {
		return nil, err
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Kind returns the discriminator of the transaction
func (t *Transaction) Kind() TransactionKind {
	if t.Details == nil {
		return ""
	}
	return t.Details.Kind()
}

// ChargeID returns the settled charge for charge-settlement transactions
func (t *Transaction) ChargeID() (string, bool) {
	if d, ok := t.Details.(ChargeSettlementDetails); ok {
		return d.ChargeID, true
	}
	return "", false
}

// ReceiptRef returns the receipt reference when one is attached
func (t *Transaction) ReceiptRef() (string, bool) {
	switch d := t.Details.(type) {
	case TopUpDetails:
		return d.ReceiptRef, d.ReceiptRef != ""
	case ChargeSettlementDetails:
		return d.ReceiptRef, d.ReceiptRef != ""
	}
	return "", false
}

// Note returns the adjustment reason, if any
func (t *Transaction) Note() string {
	if d, ok := t.Details.(AdjustmentDetails); ok {
		return d.Reason
	}
	return ""
}

// Title returns a short human-readable label
func (t *Transaction) Title() string {
	switch d := t.Details.(type) {
	case TopUpDetails:
		return "Balance top-up"
	case ChargeSettlementDetails:
		if d.ChargeTitle != "" {
			return d.ChargeTitle
		}
		return "Charge payment"
	case AdjustmentDetails:
		return "Administrative adjustment"
	}
	return string(t.Kind())
}

// IsUnderReview checks if the transaction still awaits an admin decision
func (t *Transaction) IsUnderReview() bool {
	return t.Status == TransactionStatusUnderReview
}

// ReservedAmount is the balance portion held while the transaction is under review
func (t *Transaction) ReservedAmount() decimal.Decimal {
	if !t.IsUnderReview() {
		return decimal.Zero
	}
	return t.AmountFromBalance
}

// BalanceEffect is the change to the stored balance caused by approving this transaction
func (t *Transaction) BalanceEffect() decimal.Decimal {
	switch t.Kind() {
	case TransactionKindTopUp:
		return t.AmountFromReceipt
	case TransactionKindChargeSettlement:
		return t.AmountFromBalance.Neg()
	case TransactionKindAdjustment:
		return t.AmountTotal
	}
	return decimal.Zero
}

// Approve moves the transaction out of review as approved
func (t *Transaction) Approve(resolvedBy string, at time.Time) error {
	if !t.IsUnderReview() {
		return ErrTransactionNotPending
	}
	t.Status = TransactionStatusApproved
	t.ResolvedAt = &at
	t.ResolvedBy = &resolvedBy
	return nil
}

// Reject moves the transaction out of review as rejected, keeping the reason
func (t *Transaction) Reject(resolvedBy, reason string, at time.Time) error {
	if !t.IsUnderReview() {
		return ErrTransactionNotPending
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrInvalidTransaction)
	}
	t.Status = TransactionStatusRejected
	t.RejectionReason = reason
	t.ResolvedAt = &at
	t.ResolvedBy = &resolvedBy
	return nil
}

// Validate checks the invariants of the transaction's kind
func (t *Transaction) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("%w: account is required", ErrInvalidTransaction)
	}
	if t.Details == nil {
		return fmt.Errorf("%w: kind is required", ErrInvalidTransaction)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, t.Status)
	}
	if t.AmountFromBalance.IsNegative() || t.AmountFromReceipt.IsNegative() {
		return fmt.Errorf("%w: amounts cannot be negative", ErrInvalidTransaction)
	}
	for _, amount := range []decimal.Decimal{t.AmountTotal, t.AmountFromBalance, t.AmountFromReceipt} {
		if !IsCents(amount) {
			return fmt.Errorf("%w: amounts must have at most two decimal places", ErrInvalidTransaction)
		}
	}
	receiptRef, hasReceipt := t.ReceiptRef()
	needsReceipt := t.AmountFromReceipt.IsPositive()
	if needsReceipt && !hasReceipt {
		return fmt.Errorf("%w: receipt reference is required when part of the amount comes from a receipt", ErrInvalidTransaction)
	}
	if !needsReceipt && hasReceipt {
		return fmt.Errorf("%w: receipt reference %q given without a receipt amount", ErrInvalidTransaction, receiptRef)
	}
	if (t.Status == TransactionStatusRejected) != (t.RejectionReason != "") {
		return fmt.Errorf("%w: rejection reason must be present exactly when rejected", ErrInvalidTransaction)
	}

	switch d := t.Details.(type) {
	case TopUpDetails:
		if !t.AmountFromBalance.IsZero() {
			return fmt.Errorf("%w: a top-up cannot draw from balance", ErrInvalidTransaction)
		}
		if !t.AmountFromReceipt.IsPositive() {
			return fmt.Errorf("%w: top-up amount must be positive", ErrInvalidTransaction)
		}
	case ChargeSettlementDetails:
		if d.ChargeID == "" {
			return fmt.Errorf("%w: charge settlement requires a charge", ErrInvalidTransaction)
		}
		if !t.AmountFromBalance.Add(t.AmountFromReceipt).IsPositive() {
			return fmt.Errorf("%w: settlement amount must be positive", ErrInvalidTransaction)
		}
	case AdjustmentDetails:
		if t.AmountTotal.IsZero() {
			return fmt.Errorf("%w: adjustment amount cannot be zero", ErrInvalidTransaction)
		}
		if d.Reason == "" {
			return fmt.Errorf("%w: adjustment reason is required", ErrInvalidTransaction)
		}
		if t.Status != TransactionStatusApproved {
			return fmt.Errorf("%w: adjustments are always approved", ErrInvalidTransaction)
		}
		return nil
	}

	if !t.AmountTotal.Equal(t.AmountFromBalance.Add(t.AmountFromReceipt)) {
		return fmt.Errorf("%w: total must equal balance portion plus receipt portion", ErrInvalidTransaction)
	}
	return nil
}

// IsCents reports whether the amount has at most two decimal places
func IsCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// TransactionFilter narrows a transaction listing; zero values match everything
type TransactionFilter struct {
	AccountID string
	Status    TransactionStatus
	Kind      TransactionKind
	// NewestFirst orders by submission time descending
	NewestFirst bool
	Limit       int
}
