package api

import (
	"time"

	"clubledger/models"
)

// Requests

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Credential string `json:"credential" validate:"required"`
}

type changeCredentialRequest struct {
	Current string `json:"current" validate:"required"`
	Next    string `json:"next" validate:"required"`
}

type submitTransactionRequest struct {
	ChargeID          string `json:"charge_id" validate:"omitempty,max=64"`
	AmountFromBalance string `json:"amount_from_balance" validate:"omitempty,money"`
	AmountFromReceipt string `json:"amount_from_receipt" validate:"omitempty,money"`
	ReceiptRef        string `json:"receipt_ref" validate:"omitempty,max=512"`
}

type resolveTransactionRequest struct {
	Decision string `json:"decision" validate:"required,decision"`
	Reason   string `json:"reason" validate:"max=500"`
}

type adjustBalanceRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Amount    string `json:"amount" validate:"required,money"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

type provisionAccountRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Nickname   string `json:"nickname" validate:"max=60"`
	Email      string `json:"email" validate:"required,email"`
	Credential string `json:"credential" validate:"required"`
}

type createChargesRequest struct {
	AccountIDs []string `json:"account_ids" validate:"required,min=1,dive,required"`
	Title      string   `json:"title" validate:"required,max=200"`
	Amount     string   `json:"amount" validate:"required,money"`
	DueDate    string   `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// Responses

type accountResponse struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Nickname             string   `json:"nickname,omitempty"`
	Email                string   `json:"email"`
	Roles                []string `json:"roles"`
	Balance              string   `json:"balance"`
	AvailableBalance     string   `json:"available_balance"`
	MustChangeCredential bool     `json:"must_change_credential"`
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
	Reserved  string `json:"reserved"`
	Available string `json:"available"`
}

type meResponse struct {
	Account accountResponse `json:"account"`
	Balance balanceResponse `json:"balance"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	Account     accountResponse `json:"account"`
}

type chargeResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Title     string `json:"title"`
	Amount    string `json:"amount"`
	DueDate   string `json:"due_date"`
	Status    string `json:"status"`
}

type transactionResponse struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"account_id"`
	Kind              string     `json:"kind"`
	Title             string     `json:"title"`
	Status            string     `json:"status"`
	AmountTotal       string     `json:"amount_total"`
	AmountFromBalance string     `json:"amount_from_balance"`
	AmountFromReceipt string     `json:"amount_from_receipt"`
	ChargeID          string     `json:"charge_id,omitempty"`
	ReceiptRef        string     `json:"receipt_ref,omitempty"`
	Note              string     `json:"note,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy        *string    `json:"resolved_by,omitempty"`
}

type ledgerEntryResponse struct {
	ID            int64     `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Kind          string    `json:"kind"`
	BalanceBefore string    `json:"balance_before"`
	ChangeAmount  string    `json:"change_amount"`
	BalanceAfter  string    `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

type createChargesResponse struct {
	ChargeIDs []string `json:"charge_ids"`
}

type receiptResponse struct {
	ReceiptRef string `json:"receipt_ref"`
}

type receiptURLResponse struct {
	URL string `json:"url"`
}

func toAccountResponse(a *models.Account) accountResponse {
	roles := make([]string, len(a.Roles))
	for i, role := range a.Roles {
		roles[i] = string(role)
	}
	return accountResponse{
		ID:                   a.ID,
		Name:                 a.Name,
		Nickname:             a.Nickname,
		Email:                a.Email,
		Roles:                roles,
		Balance:              a.Balance.StringFixed(2),
		AvailableBalance:     a.AvailableBalance.StringFixed(2),
		MustChangeCredential: a.MustChangeCredential,
	}
}

func toAccountResponses(accounts []*models.Account) []accountResponse {
	result := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = toAccountResponse(a)
	}
	return result
}

func toBalanceResponse(s models.BalanceSummary) balanceResponse {
	return balanceResponse{
		AccountID: s.AccountID,
		Balance:   s.Balance.StringFixed(2),
		Reserved:  s.Reserved.StringFixed(2),
		Available: s.Available.StringFixed(2),
	}
}

func toChargeResponses(charges []*models.Charge) []chargeResponse {
	result := make([]chargeResponse, len(charges))
	for i, c := range charges {
		result[i] = chargeResponse{
			ID:        c.ID,
			AccountID: c.AccountID,
			Title:     c.Title,
			Amount:    c.Amount.StringFixed(2),
			DueDate:   c.DueAt.Format(time.DateOnly),
			Status:    string(c.Status),
		}
	}
	return result
}

func toTransactionResponse(t *models.Transaction) transactionResponse {
	chargeID, _ := t.ChargeID()
	receiptRef, _ := t.ReceiptRef()
	return transactionResponse{
		ID:                t.ID,
		AccountID:         t.AccountID,
		Kind:              string(t.Kind()),
		Title:             t.Title(),
		Status:            string(t.Status),
		AmountTotal:       t.AmountTotal.StringFixed(2),
		AmountFromBalance: t.AmountFromBalance.StringFixed(2),
		AmountFromReceipt: t.AmountFromReceipt.StringFixed(2),
		ChargeID:          chargeID,
		ReceiptRef:        receiptRef,
		Note:              t.Note(),
		RejectionReason:   t.RejectionReason,
		SubmittedAt:       t.SubmittedAt,
		ResolvedAt:        t.ResolvedAt,
		ResolvedBy:        t.ResolvedBy,
	}
}

func toTransactionResponses(txs []*models.Transaction) []transactionResponse {
	result := make([]transactionResponse, len(txs))
	for i, t := range txs {
		result[i] = toTransactionResponse(t)
	}
	return result
}

func toLedgerEntryResponses(entries []*models.LedgerEntry) []ledgerEntryResponse {
	result := make([]ledgerEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = ledgerEntryResponse{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			Kind:          string(e.Kind),
			BalanceBefore: e.BalanceBefore.StringFixed(2),
			ChangeAmount:  e.ChangeAmount.StringFixed(2),
			BalanceAfter:  e.BalanceAfter.StringFixed(2),
			CreatedAt:     e.CreatedAt,
		}
	}
	return result
}
