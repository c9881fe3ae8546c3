package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"clubledger/models"
	"clubledger/service"

	"github.com/go-chi/chi/v5"
)

const multipartMemory = 4 << 20

// Services are the ledger operations exposed over HTTP
type Services struct {
	Accounts     service.AccountService
	Reservations service.ReservationService
	Settlement   service.SettlementService
	Adjustments  service.AdjustmentService
	Charges      service.ChargeService
	Queries      service.LedgerQueryService
	Receipts     service.ReceiptService
}

// Pinger reports whether the ledger store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the HTTP API
type Handler struct {
	services        Services
	db              Pinger
	idempotency     IdempotencyStore
	maxReceiptBytes int64
}

// NewHandler creates a handler. idempotency may be nil.
func NewHandler(services Services, db Pinger, idempotency IdempotencyStore, maxReceiptBytes int64) *Handler {
	return &Handler{
		services:        services,
		db:              db,
		idempotency:     idempotency,
		maxReceiptBytes: maxReceiptBytes,
	}
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeErrorBody(w, http.StatusServiceUnavailable, errorBody{Code: "unhealthy", Message: "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, token, err := h.services.Accounts.Authenticate(r.Context(), req.Email, req.Credential)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		Account:     toAccountResponse(account),
	})
}

// ChangeCredential handles POST /api/auth/credential
func (h *Handler) ChangeCredential(w http.ResponseWriter, r *http.Request) {
	var req changeCredentialRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.services.Accounts.ChangeCredential(r.Context(), caller(r), req.Current, req.Next); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	account, err := h.services.Accounts.GetAccount(r.Context(), c, c.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Account: toAccountResponse(account),
		Balance: toBalanceResponse(account.Summary()),
	})
}

// Balance handles GET /api/accounts/{id}/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.services.Reservations.GetBalanceSummary(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(*summary))
}

// AccountCharges handles GET /api/accounts/{id}/charges
func (h *Handler) AccountCharges(w http.ResponseWriter, r *http.Request) {
	status := models.ChargeStatus(r.URL.Query().Get("status"))
	charges, err := h.services.Charges.ListCharges(r.Context(), caller(r), chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChargeResponses(charges))
}

// Statement handles GET /api/accounts/{id}/statement
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	txs, err := h.services.Queries.Statement(r.Context(), caller(r), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

// LedgerEntries handles GET /api/accounts/{id}/ledger
func (h *Handler) LedgerEntries(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	entries, err := h.services.Queries.LedgerEntries(r.Context(), caller(r), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerEntryResponses(entries))
}

// UploadReceipt handles POST /api/receipts (multipart field "file")
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxReceiptBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, http.StatusRequestEntityTooLarge, errorBody{
				Code:    string(service.KindInvalidArgument),
				Message: "receipt is too large",
			})
			return
		}
		writeBadRequest(w, "expected a multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	ref, err := h.services.Receipts.Upload(r.Context(), caller(r), service.ReceiptUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receiptResponse{ReceiptRef: ref})
}

// ReceiptURL handles GET /api/receipts/url?ref=
func (h *Handler) ReceiptURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.services.Receipts.URL(r.Context(), caller(r), r.URL.Query().Get("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptURLResponse{URL: url})
}

// SubmitTransaction handles POST /api/transactions
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitTransactionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tx, err := h.services.Settlement.SubmitTransaction(r.Context(), caller(r), service.SubmitRequest{
		ChargeID:          req.ChargeID,
		AmountFromBalance: parseMoney(req.AmountFromBalance),
		AmountFromReceipt: parseMoney(req.AmountFromReceipt),
		ReceiptRef:        req.ReceiptRef,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// ListTransactions handles GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	txs, err := h.services.Queries.ListTransactions(r.Context(), caller(r), models.TransactionFilter{
		AccountID:   query.Get("account_id"),
		Status:      models.TransactionStatus(query.Get("status")),
		Kind:        models.TransactionKind(query.Get("kind")),
		NewestFirst: true,
		Limit:       limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

// GetTransaction handles GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.services.Queries.GetTransaction(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// SettleCharge handles POST /api/charges/{id}/settle
func (h *Handler) SettleCharge(w http.ResponseWriter, r *http.Request) {
	tx, err := h.services.Settlement.SettleChargeFromBalanceInFull(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// ListAccounts handles GET /api/admin/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !role.IsValid() {
		writeBadRequest(w, "unknown role")
		return
	}
	accounts, err := h.services.Accounts.ListAccounts(r.Context(), caller(r), role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponses(accounts))
}

// ProvisionAccount handles POST /api/admin/accounts
func (h *Handler) ProvisionAccount(w http.ResponseWriter, r *http.Request) {
	var req provisionAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.services.Accounts.ProvisionAccount(r.Context(), caller(r), service.ProvisionRequest{
		Name:       req.Name,
		Nickname:   req.Nickname,
		Email:      req.Email,
		Credential: req.Credential,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// GrantRole handles PUT /api/admin/accounts/{id}/roles/{role}
func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	h.setRole(w, r, true)
}

// RevokeRole handles DELETE /api/admin/accounts/{id}/roles/{role}
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	h.setRole(w, r, false)
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request, granted bool) {
	role := models.Role(chi.URLParam(r, "role"))
	if !role.IsValid() {
		writeBadRequest(w, "unknown role")
		return
	}
	account, err := h.services.Accounts.SetRole(r.Context(), caller(r), chi.URLParam(r, "id"), role, granted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// CreateCharges handles POST /api/admin/charges
func (h *Handler) CreateCharges(w http.ResponseWriter, r *http.Request) {
	var req createChargesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	dueDate, err := time.Parse(time.DateOnly, req.DueDate)
	if err != nil {
		writeValidationError(w, map[string]string{"due_date": "Must be a date formatted as " + time.DateOnly})
		return
	}

	ids, err := h.services.Charges.CreateCharges(r.Context(), caller(r), service.CreateChargesRequest{
		AccountIDs: req.AccountIDs,
		Title:      req.Title,
		Amount:     parseMoney(req.Amount),
		DueDate:    dueDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createChargesResponse{ChargeIDs: ids})
}

// PendingReview handles GET /api/admin/transactions/pending
func (h *Handler) PendingReview(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	txs, err := h.services.Queries.PendingReview(r.Context(), caller(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

// ResolveTransaction handles POST /api/admin/transactions/{id}/resolve
func (h *Handler) ResolveTransaction(w http.ResponseWriter, r *http.Request) {
	var req resolveTransactionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tx, err := h.services.Settlement.ResolveTransaction(r.Context(), caller(r), service.ResolveRequest{
		TransactionID: chi.URLParam(r, "id"),
		Decision:      service.Decision(req.Decision),
		Reason:        req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// AdjustBalance handles POST /api/admin/adjustments
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustBalanceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tx, err := h.services.Adjustments.AdjustBalance(r.Context(), caller(r), service.AdjustRequest{
		AccountID:    req.AccountID,
		SignedAmount: parseMoney(req.Amount),
		Reason:       req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// queryLimit reads the optional limit parameter; zero means the service default
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
