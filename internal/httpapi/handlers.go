package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"core-ledger/internal/domain"
	"core-ledger/internal/ledger"
)

type Handlers struct {
	lg *ledger.Ledger
}

func NewHandlers(lg *ledger.Ledger) *Handlers { return &Handlers{lg: lg} }

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func httpStatusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrDuplicateIdempotencyKey):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownAccount),
		errors.Is(err, domain.ErrUnknownGroup),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAGroupRoot),
		errors.Is(err, domain.ErrInvalidRefund),
		errors.Is(err, domain.ErrIntegrityViolation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

func publicErrMessage(code int, err error) string {
	if code >= 500 {
		return "internal error"
	}
	return err.Error()
}

func parseIdemKey(s *string) (*domain.IdempotencyKey, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	k, err := domain.ParseIdempotencyKey(*s)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func parsePrevTxID(s *string) (*domain.TxID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	id, err := domain.ParseTxID(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func pathAccountID(w http.ResponseWriter, raw string) (domain.AccountID, bool) {
	id, err := domain.ParseAccountID(raw)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid account id")
		return domain.AccountID{}, false
	}
	return id, true
}

func pathTxID(w http.ResponseWriter, raw string) (domain.TxID, bool) {
	id, err := domain.ParseTxID(raw)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid transaction id")
		return domain.TxID{}, false
	}
	return id, true
}

// POST /v1/accounts
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	key, err := parseIdemKey(req.IdempotencyKey)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid idempotency key")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	accID, txID, err := h.lg.CreateAccount(ctx, req.Name, key)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusCreated, domain.CreateAccountResponse{AccountID: accID, TxID: txID})
}

// POST /v1/accounts/{id}/pending
func (h *Handlers) CreatePending(w http.ResponseWriter, r *http.Request, accountIDRaw string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	accID, ok := pathAccountID(w, accountIDRaw)
	if !ok {
		return
	}

	var req domain.CreatePendingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	amount, err := domain.MoneyFromString(req.Amount)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid amount")
		return
	}
	key, err := parseIdemKey(req.IdempotencyKey)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid idempotency key")
		return
	}
	prev, err := parsePrevTxID(req.PrevTxID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid prev_tx_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	txID, err := h.lg.CreatePendingTransaction(ctx, accID, amount, key, prev)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusCreated, domain.TxIDResponse{TxID: txID})
}

// POST /v1/groups/{group_tx_id}/settle
func (h *Handlers) Settle(w http.ResponseWriter, r *http.Request, groupTxIDRaw string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	groupTxID, ok := pathTxID(w, groupTxIDRaw)
	if !ok {
		return
	}

	var req domain.SettleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	key, err := parseIdemKey(req.IdempotencyKey)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid idempotency key")
		return
	}
	prev, err := parsePrevTxID(req.PrevTxID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid prev_tx_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	txID, err := h.lg.SettleTransaction(ctx, groupTxID, key, prev)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusCreated, domain.TxIDResponse{TxID: txID})
}

// POST /v1/groups/{group_tx_id}/refund
func (h *Handlers) Refund(w http.ResponseWriter, r *http.Request, groupTxIDRaw string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	groupTxID, ok := pathTxID(w, groupTxIDRaw)
	if !ok {
		return
	}

	var req domain.RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	amount, err := domain.MoneyFromString(req.Amount)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid amount")
		return
	}
	key, err := parseIdemKey(req.IdempotencyKey)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid idempotency key")
		return
	}
	prev, err := parsePrevTxID(req.PrevTxID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid prev_tx_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	txID, err := h.lg.RefundPendingTransaction(ctx, groupTxID, amount, key, prev)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusCreated, domain.TxIDResponse{TxID: txID})
}

// GET /v1/accounts/{id}/balance
func (h *Handlers) GetBalance(w http.ResponseWriter, r *http.Request, accountIDRaw string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	accID, ok := pathAccountID(w, accountIDRaw)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bal, err := h.lg.GetBalance(ctx, accID)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusOK, domain.BalanceResponse{
		AccountID: accID,
		Current:   bal.Current,
		Available: bal.Available,
	})
}

// GET /v1/accounts/{id}/transactions
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request, accountIDRaw string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	accID, ok := pathAccountID(w, accountIDRaw)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := h.lg.ListTransactions(ctx, accID)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	resp := domain.TransactionsResponse{Transactions: make([]domain.EventResponse, len(events))}
	for i, e := range events {
		resp.Transactions[i] = domain.NewEventResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/accounts/{id}/transactions/latest
func (h *Handlers) GetLatestTransaction(w http.ResponseWriter, r *http.Request, accountIDRaw string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	accID, ok := pathAccountID(w, accountIDRaw)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ev, err := h.lg.GetLatestTransaction(ctx, accID)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusOK, domain.NewEventResponse(ev))
}

// GET /v1/transactions/{id}
func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request, txIDRaw string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	txID, ok := pathTxID(w, txIDRaw)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ev, err := h.lg.GetTransaction(ctx, txID)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusOK, domain.NewEventResponse(ev))
}

// GET /v1/accounts/{id}/verify
func (h *Handlers) VerifyChain(w http.ResponseWriter, r *http.Request, accountIDRaw string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	accID, ok := pathAccountID(w, accountIDRaw)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ok2, brokenAt, reason, err := h.lg.VerifyChain(ctx, accID)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	resp := domain.VerifyChainResponse{OK: ok2}
	if !ok2 {
		resp.BrokenAt = &brokenAt
		resp.Reason = &reason
	}
	writeJSON(w, http.StatusOK, resp)
}
