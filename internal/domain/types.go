package domain

// Request/response DTOs for the HTTP surface (SPEC_FULL.md §4.8). These
// are transport shapes only; the engine itself speaks in Account/Event.

type CreateAccountRequest struct {
	Name           string  `json:"name"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

type CreateAccountResponse struct {
	AccountID AccountID `json:"account_id"`
	TxID      TxID      `json:"tx_id"`
}

type CreatePendingRequest struct {
	Amount         string  `json:"amount"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
	PrevTxID       *string `json:"prev_tx_id,omitempty"`
}

type SettleRequest struct {
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
	PrevTxID       *string `json:"prev_tx_id,omitempty"`
}

type RefundRequest struct {
	Amount         string  `json:"amount"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
	PrevTxID       *string `json:"prev_tx_id,omitempty"`
}

type TxIDResponse struct {
	TxID TxID `json:"tx_id"`
}

type BalanceResponse struct {
	AccountID AccountID `json:"account_id"`
	Current   Money     `json:"current_balance"`
	Available Money     `json:"available_balance"`
}

type EventResponse struct {
	ID                     TxID      `json:"id"`
	IdempotencyKey         string    `json:"idempotency_key"`
	AccountID              AccountID `json:"account_id"`
	Kind                   TxKind    `json:"kind"`
	Amount                 Money     `json:"amount"`
	PendingAmount          Money     `json:"pending_amount"`
	GroupTxID              *TxID     `json:"group_tx_id,omitempty"`
	GroupPrevTxID          *TxID     `json:"group_prev_tx_id,omitempty"`
	GroupPrevPendingAmount Money     `json:"group_prev_pending_amount"`
	PrevTxID               *TxID     `json:"prev_tx_id,omitempty"`
	PrevCurrentBalance     Money     `json:"prev_current_balance"`
	PrevAvailableBalance   Money     `json:"prev_available_balance"`
	CurrentBalance         Money     `json:"current_balance"`
	AvailableBalance       Money     `json:"available_balance"`
}

func NewEventResponse(e Event) EventResponse {
	return EventResponse{
		ID:                     e.ID,
		IdempotencyKey:         e.IdempotencyKey.String(),
		AccountID:              e.AccountID,
		Kind:                   e.Kind,
		Amount:                 e.Amount,
		PendingAmount:          e.PendingAmount,
		GroupTxID:              e.GroupTxID,
		GroupPrevTxID:          e.GroupPrevTxID,
		GroupPrevPendingAmount: e.GroupPrevPendingAmount,
		PrevTxID:               e.PrevTxID,
		PrevCurrentBalance:     e.PrevCurrentBalance,
		PrevAvailableBalance:   e.PrevAvailableBalance,
		CurrentBalance:         e.CurrentBalance,
		AvailableBalance:       e.AvailableBalance,
	}
}

type TransactionsResponse struct {
	Transactions []EventResponse `json:"transactions"`
}

type VerifyChainResponse struct {
	OK       bool    `json:"ok"`
	BrokenAt *TxID   `json:"broken_at,omitempty"`
	Reason   *string `json:"reason,omitempty"`
}
