package domain

import "errors"

// Error taxonomy, §7. Every ledger-API failure is one of these, possibly
// wrapped with fmt.Errorf("%w: ...") for context.
var (
	ErrDuplicateName           = errors.New("account name already exists")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrConcurrentModification  = errors.New("prev_tx_id is not the current head")
	ErrUnknownAccount          = errors.New("unknown account")
	ErrUnknownGroup            = errors.New("unknown group")
	ErrNotAGroupRoot           = errors.New("referenced event is not a pending group root")
	ErrInvalidRefund           = errors.New("invalid refund")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrIntegrityViolation      = errors.New("ledger integrity violation")
	ErrNotFound                = errors.New("not found")
)
