// Package ledger implements the chain & group resolver, the balance &
// invariant engine, and the ledger API surface of spec §4. It depends only
// on internal/domain and the Repository port below; it never imports a
// concrete store, so the same engine runs against Postgres
// (internal/store.Postgres) or an in-memory double (internal/store.Memory)
// in tests.
package ledger

import (
	"context"

	"core-ledger/internal/domain"
)

// Repository is the persistence contract of spec §5/§6: a scoped
// transactional resource, acquired on entry and released on every exit
// path. Implementations commit on a nil return from fn and roll back
// otherwise.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx RepoTx) error) error
}

// RepoTx is the set of operations the ledger API needs from a single
// store transaction. It is the Go-level mirror of the constraints in
// spec §6: implementations MUST enforce account-name uniqueness, event id
// and idempotency-key and prev_tx_id uniqueness. Postgres also enforces the
// balance/ancestry checks of §3 as real constraints; the in-memory double
// enforces only the uniqueness rules, in code.
type RepoTx interface {
	InsertAccount(ctx context.Context, acc domain.Account, root domain.Event) error
	AccountByName(ctx context.Context, name string) (domain.Account, error)
	AccountByID(ctx context.Context, id domain.AccountID) (domain.Account, error)

	InsertEvent(ctx context.Context, ev domain.Event) error
	EventByID(ctx context.Context, id domain.TxID) (domain.Event, error)
	EventByIdempotencyKey(ctx context.Context, key domain.IdempotencyKey) (domain.Event, bool, error)

	// HeadOfAccount returns the unique event of an account's chain that is
	// not referenced as any other event's prev_tx_id (§4.1). Returns
	// domain.ErrUnknownAccount if the account has no events at all.
	HeadOfAccount(ctx context.Context, accountID domain.AccountID) (domain.Event, error)

	// HeadOfGroup is the group-chain analogue of HeadOfAccount, restricted
	// to events sharing groupTxID. Returns domain.ErrUnknownGroup if the
	// group root itself does not exist.
	HeadOfGroup(ctx context.Context, groupTxID domain.TxID) (domain.Event, error)

	// ListByAccount returns the full chain from NEW_ACCOUNT to head, in
	// chain order (§4.3.5).
	ListByAccount(ctx context.Context, accountID domain.AccountID) ([]domain.Event, error)
}
