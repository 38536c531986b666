package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"core-ledger/internal/domain"
)

// Ledger is the operation surface of spec §4.3: it composes the resolver
// and the balance/invariant engine, binds idempotency keys, performs the
// optimistic-lock check, and persists the resulting event through a
// single Repository transaction.
type Ledger struct {
	repo Repository
	log  *log.Logger
}

func New(repo Repository, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{repo: repo, log: logger}
}

// CreateAccount inserts an Account and its NEW_ACCOUNT event atomically
// (§4.3.1).
func (l *Ledger) CreateAccount(ctx context.Context, name string, idemKey *domain.IdempotencyKey) (domain.AccountID, domain.TxID, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 30 {
		return domain.AccountID{}, domain.TxID{}, fmt.Errorf("%w: account name must be 1-30 characters", domain.ErrIntegrityViolation)
	}
	key := resolveIdemKey(idemKey)

	var accID domain.AccountID
	var rootID domain.TxID

	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		if existing, ok, err := lookupIdempotent(ctx, tx, key); err != nil {
			return err
		} else if ok {
			accID, rootID = existing.AccountID, existing.ID
			return nil
		}

		if _, err := tx.AccountByName(ctx, name); err == nil {
			return domain.ErrDuplicateName
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		accID = domain.NewAccountID()
		root := newAccountEvent(accID, key)

		if err := tx.InsertAccount(ctx, domain.Account{ID: accID, Name: name}, root); err != nil {
			return err
		}
		rootID = root.ID
		return nil
	})
	if err != nil {
		return domain.AccountID{}, domain.TxID{}, err
	}

	l.log.Info("account created", "account_id", accID, "tx_id", rootID)
	return accID, rootID, nil
}

// CreatePendingTransaction appends a PENDING event (§4.3.2). prevTxID, if
// non-nil, is the caller's optimistic-lock expectation: the append fails
// with ErrConcurrentModification if it does not match the current head.
func (l *Ledger) CreatePendingTransaction(ctx context.Context, accountID domain.AccountID, amount domain.Money, idemKey *domain.IdempotencyKey, prevTxID *domain.TxID) (domain.TxID, error) {
	key := resolveIdemKey(idemKey)

	var txID domain.TxID
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		if existing, ok, err := lookupIdempotent(ctx, tx, key); err != nil {
			return err
		} else if ok {
			txID = existing.ID
			return nil
		}

		head, err := tx.HeadOfAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := checkOptimisticLock(prevTxID, head.ID); err != nil {
			return err
		}

		ev, err := applyPending(head, accountID, key, amount)
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		txID = ev.ID
		return nil
	})
	if err != nil {
		return domain.TxID{}, err
	}

	l.log.Info("pending transaction created", "account_id", accountID, "tx_id", txID, "amount", amount)
	return txID, nil
}

// SettleTransaction appends a SETTLEMENT closing groupTxID (§4.3.3).
func (l *Ledger) SettleTransaction(ctx context.Context, groupTxID domain.TxID, idemKey *domain.IdempotencyKey, prevTxID *domain.TxID) (domain.TxID, error) {
	key := resolveIdemKey(idemKey)

	var txID domain.TxID
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		if existing, ok, err := lookupIdempotent(ctx, tx, key); err != nil {
			return err
		} else if ok {
			txID = existing.ID
			return nil
		}

		groupRoot, groupHead, accountHead, err := resolveGroup(ctx, tx, groupTxID)
		if err != nil {
			return err
		}
		if err := checkOptimisticLock(prevTxID, accountHead.ID); err != nil {
			return err
		}

		ev, err := applySettlement(groupRoot, groupHead, accountHead, key)
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		txID = ev.ID
		return nil
	})
	if err != nil {
		return domain.TxID{}, err
	}

	l.log.Info("transaction settled", "group_tx_id", groupTxID, "tx_id", txID)
	return txID, nil
}

// RefundPendingTransaction appends a REFUND against an open credit group
// (§4.3.4).
func (l *Ledger) RefundPendingTransaction(ctx context.Context, groupTxID domain.TxID, amount domain.Money, idemKey *domain.IdempotencyKey, prevTxID *domain.TxID) (domain.TxID, error) {
	key := resolveIdemKey(idemKey)

	var txID domain.TxID
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		if existing, ok, err := lookupIdempotent(ctx, tx, key); err != nil {
			return err
		} else if ok {
			txID = existing.ID
			return nil
		}

		groupRoot, groupHead, accountHead, err := resolveGroup(ctx, tx, groupTxID)
		if err != nil {
			return err
		}
		if err := checkOptimisticLock(prevTxID, accountHead.ID); err != nil {
			return err
		}

		ev, err := applyRefund(groupRoot, groupHead, accountHead, key, amount)
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		txID = ev.ID
		return nil
	})
	if err != nil {
		return domain.TxID{}, err
	}

	l.log.Info("transaction refunded", "group_tx_id", groupTxID, "tx_id", txID, "amount", amount)
	return txID, nil
}

// Balance is the read shape of §4.3.5's get_balance.
type Balance struct {
	Current   domain.Money
	Available domain.Money
}

func (l *Ledger) GetBalance(ctx context.Context, accountID domain.AccountID) (Balance, error) {
	var bal Balance
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		head, err := tx.HeadOfAccount(ctx, accountID)
		if err != nil {
			return err
		}
		bal = Balance{Current: head.CurrentBalance, Available: head.AvailableBalance}
		return nil
	})
	return bal, err
}

// ListTransactions returns the full chain from NEW_ACCOUNT to head, in
// chain order (§4.3.5).
func (l *Ledger) ListTransactions(ctx context.Context, accountID domain.AccountID) ([]domain.Event, error) {
	var events []domain.Event
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		var err error
		events, err = tx.ListByAccount(ctx, accountID)
		return err
	})
	return events, err
}

func (l *Ledger) GetLatestTransaction(ctx context.Context, accountID domain.AccountID) (domain.Event, error) {
	var ev domain.Event
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		var err error
		ev, err = tx.HeadOfAccount(ctx, accountID)
		return err
	})
	return ev, err
}

func (l *Ledger) GetTransaction(ctx context.Context, id domain.TxID) (domain.Event, error) {
	var ev domain.Event
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx RepoTx) error {
		var err error
		ev, err = tx.EventByID(ctx, id)
		return err
	})
	return ev, err
}

// VerifyChain walks an account's chain from NEW_ACCOUNT to head and
// re-derives every hash, per §4.2/§4.7. The check runs in Go, not as a
// store query: a mismatch means either storage corruption or a
// hand-crafted row that bypassed the ledger API.
func (l *Ledger) VerifyChain(ctx context.Context, accountID domain.AccountID) (ok bool, brokenAt domain.TxID, reason string, err error) {
	events, err := l.ListTransactions(ctx, accountID)
	if err != nil {
		return false, domain.TxID{}, "", err
	}

	var prev *domain.Event
	for i := range events {
		ev := events[i]
		if got := ev.ContentHash(); got != ev.ID {
			return false, ev.ID, "content hash mismatch", nil
		}
		if i == 0 {
			if ev.Kind != domain.KindNewAccount || ev.PrevTxID != nil {
				return false, ev.ID, "chain does not start at NEW_ACCOUNT", nil
			}
		} else {
			if ev.PrevTxID == nil || *ev.PrevTxID != prev.ID {
				return false, ev.ID, "prev_tx_id does not match predecessor", nil
			}
			if !ev.PrevCurrentBalance.Equal(prev.CurrentBalance) || !ev.PrevAvailableBalance.Equal(prev.AvailableBalance) {
				return false, ev.ID, "denormalized predecessor balances do not match", nil
			}
		}
		if ev.CurrentBalance.LessThan(domain.Zero) || ev.AvailableBalance.LessThan(domain.Zero) {
			return false, ev.ID, "negative balance", nil
		}
		if ev.AvailableBalance.GreaterThan(ev.CurrentBalance) {
			return false, ev.ID, "available balance exceeds current balance", nil
		}
		prev = &events[i]
	}
	return true, domain.TxID{}, "", nil
}

func resolveIdemKey(k *domain.IdempotencyKey) domain.IdempotencyKey {
	if k == nil {
		return domain.NewIdempotencyKey()
	}
	return *k
}

func lookupIdempotent(ctx context.Context, tx RepoTx, key domain.IdempotencyKey) (domain.Event, bool, error) {
	return tx.EventByIdempotencyKey(ctx, key)
}

func checkOptimisticLock(expected *domain.TxID, actualHead domain.TxID) error {
	if expected != nil && *expected != actualHead {
		return domain.ErrConcurrentModification
	}
	return nil
}

// resolveGroup fetches the group's PENDING root, the group chain's
// current head, and the account chain's current head, as needed by
// settle/refund (§4.3.3/§4.3.4).
func resolveGroup(ctx context.Context, tx RepoTx, groupTxID domain.TxID) (groupRoot, groupHead, accountHead domain.Event, err error) {
	groupRoot, err = tx.EventByID(ctx, groupTxID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Event{}, domain.Event{}, domain.Event{}, domain.ErrUnknownGroup
		}
		return domain.Event{}, domain.Event{}, domain.Event{}, err
	}
	if !groupRoot.IsGroupRoot() {
		return domain.Event{}, domain.Event{}, domain.Event{}, domain.ErrNotAGroupRoot
	}

	groupHead, err = tx.HeadOfGroup(ctx, groupTxID)
	if err != nil {
		return domain.Event{}, domain.Event{}, domain.Event{}, err
	}
	if groupHead.Kind == domain.KindSettlement {
		return domain.Event{}, domain.Event{}, domain.Event{}, fmt.Errorf("%w: group already settled", domain.ErrIntegrityViolation)
	}

	accountHead, err = tx.HeadOfAccount(ctx, groupRoot.AccountID)
	if err != nil {
		return domain.Event{}, domain.Event{}, domain.Event{}, err
	}
	return groupRoot, groupHead, accountHead, nil
}
