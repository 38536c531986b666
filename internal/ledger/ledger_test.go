package ledger_test

import (
	"context"
	"errors"
	"testing"

	"core-ledger/internal/domain"
	"core-ledger/internal/ledger"
	"core-ledger/internal/store"
)

func newLedger() *ledger.Ledger {
	return ledger.New(store.NewMemory(), nil)
}

func money(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.MoneyFromString(s)
	if err != nil {
		t.Fatalf("money %q: %v", s, err)
	}
	return m
}

// TestOpenDebitSettle walks the simplest scenario: open a debit hold,
// settle it, and confirm funds land on both balances only after
// settlement.
func TestOpenDebitSettle(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, _, err := lg.CreateAccount(ctx, "alice", nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	groupTxID, err := lg.CreatePendingTransaction(ctx, accID, money(t, "100"), nil, nil)
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	bal, err := lg.GetBalance(ctx, accID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Current.IsZero() || !bal.Available.IsZero() {
		t.Fatalf("debit pending should not move balances yet: %+v", bal)
	}

	if _, err := lg.SettleTransaction(ctx, groupTxID, nil, nil); err != nil {
		t.Fatalf("settle: %v", err)
	}

	bal, err = lg.GetBalance(ctx, accID)
	if err != nil {
		t.Fatalf("get balance after settle: %v", err)
	}
	want := money(t, "100")
	if !bal.Current.Equal(want) || !bal.Available.Equal(want) {
		t.Fatalf("got current=%s available=%s, want %s on both", bal.Current, bal.Available, want)
	}
}

// TestCreditReservesAvailableBalance: a credit pending reserves funds out
// of available_balance immediately, before settlement.
func TestCreditReservesAvailableBalance(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, _, err := lg.CreateAccount(ctx, "bob", nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	// Fund the account first so the credit hold has something to draw down.
	fundGroup, err := lg.CreatePendingTransaction(ctx, accID, money(t, "200"), nil, nil)
	if err != nil {
		t.Fatalf("fund pending: %v", err)
	}
	if _, err := lg.SettleTransaction(ctx, fundGroup, nil, nil); err != nil {
		t.Fatalf("fund settle: %v", err)
	}

	groupTxID, err := lg.CreatePendingTransaction(ctx, accID, money(t, "-30"), nil, nil)
	if err != nil {
		t.Fatalf("credit pending: %v", err)
	}

	bal, err := lg.GetBalance(ctx, accID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Current.Equal(money(t, "200")) {
		t.Fatalf("current balance should be untouched by an open credit: got %s", bal.Current)
	}
	if !bal.Available.Equal(money(t, "170")) {
		t.Fatalf("available balance should reflect the hold: got %s", bal.Available)
	}

	if _, err := lg.SettleTransaction(ctx, groupTxID, nil, nil); err != nil {
		t.Fatalf("settle credit: %v", err)
	}
	bal, err = lg.GetBalance(ctx, accID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Current.Equal(money(t, "170")) || !bal.Available.Equal(money(t, "170")) {
		t.Fatalf("post-settlement balances should converge: got current=%s available=%s", bal.Current, bal.Available)
	}
}

// TestPartialRefundsThenSettle issues two partial refunds against an open
// credit group, then settles the remainder.
func TestPartialRefundsThenSettle(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, _, err := lg.CreateAccount(ctx, "carol", nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	fundGroup, _ := lg.CreatePendingTransaction(ctx, accID, money(t, "500"), nil, nil)
	if _, err := lg.SettleTransaction(ctx, fundGroup, nil, nil); err != nil {
		t.Fatalf("fund settle: %v", err)
	}

	groupTxID, err := lg.CreatePendingTransaction(ctx, accID, money(t, "-100"), nil, nil)
	if err != nil {
		t.Fatalf("open credit: %v", err)
	}

	if _, err := lg.RefundPendingTransaction(ctx, groupTxID, money(t, "40"), nil, nil); err != nil {
		t.Fatalf("refund 1: %v", err)
	}
	if _, err := lg.RefundPendingTransaction(ctx, groupTxID, money(t, "25"), nil, nil); err != nil {
		t.Fatalf("refund 2: %v", err)
	}

	bal, err := lg.GetBalance(ctx, accID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	// 500 funded, 100 held, 65 refunded back into available.
	if !bal.Available.Equal(money(t, "465")) {
		t.Fatalf("got available=%s, want 465", bal.Available)
	}

	if _, err := lg.SettleTransaction(ctx, groupTxID, nil, nil); err != nil {
		t.Fatalf("settle remainder: %v", err)
	}
	bal, err = lg.GetBalance(ctx, accID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	// Remaining pending amount after 65 refunded is -35.
	if !bal.Current.Equal(money(t, "465")) || !bal.Available.Equal(money(t, "465")) {
		t.Fatalf("got current=%s available=%s, want 465 on both", bal.Current, bal.Available)
	}
}

func TestOverRefundRejected(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, _, _ := lg.CreateAccount(ctx, "dave", nil)
	// Fund the account first so the credit hold has something to draw down.
	fundGroup, err := lg.CreatePendingTransaction(ctx, accID, money(t, "100"), nil, nil)
	if err != nil {
		t.Fatalf("fund pending: %v", err)
	}
	if _, err := lg.SettleTransaction(ctx, fundGroup, nil, nil); err != nil {
		t.Fatalf("fund settle: %v", err)
	}

	groupTxID, err := lg.CreatePendingTransaction(ctx, accID, money(t, "-50"), nil, nil)
	if err != nil {
		t.Fatalf("open credit: %v", err)
	}

	if _, err := lg.RefundPendingTransaction(ctx, groupTxID, money(t, "51"), nil, nil); !errors.Is(err, domain.ErrInvalidRefund) {
		t.Fatalf("got %v, want ErrInvalidRefund", err)
	}
}

func TestInsufficientFundsOnCredit(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, _, _ := lg.CreateAccount(ctx, "erin", nil)
	if _, err := lg.CreatePendingTransaction(ctx, accID, money(t, "-10"), nil, nil); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestOptimisticLockCollision(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, rootID, _ := lg.CreateAccount(ctx, "frank", nil)

	stale := rootID
	if _, err := lg.CreatePendingTransaction(ctx, accID, money(t, "10"), nil, &stale); err != nil {
		t.Fatalf("first append against fresh head: %v", err)
	}

	// stale now points at the NEW_ACCOUNT event, no longer the head.
	if _, err := lg.CreatePendingTransaction(ctx, accID, money(t, "5"), nil, &stale); !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("got %v, want ErrConcurrentModification", err)
	}
}

func TestIdempotentRetryReturnsSameTx(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, _, _ := lg.CreateAccount(ctx, "grace", nil)
	key := domain.NewIdempotencyKey()

	first, err := lg.CreatePendingTransaction(ctx, accID, money(t, "10"), &key, nil)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := lg.CreatePendingTransaction(ctx, accID, money(t, "10"), &key, nil)
	if err != nil {
		t.Fatalf("retried call: %v", err)
	}
	if first != second {
		t.Fatalf("idempotent retry produced a different tx id: %s vs %s", first, second)
	}

	events, err := lg.ListTransactions(ctx, accID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("retry should not append a second event, got %d events", len(events))
	}
}

func TestVerifyChainAcceptsUntamperedChain(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	accID, _, _ := lg.CreateAccount(ctx, "heidi", nil)
	groupTxID, _ := lg.CreatePendingTransaction(ctx, accID, money(t, "20"), nil, nil)
	if _, err := lg.SettleTransaction(ctx, groupTxID, nil, nil); err != nil {
		t.Fatalf("settle: %v", err)
	}

	ok, _, _, err := lg.VerifyChain(ctx, accID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("freshly built chain should verify")
	}
}

func TestSettleUnknownGroup(t *testing.T) {
	lg := newLedger()
	ctx := context.Background()

	if _, err := lg.SettleTransaction(ctx, domain.TxID{0xAA}, nil, nil); !errors.Is(err, domain.ErrUnknownGroup) {
		t.Fatalf("got %v, want ErrUnknownGroup", err)
	}
}
