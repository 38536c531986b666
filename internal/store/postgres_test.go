package store_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"core-ledger/internal/domain"
	"core-ledger/internal/ledger"
	"core-ledger/internal/store"
)

func mustEnv(t *testing.T, key string) string {
	t.Helper()
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		t.Skipf("missing %s env var", key)
	}
	return v
}

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := mustEnv(t, "LEDGER_DB_DSN")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := store.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// TestPostgres_CreateAccount_Settle_RoundTrip exercises the real schema
// end to end: open a debit pending, settle it, confirm the head event
// round-trips through Postgres with the same balances the engine computed.
func TestPostgres_CreateAccount_Settle_RoundTrip(t *testing.T) {
	pool := testPool(t)
	lg := ledger.New(store.NewPostgres(pool), nil)
	ctx := context.Background()

	name := "postgres-roundtrip-" + domain.NewAccountID().String()[:8]
	accID, _, err := lg.CreateAccount(ctx, name, nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	amount, _ := domain.MoneyFromString("50.00")
	groupTxID, err := lg.CreatePendingTransaction(ctx, accID, amount, nil, nil)
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	if _, err := lg.SettleTransaction(ctx, groupTxID, nil, nil); err != nil {
		t.Fatalf("settle: %v", err)
	}

	bal, err := lg.GetBalance(ctx, accID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Current.Equal(amount) || !bal.Available.Equal(amount) {
		t.Fatalf("unexpected balance after debit settle: current=%s available=%s", bal.Current, bal.Available)
	}

	ok, _, _, err := lg.VerifyChain(ctx, accID)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if !ok {
		t.Fatalf("chain failed verification after round trip")
	}
}

func TestPostgres_DuplicateAccountName_Rejected(t *testing.T) {
	pool := testPool(t)
	lg := ledger.New(store.NewPostgres(pool), nil)
	ctx := context.Background()

	name := "postgres-dup-" + domain.NewAccountID().String()[:8]
	if _, _, err := lg.CreateAccount(ctx, name, nil); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, _, err := lg.CreateAccount(ctx, name, nil); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
}
