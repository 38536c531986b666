package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"core-ledger/internal/domain"
	"core-ledger/internal/ledger"
)

// Postgres is the durable implementation of ledger.Repository. It
// persists through a single pgx transaction per operation (scoped
// acquire/guaranteed release, §5/§9) and relies on the schema of
// migrations/0001_init.sql to enforce the integrity contract of §6 as
// real constraints, in addition to the Go-side checks in internal/ledger.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres { return &Postgres{db: db} }

func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.RepoTx) error) error {
	pgTx, err := p.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer pgTx.Rollback(ctx)

	repoTx := &postgresTx{tx: pgTx}
	if err := fn(ctx, repoTx); err != nil {
		return mapPgError(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

// eventPayload is the JSON shape canonicalized (RFC 8785/JCS) into each
// row's payload_canonical column: an audit-friendly sidecar of the event,
// independent of the event's own content-hash canonical form (§4.2).
type eventPayload struct {
	ID                     string `json:"id"`
	IdempotencyKey         string `json:"idempotency_key"`
	AccountID              string `json:"account_id"`
	Kind                   string `json:"kind"`
	Amount                 string `json:"amount"`
	PendingAmount          string `json:"pending_amount"`
	GroupTxID              string `json:"group_tx_id"`
	GroupPrevTxID          string `json:"group_prev_tx_id"`
	GroupPrevPendingAmount string `json:"group_prev_pending_amount"`
	PrevTxID               string `json:"prev_tx_id"`
	PrevCurrentBalance     string `json:"prev_current_balance"`
	PrevAvailableBalance   string `json:"prev_available_balance"`
	CurrentBalance         string `json:"current_balance"`
	AvailableBalance       string `json:"available_balance"`
}

func canonicalPayload(ev domain.Event) (string, error) {
	p := eventPayload{
		ID:                     ev.ID.String(),
		IdempotencyKey:         ev.IdempotencyKey.String(),
		AccountID:              ev.AccountID.String(),
		Kind:                   string(ev.Kind),
		Amount:                 ev.Amount.Canonical(),
		PendingAmount:          ev.PendingAmount.Canonical(),
		GroupPrevPendingAmount: ev.GroupPrevPendingAmount.Canonical(),
		PrevCurrentBalance:     ev.PrevCurrentBalance.Canonical(),
		PrevAvailableBalance:   ev.PrevAvailableBalance.Canonical(),
		CurrentBalance:         ev.CurrentBalance.Canonical(),
		AvailableBalance:       ev.AvailableBalance.Canonical(),
	}
	if ev.GroupTxID != nil {
		p.GroupTxID = ev.GroupTxID.String()
	}
	if ev.GroupPrevTxID != nil {
		p.GroupPrevTxID = ev.GroupPrevTxID.String()
	}
	if ev.PrevTxID != nil {
		p.PrevTxID = ev.PrevTxID.String()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	return string(canon), nil
}

func (t *postgresTx) AccountByName(ctx context.Context, name string) (domain.Account, error) {
	var acc domain.Account
	err := t.tx.QueryRow(ctx, `SELECT account_id, name FROM accounts WHERE name=$1`, name).
		Scan(&acc.ID, &acc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	return acc, err
}

func (t *postgresTx) AccountByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	var acc domain.Account
	err := t.tx.QueryRow(ctx, `SELECT account_id, name FROM accounts WHERE account_id=$1`, id).
		Scan(&acc.ID, &acc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	return acc, err
}

func (t *postgresTx) InsertAccount(ctx context.Context, acc domain.Account, root domain.Event) error {
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO accounts(account_id, name) VALUES ($1, $2)`,
		acc.ID, acc.Name,
	); err != nil {
		return err
	}
	return t.InsertEvent(ctx, root)
}

func (t *postgresTx) InsertEvent(ctx context.Context, ev domain.Event) error {
	payload, err := canonicalPayload(ev)
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO events (
			id, idempotency_key, account_id, kind, amount, pending_amount,
			group_tx_id, group_prev_tx_id, group_prev_pending_amount,
			prev_tx_id, prev_current_balance, prev_available_balance,
			current_balance, available_balance, payload_canonical
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`,
		ev.ID[:], ev.IdempotencyKey, ev.AccountID, string(ev.Kind), ev.Amount, ev.PendingAmount,
		optionalBytes(ev.GroupTxID), optionalBytes(ev.GroupPrevTxID), ev.GroupPrevPendingAmount,
		optionalBytes(ev.PrevTxID), ev.PrevCurrentBalance, ev.PrevAvailableBalance,
		ev.CurrentBalance, ev.AvailableBalance, payload,
	)
	return err
}

func optionalBytes(id *domain.TxID) []byte {
	if id == nil {
		return nil
	}
	b := (*id)[:]
	return b
}

const eventColumns = `id, idempotency_key, account_id, kind, amount, pending_amount,
	group_tx_id, group_prev_tx_id, group_prev_pending_amount,
	prev_tx_id, prev_current_balance, prev_available_balance,
	current_balance, available_balance`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var ev domain.Event
	var id, groupTxID, groupPrevTxID, prevTxID []byte
	var kind string

	err := row.Scan(
		&id, &ev.IdempotencyKey, &ev.AccountID, &kind, &ev.Amount, &ev.PendingAmount,
		&groupTxID, &groupPrevTxID, &ev.GroupPrevPendingAmount,
		&prevTxID, &ev.PrevCurrentBalance, &ev.PrevAvailableBalance,
		&ev.CurrentBalance, &ev.AvailableBalance,
	)
	if err != nil {
		return domain.Event{}, err
	}

	ev.Kind = domain.TxKind(kind)
	copy(ev.ID[:], id)
	ev.GroupTxID = bytesToTxID(groupTxID)
	ev.GroupPrevTxID = bytesToTxID(groupPrevTxID)
	ev.PrevTxID = bytesToTxID(prevTxID)
	return ev, nil
}

func bytesToTxID(b []byte) *domain.TxID {
	if len(b) == 0 {
		return nil
	}
	var id domain.TxID
	copy(id[:], b)
	return &id
}

func (t *postgresTx) EventByID(ctx context.Context, id domain.TxID) (domain.Event, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id[:])
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrNotFound
	}
	return ev, err
}

func (t *postgresTx) EventByIdempotencyKey(ctx context.Context, key domain.IdempotencyKey) (domain.Event, bool, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE idempotency_key=$1`, key)
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, false, nil
	}
	if err != nil {
		return domain.Event{}, false, err
	}
	return ev, true, nil
}

// HeadOfAccount answers §4.1's set-difference rule with a single indexed
// query instead of loading the whole chain: the row whose id is not
// anybody's prev_tx_id.
func (t *postgresTx) HeadOfAccount(ctx context.Context, accountID domain.AccountID) (domain.Event, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+eventColumns+`
		  FROM events e
		 WHERE e.account_id = $1
		   AND NOT EXISTS (SELECT 1 FROM events c WHERE c.prev_tx_id = e.id)
	`, accountID)
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrUnknownAccount
	}
	return ev, err
}

func (t *postgresTx) HeadOfGroup(ctx context.Context, groupTxID domain.TxID) (domain.Event, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+eventColumns+`
		  FROM events e
		 WHERE e.group_tx_id = $1
		   AND NOT EXISTS (SELECT 1 FROM events c WHERE c.group_prev_tx_id = e.id)
	`, groupTxID[:])
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrUnknownGroup
	}
	return ev, err
}

func (t *postgresTx) ListByAccount(ctx context.Context, accountID domain.AccountID) ([]domain.Event, error) {
	rows, err := t.tx.Query(ctx, `
		WITH RECURSIVE chain AS (
			SELECT `+eventColumns+`, 0 AS depth
			  FROM events
			 WHERE account_id = $1 AND kind = 'NEW_ACCOUNT'
			UNION ALL
			SELECT e.id, e.idempotency_key, e.account_id, e.kind, e.amount, e.pending_amount,
			       e.group_tx_id, e.group_prev_tx_id, e.group_prev_pending_amount,
			       e.prev_tx_id, e.prev_current_balance, e.prev_available_balance,
			       e.current_balance, e.available_balance, c.depth + 1
			  FROM events e
			  JOIN chain c ON e.prev_tx_id = c.id
		)
		SELECT `+eventColumns+` FROM chain ORDER BY depth
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrUnknownAccount
	}
	return out, nil
}

// mapPgError translates Postgres constraint violations into the §7 error
// taxonomy so callers never need to know the engine enforces invariants
// twice.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.ConstraintName {
	case "accounts_name_key":
		return domain.ErrDuplicateName
	case "events_idempotency_key_key":
		return domain.ErrDuplicateIdempotencyKey
	case "events_prev_tx_id_key":
		return domain.ErrConcurrentModification
	}

	switch pgErr.Code {
	case "23505", "23503", "23514":
		return fmt.Errorf("%w: %s", domain.ErrIntegrityViolation, pgErr.ConstraintName)
	}
	return err
}
