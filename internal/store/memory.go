package store

import (
	"context"
	"fmt"
	"sync"

	"core-ledger/internal/domain"
	"core-ledger/internal/ledger"
)

// Memory is an in-process Repository/RepoTx double. It enforces the
// uniqueness rules of §6 (account name, event id, idempotency key, and
// prev_tx_id within an account); it does not re-check balance arithmetic,
// non-negative balances or predecessor balances, which come only from the
// engine's own computation. Heads are re-derived on every call with
// ledger.AccountHead/GroupHead (there is no head cache), so tests exercise
// the same resolver algorithm a from-scratch store backend would need. It is not meant to
// survive a process restart; internal/store.Postgres is the durable
// implementation of the same Repository port.
type Memory struct {
	mu sync.Mutex

	accountsByName map[string]domain.AccountID
	accounts       map[domain.AccountID]domain.Account
	events         map[domain.TxID]domain.Event
	byIdemKey      map[domain.IdempotencyKey]domain.TxID
	accountEvents  map[domain.AccountID][]domain.TxID
	groupEvents    map[domain.TxID][]domain.TxID
}

func NewMemory() *Memory {
	return &Memory{
		accountsByName: map[string]domain.AccountID{},
		accounts:       map[domain.AccountID]domain.Account{},
		events:         map[domain.TxID]domain.Event{},
		byIdemKey:      map[domain.IdempotencyKey]domain.TxID{},
		accountEvents:  map[domain.AccountID][]domain.TxID{},
		groupEvents:    map[domain.TxID][]domain.TxID{},
	}
}

type memorySnapshot struct {
	accountsByName map[string]domain.AccountID
	accounts       map[domain.AccountID]domain.Account
	events         map[domain.TxID]domain.Event
	byIdemKey      map[domain.IdempotencyKey]domain.TxID
	accountEvents  map[domain.AccountID][]domain.TxID
	groupEvents    map[domain.TxID][]domain.TxID
}

func cloneTxIDs(s []domain.TxID) []domain.TxID {
	out := make([]domain.TxID, len(s))
	copy(out, s)
	return out
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		accountsByName: make(map[string]domain.AccountID, len(m.accountsByName)),
		accounts:       make(map[domain.AccountID]domain.Account, len(m.accounts)),
		events:         make(map[domain.TxID]domain.Event, len(m.events)),
		byIdemKey:      make(map[domain.IdempotencyKey]domain.TxID, len(m.byIdemKey)),
		accountEvents:  make(map[domain.AccountID][]domain.TxID, len(m.accountEvents)),
		groupEvents:    make(map[domain.TxID][]domain.TxID, len(m.groupEvents)),
	}
	for k, v := range m.accountsByName {
		s.accountsByName[k] = v
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.events {
		s.events[k] = v
	}
	for k, v := range m.byIdemKey {
		s.byIdemKey[k] = v
	}
	for k, v := range m.accountEvents {
		s.accountEvents[k] = cloneTxIDs(v)
	}
	for k, v := range m.groupEvents {
		s.groupEvents[k] = cloneTxIDs(v)
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.accountsByName = s.accountsByName
	m.accounts = s.accounts
	m.events = s.events
	m.byIdemKey = s.byIdemKey
	m.accountEvents = s.accountEvents
	m.groupEvents = s.groupEvents
}

// WithinTx holds the store's single lock for the duration of fn, giving
// the same serializable-at-operation-granularity guarantee §5 describes.
// A snapshot is taken up front and restored on any error so no partial
// event is left visible, matching the scoped-acquire/guaranteed-release
// resource pattern of §5/§9.
func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.RepoTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) AccountByName(ctx context.Context, name string) (domain.Account, error) {
	id, ok := m.accountsByName[name]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return m.accounts[id], nil
}

func (m *Memory) AccountByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return acc, nil
}

func (m *Memory) InsertAccount(ctx context.Context, acc domain.Account, root domain.Event) error {
	if _, ok := m.accountsByName[acc.Name]; ok {
		return domain.ErrDuplicateName
	}
	if err := m.insertEventLocked(root); err != nil {
		return err
	}
	m.accounts[acc.ID] = acc
	m.accountsByName[acc.Name] = acc.ID
	return nil
}

func (m *Memory) InsertEvent(ctx context.Context, ev domain.Event) error {
	return m.insertEventLocked(ev)
}

func (m *Memory) insertEventLocked(ev domain.Event) error {
	if _, exists := m.events[ev.ID]; exists {
		return fmt.Errorf("%w: duplicate event id", domain.ErrIntegrityViolation)
	}
	if _, exists := m.byIdemKey[ev.IdempotencyKey]; exists {
		return domain.ErrDuplicateIdempotencyKey
	}
	if ev.PrevTxID != nil {
		for _, id := range m.accountEvents[ev.AccountID] {
			if e := m.events[id]; e.PrevTxID != nil && *e.PrevTxID == *ev.PrevTxID {
				return domain.ErrConcurrentModification
			}
		}
	}

	m.events[ev.ID] = ev
	m.byIdemKey[ev.IdempotencyKey] = ev.ID
	m.accountEvents[ev.AccountID] = append(m.accountEvents[ev.AccountID], ev.ID)
	if ev.GroupTxID != nil {
		m.groupEvents[*ev.GroupTxID] = append(m.groupEvents[*ev.GroupTxID], ev.ID)
	}
	return nil
}

func (m *Memory) EventByID(ctx context.Context, id domain.TxID) (domain.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return ev, nil
}

func (m *Memory) EventByIdempotencyKey(ctx context.Context, key domain.IdempotencyKey) (domain.Event, bool, error) {
	id, ok := m.byIdemKey[key]
	if !ok {
		return domain.Event{}, false, nil
	}
	return m.events[id], true, nil
}

func (m *Memory) eventsOf(accountID domain.AccountID) []domain.Event {
	ids := m.accountEvents[accountID]
	out := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.events[id])
	}
	return out
}

func (m *Memory) HeadOfAccount(ctx context.Context, accountID domain.AccountID) (domain.Event, error) {
	events := m.eventsOf(accountID)
	head, ok := ledger.AccountHead(events)
	if !ok {
		return domain.Event{}, domain.ErrUnknownAccount
	}
	return head, nil
}

func (m *Memory) HeadOfGroup(ctx context.Context, groupTxID domain.TxID) (domain.Event, error) {
	ids := m.groupEvents[groupTxID]
	if len(ids) == 0 {
		return domain.Event{}, domain.ErrUnknownGroup
	}
	events := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, m.events[id])
	}
	head, ok := ledger.GroupHead(events)
	if !ok {
		return domain.Event{}, domain.ErrUnknownGroup
	}
	return head, nil
}

func (m *Memory) ListByAccount(ctx context.Context, accountID domain.AccountID) ([]domain.Event, error) {
	events := m.eventsOf(accountID)
	if len(events) == 0 {
		return nil, domain.ErrUnknownAccount
	}

	var rootID domain.TxID
	for _, e := range events {
		if e.Kind == domain.KindNewAccount {
			rootID = e.ID
			break
		}
	}
	return ledger.ChainFromRoot(events, rootID, func(e domain.Event) *domain.TxID { return e.PrevTxID }), nil
}
