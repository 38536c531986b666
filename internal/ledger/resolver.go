package ledger

import "core-ledger/internal/domain"

// AccountHead finds the head of an account's event chain by the
// set-difference rule of §4.1: the one event id that is nobody's
// prev_tx_id. events must all belong to the same account. This is the
// O(n) reference algorithm; a store backend may answer the same question
// with a single indexed query (internal/store.Postgres does) or a cached
// pointer, but the result must always agree with this function.
func AccountHead(events []domain.Event) (domain.Event, bool) {
	return chainHead(events, func(e domain.Event) *domain.TxID { return e.PrevTxID })
}

// GroupHead is the group-chain analogue of AccountHead, over
// group_prev_tx_id instead of prev_tx_id. events must all share one
// group_tx_id.
func GroupHead(events []domain.Event) (domain.Event, bool) {
	return chainHead(events, func(e domain.Event) *domain.TxID { return e.GroupPrevTxID })
}

func chainHead(events []domain.Event, prevOf func(domain.Event) *domain.TxID) (domain.Event, bool) {
	if len(events) == 0 {
		return domain.Event{}, false
	}
	referenced := make(map[domain.TxID]bool, len(events))
	for _, e := range events {
		if p := prevOf(e); p != nil {
			referenced[*p] = true
		}
	}
	for _, e := range events {
		if !referenced[e.ID] {
			return e, true
		}
	}
	return domain.Event{}, false
}

// ChainFromRoot orders events into chain order given a root id and a
// prevOf accessor, by walking id -> children rather than repeatedly
// computing heads. Used by the in-memory ListByAccount.
func ChainFromRoot(events []domain.Event, rootID domain.TxID, prevOf func(domain.Event) *domain.TxID) []domain.Event {
	byPrev := make(map[domain.TxID]domain.Event, len(events))
	byID := make(map[domain.TxID]domain.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
		if p := prevOf(e); p != nil {
			byPrev[*p] = e
		}
	}

	ordered := make([]domain.Event, 0, len(events))
	cur, ok := byID[rootID]
	if !ok {
		return ordered
	}
	ordered = append(ordered, cur)
	for {
		next, ok := byPrev[cur.ID]
		if !ok {
			break
		}
		ordered = append(ordered, next)
		cur = next
	}
	return ordered
}
