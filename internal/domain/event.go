package domain

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// TxKind is the discriminator of an event record, §3.
type TxKind string

const (
	KindNewAccount TxKind = "NEW_ACCOUNT"
	KindPending    TxKind = "PENDING"
	KindRefund     TxKind = "REFUND"
	KindSettlement TxKind = "SETTLEMENT"
)

// Account is created once with its NEW_ACCOUNT event and never mutated
// afterward.
type Account struct {
	ID   AccountID
	Name string
}

// Event is the immutable, chained transaction record of §3. Optional
// predecessor links are nil exactly where §3 says they are null.
type Event struct {
	ID                     TxID
	IdempotencyKey         IdempotencyKey
	AccountID              AccountID
	Kind                   TxKind
	Amount                 Money
	PendingAmount          Money
	GroupTxID              *TxID
	GroupPrevTxID          *TxID
	GroupPrevPendingAmount Money
	PrevTxID               *TxID
	PrevCurrentBalance     Money
	PrevAvailableBalance   Money
	CurrentBalance         Money
	AvailableBalance       Money
}

func (e Event) String() string {
	prev := "-"
	if e.PrevTxID != nil {
		prev = e.PrevTxID.String()[:8]
	}
	return fmt.Sprintf("%s %-10s amount=%s pending=%s current=%s available=%s prev=%s",
		e.ID.String()[:8], e.Kind, e.Amount, e.PendingAmount, e.CurrentBalance, e.AvailableBalance, prev)
}

// IsGroupRoot reports whether this event opens a group (a PENDING whose
// group_tx_id equals its own id).
func (e Event) IsGroupRoot() bool {
	return e.Kind == KindPending && e.GroupTxID != nil && *e.GroupTxID == e.ID
}

func hexOrEmpty(id *TxID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// canonicalField is one "key=value" line of the hash input.
type canonicalField struct{ key, value string }

// canonicalFields builds the deterministic, sorted-by-name field list that
// §4.2 hashes. The event's own id is never part of its own hash input.
func (e Event) canonicalFields() []canonicalField {
	fields := []canonicalField{
		{"account_id", e.AccountID.String()},
		{"amount", e.Amount.Canonical()},
		{"available_balance", e.AvailableBalance.Canonical()},
		{"current_balance", e.CurrentBalance.Canonical()},
		{"group_prev_pending_amount", e.GroupPrevPendingAmount.Canonical()},
		{"group_prev_tx_id", hexOrEmpty(e.GroupPrevTxID)},
		{"idempotency_key", e.IdempotencyKey.String()},
		{"kind", string(e.Kind)},
		{"pending_amount", e.PendingAmount.Canonical()},
		{"prev_available_balance", e.PrevAvailableBalance.Canonical()},
		{"prev_current_balance", e.PrevCurrentBalance.Canonical()},
		{"prev_tx_id", hexOrEmpty(e.PrevTxID)},
	}
	// group_tx_id is excluded for NEW_ACCOUNT (always null) and for a group
	// root PENDING, where it equals the event's own not-yet-known id: a
	// root PENDING is identified by having no group predecessor.
	isGroupRoot := e.Kind == KindPending && e.GroupPrevTxID == nil
	if e.Kind != KindNewAccount && !isGroupRoot {
		fields = append(fields, canonicalField{"group_tx_id", hexOrEmpty(e.GroupTxID)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].key < fields[j].key })
	return fields
}

// CanonicalSerialization renders the event's hash input: sorted
// "key=value\n" lines, deterministic across processes and languages.
func (e Event) CanonicalSerialization() []byte {
	var b strings.Builder
	for _, f := range e.canonicalFields() {
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(f.value)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ContentHash computes the event's id: SHA-256 of its canonical form.
// Because the input includes prev_tx_id and group_prev_tx_id, rewriting
// any historical event changes every hash that follows it.
func (e Event) ContentHash() TxID {
	return sha256.Sum256(e.CanonicalSerialization())
}
