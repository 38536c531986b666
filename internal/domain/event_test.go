package domain

import "testing"

func sampleRoot() Event {
	return Event{
		AccountID:              NewAccountID(),
		IdempotencyKey:         NewIdempotencyKey(),
		Kind:                   KindNewAccount,
		Amount:                 Zero,
		PendingAmount:          Zero,
		GroupPrevPendingAmount: Zero,
		PrevCurrentBalance:     Zero,
		PrevAvailableBalance:   Zero,
		CurrentBalance:         Zero,
		AvailableBalance:       Zero,
	}
}

func TestContentHash_Deterministic(t *testing.T) {
	e := sampleRoot()
	if e.ContentHash() != e.ContentHash() {
		t.Fatalf("hash must be deterministic across calls")
	}
}

func TestContentHash_ChangesOnFieldChange(t *testing.T) {
	a := sampleRoot()
	b := a
	b.Amount = MoneyFromCents(100)
	if a.ContentHash() == b.ContentHash() {
		t.Fatalf("changing amount must change the hash")
	}
}

func TestContentHash_ExcludesGroupTxIDForNewAccount(t *testing.T) {
	a := sampleRoot()
	b := a
	id := TxID{0xFF}
	b.GroupTxID = &id
	if a.ContentHash() != b.ContentHash() {
		t.Fatalf("group_tx_id must be excluded from a NEW_ACCOUNT event's hash input")
	}
}

func TestContentHash_ExcludesGroupTxIDForGroupRootPending(t *testing.T) {
	root := sampleRoot()
	root.ID = root.ContentHash()

	prevID := root.ID
	a := Event{
		AccountID:            root.AccountID,
		IdempotencyKey:       NewIdempotencyKey(),
		Kind:                 KindPending,
		Amount:               MoneyFromCents(500),
		PendingAmount:        MoneyFromCents(500),
		PrevTxID:             &prevID,
		PrevCurrentBalance:   Zero,
		PrevAvailableBalance: Zero,
		CurrentBalance:       Zero,
		AvailableBalance:     Zero,
	}
	// a has no GroupPrevTxID: it is a group root.
	hashBefore := a.ContentHash()
	a.ID = hashBefore
	selfGroupID := a.ID
	a.GroupTxID = &selfGroupID

	if a.ContentHash() != hashBefore {
		t.Fatalf("filling in group_tx_id with the event's own id must not change its hash")
	}
	if !a.IsGroupRoot() {
		t.Fatalf("expected IsGroupRoot to be true once group_tx_id is filled in")
	}
}

func TestContentHash_IncludesGroupTxIDForNonRootEvents(t *testing.T) {
	base := Event{
		AccountID:              NewAccountID(),
		IdempotencyKey:         NewIdempotencyKey(),
		Kind:                   KindSettlement,
		Amount:                 MoneyFromCents(100),
		PendingAmount:          MoneyFromCents(100),
		GroupPrevPendingAmount: MoneyFromCents(100),
		CurrentBalance:         MoneyFromCents(100),
		AvailableBalance:       MoneyFromCents(100),
	}
	a := base
	idA := TxID{0x01}
	a.GroupTxID = &idA

	b := base
	idB := TxID{0x02}
	b.GroupTxID = &idB

	if a.ContentHash() == b.ContentHash() {
		t.Fatalf("a SETTLEMENT's hash must depend on group_tx_id")
	}
}
