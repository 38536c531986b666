package ledger

import (
	"fmt"

	"core-ledger/internal/domain"
)

// newAccountEvent builds the root NEW_ACCOUNT event for a freshly created
// account: all monetary fields zero, no predecessors (§3).
func newAccountEvent(accountID domain.AccountID, idemKey domain.IdempotencyKey) domain.Event {
	ev := domain.Event{
		IdempotencyKey:         idemKey,
		AccountID:              accountID,
		Kind:                   domain.KindNewAccount,
		Amount:                 domain.Zero,
		PendingAmount:          domain.Zero,
		GroupPrevPendingAmount: domain.Zero,
		PrevCurrentBalance:     domain.Zero,
		PrevAvailableBalance:   domain.Zero,
		CurrentBalance:         domain.Zero,
		AvailableBalance:       domain.Zero,
	}
	ev.ID = ev.ContentHash()
	return ev
}

// applyPending computes a new PENDING event's fields from its account
// predecessor, per the PENDING debit/credit rules of §3. It does not
// check the optimistic-lock contract (prev_tx_id vs current head); that
// is the Ledger API's job, since it needs the caller-supplied expected
// head to compare against.
func applyPending(prev domain.Event, accountID domain.AccountID, idemKey domain.IdempotencyKey, amount domain.Money) (domain.Event, error) {
	if amount.IsZero() {
		return domain.Event{}, fmt.Errorf("%w: pending amount must be nonzero", domain.ErrIntegrityViolation)
	}

	prevID := prev.ID
	ev := domain.Event{
		IdempotencyKey:         idemKey,
		AccountID:              accountID,
		Kind:                   domain.KindPending,
		Amount:                 amount,
		PendingAmount:          amount,
		GroupPrevPendingAmount: domain.Zero,
		PrevTxID:               &prevID,
		PrevCurrentBalance:     prev.CurrentBalance,
		PrevAvailableBalance:   prev.AvailableBalance,
		CurrentBalance:         prev.CurrentBalance,
	}

	if amount.IsPositive() {
		// Debit: funds accrue, but only once settled. Balances untouched.
		ev.AvailableBalance = prev.AvailableBalance
	} else {
		// Credit: a hold against available balance, settled later.
		ev.AvailableBalance = prev.AvailableBalance.Add(amount)
		if ev.AvailableBalance.IsNegative() {
			return domain.Event{}, fmt.Errorf("%w: available balance would go negative", domain.ErrInsufficientFunds)
		}
	}

	// group_tx_id is filled in only once the id is known: a root PENDING's
	// group_tx_id equals its own id.
	ev.ID = ev.ContentHash()
	groupID := ev.ID
	ev.GroupTxID = &groupID
	return ev, nil
}

// applyRefund computes a new REFUND event against an open credit group,
// per §3/§4.3.4. groupRoot is the group's PENDING; groupHead is the group
// chain's current head (source of group_prev_pending_amount); accountHead
// is the account chain's current head, the event this REFUND actually
// chains onto via prev_tx_id (§3: the account chain is the single total
// order across every group).
func applyRefund(groupRoot, groupHead, accountHead domain.Event, idemKey domain.IdempotencyKey, amount domain.Money) (domain.Event, error) {
	if !amount.IsPositive() {
		return domain.Event{}, fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidRefund)
	}
	if !groupRoot.IsGroupRoot() {
		return domain.Event{}, domain.ErrNotAGroupRoot
	}
	if groupRoot.Amount.IsPositive() {
		return domain.Event{}, fmt.Errorf("%w: cannot refund a debit group", domain.ErrInvalidRefund)
	}

	newPending := groupHead.PendingAmount.Add(amount)
	if newPending.IsPositive() {
		return domain.Event{}, fmt.Errorf("%w: over-refund, pending amount would become positive", domain.ErrInvalidRefund)
	}

	groupHeadID := groupHead.ID
	groupRootID := groupRoot.ID
	ev := domain.Event{
		IdempotencyKey:         idemKey,
		AccountID:              accountHead.AccountID,
		Kind:                   domain.KindRefund,
		Amount:                 amount,
		PendingAmount:          newPending,
		GroupTxID:              &groupRootID,
		GroupPrevTxID:          &groupHeadID,
		GroupPrevPendingAmount: groupHead.PendingAmount,
		AvailableBalance:       accountHead.AvailableBalance.Add(amount),
		CurrentBalance:         accountHead.CurrentBalance,
	}
	return applyAccountChainLinks(ev, accountHead), nil
}

// applySettlement computes the SETTLEMENT event closing a group, per
// §3/§4.3.3. See applyRefund for why accountHead and groupHead are
// distinct anchors.
func applySettlement(groupRoot, groupHead, accountHead domain.Event, idemKey domain.IdempotencyKey) (domain.Event, error) {
	if !groupRoot.IsGroupRoot() {
		return domain.Event{}, domain.ErrNotAGroupRoot
	}

	settled := groupHead.PendingAmount
	groupHeadID := groupHead.ID
	groupRootID := groupRoot.ID
	ev := domain.Event{
		IdempotencyKey:         idemKey,
		AccountID:              accountHead.AccountID,
		Kind:                   domain.KindSettlement,
		Amount:                 settled,
		PendingAmount:          settled,
		GroupTxID:              &groupRootID,
		GroupPrevTxID:          &groupHeadID,
		GroupPrevPendingAmount: groupHead.PendingAmount,
		CurrentBalance:         accountHead.CurrentBalance.Add(settled),
	}

	if settled.IsPositive() {
		// Debit group: funds become real on both balances.
		ev.AvailableBalance = accountHead.AvailableBalance.Add(settled)
	} else {
		// Credit group (or zero, degenerate): the hold is released from
		// current balance only; available already reflects it.
		ev.AvailableBalance = accountHead.AvailableBalance
	}

	return applyAccountChainLinks(ev, accountHead), nil
}

// applyAccountChainLinks fills in the per-account chain fields (§3) shared
// by every non-NEW_ACCOUNT event kind, then finalizes the content hash.
func applyAccountChainLinks(ev domain.Event, accountPrev domain.Event) domain.Event {
	prevID := accountPrev.ID
	ev.PrevTxID = &prevID
	ev.PrevCurrentBalance = accountPrev.CurrentBalance
	ev.PrevAvailableBalance = accountPrev.AvailableBalance
	ev.ID = ev.ContentHash()
	return ev
}
