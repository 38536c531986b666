package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"core-ledger/internal/domain"
)

// exportedEvent is one line of the offline input to this verifier: a JSON
// Lines file holding, one object per line, the elements of the
// "transactions" array returned by `GET /v1/accounts/{id}/transactions`.
type exportedEvent struct {
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

func optionalTxID(s string) (*domain.TxID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := domain.ParseTxID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func toEvent(e exportedEvent) (domain.Event, error) {
	var ev domain.Event
	id, err := domain.ParseTxID(e.ID)
	if err != nil {
		return ev, fmt.Errorf("id: %w", err)
	}
	idemKey, err := domain.ParseIdempotencyKey(e.IdempotencyKey)
	if err != nil {
		return ev, fmt.Errorf("idempotency_key: %w", err)
	}
	accID, err := domain.ParseAccountID(e.AccountID)
	if err != nil {
		return ev, fmt.Errorf("account_id: %w", err)
	}
	amount, err := domain.MoneyFromString(e.Amount)
	if err != nil {
		return ev, fmt.Errorf("amount: %w", err)
	}
	pendingAmount, err := domain.MoneyFromString(e.PendingAmount)
	if err != nil {
		return ev, fmt.Errorf("pending_amount: %w", err)
	}
	groupPrevPending, err := domain.MoneyFromString(e.GroupPrevPendingAmount)
	if err != nil {
		return ev, fmt.Errorf("group_prev_pending_amount: %w", err)
	}
	prevCurrent, err := domain.MoneyFromString(e.PrevCurrentBalance)
	if err != nil {
		return ev, fmt.Errorf("prev_current_balance: %w", err)
	}
	prevAvailable, err := domain.MoneyFromString(e.PrevAvailableBalance)
	if err != nil {
		return ev, fmt.Errorf("prev_available_balance: %w", err)
	}
	current, err := domain.MoneyFromString(e.CurrentBalance)
	if err != nil {
		return ev, fmt.Errorf("current_balance: %w", err)
	}
	available, err := domain.MoneyFromString(e.AvailableBalance)
	if err != nil {
		return ev, fmt.Errorf("available_balance: %w", err)
	}
	groupTxID, err := optionalTxID(e.GroupTxID)
	if err != nil {
		return ev, fmt.Errorf("group_tx_id: %w", err)
	}
	groupPrevTxID, err := optionalTxID(e.GroupPrevTxID)
	if err != nil {
		return ev, fmt.Errorf("group_prev_tx_id: %w", err)
	}
	prevTxID, err := optionalTxID(e.PrevTxID)
	if err != nil {
		return ev, fmt.Errorf("prev_tx_id: %w", err)
	}

	ev = domain.Event{
		ID:                     id,
		IdempotencyKey:         idemKey,
		AccountID:              accID,
		Kind:                   domain.TxKind(e.Kind),
		Amount:                 amount,
		PendingAmount:          pendingAmount,
		GroupTxID:              groupTxID,
		GroupPrevTxID:          groupPrevTxID,
		GroupPrevPendingAmount: groupPrevPending,
		PrevTxID:               prevTxID,
		PrevCurrentBalance:     prevCurrent,
		PrevAvailableBalance:   prevAvailable,
		CurrentBalance:         current,
		AvailableBalance:       available,
	}
	return ev, nil
}

func main() {
	var (
		inPath = flag.String("in", "", "JSON Lines file, one event of GET /v1/accounts/{id}/transactions per line")
		head   = flag.String("head", "", "expected head tx_id hex")
	)
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	if *head == "" {
		fmt.Fprintln(os.Stderr, "missing -head")
		os.Exit(2)
	}

	f, err := os.Open(*inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(2)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		lineNo int
		prev   *domain.Event
		last   domain.Event
		rows   int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw exportedEvent
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: invalid json: %v\n", lineNo, err)
			os.Exit(1)
		}
		ev, err := toEvent(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNo, err)
			os.Exit(1)
		}

		if got := ev.ContentHash(); got != ev.ID {
			fmt.Fprintf(os.Stderr, "FAIL: content hash mismatch at line=%d\nexpected=%s\ngot=%s\n",
				lineNo, ev.ID, got)
			os.Exit(1)
		}

		if rows == 0 {
			if ev.Kind != domain.KindNewAccount || ev.PrevTxID != nil {
				fmt.Fprintf(os.Stderr, "FAIL: chain does not start at NEW_ACCOUNT (line=%d)\n", lineNo)
				os.Exit(1)
			}
		} else {
			if ev.PrevTxID == nil || *ev.PrevTxID != prev.ID {
				fmt.Fprintf(os.Stderr, "FAIL: prev_tx_id mismatch at line=%d\nexpected=%s\ngot=%v\n",
					lineNo, prev.ID, ev.PrevTxID)
				os.Exit(1)
			}
			if !ev.PrevCurrentBalance.Equal(prev.CurrentBalance) || !ev.PrevAvailableBalance.Equal(prev.AvailableBalance) {
				fmt.Fprintf(os.Stderr, "FAIL: denormalized predecessor balances mismatch at line=%d\n", lineNo)
				os.Exit(1)
			}
		}

		prev = &ev
		last = ev
		rows++
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(2)
	}

	if rows == 0 {
		fmt.Fprintln(os.Stderr, "FAIL: empty export")
		os.Exit(1)
	}

	if strings.ToLower(strings.TrimSpace(*head)) != last.ID.String() {
		fmt.Fprintf(os.Stderr, "FAIL: head mismatch\nexpected=%s\ngot=%s\n", *head, last.ID)
		os.Exit(1)
	}

	fmt.Printf("OK: chain verified (%d rows). head=%s\n", rows, last.ID)
}
