package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"core-ledger/internal/domain"
)

func TestHTTPStatusForErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate name", domain.ErrDuplicateName, http.StatusConflict},
		{"duplicate idempotency key", domain.ErrDuplicateIdempotencyKey, http.StatusConflict},
		{"concurrent modification", domain.ErrConcurrentModification, http.StatusConflict},
		{"unknown account", domain.ErrUnknownAccount, http.StatusNotFound},
		{"unknown group", domain.ErrUnknownGroup, http.StatusNotFound},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"not a group root", domain.ErrNotAGroupRoot, http.StatusBadRequest},
		{"invalid refund", domain.ErrInvalidRefund, http.StatusBadRequest},
		{"integrity violation", domain.ErrIntegrityViolation, http.StatusBadRequest},
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusRequestTimeout},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := httpStatusForErr(tc.err)
			if got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestPublicErrMessage(t *testing.T) {
	if got := publicErrMessage(http.StatusInternalServerError, errors.New("db exploded")); got != "internal error" {
		t.Fatalf("5xx leaked internal detail: %q", got)
	}
	if got := publicErrMessage(http.StatusBadRequest, domain.ErrInvalidRefund); got != domain.ErrInvalidRefund.Error() {
		t.Fatalf("got %q want %q", got, domain.ErrInvalidRefund.Error())
	}
}
