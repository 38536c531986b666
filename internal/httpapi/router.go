package httpapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

func Router(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/v1/accounts", h.CreateAccount) // POST
	mux.HandleFunc("/v1/accounts/", routeAccounts(h))
	mux.HandleFunc("/v1/groups/", routeGroups(h))
	mux.HandleFunc("/v1/transactions/", routeTransactions(h))

	// Backpressure at the edge.
	// Prevents unbounded goroutine/pool queueing when DB is saturated.
	max := mustIntEnv("LEDGER_HTTP_MAX_INFLIGHT", 64)
	return withCorrelationID(withConcurrencyLimit(mux, max))
}

// routeAccounts dispatches everything under /v1/accounts/{id}/... : it
// trims the prefix, splits the remainder, and hands off to the handler
// for the matching suffix.
func routeAccounts(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 0 || parts[0] == "" {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
		id := parts[0]
		suffix := ""
		if len(parts) == 2 {
			suffix = parts[1]
		}

		switch suffix {
		case "pending":
			h.CreatePending(w, r, id)
		case "balance":
			h.GetBalance(w, r, id)
		case "transactions":
			h.ListTransactions(w, r, id)
		case "transactions/latest":
			h.GetLatestTransaction(w, r, id)
		case "verify":
			h.VerifyChain(w, r, id)
		default:
			writeErr(w, http.StatusNotFound, "not found")
		}
	}
}

func routeGroups(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/groups/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
		groupTxID, action := parts[0], parts[1]

		switch action {
		case "settle":
			h.Settle(w, r, groupTxID)
		case "refund":
			h.Refund(w, r, groupTxID)
		default:
			writeErr(w, http.StatusNotFound, "not found")
		}
	}
}

func routeTransactions(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/transactions/")
		if id == "" {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
		h.GetTransaction(w, r, id)
	}
}

func mustIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// withCorrelationID assigns/propagates X-Correlation-Id on every request.
func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-Id")
		if corr == "" {
			corr = uuid.New().String()
		}
		w.Header().Set("X-Correlation-Id", corr)
		next.ServeHTTP(w, r)
	})
}

func withConcurrencyLimit(next http.Handler, max int) http.Handler {
	if max <= 0 {
		max = 64
	}
	sem := make(chan struct{}, max)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		default:
			// Fast fail instead of queueing forever.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"server busy"}`))
		}
	})
}
