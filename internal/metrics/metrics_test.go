package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	// Touch each collector so it shows up in the scrape.
	ChecksTotal.WithLabelValues("address", "none", "pass").Inc()
	RateLimitDecisions.WithLabelValues("allow").Inc()
	TokenOps.WithLabelValues("issue", "ok").Inc()
	VaultOps.WithLabelValues("store").Inc()
	VaultEntries.Set(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, metric := range []string{
		"walletguard_checks_total",
		"walletguard_ratelimit_decisions_total",
		"walletguard_token_operations_total",
		"walletguard_vault_operations_total",
		"walletguard_vault_entries",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("scrape output missing %s", metric)
		}
	}
}
