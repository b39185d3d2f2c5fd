package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Credit("daily_bonus", 50)
	m.Credit("daily_bonus", 50)
	m.Debit("withdrawal", 10000)
	m.Withdrawal("approved")
	m.BroadcastDelivery(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledger.WithLabelValues("credit", "daily_bonus")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.ledgerSum.WithLabelValues("credit", "daily_bonus")))
	assert.Equal(t, 10000.0, testutil.ToFloat64(m.ledgerSum.WithLabelValues("debit", "withdrawal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.withdrawals.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcast.WithLabelValues("failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Update("text")
		m.GateBlocked()
		m.Credit("referral", 100)
		m.Referral("credited")
		m.Panic()
		m.RateLimited()
	})
}

func TestRouter(t *testing.T) {
	m := New()
	m.Update("command")
	srv := httptest.NewServer(NewRouter(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `referral_bot_updates_total{kind="command"} 1`)
}
