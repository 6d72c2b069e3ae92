package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/ledger"
	"github.com/DomeLiquid/lendcore/metrics"
	"github.com/DomeLiquid/lendcore/protocol"
	"github.com/DomeLiquid/lendcore/store/memstore"
	"github.com/DomeLiquid/lendcore/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	clk := utils.NewMockClock(time.Unix(1_700_000_000, 0))

	boot := core.DefaultBootstrap()
	boot.Rates.BaseRate = decimal.Zero
	boot.Rates.RateMultiplier = decimal.Zero

	reg := prometheus.NewRegistry()
	log := core.NopLog()
	ctrl := protocol.New(clk, log, ledger.New(clk, memstore.New()), core.NewStaticPriceFeed(core.ONE),
		protocol.WithBootstrap(boot),
		protocol.WithMetrics(metrics.New(reg)),
	)
	srv := httptest.NewServer(New(ctrl, log, reg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, caller, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]any); ok {
			out = m
		}
	}
	return resp.StatusCode, out
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	call(t, srv, http.MethodPost, "/api/v1/initialize", "admin", "")
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLendingRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, srv, http.MethodPost, "/api/v1/lend", "alice", `{"amount":"10"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not_initialized", body["code"])

	status, _ = call(t, srv, http.MethodPost, "/api/v1/initialize", "admin", "")
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, srv, http.MethodPost, "/api/v1/lend", "alice", `{"amount":"1000"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["caller"])

	status, _ = call(t, srv, http.MethodPost, "/api/v1/borrow", "bob", `{"amount":"100","collateral":"150","requestedRate":"0"}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, srv, http.MethodPost, "/api/v1/borrow", "carol", `{"amount":"100","collateral":"100","requestedRate":"0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "undercollateralized_request", body["code"])

	status, body = call(t, srv, http.MethodGet, "/api/v1/accounts/bob", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100", body["owed"])

	status, body = call(t, srv, http.MethodGet, "/api/v1/market", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0.1", body["utilization"])
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t)
	call(t, srv, http.MethodPost, "/api/v1/initialize", "admin", "")

	status, body := call(t, srv, http.MethodPost, "/api/v1/lend", "", `{"amount":"1"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "unauthorized", body["code"])

	status, body = call(t, srv, http.MethodPost, "/api/v1/lend", "alice", `{"amount":"x"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_params", body["code"])

	status, _ = call(t, srv, http.MethodPost, "/api/v1/lend", "alice", `{"amount":"1","extra":true}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, srv, http.MethodPost, "/api/v1/admin/price", "alice", `{"price":"2"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "unauthorized", body["code"])

	status, _ = call(t, srv, http.MethodGet, "/api/v1/accounts/nobody", "", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, srv, http.MethodGet, "/api/v1/operates?op=Teleport", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGovernanceEndpoints(t *testing.T) {
	srv := newTestServer(t)
	call(t, srv, http.MethodPost, "/api/v1/initialize", "admin", "")

	status, body := call(t, srv, http.MethodPost, "/api/v1/proposals", "admin", `{"class":"reserve","reserveFactor":"0.2"}`)
	require.Equal(t, http.StatusOK, status)
	proposal := body["proposal"].(map[string]any)
	assert.Equal(t, float64(1), proposal["id"])

	status, body = call(t, srv, http.MethodPost, "/api/v1/proposals", "admin", `{"class":"reserve","reserveFactor":"0.3"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "proposal_conflict", body["code"])

	status, _ = call(t, srv, http.MethodPost, "/api/v1/proposals", "admin", `{"class":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/proposals/1/votes", "admin", `{"inFavor":true}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, srv, http.MethodPost, "/api/v1/proposals/1/finalize", "anyone", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "voting_in_progress", body["code"])

	status, _ = call(t, srv, http.MethodGet, "/api/v1/proposals/1", "", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, srv, http.MethodGet, "/api/v1/proposals/9", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, srv, http.MethodGet, "/api/v1/proposals/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}
