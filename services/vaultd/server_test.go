package vaultd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultledger/storage"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouterVaultView(t *testing.T) {
	n := newTestNode(t, storage.NewMemDB())
	n.fund(t, testAlice, 1_000)
	n.deposit(t, testAlice, 1_000)
	require.NoError(t, n.HarvestAll())
	router := NewRouter(n)

	rec := get(t, router, "/vault")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view vaultView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "USDX", view.Asset)
	require.Equal(t, "1000", view.TotalAssets)
	require.Equal(t, "1000", view.TotalShares)
	require.Equal(t, "600", view.TotalDebt)
	require.Equal(t, "1000000", view.PricePerShare)
	require.Equal(t, []string{testStrategy.Hex()}, view.WithdrawalQueue)
	require.Equal(t, n.Height(), view.Height)
}

func TestRouterStrategyViews(t *testing.T) {
	n := newTestNode(t, storage.NewMemDB())
	n.fund(t, testAlice, 1_000)
	n.deposit(t, testAlice, 1_000)
	router := NewRouter(n)

	rec := get(t, router, "/vault/strategies/"+testStrategy.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	var view strategyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "600", view.CreditAvailable)
	require.Equal(t, "0", view.TotalDebt)

	rec = get(t, router, "/vault/strategies")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []strategyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)

	rec = get(t, router, "/vault/strategies/"+testBob.Hex())
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = get(t, router, "/vault/strategies/nope")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterAccountAndOps(t *testing.T) {
	n := newTestNode(t, storage.NewMemDB())
	n.fund(t, testAlice, 500)
	n.deposit(t, testAlice, 200)
	router := NewRouter(n)

	rec := get(t, router, "/vault/accounts/"+testAlice.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	var view accountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "200", view.Shares)
	require.Equal(t, "300", view.AssetBalance)
	require.Equal(t, "0", view.Claimable)

	// Boot is block 1, funding block 2 and the deposit block 3.
	var history historyView
	rec = get(t, router, "/vault/accounts/"+testAlice.Hex()+"/at/2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Equal(t, "0", history.Shares)
	rec = get(t, router, "/vault/accounts/"+testAlice.Hex()+"/at/3")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Equal(t, "200", history.Shares)
	require.Equal(t, "200", history.TotalSupply)
	rec = get(t, router, "/vault/accounts/"+testAlice.Hex()+"/at/latest")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "vaultledger_vault_operations_total"))
}
