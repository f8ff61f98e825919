package vaultd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultledger/native/bank"
	"vaultledger/native/vault"
	"vaultledger/observability"
)

type vaultView struct {
	Address               string   `json:"address"`
	Asset                 string   `json:"asset"`
	Decimals              uint8    `json:"decimals"`
	Height                uint64   `json:"height"`
	TotalAssets           string   `json:"totalAssets"`
	TotalShares           string   `json:"totalShares"`
	TotalDebt             string   `json:"totalDebt"`
	DebtRatio             uint64   `json:"debtRatio"`
	PricePerShare         string   `json:"pricePerShare"`
	LockedProfit          string   `json:"lockedProfit"`
	DepositLimit          string   `json:"depositLimit"`
	AvailableDepositLimit string   `json:"availableDepositLimit"`
	ManagementFeeBps      uint64   `json:"managementFeeBps"`
	PerformanceFeeBps     uint64   `json:"performanceFeeBps"`
	LastReport            uint64   `json:"lastReport"`
	EmergencyShutdown     bool     `json:"emergencyShutdown"`
	Paused                bool     `json:"paused"`
	WithdrawalQueue       []string `json:"withdrawalQueue"`
}

type strategyView struct {
	Address           string `json:"address"`
	Status            string `json:"status"`
	DebtRatio         uint64 `json:"debtRatio"`
	PerformanceFeeBps uint64 `json:"performanceFeeBps"`
	TotalDebt         string `json:"totalDebt"`
	TotalGain         string `json:"totalGain"`
	TotalLoss         string `json:"totalLoss"`
	LastReport        uint64 `json:"lastReport"`
	CreditAvailable   string `json:"creditAvailable"`
	DebtOutstanding   string `json:"debtOutstanding"`
}

type accountView struct {
	Address      string `json:"address"`
	Shares       string `json:"shares"`
	AssetBalance string `json:"assetBalance"`
	Claimable    string `json:"claimable"`
}

type historyView struct {
	Address     string `json:"address"`
	Block       uint64 `json:"block"`
	Shares      string `json:"shares"`
	TotalSupply string `json:"totalSupply"`
}

// NewRouter exposes read-only views of the node plus health and metrics
// endpoints.
func NewRouter(n *Node) http.Handler {
	r := chi.NewRouter()
	r.Use(observe)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/vault", func(sr chi.Router) {
		sr.Get("/", n.handleVault)
		sr.Get("/strategies", n.handleStrategies)
		sr.Get("/strategies/{address}", n.handleStrategy)
		sr.Get("/accounts/{address}", n.handleAccount)
		sr.Get("/accounts/{address}/at/{block}", n.handleAccountAt)
	})
	return r
}

func (n *Node) handleVault(w http.ResponseWriter, r *http.Request) {
	var view vaultView
	err := n.View(func(e *vault.Engine, _ *bank.Ledger) error {
		v, err := e.Vault()
		if err != nil {
			return err
		}
		view = vaultView{
			Address:           e.Address().Hex(),
			Asset:             v.Asset,
			Decimals:          v.Decimals,
			TotalShares:       formatAmount(v.TotalShares),
			TotalDebt:         formatAmount(v.TotalDebt),
			DebtRatio:         v.DebtRatio,
			DepositLimit:      formatAmount(v.DepositLimit),
			ManagementFeeBps:  v.ManagementFeeBps,
			PerformanceFeeBps: v.PerformanceFeeBps,
			LastReport:        v.LastReport,
			EmergencyShutdown: v.EmergencyShutdown,
			Paused:            v.Paused,
			WithdrawalQueue:   make([]string, 0, len(v.WithdrawalQueue)),
		}
		for _, addr := range v.WithdrawalQueue {
			view.WithdrawalQueue = append(view.WithdrawalQueue, addr.Hex())
		}
		amounts := []struct {
			dst  *string
			read func() (*uint256.Int, error)
		}{
			{&view.TotalAssets, e.TotalAssets},
			{&view.PricePerShare, e.PricePerShare},
			{&view.LockedProfit, e.LockedProfit},
			{&view.AvailableDepositLimit, e.AvailableDepositLimit},
		}
		for _, a := range amounts {
			value, err := a.read()
			if err != nil {
				return err
			}
			*a.dst = formatAmount(value)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	view.Height = n.Height()
	writeJSON(w, http.StatusOK, view)
}

func (n *Node) handleStrategies(w http.ResponseWriter, r *http.Request) {
	var views []strategyView
	err := n.View(func(e *vault.Engine, _ *bank.Ledger) error {
		v, err := e.Vault()
		if err != nil {
			return err
		}
		views = make([]strategyView, 0, len(v.Strategies))
		for _, addr := range v.Strategies {
			view, err := strategySnapshot(e, addr)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (n *Node) handleStrategy(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	var view strategyView
	err := n.View(func(e *vault.Engine, _ *bank.Ledger) error {
		var err error
		view, err = strategySnapshot(e, addr)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (n *Node) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	view := accountView{Address: addr.Hex()}
	err := n.View(func(e *vault.Engine, asset *bank.Ledger) error {
		shares, err := e.BalanceOf(addr)
		if err != nil {
			return err
		}
		balance, err := asset.BalanceOf(addr)
		if err != nil {
			return err
		}
		claimable, err := e.Claimable(addr)
		if err != nil {
			return err
		}
		view.Shares = formatAmount(shares)
		view.AssetBalance = formatAmount(balance)
		view.Claimable = formatAmount(claimable)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (n *Node) handleAccountAt(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	block, err := strconv.ParseUint(chi.URLParam(r, "block"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid block"})
		return
	}
	view := historyView{Address: addr.Hex(), Block: block}
	err = n.View(func(e *vault.Engine, _ *bank.Ledger) error {
		shares, err := e.BalanceOfAt(addr, block)
		if err != nil {
			return err
		}
		supply, err := e.TotalSupplyAt(block)
		if err != nil {
			return err
		}
		view.Shares = formatAmount(shares)
		view.TotalSupply = formatAmount(supply)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func strategySnapshot(e *vault.Engine, addr common.Address) (strategyView, error) {
	entry, err := e.Strategy(addr)
	if err != nil {
		return strategyView{}, err
	}
	credit, err := e.CreditAvailable(addr)
	if err != nil {
		return strategyView{}, err
	}
	outstanding, err := e.DebtOutstanding(addr)
	if err != nil {
		return strategyView{}, err
	}
	return strategyView{
		Address:           entry.Address.Hex(),
		Status:            entry.Status.String(),
		DebtRatio:         entry.DebtRatio,
		PerformanceFeeBps: entry.PerformanceFeeBps,
		TotalDebt:         formatAmount(entry.TotalDebt),
		TotalGain:         formatAmount(entry.TotalGain),
		TotalLoss:         formatAmount(entry.TotalLoss),
		LastReport:        entry.LastReport,
		CreditAvailable:   formatAmount(credit),
		DebtOutstanding:   formatAmount(outstanding),
	}, nil
}

func parseAddressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "address"))
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address"})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrStrategyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vault.ErrNotInitialised):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		observability.ModuleMetrics().Observe("http", r.Method+" "+route, recorder.status, time.Since(start))
	})
}
