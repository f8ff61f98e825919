package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording HTTP
// endpoint activity of the daemon.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultledger",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultledger",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total HTTP errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vaultledger",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// VaultSnapshot is the accounting state exported as gauges.
type VaultSnapshot struct {
	Asset             string
	TotalAssets       *uint256.Int
	TotalDebt         *uint256.Int
	TotalShares       *uint256.Int
	PricePerShare     *uint256.Int
	LockedProfit      *uint256.Int
	DebtRatio         uint64
	EmergencyShutdown bool
	Paused            bool
}

// VaultMetrics wraps collectors tracking vault health.
type VaultMetrics struct {
	operations   *prometheus.CounterVec
	errors       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	assets       *prometheus.GaugeVec
	ratio        *prometheus.GaugeVec
	strategyDebt *prometheus.GaugeVec
	shutdown     *prometheus.GaugeVec
	paused       *prometheus.GaugeVec
}

// Vault exposes the metrics registry for the vault engine.
func Vault() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Count of vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "errors_total",
				Help:      "Count of rejected vault operations segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for vault operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			assets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "amount",
				Help:      "Vault accounting amounts in asset base units, by kind.",
			}, []string{"asset", "kind"}),
			ratio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "debt_ratio_bps",
				Help:      "Sum of strategy debt ratios in basis points.",
			}, []string{"asset"}),
			strategyDebt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "strategy_debt",
				Help:      "Outstanding debt per strategy in asset base units.",
			}, []string{"asset", "strategy"}),
			shutdown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "emergency_shutdown",
				Help:      "Indicates whether emergency shutdown is active (1) or not (0).",
			}, []string{"asset"}),
			paused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vaultledger",
				Subsystem: "vault",
				Name:      "paused",
				Help:      "Indicates whether user flows are paused (1) or not (0).",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.errors,
			vaultRegistry.latency,
			vaultRegistry.assets,
			vaultRegistry.ratio,
			vaultRegistry.strategyDebt,
			vaultRegistry.shutdown,
			vaultRegistry.paused,
		)
	})
	return vaultRegistry
}

// Observe records the execution metrics for a vault operation.
func (m *VaultMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(op, errorReason(err)).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordSnapshot refreshes the accounting gauges.
func (m *VaultMetrics) RecordSnapshot(s VaultSnapshot) {
	if m == nil {
		return
	}
	label := labelAsset(s.Asset)
	m.assets.WithLabelValues(label, "total_assets").Set(amountToFloat(s.TotalAssets))
	m.assets.WithLabelValues(label, "total_debt").Set(amountToFloat(s.TotalDebt))
	m.assets.WithLabelValues(label, "total_shares").Set(amountToFloat(s.TotalShares))
	m.assets.WithLabelValues(label, "price_per_share").Set(amountToFloat(s.PricePerShare))
	m.assets.WithLabelValues(label, "locked_profit").Set(amountToFloat(s.LockedProfit))
	m.ratio.WithLabelValues(label).Set(float64(s.DebtRatio))
	m.shutdown.WithLabelValues(label).Set(boolGauge(s.EmergencyShutdown))
	m.paused.WithLabelValues(label).Set(boolGauge(s.Paused))
}

// RecordStrategyDebt updates the debt gauge of a single strategy.
func (m *VaultMetrics) RecordStrategyDebt(asset, strategy string, debt *uint256.Int) {
	if m == nil {
		return
	}
	m.strategyDebt.WithLabelValues(labelAsset(asset), strings.ToLower(strategy)).Set(amountToFloat(debt))
}

// errorReason keeps the label set bounded to the sentinel text of an error.
func errorReason(err error) string {
	reason := strings.TrimSpace(err.Error())
	if idx := strings.Index(reason, ": "); idx >= 0 {
		if next := strings.Index(reason[idx+2:], ": "); next >= 0 {
			reason = reason[:idx+2+next]
		}
	}
	if reason == "" {
		return "unknown"
	}
	return reason
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func amountToFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	return bigToFloat(value.ToBig())
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
