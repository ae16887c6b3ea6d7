// Package metrics exposes the node's Prometheus collectors on a dedicated registry.
package metrics

import (
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
)

const namespace = "clvault"

// Cycle outcomes.
const (
	OutcomeRebalanced = "rebalanced"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
)

var (
	Registry = prometheus.NewRegistry()

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Delivered messages by type and result.",
	}, []string{"type", "result"})

	CyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebalance_cycles_total",
		Help:      "Automated rebalance cycles by outcome.",
	}, []string{"outcome"})

	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rebalance_cycle_duration_seconds",
		Help:      "Duration of automated rebalance cycles.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	AssetsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "total_assets",
		Help:      "Vault valuation per token, in base units.",
	}, []string{"token", "part"})

	ShareSupply = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "share_supply",
		Help:      "Outstanding vault shares, in base units.",
	})

	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_positions",
		Help:      "Pool positions currently held by the vault.",
	})

	BlockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "block_height",
		Help:      "Height of the last committed state.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		MessagesTotal,
		CyclesTotal,
		CycleDuration,
		AssetsTotal,
		ShareSupply,
		OpenPositions,
		BlockHeight,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObserveMessage counts one delivered message.
func ObserveMessage(msgType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MessagesTotal.WithLabelValues(msgType, result).Inc()
}

// ObserveValuation publishes a vault valuation. Values that cannot be represented
// as floats leave the previous sample in place.
func ObserveValuation(assets types.TotalAssets, positions int) {
	parts := []struct {
		name  string
		funds types.Funds
	}{
		{"idle", assets.Idle},
		{"positions", assets.Positions},
		{"total", assets.Total},
	}
	for _, p := range parts {
		setAmount(AssetsTotal.WithLabelValues("token0", p.name), p.funds.Amount0)
		setAmount(AssetsTotal.WithLabelValues("token1", p.name), p.funds.Amount1)
	}
	setAmount(ShareSupply, assets.Supply)
	OpenPositions.Set(float64(positions))
}

func setAmount(g prometheus.Gauge, amount sdkmath.Int) {
	if v, err := utils.SDKIntToFloat64(amount, 0); err == nil {
		g.Set(v)
	}
}
