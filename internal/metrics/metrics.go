// Package metrics registers the four Prometheus series named in §6, under
// namespace market_maker. Unlike the Rust source's package-level statics,
// the series live on a Registry value threaded through construction (§9).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "market_maker"

// Registry owns the four named series and the prometheus.Registerer they
// are registered against.
type Registry struct {
	chainRequests prometheus.Counter
	balance       *prometheus.GaugeVec
	clobLatency   *prometheus.HistogramVec
	gasLatency    prometheus.Histogram
}

// New creates and registers the series against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		chainRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_requests_counter",
			Help:      "Total number of on-chain RPC calls issued.",
		}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_amount",
			Help:      "Current balance per asset.",
		}, []string{"asset"}),
		clobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clob_requests_latency",
			Help:      "CLOB REST request latency in seconds, by endpoint category.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"category"}),
		gasLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_station_latency",
			Help:      "Gas station upstream request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(r.chainRequests, r.balance, r.clobLatency, r.gasLatency)
	return r
}

// IncChainRequests increments the on-chain RPC call counter.
func (r *Registry) IncChainRequests() {
	r.chainRequests.Inc()
}

// SetBalance records the current balance of an asset ("Collateral",
// "TokenA", "TokenB").
func (r *Registry) SetBalance(asset string, amount float64) {
	r.balance.WithLabelValues(asset).Set(amount)
}

// ObserveClobLatency records how long a CLOB REST call of the given
// category took.
func (r *Registry) ObserveClobLatency(category string, d time.Duration) {
	r.clobLatency.WithLabelValues(category).Observe(d.Seconds())
}

// ObserveGasStationLatency records how long a gas-station upstream request
// took.
func (r *Registry) ObserveGasStationLatency(d time.Duration) {
	r.gasLatency.Observe(d.Seconds())
}
