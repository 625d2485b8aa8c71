package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetlink/fleetlink/pkg/types"
)

var (
	// Connection metrics
	ConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetlink_connection_state",
			Help: "Current connection state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	ReconnectAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlink_reconnect_attempts",
			Help: "Reconnect attempts since the last successful authentication",
		},
	)

	AuthenticationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_authentications_total",
			Help: "Authentication outcomes by result",
		},
		[]string{"result"},
	)

	// Delivery metrics
	PayloadsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_payloads_delivered_total",
			Help: "Payloads successfully handed to the transport, by kind",
		},
		[]string{"kind"},
	)

	PayloadsCached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_payloads_cached_total",
			Help: "Payloads diverted to the retry cache, by kind",
		},
		[]string{"kind"},
	)

	// Retry cache metrics
	PendingSnapshots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlink_pending_snapshots",
			Help: "Snapshots currently held in the retry cache",
		},
	)

	PendingLoot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlink_pending_loot",
			Help: "Loot records currently held in the retry cache",
		},
	)

	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_cache_evictions_total",
			Help: "Entries evicted from the retry cache at capacity, by kind",
		},
		[]string{"kind"},
	)

	LootDuplicatesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetlink_loot_duplicates_rejected_total",
			Help: "Loot records rejected by the duplicate-capture window",
		},
	)

	FlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetlink_cache_flushes_total",
			Help: "Retry cache flush passes started",
		},
	)
)

// allStates drives the one-hot connection state gauge.
var allStates = []types.ConnectionState{
	types.StateDisconnected,
	types.StateConnecting,
	types.StateConnected,
	types.StateAuthenticating,
	types.StateAuthenticated,
	types.StateInvalidCredential,
	types.StateUnreachable,
	types.StateFault,
}

// SetConnectionState sets the one-hot state gauge.
func SetConnectionState(state types.ConnectionState) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		ConnectionState.WithLabelValues(string(s)).Set(v)
	}
}

func init() {
	prometheus.MustRegister(ConnectionState)
	prometheus.MustRegister(ReconnectAttempts)
	prometheus.MustRegister(AuthenticationsTotal)
	prometheus.MustRegister(PayloadsDelivered)
	prometheus.MustRegister(PayloadsCached)
	prometheus.MustRegister(PendingSnapshots)
	prometheus.MustRegister(PendingLoot)
	prometheus.MustRegister(CacheEvictions)
	prometheus.MustRegister(LootDuplicatesRejected)
	prometheus.MustRegister(FlushesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
