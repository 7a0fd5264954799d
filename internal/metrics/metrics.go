package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coachbook"

// Registry is the process-wide Prometheus registry served on /metrics.
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels; the value is always 1.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// BookingMutations counts booking writes by operation and outcome.
var BookingMutations = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_mutations_total",
		Help:      "Total number of booking mutations by operation and outcome",
	},
	[]string{"op", "outcome"}, // outcome: success|invalid|forbidden|conflict|error
)

// ProfileMutations counts profile writes by operation and outcome.
var ProfileMutations = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_mutations_total",
		Help:      "Total number of profile mutations by operation and outcome",
	},
	[]string{"op", "outcome"},
)

// DashboardCacheLookups counts dashboard cache lookups.
var DashboardCacheLookups = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dashboard_cache_lookups_total",
		Help:      "Dashboard view cache lookups by route and result",
	},
	[]string{"route", "result"}, // result: hit|miss
)

// DashboardCacheInvalidations counts invalidated cache entries.
var DashboardCacheInvalidations = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dashboard_cache_invalidations_total",
		Help:      "Dashboard view cache entries dropped by mutations",
	},
)

// Init registers runtime collectors and records build information.
func Init(version, commit, buildDate string) {
	_ = Registry.Register(collectors.NewGoCollector())
	_ = Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
