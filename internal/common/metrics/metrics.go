package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks open viewing sessions
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tour_sessions_active",
			Help: "Number of open viewing sessions",
		},
	)

	// NavigationsTotal counts room navigations by source and result
	NavigationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_navigations_total",
			Help: "Total number of room navigation requests",
		},
		[]string{"source", "result"},
	)

	// ProfileChangesTotal counts adaptive render profile steps
	ProfileChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_profile_changes_total",
			Help: "Total number of render profile tier changes",
		},
		[]string{"from", "to"},
	)

	// DeviceClassificationsTotal counts classifier verdicts
	DeviceClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_device_classifications_total",
			Help: "Total number of device capability classifications",
		},
		[]string{"capability"},
	)

	// AssetLoadsTotal counts asset loads by kind and the source that served them
	AssetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_asset_loads_total",
			Help: "Total number of asset loads",
		},
		[]string{"kind", "source"},
	)

	// AssetLoadDuration tracks asset load latency in seconds
	AssetLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tour_asset_load_duration_seconds",
			Help:    "Duration of asset loads in seconds",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 5},
		},
		[]string{"kind"},
	)
)

// RecordNavigation increments the navigation counter
func RecordNavigation(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	NavigationsTotal.WithLabelValues(source, result).Inc()
}

// RecordProfileChange increments the profile change counter when the tier moved
func RecordProfileChange(from, to string) {
	if from != to {
		ProfileChangesTotal.WithLabelValues(from, to).Inc()
	}
}

func RecordClassification(capability string) {
	DeviceClassificationsTotal.WithLabelValues(capability).Inc()
}

// RecordAssetLoad records one asset load and how long it took
func RecordAssetLoad(kind, source string, durationSeconds float64) {
	AssetLoadsTotal.WithLabelValues(kind, source).Inc()
	AssetLoadDuration.WithLabelValues(kind).Observe(durationSeconds)
}

func SessionOpened() { SessionsActive.Inc() }

func SessionClosed() { SessionsActive.Dec() }
