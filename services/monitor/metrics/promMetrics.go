package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anavi"

type promMetrics struct {
	registry     *prometheus.Registry
	values       *prometheus.GaugeVec
	alertStates  *prometheus.GaugeVec
	anyAlert     prometheus.Gauge
	ticks        prometheus.Counter
	readErrors   *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	historyLen   prometheus.Gauge
	tickDuration prometheus.Histogram
}

// NewPromMetrics creates the monitor collectors on a private registry
func NewPromMetrics() *promMetrics {
	pm := &promMetrics{
		registry: prometheus.NewRegistry(),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Latest reading of a sensor metric. Absent while the reading is unavailable.",
		}, []string{"sensor", "metric"}),
		alertStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_state",
			Help:      "Alert state of a sensor metric: 0 normal, 1 warning, 2 critical.",
		}, []string{"sensor", "metric"}),
		anyAlert: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "any_alert_active",
			Help:      "1 while any sensor metric is not normal.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Total processed polling ticks.",
		}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_read_errors_total",
			Help:      "Failed sensor reads, after the driver retries.",
		}, []string{"sensor"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert state changes by target state.",
		}, []string{"sensor", "metric", "state"}),
		historyLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_length",
			Help:      "Number of snapshots held in memory.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full polling tick.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}

	pm.registry.MustRegister(
		pm.values,
		pm.alertStates,
		pm.anyAlert,
		pm.ticks,
		pm.readErrors,
		pm.transitions,
		pm.historyLen,
		pm.tickDuration,
	)

	return pm
}

// Report exports the snapshot values and their alert states
func (pm *promMetrics) Report(_ context.Context, snapshot common.Snapshot, states common.AlertStates) error {
	pm.ticks.Inc()

	for sensor, metrics := range snapshot.Readings {
		for metric, value := range metrics {
			labels := prometheus.Labels{"sensor": string(sensor), "metric": string(metric)}
			if value == nil {
				pm.values.Delete(labels)
			} else {
				pm.values.With(labels).Set(*value)
			}

			state := states[common.MetricKey{Sensor: sensor, Metric: metric}]
			pm.alertStates.With(labels).Set(float64(state))
		}
	}

	return nil
}

// Handle updates the counters driven by bus events
func (pm *promMetrics) Handle(event common.Event) {
	switch event.Kind {
	case common.EventStatus:
		if event.Status != nil && event.Status.IsReadError() {
			pm.readErrors.WithLabelValues(string(event.Status.Sensor)).Inc()
		}
	case common.EventAlertTransition:
		if event.Transition != nil {
			key := event.Transition.Key
			pm.transitions.WithLabelValues(string(key.Sensor), string(key.Metric), event.Transition.To.String()).Inc()
		}
	case common.EventAnyAlertChanged:
		if event.AnyAlert == nil {
			return
		}
		if *event.AnyAlert {
			pm.anyAlert.Set(1)
			return
		}
		pm.anyAlert.Set(0)
	}
}

// SetHistoryLength exports the in-memory history length
func (pm *promMetrics) SetHistoryLength(length int) {
	pm.historyLen.Set(float64(length))
}

// ObserveTickDuration records the duration of one tick
func (pm *promMetrics) ObserveTickDuration(duration time.Duration) {
	pm.tickDuration.Observe(duration.Seconds())
}

// Handler returns the HTTP handler exposing the registry
func (pm *promMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// IsInterfaceNil returns true if the value under the interface is nil
func (pm *promMetrics) IsInterfaceNil() bool {
	return pm == nil
}
