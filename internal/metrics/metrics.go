package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "hydroponics"

var (
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      "control_ticks_total",
			Namespace: Namespace,
			Help:      "Number of completed control loop ticks.",
		},
	)

	TickDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:      "control_tick_duration_seconds",
			Namespace: Namespace,
			Buckets:   prometheus.DefBuckets,
			Help:      "Wall time spent in one control loop tick.",
		},
	)

	SensorReadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "sensor_read_failures_total",
			Namespace: Namespace,
			Help:      "Sensor reads that failed or timed out.",
		},
		[]string{"sensor"},
	)

	ActuationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "actuation_failures_total",
			Namespace: Namespace,
			Help:      "Relay writes that could not be confirmed.",
		},
		[]string{"device"},
	)

	DeviceOn = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "device_on",
			Namespace: Namespace,
			Help:      "Committed relay state per device (1 = on).",
		},
		[]string{"device"},
	)

	FillStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "fill_status",
			Namespace: Namespace,
			Help:      "Current fill safety state (1 for the active state).",
		},
		[]string{"status"},
	)

	AlarmsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "fill_alarms_total",
			Namespace: Namespace,
			Help:      "Fill safety alarms raised by kind.",
		},
		[]string{"alarm"},
	)

	ClimateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "climate",
			Namespace: Namespace,
			Help:      "Averaged climate readings of the last tick.",
		},
		[]string{"metric"},
	)

	HttpRequestLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "http_request_latency_seconds",
			Namespace: Namespace,
			Buckets:   prometheus.DefBuckets,
			Help:      "The latency of http operations in seconds.",
		},
		[]string{"method", "route"},
	)

	NotifyDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      "notify_dropped_total",
			Namespace: Namespace,
			Help:      "Events dropped because the publish queue was full or the breaker was open.",
		},
	)
)
