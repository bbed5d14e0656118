package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotelsync"

var (
	once sync.Once

	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconcile runs by outcome.",
		},
		[]string{"outcome"},
	)

	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent in one reconcile run.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	roomsFixed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_fixed_total",
			Help:      "Room statuses overwritten by the reconciler.",
		},
	)

	roomFixFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_fix_failures_total",
			Help:      "Room corrections that were not applied, by cause.",
		},
		[]string{"reason"},
	)

	doubleBookings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "double_bookings_detected_total",
			Help:      "Overlapping active booking pairs found.",
		},
	)

	bookingOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Booking operations by name and result.",
		},
		[]string{"op", "result"},
	)

	alertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Alerts delivered by sink and result.",
		},
		[]string{"sink", "result"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_queue_depth",
			Help:      "Pending reconcile triggers.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reconcileRuns,
			reconcileDuration,
			roomsFixed,
			roomFixFailures,
			doubleBookings,
			bookingOps,
			alertsSent,
			queueDepth,
		)
	})
}

func IncReconcileRun(outcome string) {
	reconcileRuns.WithLabelValues(outcome).Inc()
}

func ObserveReconcileDuration(d time.Duration) {
	reconcileDuration.Observe(d.Seconds())
}

func IncRoomFixed() {
	roomsFixed.Inc()
}

func IncRoomFixFailure(reason string) {
	roomFixFailures.WithLabelValues(reason).Inc()
}

func IncDoubleBooking() {
	doubleBookings.Inc()
}

// IncBookingOp counts a booking operation; err decides the result label.
func IncBookingOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	bookingOps.WithLabelValues(op, result).Inc()
}

func IncAlert(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	alertsSent.WithLabelValues(sink, result).Inc()
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
