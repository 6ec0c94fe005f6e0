package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tourism"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	bookingsReservedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_reserved_total",
			Help:      "Reservation attempts by result",
		},
		[]string{"result"},
	)

	bookingTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking ledger events by result (applied, noop, rejected)",
		},
		[]string{"event", "result"},
	)

	bookingsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_expired_total",
			Help:      "Abandoned bookings expired by the status they were in",
		},
		[]string{"status"},
	)

	paymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Payment verifications by outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_provider_duration_seconds",
			Help:      "Payment provider call latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"provider", "operation"},
	)

	notificationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications created by type",
		},
		[]string{"type"},
	)

	pushTicketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tickets_total",
			Help:      "Push tickets by status or error code",
		},
		[]string{"status"},
	)

	pushTokensPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tokens_pruned_total",
			Help:      "Push tokens removed after DeviceNotRegistered",
		},
	)

	pushDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_dropped_total",
			Help:      "Push messages dropped after retries were exhausted",
		},
		[]string{"reason"},
	)

	busEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_total",
			Help:      "Event bus publications by result (published, dropped)",
		},
		[]string{"kind", "result"},
	)

	busHandlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_handler_errors_total",
			Help:      "Event handler errors and panics by subscriber",
		},
		[]string{"subscriber"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		bookingsReservedTotal,
		bookingTransitionsTotal,
		bookingsExpiredTotal,
		paymentVerificationsTotal,
		providerLatency,
		notificationsCreatedTotal,
		pushTicketsTotal,
		pushTokensPrunedTotal,
		pushDroppedTotal,
		busEventsTotal,
		busHandlerErrorsTotal,
	)
}

// MetricsMiddleware records request counts and latency per route
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// PrometheusHandler serves /metrics
func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordReservation(result string) {
	bookingsReservedTotal.WithLabelValues(result).Inc()
}

func RecordTransition(event, result string) {
	bookingTransitionsTotal.WithLabelValues(event, result).Inc()
}

func RecordBookingExpired(status string) {
	bookingsExpiredTotal.WithLabelValues(status).Inc()
}

func RecordVerification(provider, outcome string) {
	paymentVerificationsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveProvider records the latency of a provider call started at start
func ObserveProvider(provider, operation string, start time.Time) {
	providerLatency.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

func RecordNotificationCreated(notificationType string) {
	notificationsCreatedTotal.WithLabelValues(notificationType).Inc()
}

func RecordPushTicket(status string) {
	pushTicketsTotal.WithLabelValues(status).Inc()
}

func RecordTokenPruned() {
	pushTokensPrunedTotal.Inc()
}

func RecordPushDropped(reason string, n int) {
	pushDroppedTotal.WithLabelValues(reason).Add(float64(n))
}

func RecordBusEvent(kind, result string) {
	busEventsTotal.WithLabelValues(kind, result).Inc()
}

func RecordHandlerError(subscriber string) {
	busHandlerErrorsTotal.WithLabelValues(subscriber).Inc()
}
