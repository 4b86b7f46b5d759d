package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_events_received_total",
			Help: "Total number of inbound events dispatched to handlers.",
		},
		[]string{"event"},
	)
	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_events_dropped_total",
			Help: "Total number of inbound events dropped instead of applied.",
		},
		[]string{"reason"},
	)
	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_reconnects_total",
			Help: "Total number of websocket reconnect attempts.",
		},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_connection_state",
			Help: "Connection state: 0 disconnected, 1 connecting, 2 connected.",
		},
	)
	joinedRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_joined_rooms",
			Help: "Number of chat rooms currently joined.",
		},
	)
	reconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_optimistic_reconciliations_total",
			Help: "Optimistic entries replaced by their server echo.",
		},
		[]string{"method"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_api_request_duration_seconds",
			Help:    "REST collaborator request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	apiErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_api_errors_total",
			Help: "REST collaborator requests that returned an error.",
		},
		[]string{"operation"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_requests_total",
			Help: "Requests served by the local operational HTTP surface.",
		},
		[]string{"method", "route", "status"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		eventsReceivedTotal,
		eventsDroppedTotal,
		reconnectsTotal,
		connectionState,
		joinedRooms,
		reconciliationsTotal,
		apiRequestDuration,
		apiErrorsTotal,
		httpRequestsTotal,
		amqpPublishErrorsTotal,
	)
}

func IncEventReceived(event string) {
	eventsReceivedTotal.WithLabelValues(event).Inc()
}

func IncEventDropped(reason string) {
	eventsDroppedTotal.WithLabelValues(reason).Inc()
}

func IncReconnect() {
	reconnectsTotal.Inc()
}

func SetConnectionState(state int) {
	connectionState.Set(float64(state))
}

func SetJoinedRooms(n int) {
	joinedRooms.Set(float64(n))
}

func IncReconciliation(method string) {
	reconciliationsTotal.WithLabelValues(method).Inc()
}

func ObserveAPIRequest(operation string, d time.Duration) {
	apiRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func IncAPIError(operation string) {
	apiErrorsTotal.WithLabelValues(operation).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

// HTTPMetricsMiddleware counts requests on the local gin surface.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
