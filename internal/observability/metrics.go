package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Stream states reported by SetStreamState.
var streamStates = []string{"idle", "connecting", "open", "errored"}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_http_requests_total",
			Help: "Total number of local API requests processed by the sync daemon.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_http_request_duration_seconds",
			Help:    "Local API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_upstream_requests_total",
			Help: "Total number of backend REST calls by method and status.",
		},
		[]string{"method", "status"},
	)
	grpcClientHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_client_handled_total",
			Help: "Total number of gRPC calls completed by the client.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_stream_events_total",
			Help: "Total number of push events applied, by event type.",
		},
		[]string{"type"},
	)
	streamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_stream_errors_total",
			Help: "Total number of push channel error signals.",
		},
	)
	streamState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_stream_state",
			Help: "Current push channel state (1 for the active state).",
		},
		[]string{"state"},
	)
	fallbackArmed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_fallback_armed",
			Help: "Whether the fallback polling timer is armed.",
		},
	)
	fallbackPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_fallback_polls_total",
			Help: "Total number of fallback polls by outcome.",
		},
		[]string{"outcome"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_ws_active_connections",
			Help: "Number of local websocket state subscribers.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_ws_events_total",
			Help: "Total number of local websocket lifecycle events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_amqp_publish_errors_total",
			Help: "Total number of AMQP telemetry publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		upstreamRequestsTotal,
		grpcClientHandledTotal,
		streamEventsTotal,
		streamErrorsTotal,
		streamState,
		fallbackArmed,
		fallbackPollsTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCClientMetricsUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		statusInfo := status.Convert(err)
		service, name := splitFullMethod(method)
		grpcClientHandledTotal.WithLabelValues(service, name, statusInfo.Code().String()).Inc()
		return err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncUpstreamRequest(method, status string) {
	upstreamRequestsTotal.WithLabelValues(method, status).Inc()
}

func IncStreamEvent(eventType string) {
	streamEventsTotal.WithLabelValues(eventType).Inc()
}

func IncStreamError() {
	streamErrorsTotal.Inc()
}

func SetStreamState(state string) {
	for _, s := range streamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		streamState.WithLabelValues(s).Set(v)
	}
}

func SetFallbackArmed(armed bool) {
	if armed {
		fallbackArmed.Set(1)
		return
	}
	fallbackArmed.Set(0)
}

func IncFallbackPoll(outcome string) {
	fallbackPollsTotal.WithLabelValues(outcome).Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
