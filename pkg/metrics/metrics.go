package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Frame outcomes recorded by the relay listener.
const (
	OutcomePersisted = "persisted"
	OutcomeMalformed = "malformed"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Forward results recorded by the gateway.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

var (
	RelayConnections = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "webchat", Name: "relay_connections_total", Help: "Number of TCP connections accepted by the relay listener."},
	)
	RelayFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "webchat", Name: "relay_frames_total", Help: "Number of relay connections by frame outcome."},
		[]string{"outcome"},
	)
	GatewaySubmissions = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "webchat", Name: "gateway_submissions_total", Help: "Number of form submissions accepted by the gateway."},
	)
	GatewayForwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "webchat", Name: "gateway_forwards_total", Help: "Number of frames forwarded to the relay by result."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "webchat", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "webchat", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RelayConnections)
	reg.MustRegister(RelayFrames)
	reg.MustRegister(GatewaySubmissions)
	reg.MustRegister(GatewayForwards)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
