package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scheduler_poll_cycles_total", Help: "Scheduler poll cycles"},
	)
	PollCycleErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scheduler_poll_cycle_errors_total", Help: "Poll cycles that errored"},
	)
	CampaignsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatcher_campaigns_total", Help: "Campaigns fanned out"},
	)
	SendsAttempted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatcher_sends_attempted_total", Help: "Recipient send attempts"},
	)
	SendsSucceeded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatcher_sends_succeeded_total", Help: "Recipient sends delivered"},
	)
	SendsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatcher_sends_failed_total", Help: "Recipient sends failed"},
	)
	ReservationsRefused = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ledger_reservations_refused_total", Help: "Credit reservations refused"},
	)
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_campaign_duration_seconds",
			Help:    "Time spent dispatching one campaign",
			Buckets: prometheus.DefBuckets,
		},
	)

	InboundRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "consent_inbound_replies_total", Help: "Inbound webhook replies by classification"},
		[]string{"keyword"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration,
		PollCyclesTotal, PollCycleErrors,
		CampaignsDispatched, SendsAttempted, SendsSucceeded, SendsFailed,
		ReservationsRefused, DispatchDuration,
		InboundRepliesTotal,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
