package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exchange outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeHistoryError    = "history_error"
	OutcomeCompletionError = "completion_error"
	OutcomePersistError    = "persist_error"
)

var (
	ChatExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studybot",
		Name:      "chat_exchanges_total",
		Help:      "Chat exchanges handled, by outcome.",
	}, []string{"outcome"})

	CompletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "studybot",
		Name:      "completion_duration_seconds",
		Help:      "Latency of completion service calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studybot",
		Name:      "http_requests_total",
		Help:      "HTTP requests, by route and status code.",
	}, []string{"route", "code"})
)
