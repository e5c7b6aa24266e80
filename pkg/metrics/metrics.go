package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScenarioRequests はシナリオエンドポイントの結果別リクエスト数です。
	// result: preflight | method_not_allowed | not_configured | ok | error
	ScenarioRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moagem_scenario_requests_total",
			Help: "Total number of scenario requests by advisor and result",
		},
		[]string{"advisor", "result"},
	)

	// AdvisorCalls は外部アドバイザー呼び出しの結果です。outcome: ok | fallback | error
	AdvisorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moagem_advisor_calls_total",
			Help: "Total number of external advisor calls by outcome",
		},
		[]string{"model", "outcome"},
	)

	// AdvisorFallbacks は縮退レスポンスに切り替えた理由別の件数です。
	AdvisorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moagem_advisor_fallbacks_total",
			Help: "Total number of degraded fallback recommendations by reason",
		},
		[]string{"reason"},
	)

	AdvisorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moagem_advisor_call_duration_seconds",
			Help:    "Duration of external advisor calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "moagem_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path", "status"},
	)
)
