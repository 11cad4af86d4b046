// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// フェッチャーとコントローラから利用する。
type MetricsCollector interface {
	RecordFetchSuccess()
	RecordFetchFailure(kind string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordAction(action string, accepted bool)
	RecordStaleResult()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess prometheus.Counter
	fetchFail    *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	fetchLatency prometheus.Histogram
	actions      *prometheus.CounterVec
	staleResults prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profileman_fetch_success_total",
			Help: "プロフィールフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profileman_fetch_fail_total",
			Help: "エラー種別ごとのプロフィールフェッチ失敗数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profileman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "profileman_fetch_latency_seconds",
			Help:    "プロフィールフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profileman_actions_total",
			Help: "アクション別の受理・無視された数",
		}, []string{"action", "result"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profileman_stale_results_total",
			Help: "後続のフェッチに置き換えられて破棄された結果の数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.actions,
		c.staleResults,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はエラー種別付きでフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure(kind string) {
	c.fetchFail.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordAction はアクションの受理・無視を記録する。
func (c *Collector) RecordAction(action string, accepted bool) {
	result := "ignored"
	if accepted {
		result = "accepted"
	}
	c.actions.WithLabelValues(action, result).Inc()
}

// RecordStaleResult は破棄された古いフェッチ結果を記録する。
func (c *Collector) RecordStaleResult() {
	c.staleResults.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
