// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 打刻API、出勤評価ジョブ、通知配信の各コンポーネントから利用する。
type Collector struct {
	clockIn           *prometheus.CounterVec
	clockOut          *prometheus.CounterVec
	evaluationRuns    prometheus.Counter
	reminderSubmitted prometheus.Counter
	notificationSent  prometheus.Counter
	notificationRetry prometheus.Counter
	notificationFail  prometheus.Counter
	mailLatency       prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		clockIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_clock_in_total",
			Help: "出勤打刻の合計数（結果別）",
		}, []string{"result"}),
		clockOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_clock_out_total",
			Help: "退勤打刻の合計数（結果別）",
		}, []string{"result"}),
		evaluationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_evaluation_runs_total",
			Help: "出勤評価ジョブの実行回数",
		}),
		reminderSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_reminder_submitted_total",
			Help: "投入されたリマインド通知の合計数",
		}),
		notificationSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_notification_sent_total",
			Help: "配信成功した通知の合計数",
		}),
		notificationRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_notification_retry_total",
			Help: "再試行予約された通知の合計数",
		}),
		notificationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_notification_fail_total",
			Help: "終了失敗した通知の合計数",
		}),
		mailLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kintai_mail_latency_seconds",
			Help:    "メールゲートウェイ送信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.clockIn,
		c.clockOut,
		c.evaluationRuns,
		c.reminderSubmitted,
		c.notificationSent,
		c.notificationRetry,
		c.notificationFail,
		c.mailLatency,
	)

	return c
}

// RecordClockIn は出勤打刻を結果（ok/conflict/error）別に記録する。
func (c *Collector) RecordClockIn(result string) {
	c.clockIn.WithLabelValues(result).Inc()
}

// RecordClockOut は退勤打刻を結果（ok/no_open/error）別に記録する。
func (c *Collector) RecordClockOut(result string) {
	c.clockOut.WithLabelValues(result).Inc()
}

// RecordEvaluationRun は出勤評価ジョブの実行を記録する。
func (c *Collector) RecordEvaluationRun() {
	c.evaluationRuns.Inc()
}

// RecordReminderSubmitted はリマインド通知の投入を記録する。
func (c *Collector) RecordReminderSubmitted() {
	c.reminderSubmitted.Inc()
}

// RecordNotificationSent は通知の配信成功を記録する。
func (c *Collector) RecordNotificationSent() {
	c.notificationSent.Inc()
}

// RecordNotificationRetried は通知の再試行予約を記録する。
func (c *Collector) RecordNotificationRetried() {
	c.notificationRetry.Inc()
}

// RecordNotificationFailed は通知の終了失敗を記録する。
func (c *Collector) RecordNotificationFailed() {
	c.notificationFail.Inc()
}

// RecordMailLatency はメールゲートウェイ送信のレイテンシを記録する。
func (c *Collector) RecordMailLatency(duration time.Duration) {
	c.mailLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
