// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 抑止理由のラベル値。
const (
	SuppressDuplicate    = "duplicate"
	SuppressExternalSent = "external_sent"
	SuppressNoRecipient  = "no_recipient"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リマインダーエンジンやワーカーから利用する。
type MetricsCollector interface {
	RecordReminderCreated(category, audience string)
	RecordReminderSuppressed(reason string)
	RecordReminderFailure(stage string)
	RecordRunDuration(duration time.Duration)
	RecordOrganizationSkipped()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	created     *prometheus.CounterVec
	suppressed  *prometheus.CounterVec
	failures    *prometheus.CounterVec
	runDuration prometheus.Histogram
	orgSkipped  prometheus.Counter
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaho_reminder_created_total",
			Help: "作成されたリマインダー通知の合計数",
		}, []string{"category", "audience"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaho_reminder_suppressed_total",
			Help: "抑止されたリマインダー通知の合計数",
		}, []string{"reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaho_reminder_failure_total",
			Help: "リマインダー処理の失敗数",
		}, []string{"stage"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shaho_reminder_run_duration_seconds",
			Help:    "組織単位のリマインダー実行時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		orgSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shaho_reminder_org_skipped_total",
			Help: "実行中のためスキップされた組織の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaho_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.created,
		c.suppressed,
		c.failures,
		c.runDuration,
		c.orgSkipped,
		c.httpStatus,
	)

	return c
}

// RecordReminderCreated は通知の作成を記録する。
func (c *Collector) RecordReminderCreated(category, audience string) {
	c.created.WithLabelValues(category, audience).Inc()
}

// RecordReminderSuppressed は通知の抑止を記録する。
func (c *Collector) RecordReminderSuppressed(reason string) {
	c.suppressed.WithLabelValues(reason).Inc()
}

// RecordReminderFailure は処理失敗を記録する。
func (c *Collector) RecordReminderFailure(stage string) {
	c.failures.WithLabelValues(stage).Inc()
}

// RecordRunDuration は組織単位の実行時間を記録する。
func (c *Collector) RecordRunDuration(duration time.Duration) {
	c.runDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordOrganizationSkipped() {
	c.orgSkipped.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordReminderCreated(string, string) {}
func (Nop) RecordReminderSuppressed(string)      {}
func (Nop) RecordReminderFailure(string)         {}
func (Nop) RecordRunDuration(time.Duration)      {}
func (Nop) RecordOrganizationSkipped()           {}
func (Nop) RecordHTTPStatus(int)                 {}

// NewRegistry はGoランタイムとプロセスのメトリクスを登録済みのレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーはHTTP 500で返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{ErrorHandling: promhttp.HTTPErrorOnError})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
