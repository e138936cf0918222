// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションストア、ガード、ハンドラー層から利用する。
type MetricsCollector interface {
	RecordSignIn(result string)
	RecordSignOut()
	RecordGuardDecision(outcome string)
	RecordProfileUpdate(result string)
	RecordSessionResolution(duration time.Duration)
	RecordContactSubmission()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns            *prometheus.CounterVec
	signOuts           prometheus.Counter
	guardDecisions     *prometheus.CounterVec
	profileUpdates     *prometheus.CounterVec
	sessionResolution  prometheus.Histogram
	contactSubmissions prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_sign_in_total",
			Help: "結果別のサインイン試行数",
		}, []string{"result"}),
		signOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_sign_out_total",
			Help: "サインアウトの合計数",
		}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_guard_decision_total",
			Help: "判定結果別のルートガード判定数",
		}, []string{"outcome"}),
		profileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_profile_update_total",
			Help: "結果別のプロフィール更新数",
		}, []string{"result"}),
		sessionResolution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hub_session_resolution_seconds",
			Help:    "起動時セッション解決のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		contactSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_contact_submission_total",
			Help: "受け付けたお問い合わせの合計数",
		}),
	}

	reg.MustRegister(
		c.signIns,
		c.signOuts,
		c.guardDecisions,
		c.profileUpdates,
		c.sessionResolution,
		c.contactSubmissions,
	)

	return c
}

// RecordSignIn はサインイン試行を結果（success / failure）付きで記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordSignOut はサインアウトを記録する。
func (c *Collector) RecordSignOut() {
	c.signOuts.Inc()
}

// RecordGuardDecision はルートガードの判定結果を記録する。
func (c *Collector) RecordGuardDecision(outcome string) {
	c.guardDecisions.WithLabelValues(outcome).Inc()
}

// RecordProfileUpdate はプロフィール更新を結果付きで記録する。
func (c *Collector) RecordProfileUpdate(result string) {
	c.profileUpdates.WithLabelValues(result).Inc()
}

// RecordSessionResolution は起動時セッション解決のレイテンシを記録する。
func (c *Collector) RecordSessionResolution(duration time.Duration) {
	c.sessionResolution.Observe(duration.Seconds())
}

// RecordContactSubmission はお問い合わせの受付を記録する。
func (c *Collector) RecordContactSubmission() {
	c.contactSubmissions.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
