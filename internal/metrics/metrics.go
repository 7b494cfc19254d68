// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(method, result string)
	RecordRegistration(result string)
	RecordTeamOperation(op, result string)
	RecordSagaInconsistency(op string)
	RecordRevocation()
	RecordRevocationsPurged(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins            *prometheus.CounterVec
	registrations     *prometheus.CounterVec
	teamOperations    *prometheus.CounterVec
	sagaInconsistency *prometheus.CounterVec
	revocations       prometheus.Counter
	revocationsPurged prometheus.Counter
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confportal_logins_total",
			Help: "ログイン試行の合計数（方式・結果別）",
		}, []string{"method", "result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confportal_registrations_total",
			Help: "ユーザー登録の合計数（結果別）",
		}, []string{"result"}),
		teamOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confportal_team_operations_total",
			Help: "チーム操作の合計数（操作・結果別）",
		}, []string{"op", "result"}),
		sagaInconsistency: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confportal_saga_inconsistencies_total",
			Help: "チームとユーザーの所属情報の不整合検出数",
		}, []string{"op"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confportal_revocations_total",
			Help: "失効したクレデンシャルの合計数",
		}),
		revocationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confportal_revocations_purged_total",
			Help: "保持期間を過ぎて削除された失効記録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confportal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.teamOperations,
		c.sagaInconsistency,
		c.revocations,
		c.revocationsPurged,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン試行を記録する。methodは"email"またはプロバイダー名。
func (c *Collector) RecordLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordTeamOperation はチーム操作を記録する。
func (c *Collector) RecordTeamOperation(op, result string) {
	c.teamOperations.WithLabelValues(op, result).Inc()
}

// RecordSagaInconsistency は所属情報の不整合を記録する。
func (c *Collector) RecordSagaInconsistency(op string) {
	c.sagaInconsistency.WithLabelValues(op).Inc()
}

// RecordRevocation はクレデンシャルの失効を記録する。
func (c *Collector) RecordRevocation() {
	c.revocations.Inc()
}

// RecordRevocationsPurged は削除した失効記録の件数を記録する。
func (c *Collector) RecordRevocationsPurged(count int64) {
	c.revocationsPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
