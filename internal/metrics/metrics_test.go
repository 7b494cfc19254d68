package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定名・ラベルのカウンタ値を返す。見つからない場合は-1。
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
				}
			}
			if matched {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLogin_IncrementsByLabels はログインカウンタがラベル別に増加することを検証する。
func TestRecordLogin_IncrementsByLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("email", ResultSuccess)
	c.RecordLogin("email", ResultSuccess)
	c.RecordLogin("google", ResultFailure)

	if got := counterValue(t, reg, "confportal_logins_total", map[string]string{"method": "email", "result": "success"}); got != 2 {
		t.Errorf("logins{email,success} = %v, want 2", got)
	}
	if got := counterValue(t, reg, "confportal_logins_total", map[string]string{"method": "google", "result": "failure"}); got != 1 {
		t.Errorf("logins{google,failure} = %v, want 1", got)
	}
}

// TestRecordTeamOperation_AndInconsistency はチーム操作と不整合のカウンタを検証する。
func TestRecordTeamOperation_AndInconsistency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTeamOperation("join", ResultSuccess)
	c.RecordSagaInconsistency("join")

	if got := counterValue(t, reg, "confportal_team_operations_total", map[string]string{"op": "join", "result": "success"}); got != 1 {
		t.Errorf("team_operations{join,success} = %v, want 1", got)
	}
	if got := counterValue(t, reg, "confportal_saga_inconsistencies_total", map[string]string{"op": "join"}); got != 1 {
		t.Errorf("saga_inconsistencies{join} = %v, want 1", got)
	}
}

// TestRecordRevocation_Counters は失効関連のカウンタを検証する。
func TestRecordRevocation_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRevocation()
	c.RecordRevocationsPurged(3)
	c.RecordRegistration(ResultFailure)

	if got := counterValue(t, reg, "confportal_revocations_total", nil); got != 1 {
		t.Errorf("revocations_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "confportal_revocations_purged_total", nil); got != 3 {
		t.Errorf("revocations_purged_total = %v, want 3", got)
	}
	if got := counterValue(t, reg, "confportal_registrations_total", map[string]string{"result": "failure"}); got != 1 {
		t.Errorf("registrations{failure} = %v, want 1", got)
	}
}

// TestHandler_ServesMetrics はHandlerがメトリクスを出力することを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(http.StatusNotFound)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `confportal_http_status_total{status_code="404"} 1`) {
		t.Errorf("response should contain http_status_total for 404, got:\n%s", body)
	}
}
