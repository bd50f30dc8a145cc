package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordClockIn("ok")
	c.RecordClockIn("ok")
	c.RecordClockIn("conflict")
	c.RecordClockOut("no_open")
	c.RecordEvaluationRun()
	c.RecordReminderSubmitted()
	c.RecordNotificationSent()
	c.RecordNotificationRetried()
	c.RecordNotificationFailed()

	if got := testutil.ToFloat64(c.clockIn.WithLabelValues("ok")); got != 2 {
		t.Errorf("clock_in{result=ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.clockIn.WithLabelValues("conflict")); got != 1 {
		t.Errorf("clock_in{result=conflict} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.clockOut.WithLabelValues("no_open")); got != 1 {
		t.Errorf("clock_out{result=no_open} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.evaluationRuns); got != 1 {
		t.Errorf("evaluation_runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.notificationSent); got != 1 {
		t.Errorf("notification_sent = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.notificationRetry); got != 1 {
		t.Errorf("notification_retry = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.notificationFail); got != 1 {
		t.Errorf("notification_fail = %v, want 1", got)
	}
}

func TestCollector_MailLatencyHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMailLatency(150 * time.Millisecond)
	c.RecordMailLatency(300 * time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, f := range families {
		if f.GetName() == "kintai_mail_latency_seconds" {
			if count := f.GetMetric()[0].GetHistogram().GetSampleCount(); count != 2 {
				t.Errorf("sample count = %d, want 2", count)
			}
			return
		}
	}
	t.Error("kintai_mail_latency_secondsが登録されていない")
}

func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordClockIn("ok")

	handler := SetupMetricsRoute(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kintai_clock_in_total") {
		t.Error("スクレイプ出力にkintai_clock_in_totalが含まれない")
	}
}
