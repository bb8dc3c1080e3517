package jobmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTrackerRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	for i := 0; i < 9; i++ {
		tracker := metrics.Track("audit:session")
		time.Sleep(time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending tracker: %v", err)
		}
	}
	if err := metrics.Track("audit:session").End(errors.New("insert failed")); err == nil {
		t.Fatal("expected error to propagate")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "catalog_jobs_total", map[string]string{"job": "audit:session", "status": "success"})
	failure := metricValue(t, families, "catalog_jobs_total", map[string]string{"job": "audit:session", "status": "failure"})
	if success != 9 || failure != 1 {
		t.Fatalf("unexpected counts: success=%v failure=%v", success, failure)
	}
	if got := metricValue(t, families, "catalog_jobs_failures_total", map[string]string{"job": "audit:session"}); got != 1 {
		t.Fatalf("expected one failure, got %v", got)
	}
	if mean := histogramMean(t, families, "catalog_job_duration_seconds", map[string]string{"job": "audit:session"}); mean <= 0 {
		t.Fatalf("expected positive mean duration, got %f", mean)
	}
}

func TestInstrumentUsesTaskType(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	handler := metrics.Instrument(func(ctx context.Context, task *asynq.Task) error { return nil })
	if err := handler(context.Background(), asynq.NewTask("audit:prune", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if got := metricValue(t, families, "catalog_jobs_total", map[string]string{"job": "audit:prune", "status": "success"}); got != 1 {
		t.Fatalf("expected one run, got %v", got)
	}
}

func TestNilMetricsPassThrough(t *testing.T) {
	var metrics *Metrics
	want := errors.New("boom")
	handler := metrics.Instrument(func(ctx context.Context, task *asynq.Task) error { return want })
	if err := handler(context.Background(), asynq.NewTask("audit:prune", nil)); !errors.Is(err, want) {
		t.Fatalf("expected passthrough error, got %v", err)
	}
	if err := metrics.Track("x").End(want); !errors.Is(err, want) {
		t.Fatalf("expected passthrough error, got %v", err)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) && fam.GetType() == dto.MetricType_COUNTER {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
