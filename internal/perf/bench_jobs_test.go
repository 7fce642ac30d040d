package perf

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/odyssey-erp/odyssey-desk/internal/jobs"
	"github.com/odyssey-erp/odyssey-desk/jobs"
)

// flakyWarmer fails every fifth run.
type flakyWarmer struct {
	runs atomic.Int32
}

func (w *flakyWarmer) Warm(_ context.Context, names ...string) (int, error) {
	if w.runs.Add(1)%5 == 0 {
		return 1, errors.New("backend timeout")
	}
	return max(len(names), 3), nil
}

func (w *flakyWarmer) Invalidate(context.Context) error { return nil }

func TestWarmupJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := jobs.NewViewsWarmupJob(&flakyWarmer{}, nil, jobmetrics.NewMetrics(reg))

	ctx := context.Background()
	var failures int
	for range 40 {
		if _, err := job.Run(ctx); err != nil {
			failures++
		}
	}
	if failures != 8 {
		t.Fatalf("expected 8 failing runs, got %d", failures)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": "views_warmup", "status": "success"})
	failure := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": "views_warmup", "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.8 {
		t.Fatalf("warmup success ratio too low: %f", ratio)
	}

	// 32 good runs of 3 views and 8 failed runs that still warmed one
	warmed := metricValue(t, families, "odyssey_jobs_lists_warmed_total", map[string]string{"job": "views_warmup"})
	if warmed != 32*3+8 {
		t.Fatalf("unexpected warmed count: %f", warmed)
	}

	if mean := histogramMean(t, families, "odyssey_job_duration_seconds", map[string]string{"job": "views_warmup"}); mean > 0.5 {
		t.Fatalf("warmup duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
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
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; !ok || lp.GetValue() != val {
			return false
		}
	}
	return true
}
