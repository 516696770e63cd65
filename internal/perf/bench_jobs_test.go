package perf

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	jobmetrics "github.com/odyssey-erp/odyssey-gl/internal/jobs"
	"github.com/odyssey-erp/odyssey-gl/jobs"
)

type failingRunner struct{}

func (failingRunner) Run(context.Context) (integrity.Report, error) {
	return integrity.Report{}, errors.New("statement timeout")
}

func TestGLIntegrityJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	l := newLedger(t)
	for i := 0; i < 200; i++ {
		l.post(t, i)
	}

	ctx := context.Background()
	job := jobs.NewGLIntegrityJob(l.checker, nil, nil, metrics)
	task, err := jobs.NewGLIntegrityTask("schedule")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	// Scheduled runs over a healthy ledger.
	for i := 0; i < 40; i++ {
		if err := job.Handle(ctx, task); err != nil {
			t.Fatalf("healthy run failed: %v", err)
		}
	}

	// A drifted stored balance surfaces as findings, not job failures.
	period, _ := l.year.Period(1)
	l.store.SetStoredBalance(l.cash.ID, period.ID, decimal.NewFromInt(1), decimal.Zero)
	for i := 0; i < 5; i++ {
		if err := job.Handle(ctx, task); err != nil {
			t.Fatalf("run with findings failed: %v", err)
		}
	}

	// Database trouble does fail the run so asynq retries it.
	broken := jobs.NewGLIntegrityJob(failingRunner{}, nil, nil, metrics)
	for i := 0; i < 2; i++ {
		if err := broken.Handle(ctx, asynq.NewTask(jobs.TaskGLIntegrity, nil)); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskGLIntegrity, "status": "success"})
	failure := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskGLIntegrity, "status": "failure"})
	if success != 45 || failure != 2 {
		t.Fatalf("unexpected outcome counts: success=%v failure=%v", success, failure)
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("integrity job success ratio too low: %f", ratio)
	}

	findings := metricValue(t, families, "odyssey_gl_integrity_findings_total", map[string]string{
		"check":    string(integrity.CheckDerivedBalances),
		"severity": string(integrity.SeverityMedium),
	})
	if findings != 5 {
		t.Fatalf("expected 5 derived balance findings, got %v", findings)
	}
	if healthyAt := metricValue(t, families, "odyssey_gl_integrity_last_healthy_timestamp_seconds", nil); healthyAt == 0 {
		t.Fatal("last healthy timestamp not recorded")
	}

	duration := histogramMean(t, families, "odyssey_job_duration_seconds", map[string]string{"job": jobs.TaskGLIntegrity})
	if duration > 0.5 {
		t.Fatalf("integrity job duration above budget: %f", duration)
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
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok && lp.GetValue() != val {
			return false
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
