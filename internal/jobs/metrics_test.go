package jobs

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := vec.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogram(t *testing.T, vec *prometheus.HistogramVec, labels ...string) *dto.Histogram {
	t.Helper()
	var m dto.Metric
	if err := vec.WithLabelValues(labels...).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetHistogram()
}

func TestNewMetrics(t *testing.T) {
	if got := len(NewMetrics().Collectors()); got != 4 {
		t.Errorf("expected 4 collectors, got %d", got)
	}
}

func TestMetrics_Register(t *testing.T) {
	t.Run("registers every family", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		m.IncJobsTotal(JobTypeCommentBackfill, StatusSuccess)
		m.ObserveJobDuration(JobTypeCommentBackfill, 1)
		m.IncJobErrors(JobTypeCommentBackfill, "database_error")
		m.AddItems(JobTypeCommentBackfill, ItemUpdated, 3)

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() error = %v", err)
		}
		found := make(map[string]bool)
		for _, f := range families {
			found[f.GetName()] = true
		}
		for _, name := range []string{MetricJobsTotal, MetricJobDuration, MetricJobErrorsTotal, MetricJobItemsTotal} {
			if !found[name] {
				t.Errorf("metric %s not gathered", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatalf("first Register() error = %v", err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("second Register() should fail")
		}
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 3; i++ {
		m.IncJobsTotal(JobTypeDataImport, StatusSuccess)
	}
	m.IncJobsTotal(JobTypeDataImport, StatusFailure)
	m.IncJobErrors(JobTypeDataImport, "http_error")
	m.IncJobErrors(JobTypeDataImport, "http_error")
	m.AddItems(JobTypeDataImport, ItemUpdated, 10)
	m.AddItems(JobTypeDataImport, ItemFailed, 2)
	m.AddItems(JobTypeDataImport, ItemSkipped, 0)

	tests := []struct {
		name string
		vec  *prometheus.CounterVec
		lbls []string
		want float64
	}{
		{"success runs", m.jobsTotal, []string{JobTypeDataImport, StatusSuccess}, 3},
		{"failed runs", m.jobsTotal, []string{JobTypeDataImport, StatusFailure}, 1},
		{"errors", m.jobErrors, []string{JobTypeDataImport, "http_error"}, 2},
		{"updated items", m.jobItems, []string{JobTypeDataImport, ItemUpdated}, 10},
		{"failed items", m.jobItems, []string{JobTypeDataImport, ItemFailed}, 2},
		{"zero adds nothing", m.jobItems, []string{JobTypeDataImport, ItemSkipped}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counterValue(t, tt.vec, tt.lbls...); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics_ObserveJobDuration(t *testing.T) {
	m := NewMetrics()
	for _, d := range []float64{0.5, 1.5, 3} {
		m.ObserveJobDuration(JobTypeCommentBackfill, d)
	}

	h := histogram(t, m.jobDuration, JobTypeCommentBackfill)
	if h.GetSampleCount() != 3 {
		t.Errorf("sample count = %d, want 3", h.GetSampleCount())
	}
	if h.GetSampleSum() != 5 {
		t.Errorf("sample sum = %v, want 5", h.GetSampleSum())
	}
}

func TestMetrics_Start(t *testing.T) {
	m := NewMetrics()

	m.Start(JobTypeCommentBackfill)(nil)
	m.Start(JobTypeCommentBackfill)(errors.New("boom"))

	if got := counterValue(t, m.jobsTotal, JobTypeCommentBackfill, StatusSuccess); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := counterValue(t, m.jobsTotal, JobTypeCommentBackfill, StatusFailure); got != 1 {
		t.Errorf("failure = %v, want 1", got)
	}
	if got := histogram(t, m.jobDuration, JobTypeCommentBackfill).GetSampleCount(); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncJobsTotal(JobTypeDataImport, StatusSuccess)
	m.ObserveJobDuration(JobTypeDataImport, 1)
	m.IncJobErrors(JobTypeDataImport, "x")
	m.AddItems(JobTypeDataImport, ItemUpdated, 1)
	m.Start(JobTypeDataImport)(nil)
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddItems(JobTypeCommentBackfill, ItemUpdated, 2)
			m.IncJobsTotal(JobTypeCommentBackfill, StatusSuccess)
		}()
	}
	wg.Wait()

	if got := counterValue(t, m.jobItems, JobTypeCommentBackfill, ItemUpdated); got != 100 {
		t.Errorf("items = %v, want 100", got)
	}
	if got := counterValue(t, m.jobsTotal, JobTypeCommentBackfill, StatusSuccess); got != 50 {
		t.Errorf("runs = %v, want 50", got)
	}
}
