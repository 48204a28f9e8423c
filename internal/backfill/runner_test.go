package backfill

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mampersat/ratewings2025/internal/jobs"
	"github.com/mampersat/ratewings2025/internal/location"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

type fixture struct {
	store *location.InMemoryStore
	ids   map[string]int64
}

// newFixture seeds legacy reviews that predate the heat and created_at columns.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := location.NewInMemoryStore()
	loc := &location.Location{Name: "Wing Hut"}
	if err := store.CreateLocation(ctx, loc); err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	existing := time.Date(2020, 5, 5, 12, 0, 0, 0, time.UTC)
	seeds := []struct {
		key     string
		comment *string
		heat    *int
		created *time.Time
	}{
		{"both", strPtr("heat: 6\ncreated: 2024-01-15 14:30"), nil, nil},
		{"heat only", strPtr("heat: 2"), nil, nil},
		{"has heat", strPtr("heat: 9\ncreator: 2023-03-03"), intPtr(4), nil},
		{"has both", strPtr("heat: 9\ncreated: 2023-03-03"), intPtr(4), &existing},
		{"too hot", strPtr("heat: 15"), nil, nil},
		{"nothing", strPtr("great sauce"), nil, nil},
		{"no comment", nil, nil, nil},
	}

	f := &fixture{store: store, ids: make(map[string]int64)}
	for _, s := range seeds {
		r := &location.Review{LocationID: loc.ID, Rating: 7, Comment: s.comment, Heat: s.heat, CreatedAt: s.created}
		if err := store.SeedReview(r); err != nil {
			t.Fatalf("SeedReview() error = %v", err)
		}
		f.ids[s.key] = r.ID
	}
	return f
}

func (f *fixture) review(t *testing.T, key string) *location.Review {
	t.Helper()
	r, err := f.store.GetReview(context.Background(), f.ids[key])
	if err != nil {
		t.Fatalf("GetReview(%s) error = %v", key, err)
	}
	return r
}

func TestRunner_Run(t *testing.T) {
	f := newFixture(t)
	metrics := jobs.NewMetrics()
	runner := NewRunner(f.store, WithMetrics(metrics), WithLogger(quietLogger()))

	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := Result{Scanned: 5, HeatUpdated: 2, CreatedAtUpdated: 2, Unchanged: 2, InvalidHeat: 1}
	if res != want {
		t.Errorf("Run() = %+v, want %+v", res, want)
	}

	both := f.review(t, "both")
	if both.Heat == nil || *both.Heat != 6 {
		t.Errorf("heat = %v, want 6", both.Heat)
	}
	if both.CreatedAt == nil || !both.CreatedAt.Equal(time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", both.CreatedAt)
	}

	hasHeat := f.review(t, "has heat")
	if *hasHeat.Heat != 4 {
		t.Errorf("existing heat overwritten: %d", *hasHeat.Heat)
	}
	if hasHeat.CreatedAt == nil || !hasHeat.CreatedAt.Equal(time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", hasHeat.CreatedAt)
	}

	if r := f.review(t, "too hot"); r.Heat != nil {
		t.Errorf("out-of-range heat stored: %d", *r.Heat)
	}
	if r := f.review(t, "has both"); !r.CreatedAt.Equal(time.Date(2020, 5, 5, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("existing created_at overwritten: %v", r.CreatedAt)
	}

	if got := counter(t, metrics, jobs.MetricJobItemsTotal, jobs.ItemUpdated); got != 4 {
		t.Errorf("updated items = %v, want 4", got)
	}
	if got := counter(t, metrics, jobs.MetricJobsTotal, jobs.StatusSuccess); got != 1 {
		t.Errorf("successful runs = %v, want 1", got)
	}
}

func TestRunner_Idempotent(t *testing.T) {
	f := newFixture(t)
	runner := NewRunner(f.store, WithLogger(quietLogger()))

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if res.HeatUpdated != 0 || res.CreatedAtUpdated != 0 {
		t.Errorf("second run changed rows: %+v", res)
	}
}

func TestRunner_DryRun(t *testing.T) {
	f := newFixture(t)
	res, err := NewRunner(f.store, WithDryRun(true), WithLogger(quietLogger())).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.HeatUpdated != 2 || res.CreatedAtUpdated != 2 {
		t.Errorf("dry run should report pending updates, got %+v", res)
	}
	if r := f.review(t, "both"); r.Heat != nil || r.CreatedAt != nil {
		t.Error("dry run wrote to the store")
	}
}

type failingStore struct {
	*location.InMemoryStore
	listErr error
	setErr  error
}

func (s failingStore) ListReviewsForBackfill(ctx context.Context) ([]*location.Review, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.InMemoryStore.ListReviewsForBackfill(ctx)
}

func (s failingStore) SetReviewHeat(context.Context, int64, int) (bool, error) {
	return false, s.setErr
}

func TestRunner_ListFailure(t *testing.T) {
	metrics := jobs.NewMetrics()
	store := failingStore{InMemoryStore: location.NewInMemoryStore(), listErr: errors.New("connection refused")}

	_, err := NewRunner(store, WithMetrics(metrics), WithLogger(quietLogger())).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := counter(t, metrics, jobs.MetricJobsTotal, jobs.StatusFailure); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
}

func TestRunner_WriteFailureContinues(t *testing.T) {
	f := newFixture(t)
	store := failingStore{InMemoryStore: f.store, setErr: errors.New("deadlock")}

	res, err := NewRunner(store, WithLogger(quietLogger())).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed != 2 || res.HeatUpdated != 0 {
		t.Errorf("Run() = %+v, want 2 failures and no heat updates", res)
	}
	if res.CreatedAtUpdated != 2 {
		t.Errorf("created_at updates should still run, got %d", res.CreatedAtUpdated)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewRunner(f.store, WithLogger(quietLogger())).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func counter(t *testing.T, m *jobs.Metrics, name, label string) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if hasLabel(metric, label) {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func hasLabel(m *dto.Metric, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetValue() == value {
			return true
		}
	}
	return false
}
