package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]string {
	out := make(map[attribute.Key]string, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"query locations", "wing_locations", DBOperationQuery, "query wing_locations"},
		{"insert reviews", "wing_reviews", DBOperationInsert, "insert wing_reviews"},
		{"update reviews", "wing_reviews", DBOperationUpdate, "update wing_reviews"},
		{"delete locations", "wing_locations", DBOperationDelete, "delete wing_locations"},
		{"exec migrations", "schema_migrations", DBOperationExec, "exec schema_migrations"},
		{"query without table", "", DBOperationQuery, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}
			if span.SpanKind() != trace.SpanKindClient {
				t.Errorf("span kind = %v, want client", span.SpanKind())
			}
			if span.InstrumentationScope().Name != DBTracerName {
				t.Errorf("scope = %q, want %q", span.InstrumentationScope().Name, DBTracerName)
			}

			attrs := attrMap(span.Attributes())
			if attrs["db.system"] != "postgresql" {
				t.Errorf("db.system = %q", attrs["db.system"])
			}
			if attrs["db.operation"] != string(tt.operation) {
				t.Errorf("db.operation = %q", attrs["db.operation"])
			}
			table, hasTable := attrs["db.sql.table"]
			if tt.table != "" && table != tt.table {
				t.Errorf("db.sql.table = %q, want %q", table, tt.table)
			}
			if tt.table == "" && hasTable {
				t.Error("unexpected db.sql.table attribute")
			}
		})
	}
}

func TestStartDBSpan_WithError(t *testing.T) {
	rec := newRecorder(t)
	testErr := errors.New("connection reset")

	_, endSpan := StartDBSpan(context.Background(), "wing_reviews", DBOperationQuery)
	endSpan(testErr)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if spans[0].Status().Description != testErr.Error() {
		t.Errorf("description = %q", spans[0].Status().Description)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestStartSpan(t *testing.T) {
	rec := newRecorder(t)

	_, endSpan := StartSpan(context.Background(), "backfill.run", attribute.Bool("dry_run", true))
	endSpan(nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "backfill.run" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code == codes.Error {
		t.Error("unexpected error status")
	}
	if attrMap(span.Attributes())["dry_run"] != "true" {
		t.Errorf("attributes = %v", span.Attributes())
	}
}

func TestStartSpan_WithError(t *testing.T) {
	rec := newRecorder(t)

	_, endSpan := StartSpan(context.Background(), "import.entry")
	endSpan(errors.New("bad entry"))

	if spans := rec.Ended(); len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one span with error status, got %d spans", len(spans))
	}
}

func TestAddEventAndSetAttributes(t *testing.T) {
	rec := newRecorder(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	AddEvent(ctx, "review_updated", attribute.Int64("review_id", 7), attribute.Int("heat", 4))
	SetAttributes(ctx, attribute.Int("reviews.scanned", 12))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 || events[0].Name != "review_updated" || len(events[0].Attributes) != 2 {
		t.Errorf("unexpected events %+v", events)
	}
	if attrMap(spans[0].Attributes())["reviews.scanned"] != "12" {
		t.Errorf("attributes = %v", spans[0].Attributes())
	}
}

func TestHelpers_NoActiveSpan(t *testing.T) {
	// Must not panic without a recording span.
	ctx := context.Background()
	AddEvent(ctx, "nothing")
	SetAttributes(ctx, attribute.String("k", "v"))
}
