package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names.
const (
	TracerName   = "ratewings"
	DBTracerName = "ratewings/db"
)

// DBOperation is the kind of SQL statement a span covers.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert"
	DBOperationUpdate DBOperation = "update"
	DBOperationDelete DBOperation = "delete"
	DBOperationExec   DBOperation = "exec"
)

// StartDBSpan starts a client span named "<operation> <table>" and returns a
// function that records err, if any, and ends the span.
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "wing_reviews", tracing.DBOperationQuery)
//	defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	spanName := string(operation)
	if table != "" {
		spanName += " " + table
	}

	ctx, span := otel.Tracer(DBTracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", string(operation)),
		),
	)
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}

	return ctx, endWith(span)
}

// StartSpan starts an internal span for a unit of work such as a backfill run.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, endWith(span)
}

func endWith(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
