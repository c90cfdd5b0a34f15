// Package telemetry wires the control-session engine's spans and counters
// against the stable otel API (go.mod pins otel v1.16.0 and metric v1.16.0,
// not the pre-1.0 instrument/syncint64 split the teacher's
// pkg/logging/otel package was written against): one meter and tracer per
// process, obtained once in the package's init from the global providers so
// an embedder that
// never calls otel.SetTracerProvider/SetMeterProvider still gets working
// no-op instruments.
package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"archiveclient/pkg/archiveerr"
)

const instrumentationName = "archiveclient/internal/control"

var (
	initOnce sync.Once

	tracer trace.Tracer

	commandsTotal    metric.Int64Counter
	protocolErrors   metric.Int64Counter
	mergeTransitions metric.Int64Counter
)

func init() {
	initOnce.Do(func() {
		tracer = otel.Tracer(instrumentationName)
		meter := otel.Meter(instrumentationName)

		var err error
		commandsTotal, err = meter.Int64Counter(
			"archive.commands.total",
			metric.WithDescription("archive control commands issued, by name and outcome"),
		)
		if err != nil {
			commandsTotal, _ = meter.Int64Counter("archive.commands.total")
		}
		protocolErrors, err = meter.Int64Counter(
			"archive.protocol_errors.total",
			metric.WithDescription("ERROR-coded control responses observed, by relevant error code"),
		)
		if err != nil {
			protocolErrors, _ = meter.Int64Counter("archive.protocol_errors.total")
		}
		mergeTransitions, err = meter.Int64Counter(
			"archive.replay_merge.transitions.total",
			metric.WithDescription("ReplayMerge state transitions, by resulting state"),
		)
		if err != nil {
			mergeTransitions, _ = meter.Int64Counter("archive.replay_merge.transitions.total")
		}
	})
}

// StartCommandSpan opens a span for one synchronous archive command.
func StartCommandSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "archive."+command, trace.WithAttributes(
		attribute.String("archive.command", command),
	))
}

// EndCommandSpan closes a command span, recording err on it if non-nil, and
// updates the commands-issued counter and, when err is an
// *archiveerr.ArchiveError, the protocol-error counter.
func EndCommandSpan(ctx context.Context, span trace.Span, command string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var archErr *archiveerr.ArchiveError
		if errors.As(err, &archErr) {
			protocolErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("archive.command", command),
				attribute.String("archive.error_code", archErr.Code.String()),
			))
		}
	}
	commandsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("archive.command", command),
		attribute.String("archive.outcome", outcome),
	))
	span.End()
}

// StartConnectSpan opens a span covering the full async-connect handshake,
// from the first Poll call to the one that returns true or an error.
func StartConnectSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "archive.connect")
}

// RecordMergeTransition records a ReplayMerge state transition as both a
// span event on the current context and a counter increment.
func RecordMergeTransition(ctx context.Context, from, to string) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("replay_merge.transition", trace.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
	mergeTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("archive.replay_merge.state", to),
	))
}
