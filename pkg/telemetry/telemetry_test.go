package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestStartCommandSpanReturnsUsableSpan(t *testing.T) {
	ctx, span := StartCommandSpan(context.Background(), "start-recording")
	if ctx == nil {
		t.Fatal("StartCommandSpan: nil context")
	}
	if span == nil {
		t.Fatal("StartCommandSpan: nil span")
	}
	EndCommandSpan(ctx, span, "start-recording", nil)
}

func TestEndCommandSpanRecordsError(t *testing.T) {
	ctx, span := StartCommandSpan(context.Background(), "stop-recording")
	EndCommandSpan(ctx, span, "stop-recording", errors.New("boom"))
}

func TestStartConnectSpanReturnsUsableSpan(t *testing.T) {
	ctx, span := StartConnectSpan(context.Background())
	if ctx == nil || span == nil {
		t.Fatal("StartConnectSpan: nil context or span")
	}
	span.End()
}

func TestRecordMergeTransitionDoesNotPanicWithoutASpanOnContext(t *testing.T) {
	RecordMergeTransition(context.Background(), "AWAIT_CATCH_UP", "AWAIT_CURRENT_RECORDING_POSITION")
}
