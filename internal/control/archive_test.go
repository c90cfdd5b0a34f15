package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
	"archiveclient/pkg/transport/faketransport"
)

func newTestArchive(t *testing.T, messageTimeout time.Duration) (*AeronArchive, *faketransport.Publication, *faketransport.Subscription) {
	t.Helper()
	pub := faketransport.NewPublication("aeron:udp?endpoint=localhost:8010", 1, 10)
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, DefaultRetryCount, time.Second, DefaultScratchBufferSize)
	a := NewAeronArchive(7, proxy, sub, faketransport.NewAeron(), YieldingIdleStrategy{}, messageTimeout, DefaultFragmentLimit, nil, nil)
	return a, pub, sub
}

func TestAeronArchiveStartRecordingSuccess(t *testing.T) {
	a, pub, sub := newTestArchive(t, time.Second)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 7, CorrelationID: 1, RelevantID: 55, Code: aeronproto.CodeOK,
	}))

	id, err := a.StartRecording("aeron:udp?endpoint=localhost:20121", 10, aeronproto.SourceLocationLocal, true)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if id != 55 {
		t.Fatalf("id = %d, want 55", id)
	}
	if len(pub.Frames()) != 1 {
		t.Fatalf("frames = %d, want 1", len(pub.Frames()))
	}
}

func TestAeronArchiveErrorResponse(t *testing.T) {
	a, _, sub := newTestArchive(t, time.Second)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 7, CorrelationID: 1, RelevantID: int64(archiveerr.ErrorUnknownRecording), Code: aeronproto.CodeError, ErrorMessage: "no such recording",
	}))

	_, err := a.StopRecording("aeron:udp?endpoint=localhost:20121", 10)
	if err == nil {
		t.Fatal("StopRecording: want error")
	}
	var archErr *archiveerr.ArchiveError
	if !errors.As(err, &archErr) {
		t.Fatalf("err = %T, want *archiveerr.ArchiveError", err)
	}
	if archErr.Code != archiveerr.ErrorUnknownRecording {
		t.Fatalf("code = %v, want %v", archErr.Code, archiveerr.ErrorUnknownRecording)
	}
}

func TestAeronArchiveIgnoresMismatchedCorrelation(t *testing.T) {
	a, _, sub := newTestArchive(t, 100*time.Millisecond)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 7, CorrelationID: 999, RelevantID: 1, Code: aeronproto.CodeOK,
	}))
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 7, CorrelationID: 1, RelevantID: 5, Code: aeronproto.CodeOK,
	}))

	id, err := a.GetStopPosition(3)
	if err != nil {
		t.Fatalf("GetStopPosition: %v", err)
	}
	if id != 5 {
		t.Fatalf("id = %d, want 5 (the stale response for correlation 999 must be skipped)", id)
	}
}

func TestAeronArchiveTimesOutAwaitingResponse(t *testing.T) {
	a, _, _ := newTestArchive(t, 5*time.Millisecond)
	_, err := a.GetRecordingPosition(1)
	if err == nil {
		t.Fatal("GetRecordingPosition: want a timeout error, nothing was enqueued")
	}
	var timeout *archiveerr.Timeout
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %T, want *archiveerr.Timeout", err)
	}
}

func TestAeronArchiveListRecordingsDeliversAndCompletes(t *testing.T) {
	a, _, sub := newTestArchive(t, time.Second)
	sub.Enqueue(encodeRecordingDescriptor(t, aeronproto.RecordingDescriptor{ControlSessionID: 7, CorrelationID: 1, RecordingID: 10}))
	sub.Enqueue(encodeRecordingDescriptor(t, aeronproto.RecordingDescriptor{ControlSessionID: 7, CorrelationID: 1, RecordingID: 11}))

	var got []int64
	count, err := a.ListRecordings(0, 2, func(d aeronproto.RecordingDescriptor) { got = append(got, d.RecordingID) })
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("got = %v, want [10 11]", got)
	}
}

func TestAeronArchiveListRecordingUnknownTerminatesEarly(t *testing.T) {
	a, _, sub := newTestArchive(t, time.Second)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 7, CorrelationID: 1, Code: aeronproto.CodeRecordingUnknown,
	}))

	count, err := a.ListRecording(404, func(aeronproto.RecordingDescriptor) {})
	if err != nil {
		t.Fatalf("ListRecording: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestAeronArchiveAddRecordedPublicationRejectsSecondSession(t *testing.T) {
	pub := faketransport.NewPublication("aeron:udp?endpoint=localhost:8010", 1, 10)
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, DefaultRetryCount, time.Second, DefaultScratchBufferSize)
	fakeAeron := faketransport.NewAeron()
	a := NewAeronArchive(7, proxy, sub, fakeAeron, YieldingIdleStrategy{}, time.Second, DefaultFragmentLimit, nil, nil)

	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 7, CorrelationID: 1, RelevantID: 900, Code: aeronproto.CodeOK,
	}))
	ctx := context.Background()
	if _, err := a.AddRecordedPublication(ctx, "aeron:udp?endpoint=localhost:20121", 10); err != nil {
		t.Fatalf("first AddRecordedPublication: %v", err)
	}

	if _, err := a.AddRecordedPublication(ctx, "aeron:udp?endpoint=localhost:20121", 10); err == nil {
		t.Fatal("second AddRecordedPublication on the same channel: want an error, a distinct session must be rejected")
	}
}

func TestAeronArchiveCloseRejectsFurtherCommands(t *testing.T) {
	a, pub, _ := newTestArchive(t, time.Second)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := a.GetRecordingPosition(1); err == nil {
		t.Fatal("GetRecordingPosition after Close: want error")
	}
	if len(pub.Frames()) != 1 {
		t.Fatalf("frames = %d, want 1 (only the best-effort closeSession offer)", len(pub.Frames()))
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: want nil, want it to be idempotent, got %v", err)
	}
}
