package control

import (
	"testing"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
	"archiveclient/pkg/transport/faketransport"
)

func encodeControlResponse(t *testing.T, cr aeronproto.ControlResponse) []byte {
	t.Helper()
	buf := make([]byte, 256)
	n, err := cr.Encode(buf)
	if err != nil {
		t.Fatalf("ControlResponse.Encode: %v", err)
	}
	return buf[:n]
}

func TestControlResponsePollerDecodesCompleteResponse(t *testing.T) {
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 7,
		CorrelationID:    3,
		RelevantID:       42,
		Code:             aeronproto.CodeOK,
	}))

	poller := NewControlResponsePoller(sub, DefaultFragmentLimit)
	if _, err := poller.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !poller.IsPollComplete() {
		t.Fatal("IsPollComplete() = false, want true")
	}
	if !poller.IsControlResponse() {
		t.Fatal("IsControlResponse() = false, want true")
	}
	if poller.ControlSessionID() != 7 || poller.CorrelationID() != 3 || poller.RelevantID() != 42 {
		t.Fatalf("got session=%d correlation=%d relevant=%d", poller.ControlSessionID(), poller.CorrelationID(), poller.RelevantID())
	}
	if !poller.IsCodeOk() {
		t.Fatal("IsCodeOk() = false, want true")
	}
}

func TestControlResponsePollerFieldsClearBetweenPolls(t *testing.T) {
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{ControlSessionID: 1, CorrelationID: 1, Code: aeronproto.CodeOK}))

	poller := NewControlResponsePoller(sub, DefaultFragmentLimit)
	if _, err := poller.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !poller.IsPollComplete() {
		t.Fatal("first Poll: want complete")
	}

	if _, err := poller.Poll(); err != nil {
		t.Fatalf("second Poll: %v", err)
	}
	if poller.IsPollComplete() {
		t.Fatal("second Poll with nothing pending: want IsPollComplete() = false")
	}
}

func TestControlResponsePollerErrorCode(t *testing.T) {
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 1,
		CorrelationID:    1,
		RelevantID:       int64(archiveerr.ErrorGeneric),
		Code:             aeronproto.CodeError,
		ErrorMessage:     "boom",
	}))

	poller := NewControlResponsePoller(sub, DefaultFragmentLimit)
	if _, err := poller.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !poller.IsCodeError() {
		t.Fatal("IsCodeError() = false, want true")
	}
	if poller.ErrorMessage() != "boom" {
		t.Fatalf("ErrorMessage() = %q, want %q", poller.ErrorMessage(), "boom")
	}
}
