package control

import (
	"testing"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/transport/faketransport"
)

func encodeRecordingDescriptor(t *testing.T, d aeronproto.RecordingDescriptor) []byte {
	t.Helper()
	buf := make([]byte, 512)
	n, err := d.Encode(buf)
	if err != nil {
		t.Fatalf("RecordingDescriptor.Encode: %v", err)
	}
	return buf[:n]
}

func newRecordingDescriptorPoller(sub *faketransport.Subscription) *DescriptorPoller[aeronproto.RecordingDescriptor] {
	return NewDescriptorPoller[aeronproto.RecordingDescriptor](sub, DefaultFragmentLimit, aeronproto.TemplateRecordingDescriptor, aeronproto.CodeRecordingUnknown, nil)
}

func TestDescriptorPollerDeliversRecordsThenCompletesByCount(t *testing.T) {
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	sub.Enqueue(encodeRecordingDescriptor(t, aeronproto.RecordingDescriptor{ControlSessionID: 1, CorrelationID: 5, RecordingID: 10}))
	sub.Enqueue(encodeRecordingDescriptor(t, aeronproto.RecordingDescriptor{ControlSessionID: 1, CorrelationID: 5, RecordingID: 11}))

	var seen []int64
	poller := newRecordingDescriptorPoller(sub)
	poller.Reset(1, 5, 2, func(d aeronproto.RecordingDescriptor) { seen = append(seen, d.RecordingID) })

	delivered, err := poller.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("delivered = %d, want 2", delivered)
	}
	if !poller.IsDispatchComplete() {
		t.Fatal("IsDispatchComplete() = false, want true")
	}
	if poller.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", poller.Remaining())
	}
	if len(seen) != 2 || seen[0] != 10 || seen[1] != 11 {
		t.Fatalf("seen = %v, want [10 11]", seen)
	}
}

func TestDescriptorPollerEarlyTerminatorUnknownCode(t *testing.T) {
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	sub.Enqueue(encodeRecordingDescriptor(t, aeronproto.RecordingDescriptor{ControlSessionID: 1, CorrelationID: 5, RecordingID: 10}))
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 1,
		CorrelationID:    5,
		Code:             aeronproto.CodeRecordingUnknown,
	}))

	poller := newRecordingDescriptorPoller(sub)
	poller.Reset(1, 5, 100, func(aeronproto.RecordingDescriptor) {})

	delivered, err := poller.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1 (the terminator itself is not a delivered record)", delivered)
	}
	if !poller.IsDispatchComplete() {
		t.Fatal("IsDispatchComplete() = false, want true once the unknown-code terminator arrives")
	}
}

func TestDescriptorPollerFatalErrorForOwnCorrelation(t *testing.T) {
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 1,
		CorrelationID:    5,
		Code:             aeronproto.CodeError,
		ErrorMessage:     "listing failed",
	}))

	poller := newRecordingDescriptorPoller(sub)
	poller.Reset(1, 5, 10, func(aeronproto.RecordingDescriptor) {})

	if _, err := poller.Poll(); err == nil {
		t.Fatal("Poll: want error for an ERROR-coded response matching our own correlation id")
	}
}

func TestDescriptorPollerAsyncErrorForOtherCorrelation(t *testing.T) {
	sub := faketransport.NewSubscription("aeron:udp?endpoint=localhost:8020", 20)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 1,
		CorrelationID:    999,
		Code:             aeronproto.CodeError,
		ErrorMessage:     "unrelated failure",
	}))

	var asyncErrs []error
	poller := NewDescriptorPoller[aeronproto.RecordingDescriptor](sub, DefaultFragmentLimit, aeronproto.TemplateRecordingDescriptor, aeronproto.CodeRecordingUnknown, func(err error) {
		asyncErrs = append(asyncErrs, err)
	})
	poller.Reset(1, 5, 10, func(aeronproto.RecordingDescriptor) {})

	delivered, err := poller.Poll()
	if err != nil {
		t.Fatalf("Poll: unexpected error %v", err)
	}
	if delivered != 0 {
		t.Fatalf("delivered = %d, want 0", delivered)
	}
	if poller.IsDispatchComplete() {
		t.Fatal("IsDispatchComplete() = true, want false: this error was for a different correlation id")
	}
	if len(asyncErrs) != 1 {
		t.Fatalf("asyncErrs = %d, want 1", len(asyncErrs))
	}
}
