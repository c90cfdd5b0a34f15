package control

import (
	"context"
	"testing"
	"time"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/transport/faketransport"
)

const (
	testRequestChannel  = "aeron:udp?endpoint=localhost:8010"
	testRequestStreamID = 10
	testResponseChannel = "aeron:udp?endpoint=localhost:8020"
	testResponseStream  = 20
)

func newTestAsyncConnect(t *testing.T, connectTimeout time.Duration) (*AsyncConnect, *faketransport.Aeron) {
	t.Helper()
	aeron := faketransport.NewAeron()
	c, err := NewAsyncConnect(context.Background(), aeron, testRequestChannel, testRequestStreamID, testResponseChannel, testResponseStream, YieldingIdleStrategy{}, connectTimeout, DefaultFragmentLimit, DefaultRetryCount, DefaultScratchBufferSize)
	if err != nil {
		t.Fatalf("NewAsyncConnect: %v", err)
	}
	return c, aeron
}

func TestAsyncConnectHandshakeSucceeds(t *testing.T) {
	c, aeron := newTestAsyncConnect(t, time.Second)
	sub, ok := aeron.SubscriptionAt(testResponseChannel, testResponseStream)
	if !ok {
		t.Fatal("response subscription was not registered")
	}
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 99, CorrelationID: 1, Code: aeronproto.CodeOK,
	}))

	done, err := c.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !done {
		t.Fatal("Poll: want done=true once the OK response arrives")
	}
	if c.ControlSessionID() != 99 {
		t.Fatalf("ControlSessionID() = %d, want 99", c.ControlSessionID())
	}
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false, want true")
	}
	if done2, err := c.Poll(); err != nil || !done2 {
		t.Fatalf("Poll after done: want (true, nil), got (%v, %v)", done2, err)
	}
}

func TestAsyncConnectHandshakeErrorResponse(t *testing.T) {
	c, aeron := newTestAsyncConnect(t, time.Second)
	sub, _ := aeron.SubscriptionAt(testResponseChannel, testResponseStream)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 99, CorrelationID: 1, Code: aeronproto.CodeError, ErrorMessage: "rejected",
	}))

	done, err := c.Poll()
	if err == nil {
		t.Fatal("Poll: want error on an ERROR-coded connect response")
	}
	if done {
		t.Fatal("Poll: want done=false on error")
	}
}

func TestAsyncConnectMakeArchiveBeforeDone(t *testing.T) {
	c, _ := newTestAsyncConnect(t, time.Second)
	if _, err := c.MakeArchive(time.Second, nil); err == nil {
		t.Fatal("MakeArchive before the handshake completes: want error")
	}
}

func TestAsyncConnectMakeArchiveAfterDone(t *testing.T) {
	c, aeron := newTestAsyncConnect(t, time.Second)
	sub, _ := aeron.SubscriptionAt(testResponseChannel, testResponseStream)
	sub.Enqueue(encodeControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: 99, CorrelationID: 1, Code: aeronproto.CodeOK,
	}))
	if _, err := c.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	a, err := c.MakeArchive(time.Second, nil)
	if err != nil {
		t.Fatalf("MakeArchive: %v", err)
	}
	if a.ControlSessionID() != 99 {
		t.Fatalf("ControlSessionID() = %d, want 99", a.ControlSessionID())
	}
}
