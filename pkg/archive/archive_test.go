package archive

import (
	"context"
	"testing"
	"time"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/transport/faketransport"
)

func testConfig() *Config {
	c := &Config{}
	c.SetDefault()
	c.ConnectTimeout = Duration{time.Second}
	c.MessageTimeout = Duration{time.Second}
	return c
}

func encodeArchiveTestControlResponse(t *testing.T, cr aeronproto.ControlResponse) []byte {
	t.Helper()
	buf := make([]byte, 256)
	n, err := cr.Encode(buf)
	if err != nil {
		t.Fatalf("ControlResponse.Encode: %v", err)
	}
	return buf[:n]
}

func connectTestArchive(t *testing.T) (*Archive, *faketransport.Aeron) {
	t.Helper()
	cfg := testConfig()
	aeron := faketransport.NewAeron()
	sub, ok := aeron.SubscriptionAt(cfg.ResponseChannel, cfg.ResponseStreamID)
	if !ok {
		sub = faketransport.NewSubscription(cfg.ResponseChannel, cfg.ResponseStreamID)
	}
	_ = sub

	done := make(chan struct{})
	go func() {
		// Give AddSubscription/AddPublication a chance to register before
		// the handshake response is enqueued.
		for i := 0; i < 100; i++ {
			if s, ok := aeron.SubscriptionAt(cfg.ResponseChannel, cfg.ResponseStreamID); ok {
				s.Enqueue(encodeArchiveTestControlResponse(t, aeronproto.ControlResponse{
					ControlSessionID: 42, CorrelationID: 1, Code: aeronproto.CodeOK,
				}))
				close(done)
				return
			}
		}
		close(done)
	}()

	a, err := Connect(context.Background(), aeron, cfg, nil)
	<-done
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, aeron
}

func TestConnectCompletesHandshake(t *testing.T) {
	a, _ := connectTestArchive(t)
	defer a.Close()
	if a.ControlSessionID() != 42 {
		t.Fatalf("ControlSessionID() = %d, want 42", a.ControlSessionID())
	}
}

func TestArchiveStartRecordingRecordsLatency(t *testing.T) {
	a, aeron := connectTestArchive(t)
	defer a.Close()

	pub, ok := aeron.PublicationAt(testConfig().RequestChannel, testConfig().RequestStreamID)
	if !ok {
		t.Fatal("request publication was not registered")
	}
	sub, _ := aeron.SubscriptionAt(testConfig().ResponseChannel, testConfig().ResponseStreamID)
	sub.Enqueue(encodeArchiveTestControlResponse(t, aeronproto.ControlResponse{
		ControlSessionID: a.ControlSessionID(), CorrelationID: 2, RelevantID: 77, Code: aeronproto.CodeOK,
	}))

	id, err := a.StartRecording("aeron:udp?endpoint=localhost:20121", 10, aeronproto.SourceLocationLocal, true)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if id != 77 {
		t.Fatalf("id = %d, want 77", id)
	}
	if len(pub.Frames()) == 0 {
		t.Fatal("no frames offered on the request publication")
	}

	snapshot := a.Latencies().Snapshot("start-recording")
	if snapshot.Count != 1 {
		t.Fatalf("Latencies snapshot count = %d, want 1", snapshot.Count)
	}
}

func TestArchiveCloseIsIdempotent(t *testing.T) {
	a, _ := connectTestArchive(t)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
