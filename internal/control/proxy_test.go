package control

import (
	"testing"
	"time"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/transport"
	"archiveclient/pkg/transport/faketransport"
)

func TestArchiveProxyStartRecordingSendsFrame(t *testing.T) {
	pub := faketransport.NewPublication("aeron:udp?endpoint=localhost:8010", 1, 10)
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, DefaultRetryCount, time.Second, DefaultScratchBufferSize)

	ok, err := proxy.StartRecording(1, 1, "aeron:udp?endpoint=localhost:20121", 10, aeronproto.SourceLocationLocal, true)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !ok {
		t.Fatal("StartRecording: want ok=true")
	}
	frames := pub.Frames()
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	header, err := aeronproto.DecodeMessageHeader(frames[0])
	if err != nil {
		t.Fatalf("DecodeMessageHeader: %v", err)
	}
	if header.TemplateID != aeronproto.TemplateStartRecording {
		t.Fatalf("template id = %v, want %v", header.TemplateID, aeronproto.TemplateStartRecording)
	}
}

func TestOfferWithRetryRetriesOnBackPressure(t *testing.T) {
	pub := faketransport.NewPublication("aeron:udp?endpoint=localhost:8010", 1, 10)
	pub.FailNextOffers(transport.BackPressured, transport.BackPressured)
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, DefaultRetryCount, time.Second, DefaultScratchBufferSize)

	ok, err := proxy.StopReplay(1, 1, 99)
	if err != nil {
		t.Fatalf("StopReplay: %v", err)
	}
	if !ok {
		t.Fatal("StopReplay: want ok=true after retrying through back-pressure")
	}
	if len(pub.Frames()) != 1 {
		t.Fatalf("frames = %d, want 1 (only the eventually-successful offer records a frame)", len(pub.Frames()))
	}
}

func TestOfferWithRetryExhaustsRetriesWithoutFatalResult(t *testing.T) {
	pub := faketransport.NewPublication("aeron:udp?endpoint=localhost:8010", 1, 10)
	pub.FailNextOffers(transport.BackPressured, transport.BackPressured, transport.BackPressured)
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, 3, time.Second, DefaultScratchBufferSize)

	ok, err := proxy.StopAllReplays(1, 1, 5)
	if err != nil {
		t.Fatalf("StopAllReplays: unexpected error %v", err)
	}
	if ok {
		t.Fatal("StopAllReplays: want ok=false, retries were exhausted")
	}
}

func TestOfferWithRetryFatalStopsImmediately(t *testing.T) {
	pub := faketransport.NewPublication("aeron:udp?endpoint=localhost:8010", 1, 10)
	pub.FailNextOffers(transport.PublicationClosed)
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, DefaultRetryCount, time.Second, DefaultScratchBufferSize)

	ok, err := proxy.StopReplay(1, 1, 99)
	if err == nil {
		t.Fatal("StopReplay: want error on PublicationClosed")
	}
	if ok {
		t.Fatal("StopReplay: want ok=false on PublicationClosed")
	}
	if len(pub.Frames()) != 0 {
		t.Fatalf("frames = %d, want 0 (fatal offer result never records a frame)", len(pub.Frames()))
	}
}

// alwaysBackPressuredPublication never accepts an offer, so offerConnect's
// retry-until-deadline loop can be exercised without depending on how many
// iterations fit before a fixed-size failure queue runs dry.
type alwaysBackPressuredPublication struct{ offers int }

func (p *alwaysBackPressuredPublication) Offer(buf []byte) (int64, error) {
	p.offers++
	return int64(transport.BackPressured), nil
}
func (p *alwaysBackPressuredPublication) IsConnected() bool { return true }
func (p *alwaysBackPressuredPublication) Channel() string   { return "aeron:udp?endpoint=localhost:8010" }
func (p *alwaysBackPressuredPublication) SessionID() int32  { return 1 }
func (p *alwaysBackPressuredPublication) StreamID() int32   { return 10 }
func (p *alwaysBackPressuredPublication) Close() error      { return nil }

func TestOfferConnectRetriesUntilDeadline(t *testing.T) {
	pub := &alwaysBackPressuredPublication{}
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, DefaultRetryCount, 10*time.Millisecond, DefaultScratchBufferSize)

	start := time.Now()
	ok, err := proxy.Connect("aeron:udp?endpoint=localhost:8020", 20, 1)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Connect: unexpected error %v", err)
	}
	if ok {
		t.Fatal("Connect: want ok=false, offers never succeeded")
	}
	if pub.offers < 2 {
		t.Fatalf("offers = %d, want at least 2 retries before the deadline", pub.offers)
	}
	if elapsed < 10*time.Millisecond {
		t.Fatalf("Connect returned after %v, want it to run until close to the configured timeout", elapsed)
	}
}

func TestTryConnectSingleAttempt(t *testing.T) {
	pub := faketransport.NewPublication("aeron:udp?endpoint=localhost:8010", 1, 10)
	pub.FailNextOffers(transport.BackPressured)
	proxy := NewArchiveProxy(pub, YieldingIdleStrategy{}, DefaultRetryCount, time.Second, DefaultScratchBufferSize)

	ok, err := proxy.TryConnect("aeron:udp?endpoint=localhost:8020", 20, 1)
	if err != nil {
		t.Fatalf("TryConnect: unexpected error %v", err)
	}
	if ok {
		t.Fatal("TryConnect: want ok=false on the first back-pressured attempt, no retry")
	}
}
