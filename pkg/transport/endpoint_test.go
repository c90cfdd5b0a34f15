package transport

import "testing"

func TestAppendSessionIDChannelWithQueryString(t *testing.T) {
	got := AppendSessionID("aeron:udp?endpoint=localhost:20121", 7)
	want := "aeron:udp?endpoint=localhost:20121|session-id=7"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendSessionIDNoQueryString(t *testing.T) {
	got := AppendSessionID("aeron:ipc", 7)
	want := "aeron:ipc?session-id=7"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendSessionIDDoesNotDedupe(t *testing.T) {
	channel := "aeron:udp?endpoint=localhost:20121|session-id=1"
	got := AppendSessionID(channel, 2)
	want := channel + "|session-id=2"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIsManualControlMode(t *testing.T) {
	if !IsManualControlMode("aeron:udp?control-mode=manual|control=localhost:0") {
		t.Fatal("expected manual control mode to be detected")
	}
	if IsManualControlMode("aeron:udp?endpoint=localhost:20121") {
		t.Fatal("did not expect manual control mode")
	}
}

func TestChannelKeyStableAndDistinguishesStreamID(t *testing.T) {
	a := NewChannelKey("aeron:udp?endpoint=localhost:20121", 10)
	b := NewChannelKey("aeron:udp?endpoint=localhost:20121", 10)
	if a != b {
		t.Fatal("ChannelKey is not stable for identical input")
	}
	c := NewChannelKey("aeron:udp?endpoint=localhost:20121", 11)
	if a == c {
		t.Fatal("ChannelKey did not distinguish stream id")
	}
}
