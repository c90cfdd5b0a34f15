package discovery

import (
	"testing"
	"time"
)

func TestNewResolverRejectsNoEndpoints(t *testing.T) {
	if _, err := NewResolver(Config{}); err == nil {
		t.Fatal("NewResolver: want error when Endpoints is empty")
	}
}

func TestNewResolverAppliesTimeoutDefaults(t *testing.T) {
	r, err := NewResolver(Config{Endpoints: []string{"localhost:2379"}})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	defer r.Close()
	if r.cfg.DialTimeout != 1000*time.Millisecond {
		t.Fatalf("DialTimeout = %v, want the 1000ms default", r.cfg.DialTimeout)
	}
	if r.cfg.RequestTimeout != time.Second {
		t.Fatalf("RequestTimeout = %v, want the 1s default", r.cfg.RequestTimeout)
	}
}

func TestNewResolverPreservesExplicitTimeouts(t *testing.T) {
	r, err := NewResolver(Config{
		Endpoints:      []string{"localhost:2379"},
		DialTimeout:    50 * time.Millisecond,
		RequestTimeout: 250 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	defer r.Close()
	if r.cfg.DialTimeout != 50*time.Millisecond {
		t.Fatalf("DialTimeout = %v, want 50ms", r.cfg.DialTimeout)
	}
	if r.cfg.RequestTimeout != 250*time.Millisecond {
		t.Fatalf("RequestTimeout = %v, want 250ms", r.cfg.RequestTimeout)
	}
}
