package config

import (
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("busSize: 6\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":1847" {
		t.Fatalf("listenAddr = %q, want default", cfg.ListenAddr)
	}
	if cfg.MinCycleTime != 2*time.Second {
		t.Fatalf("minCycleTime = %v, want default 2s", cfg.MinCycleTime)
	}
	if cfg.BusSize != 6 {
		t.Fatalf("busSize = %d, want 6", cfg.BusSize)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("listenAddr: \":9999\"\nbusSize: 10\nminCycleTime: 5s\nlogVerbose: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9999" || cfg.MinCycleTime != 5*time.Second || !cfg.LogVerbose {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseRejectsMissingBusSize(t *testing.T) {
	if _, err := Parse([]byte("listenAddr: \":1847\"\n")); err == nil {
		t.Fatal("expected an error for a missing busSize")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	if _, err := Parse([]byte("busSize: 1\nminCycleTime: notaduration\n")); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}
