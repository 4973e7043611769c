package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNetProbeConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadNetProbeConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
	if cfg != DefaultNetProbeConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestNetProbeConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.json")
	want := NetProbeConfig{TargetHost: "192.168.0.1", PingCount: 8, TimeoutSeconds: 3, IntervalSeconds: 2}
	if err := want.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadNetProbeConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestLoadNetProbeConfigMalformedFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadNetProbeConfig(path)
	if err == nil {
		t.Fatal("malformed file must surface the decode error")
	}
	if cfg != DefaultNetProbeConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadNetProbeConfigFillsZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.json")
	if err := os.WriteFile(path, []byte(`{"target_host": "10.0.0.1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadNetProbeConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TargetHost != "10.0.0.1" {
		t.Fatalf("target = %q", cfg.TargetHost)
	}
	if cfg.PingCount != DefaultPingCount || cfg.IntervalSeconds == 0 {
		t.Fatalf("zero fields not defaulted: %+v", cfg)
	}
}
