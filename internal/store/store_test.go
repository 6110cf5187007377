package store

import (
	"errors"
	"testing"

	"modguard/internal/persist"
)

func TestGetCreatesDefaults(t *testing.T) {
	backend := persist.NewMemory()
	s, err := New(backend)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	cfg, err := s.Get("g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.AntiLinksEnabled {
		t.Fatalf("expected anti-links disabled by default")
	}
	if cfg.LogChannelID != "" {
		t.Fatalf("expected no log channel by default")
	}
	if backend.Flushes != 1 {
		t.Fatalf("expected lazy create to flush once, got %d", backend.Flushes)
	}
}

func TestSetAntiLinksRoundTrip(t *testing.T) {
	backend := persist.NewMemory()
	s, _ := New(backend)

	changed, err := s.SetAntiLinks("g1", true)
	if err != nil {
		t.Fatalf("set anti-links: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}

	cfg, err := s.Get("g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cfg.AntiLinksEnabled {
		t.Fatalf("expected anti-links enabled after set")
	}

	// reload from the flushed document
	reloaded, err := New(backend)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	cfg, _ = reloaded.Get("g1")
	if !cfg.AntiLinksEnabled {
		t.Fatalf("expected anti-links enabled after reload")
	}
}

func TestSetAntiLinksIdempotent(t *testing.T) {
	backend := persist.NewMemory()
	s, _ := New(backend)

	if changed, _ := s.SetAntiLinks("g1", true); !changed {
		t.Fatalf("expected first set to change")
	}
	flushes := backend.Flushes
	changed, err := s.SetAntiLinks("g1", true)
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	if changed {
		t.Fatalf("expected second set to report no change")
	}
	if backend.Flushes != flushes {
		t.Fatalf("expected no flush on no-change, got %d extra", backend.Flushes-flushes)
	}
}

func TestSetLogChannel(t *testing.T) {
	backend := persist.NewMemory()
	s, _ := New(backend)

	if err := s.SetLogChannel("g1", "c1"); err != nil {
		t.Fatalf("set log channel: %v", err)
	}
	if err := s.SetLogChannel("g1", "c2"); err != nil {
		t.Fatalf("overwrite log channel: %v", err)
	}
	cfg, _ := s.Get("g1")
	if cfg.LogChannelID != "c2" {
		t.Fatalf("expected c2, got %q", cfg.LogChannelID)
	}
}

func TestFlushFailureRollsBack(t *testing.T) {
	backend := persist.NewMemory()
	s, _ := New(backend)
	if _, err := s.SetAntiLinks("g1", true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	backend.FlushErr = errors.New("disk full")
	if _, err := s.SetAntiLinks("g1", false); err == nil {
		t.Fatalf("expected flush error")
	}

	backend.FlushErr = nil
	cfg, _ := s.Get("g1")
	if !cfg.AntiLinksEnabled {
		t.Fatalf("expected value rolled back to enabled")
	}
}
