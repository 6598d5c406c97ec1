package ident_test

import (
	"strings"
	"testing"
	"time"

	"aimatrix/internal/clock"
	"aimatrix/internal/ident"
)

func TestNewIDEmbedsClockTimestamp(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	gen := ident.New(fake)

	id := gen.NewID()
	wantPrefix := "1772366400000-"
	if !strings.HasPrefix(id, wantPrefix) {
		t.Fatalf("id %q missing timestamp prefix %q", id, wantPrefix)
	}
	if len(id) != len(wantPrefix)+8 {
		t.Fatalf("id %q has unexpected suffix length", id)
	}
}

func TestNewIDsDiffer(t *testing.T) {
	gen := ident.New(clock.System{})
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := gen.NewID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestSequence(t *testing.T) {
	seq := &ident.Sequence{Prefix: "job"}
	if got := seq.NewID(); got != "job-1" {
		t.Fatalf("first id = %q", got)
	}
	if got := seq.NewID(); got != "job-2" {
		t.Fatalf("second id = %q", got)
	}
}
