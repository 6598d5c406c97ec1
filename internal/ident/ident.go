// Package ident generates job and task identifiers.
//
// Identifiers combine a clock-derived millisecond timestamp with a short
// random suffix: unique within a process lifetime, readable in logs, and not
// meant to survive restarts. The generator takes its clock by injection so
// tests can produce deterministic, collision-free ids.
package ident

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"aimatrix/internal/clock"
)

// Generator produces identifiers for jobs and tasks.
type Generator interface {
	NewID() string
}

// New returns the production generator backed by the given clock.
func New(clk clock.Clock) Generator {
	if clk == nil {
		clk = clock.System{}
	}
	return &generator{clock: clk}
}

type generator struct {
	clock clock.Clock
}

func (g *generator) NewID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", g.clock.Now().UnixMilli(), suffix)
}

// Sequence is a deterministic generator for tests: prefix-1, prefix-2, ...
type Sequence struct {
	Prefix string
	n      atomic.Int64
}

func (s *Sequence) NewID() string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%d", prefix, s.n.Add(1))
}
