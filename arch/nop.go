// Package arch collects shared helpers for Architecture implementations:
// a minimal no-op architecture useful in tests and as a template, plus
// whatever common scaffolding archguestvm/archjs both want. It imports
// computer freely since the Architecture interface itself had to live
// there (see computer/architecture.go).
package arch

import "github.com/speedy-lex/neonucleus/computer"

// Nop is the simplest possible Architecture: it never runs guest code,
// reports zero memory usage, and serializes to nothing. Useful for
// exercising the Computer kernel in isolation without pulling in a real
// guest interpreter.
type Nop struct{}

func (Nop) Name() string { return "nop" }

func (Nop) Setup(c *computer.Computer) (any, error) { return struct{}{}, nil }

func (Nop) Teardown(c *computer.Computer, state any) {}

func (Nop) MemoryUsage(c *computer.Computer, state any) int64 { return 0 }

func (Nop) Tick(c *computer.Computer, state any) {}

func (Nop) Serialize(c *computer.Computer, state any) ([]byte, error) { return nil, nil }

func (Nop) Deserialize(c *computer.Computer, data []byte, state any) error { return nil }
