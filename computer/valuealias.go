package computer

import "github.com/speedy-lex/neonucleus/value"

// Value is the argument/return/signal payload type, aliased from the
// value package so callers working purely with computer.Computer rarely
// need a second import.
type Value = value.Value
