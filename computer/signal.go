package computer

import "github.com/speedy-lex/neonucleus/value"

// PushSignal enqueues an event for the architecture to observe via
// FetchSignalValue/SignalSize/PopSignal. It retains every value it
// copies into the queue (the documented resolution to the reference
// implementation's push/pop retain ambiguity: the kernel retains on
// push and drops on pop, so a caller that doesn't otherwise hold a
// reference may drop its own immediately after a successful push).
//
// Returns a non-empty reason string and pushes nothing if: len is 0 or
// exceeds MaxSignalVals, the values' combined packet size exceeds
// MaxSignalSize, or the queue is already at MaxSignals.
func (c *Computer) PushSignal(values []Value) string {
	if len(values) > MaxSignalVals {
		return "too many values"
	}
	if len(values) == 0 {
		return "missing event"
	}
	if value.PacketSize(values) > MaxSignalSize {
		return "too big"
	}
	if len(c.signals) == MaxSignals {
		return "too many signals"
	}
	cp := make([]Value, len(values))
	for i, v := range values {
		cp[i] = v.Retain()
	}
	c.signals = append(c.signals, signal{values: cp})
	return ""
}

// FetchSignalValue returns the value at index within the head signal, or
// Nil if there is no head signal or index is out of range.
func (c *Computer) FetchSignalValue(index int) Value {
	if len(c.signals) == 0 {
		return value.Nil()
	}
	head := c.signals[0]
	if index < 0 || index >= len(head.values) {
		return value.Nil()
	}
	return head.values[index]
}

// SignalSize returns the number of values in the head signal, or 0 if the
// queue is empty.
func (c *Computer) SignalSize() int {
	if len(c.signals) == 0 {
		return 0
	}
	return len(c.signals[0].values)
}

// PopSignal drops every value in the head signal and removes it from the
// queue. It is a no-op on an empty queue.
func (c *Computer) PopSignal() {
	if len(c.signals) == 0 {
		return
	}
	head := c.signals[0]
	for _, v := range head.values {
		v.Drop()
	}
	c.signals = c.signals[1:]
}
