package computer

import "github.com/speedy-lex/neonucleus/value"

// ResetCall drops every argument and return value currently held in the
// call frame and empties both. Backends call this between invocations;
// architectures call it when abandoning a call early.
func (c *Computer) ResetCall() {
	for _, a := range c.args {
		a.Drop()
	}
	for _, r := range c.rets {
		r.Drop()
	}
	c.args = c.args[:0]
	c.rets = c.rets[:0]
}

// AddArgument appends arg to the current call frame's argument list, up
// to MaxArgs; extra arguments are silently dropped (ownership is NOT
// transferred in that case — the caller still owns arg and must drop it
// itself if unused).
func (c *Computer) AddArgument(arg Value) {
	if len(c.args) == MaxArgs {
		return
	}
	c.args = append(c.args, arg)
}

// Return appends val to the current call frame's return list, up to
// MaxRets.
func (c *Computer) Return(val Value) {
	if len(c.rets) == MaxRets {
		return
	}
	c.rets = append(c.rets, val)
}

// GetArgument returns the idx'th argument, or Nil if out of range.
func (c *Computer) GetArgument(idx int) Value {
	if idx < 0 || idx >= len(c.args) {
		return value.Nil()
	}
	return c.args[idx]
}

// GetReturn returns the idx'th return value, or Nil if out of range.
func (c *Computer) GetReturn(idx int) Value {
	if idx < 0 || idx >= len(c.rets) {
		return value.Nil()
	}
	return c.rets[idx]
}

// ArgumentCount returns the number of arguments in the current call frame.
func (c *Computer) ArgumentCount() int { return len(c.args) }

// ReturnCount returns the number of return values in the current call
// frame.
func (c *Computer) ReturnCount() int { return len(c.rets) }

// ---- Typed return helpers, matching nn_return_* ----------------------------

// ReturnNil appends a nil return value.
func (c *Computer) ReturnNil() { c.Return(value.Nil()) }

// ReturnInt appends an integer return value.
func (c *Computer) ReturnInt(i int64) { c.Return(value.Int(i)) }

// ReturnNumber appends a floating point return value.
func (c *Computer) ReturnNumber(n float64) { c.Return(value.Number(n)) }

// ReturnBool appends a boolean return value.
func (c *Computer) ReturnBool(b bool) { c.Return(value.Bool(b)) }

// ReturnCString appends a borrowed C-string return value; data must
// outlive the call frame.
func (c *Computer) ReturnCString(data []byte) { c.Return(value.BorrowedCStr(data)) }

// ReturnString allocates and appends an owned string return value,
// charging its bytes against the universe allocator. On allocation
// failure it sets a C error ("out of memory") instead of panicking,
// matching the reference implementation's out-of-memory path for this
// call.
func (c *Computer) ReturnString(data []byte) {
	v, err := value.NewString(c.universe.Allocator(), data)
	if err != nil {
		c.SetCError("out of memory")
		return
	}
	c.Return(v)
}

// ReturnArray allocates and appends an owned array return value of the
// given length, and also returns it so the caller can populate it with
// Set before the call completes.
func (c *Computer) ReturnArray(length int) Value {
	v, err := value.NewArray(c.universe.Allocator(), length)
	if err != nil {
		c.SetCError("out of memory")
		return value.Nil()
	}
	c.Return(v)
	return v
}

// ReturnTable allocates and appends an owned table return value with the
// given pair capacity, and also returns it for population.
func (c *Computer) ReturnTable(pairCount int) Value {
	v, err := value.NewTable(c.universe.Allocator(), pairCount)
	if err != nil {
		c.SetCError("out of memory")
		return value.Nil()
	}
	c.Return(v)
	return v
}
