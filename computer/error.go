package computer

// GetError returns the current error slot contents, or "" if clear.
func (c *Computer) GetError() string { return c.err }

// ClearError empties the error slot.
func (c *Computer) ClearError() { c.err = "" }

// SetError copies err into the error slot, replacing whatever was there.
// Go strings are immutable and garbage collected, so unlike the reference
// implementation's allocated-vs-borrowed distinction, SetError and
// SetCError behave identically here; SetCError is kept as a separate
// method purely so code ported from the C API compiles against the same
// shape, and so a future baremetal-style backend that wants to
// distinguish "borrowed from static storage" from "owned copy" has a seam
// to do so.
func (c *Computer) SetError(err string) {
	c.err = err
}

// SetCError is the low-level counterpart used by implementations that
// cannot allocate (out-of-memory reporting paths). See SetError.
func (c *Computer) SetCError(err string) {
	c.err = err
}
