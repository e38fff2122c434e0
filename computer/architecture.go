package computer

// Architecture is the pluggable guest interpreter contract a Computer
// drives once per Tick. State is the architecture's own opaque per-computer
// data (the reference implementation's void* archState); Go code never
// inspects it, only threads it back through the same architecture's calls.
//
// This interface necessarily lives in the computer package rather than a
// separate arch package: every method takes the *Computer it drives, and
// Go forbids the import cycle that would result from computer depending on
// arch for the Architecture field type while arch depends on computer for
// everything else an implementation needs to do (push signals, charge
// resources, invoke components). Reference implementations and shared
// helpers for architecture authors live in the sibling arch package, which
// imports computer freely.
type Architecture interface {
	// Name returns a short identifier, e.g. "lua5.3" or "guestvm".
	Name() string
	// Setup initializes architecture-local state for a freshly constructed
	// computer. A non-nil error aborts construction.
	Setup(c *Computer) (any, error)
	// Teardown releases architecture-local state when the computer is
	// deleted.
	Teardown(c *Computer, state any)
	// MemoryUsage reports the architecture's current memory footprint in
	// bytes, for Computer.MemoryUsed.
	MemoryUsage(c *Computer, state any) int64
	// Tick runs one quantum of guest execution.
	Tick(c *Computer, state any)
	// Serialize produces an opaque snapshot of the architecture's guest
	// program and state.
	Serialize(c *Computer, state any) ([]byte, error)
	// Deserialize restores a snapshot produced by Serialize.
	Deserialize(c *Computer, data []byte, state any) error
}
