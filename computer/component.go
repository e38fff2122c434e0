package computer

import "fmt"

// Method is a component method implementation: it reads arguments via the
// computer's call frame and appends results with Return/ReturnInt/etc.,
// returning an error string to set in the error slot (empty on success).
type Method func(comp *Component, c *Computer) string

// methodSlot is one named, registered method in a Table.
type methodSlot struct {
	name    string
	direct  bool
	fn      Method
	doc     string
}

// Table is a component's vtable: its type name plus up to MaxMethods
// named, independently documented methods, mirroring nn_componentTable.
type Table struct {
	typeName    string
	constructor func(tableUserdata, componentUserdata any) any
	destructor  func(tableUserdata any, comp *Component, state any)
	userdata    any
	methods     []methodSlot
}

// NewTable creates a component vtable. ctor/dtor may be nil, in which
// case a mounted component's state is exactly the userdata passed to
// NewComponent.
func NewTable(typeName string, userdata any, ctor func(tableUserdata, componentUserdata any) any, dtor func(tableUserdata any, comp *Component, state any)) *Table {
	return &Table{typeName: typeName, userdata: userdata, constructor: ctor, destructor: dtor}
}

// TypeName returns the component type name this table was created with.
func (t *Table) TypeName() string { return t.typeName }

// Define registers a method, up to MaxMethods; a name collision
// overwrites the previous registration (last write wins). direct marks
// the method as safe to call without yielding the guest architecture.
func (t *Table) Define(name string, direct bool, fn Method, doc string) {
	for i := range t.methods {
		if t.methods[i].name == name {
			t.methods[i] = methodSlot{name: name, direct: direct, fn: fn, doc: doc}
			return
		}
	}
	if len(t.methods) >= MaxMethods {
		return
	}
	t.methods = append(t.methods, methodSlot{name: name, direct: direct, fn: fn, doc: doc})
}

// MethodAt returns the idx'th registered method's name and direct flag,
// for introspection by a guest listing a component's methods.
func (t *Table) MethodAt(idx int) (name string, direct bool, ok bool) {
	if idx < 0 || idx >= len(t.methods) {
		return "", false, false
	}
	return t.methods[idx].name, t.methods[idx].direct, true
}

// MethodCount returns the number of registered methods.
func (t *Table) MethodCount() int { return len(t.methods) }

// MethodDoc returns the registered doc string for name, or "" if the
// method doesn't exist.
func (t *Table) MethodDoc(name string) string {
	for _, m := range t.methods {
		if m.name == name {
			return m.doc
		}
	}
	return ""
}

func (t *Table) find(name string) (Method, bool) {
	for _, m := range t.methods {
		if m.name == name {
			return m.fn, true
		}
	}
	return nil, false
}

// Component is one mounted instance of a Table within a specific
// computer, mirroring nn_component.
type Component struct {
	address  string
	slot     int
	table    *Table
	computer *Computer
	state    any
}

// Address returns the component's address.
func (comp *Component) Address() string { return comp.address }

// Slot returns the component's slot index.
func (comp *Component) Slot() int { return comp.slot }

// Table returns the component's vtable.
func (comp *Component) Table() *Table { return comp.table }

// Computer returns the computer this component is mounted on.
func (comp *Component) Computer() *Computer { return comp.computer }

// State returns the component's own state, as produced by its table's
// constructor (or the raw userdata passed to NewComponent if the table
// has no constructor).
func (comp *Component) State() any { return comp.state }

// NewComponent mounts a new component at address/slot using table,
// reusing the first tombstoned (removed) slot if one exists, else
// growing the registry up to componentCap. Returns nil if the registry
// is already full or address is already held by a live component
// (invariant: addresses are unique among live components).
func (c *Computer) NewComponent(address string, slot int, table *Table, userdata any) *Component {
	var comp *Component
	for _, existing := range c.components {
		if existing.address == address {
			return nil
		}
		if existing.address == "" && comp == nil {
			comp = existing
		}
	}
	if comp == nil {
		if len(c.components) >= c.componentCap {
			return nil
		}
		comp = &Component{}
		c.components = append(c.components, comp)
	}
	comp.address = address
	comp.slot = slot
	comp.table = table
	comp.computer = c
	if table.constructor == nil {
		comp.state = userdata
	} else {
		comp.state = table.constructor(table.userdata, userdata)
	}
	return comp
}

// RemoveComponent destroys every mounted component at address.
func (c *Computer) RemoveComponent(address string) {
	for _, comp := range c.components {
		if comp.address == address {
			c.destroyComponent(comp)
		}
	}
}

func (c *Computer) destroyComponent(comp *Component) {
	if comp.table.destructor != nil {
		comp.table.destructor(comp.table.userdata, comp, comp.state)
	}
	comp.address = "" // tombstones the slot for reuse
}

// FindComponent returns the mounted component at address, or nil.
func (c *Computer) FindComponent(address string) *Component {
	for _, comp := range c.components {
		if comp.address == address {
			return comp
		}
	}
	return nil
}

// IterComponents calls fn for every live (non-tombstoned) component.
// Components must not be added or removed from within fn.
func (c *Computer) IterComponents(fn func(*Component)) {
	for _, comp := range c.components {
		if comp.address != "" {
			fn(comp)
		}
	}
}

// Invoke calls the named method on comp, routing through the computer's
// call frame. Returns false if the method does not exist.
func (comp *Component) Invoke(c *Computer, name string) bool {
	fn, ok := comp.table.find(name)
	if !ok {
		return false
	}
	if errStr := fn(comp, c); errStr != "" {
		c.SetError(errStr)
	}
	return true
}

// String renders a component for debugging.
func (comp *Component) String() string {
	return fmt.Sprintf("component{address=%s type=%s slot=%d}", comp.address, comp.table.typeName, comp.slot)
}
