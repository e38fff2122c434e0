// Package value implements the tagged-union value model architectures use
// to exchange arguments and return values with components: nil, integers,
// floating point numbers, booleans, borrowed and owned strings, arrays, and
// tables. Owned heap types (strings, arrays, tables) are refcounted rather
// than garbage collected, matching the lifetime discipline real component
// backends expect: a value handed to Invoke must remain valid exactly as
// long as its refcount says it should.
package value

import (
	"sync/atomic"

	"github.com/speedy-lex/neonucleus/alloc"
)

// Tag identifies the kind of data held in a Value.
type Tag int

const (
	TagNil Tag = iota
	TagInt
	TagNumber
	TagBool
	TagCString // borrowed C-style string; never retained, never freed
	TagString  // refcounted owned string
	TagArray
	TagTable
)

// Value is a small tagged union. The zero Value is Nil.
type Value struct {
	tag  Tag
	i    int64
	n    float64
	b    bool
	cstr []byte
	str  *String
	arr  *Array
	tbl  *Table
}

// Nil returns the nil value.
func Nil() Value { return Value{tag: TagNil} }

// Int wraps an integer.
func Int(i int64) Value { return Value{tag: TagInt, i: i} }

// Number wraps a floating point number.
func Number(n float64) Value { return Value{tag: TagNumber, n: n} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{tag: TagBool, b: b} }

// BorrowedCStr wraps a byte slice the Value does not own. Callers must
// keep it alive for as long as the Value is in use; it is never retained
// or dropped.
func BorrowedCStr(s []byte) Value { return Value{tag: TagCString, cstr: s} }

// Tag reports the value's kind.
func (v Value) Tag() Tag { return v.tag }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.tag == TagNil }

// ---- Owned heap types ------------------------------------------------------

// String is a refcounted, owned byte string.
type String struct {
	data  []byte
	refc  atomic.Int64
	alloc alloc.Allocator
}

// NewString allocates a new owned string with an initial refcount of 1,
// charging len(data) bytes against a. Returns an error if a rejects the
// reservation.
func NewString(a alloc.Allocator, data []byte) (Value, error) {
	if err := a.Reserve(int64(len(data))); err != nil {
		return Nil(), err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s := &String{data: cp, alloc: a}
	s.refc.Store(1)
	return Value{tag: TagString, str: s}, nil
}

// Array is a refcounted, fixed-length, mutable array of Values.
type Array struct {
	items []Value
	refc  atomic.Int64
	alloc alloc.Allocator
}

// NewArray allocates a new owned array of the given length, every slot
// initialized to Nil, with an initial refcount of 1, charging length
// slots (8 bytes each) against a.
func NewArray(a alloc.Allocator, length int) (Value, error) {
	if err := a.Reserve(int64(length) * 8); err != nil {
		return Nil(), err
	}
	items := make([]Value, length)
	for i := range items {
		items[i] = Nil()
	}
	arr := &Array{items: items, alloc: a}
	arr.refc.Store(1)
	return Value{tag: TagArray, arr: arr}, nil
}

// Pair is a key/value entry in a Table.
type Pair struct {
	Key Value
	Val Value
}

// Table is a refcounted, fixed-length, mutable array of key/value pairs.
type Table struct {
	pairs []Pair
	refc  atomic.Int64
	alloc alloc.Allocator
}

// NewTable allocates a new owned table with the given pair capacity, every
// slot initialized to Nil/Nil, with an initial refcount of 1, charging
// pairCount*2 slots (8 bytes each) against a.
func NewTable(a alloc.Allocator, pairCount int) (Value, error) {
	if err := a.Reserve(int64(pairCount) * 16); err != nil {
		return Nil(), err
	}
	pairs := make([]Pair, pairCount)
	for i := range pairs {
		pairs[i] = Pair{Key: Nil(), Val: Nil()}
	}
	t := &Table{pairs: pairs, alloc: a}
	t.refc.Store(1)
	return Value{tag: TagTable, tbl: t}, nil
}

// ---- Retain / drop ----------------------------------------------------------

// Retain increments the refcount of an owned heap value. It is a no-op for
// non-heap tags (including borrowed C strings, which are never owned).
func (v Value) Retain() Value {
	switch v.tag {
	case TagString:
		v.str.refc.Add(1)
	case TagArray:
		v.arr.refc.Add(1)
	case TagTable:
		v.tbl.refc.Add(1)
	}
	return v
}

// Drop decrements the refcount of an owned heap value, releasing its
// backing storage once the count reaches zero. It is a no-op for non-heap
// tags.
func (v Value) Drop() {
	switch v.tag {
	case TagString:
		if v.str.refc.Add(-1) <= 0 {
			if v.str.alloc != nil {
				v.str.alloc.Release(int64(len(v.str.data)))
			}
			v.str.data = nil
		}
	case TagArray:
		if v.arr.refc.Add(-1) <= 0 {
			for i := range v.arr.items {
				v.arr.items[i].Drop()
			}
			if v.arr.alloc != nil {
				v.arr.alloc.Release(int64(len(v.arr.items)) * 8)
			}
			v.arr.items = nil
		}
	case TagTable:
		if v.tbl.refc.Add(-1) <= 0 {
			for i := range v.tbl.pairs {
				v.tbl.pairs[i].Key.Drop()
				v.tbl.pairs[i].Val.Drop()
			}
			if v.tbl.alloc != nil {
				v.tbl.alloc.Release(int64(len(v.tbl.pairs)) * 16)
			}
			v.tbl.pairs = nil
		}
	}
}

// ---- Container access -------------------------------------------------------

// Get returns the element at idx in an array value. Out-of-range indices
// return Nil, matching the permissive C API (no panics on bad indices from
// a guest).
func (v Value) Get(idx int) Value {
	if v.tag != TagArray || idx < 0 || idx >= len(v.arr.items) {
		return Nil()
	}
	return v.arr.items[idx]
}

// Set stores val at idx in an array value, dropping whatever was there and
// retaining val. Out-of-range indices are ignored.
func (v Value) Set(idx int, val Value) {
	if v.tag != TagArray || idx < 0 || idx >= len(v.arr.items) {
		return
	}
	v.arr.items[idx].Drop()
	v.arr.items[idx] = val.Retain()
}

// Len returns the number of elements in an array, or pairs in a table. It
// returns 0 for any other tag.
func (v Value) Len() int {
	switch v.tag {
	case TagArray:
		return len(v.arr.items)
	case TagTable:
		return len(v.tbl.pairs)
	default:
		return 0
	}
}

// GetPair returns the key/value pair at idx in a table value.
func (v Value) GetPair(idx int) Pair {
	if v.tag != TagTable || idx < 0 || idx >= len(v.tbl.pairs) {
		return Pair{Key: Nil(), Val: Nil()}
	}
	return v.tbl.pairs[idx]
}

// SetPair stores key/val at idx in a table value, dropping and retaining
// as Set does.
func (v Value) SetPair(idx int, key, val Value) {
	if v.tag != TagTable || idx < 0 || idx >= len(v.tbl.pairs) {
		return
	}
	v.tbl.pairs[idx].Key.Drop()
	v.tbl.pairs[idx].Val.Drop()
	v.tbl.pairs[idx] = Pair{Key: key.Retain(), Val: val.Retain()}
}

// ---- Coercions ---------------------------------------------------------------

// ToInt coerces v to an integer: numbers truncate, booleans are 0/1,
// everything else is 0.
func (v Value) ToInt() int64 {
	switch v.tag {
	case TagInt:
		return v.i
	case TagNumber:
		return int64(v.n)
	case TagBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ToNumber coerces v to a float64, analogous to ToInt.
func (v Value) ToNumber() float64 {
	switch v.tag {
	case TagInt:
		return float64(v.i)
	case TagNumber:
		return v.n
	case TagBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ToBoolean coerces v to a bool: nil is false, bools pass through
// unchanged, and every other tag — including Int(0), Number(0), and
// empty strings — is true.
func (v Value) ToBoolean() bool {
	switch v.tag {
	case TagNil:
		return false
	case TagBool:
		return v.b
	default:
		return true
	}
}

// ToCString returns the raw bytes of a borrowed C string, or nil for any
// other tag.
func (v Value) ToCString() []byte {
	if v.tag != TagCString {
		return nil
	}
	return v.cstr
}

// ToString returns the raw bytes of an owned string, or a borrowed C
// string's bytes, or nil for any other tag.
func (v Value) ToString() []byte {
	switch v.tag {
	case TagString:
		return v.str.data
	case TagCString:
		return v.cstr
	default:
		return nil
	}
}

// ---- Packet size -------------------------------------------------------------

// PacketSize computes the serialized "packet size" of a slice of values,
// using the same accounting a pushed signal is measured against: nil
// costs 0, bool costs 2, int costs 6, number costs 10, strings cost their
// byte length plus 4, and containers cost 2 plus the recursive size of
// their contents.
func PacketSize(vals []Value) int {
	total := 0
	for _, v := range vals {
		total += valueSize(v)
	}
	return total
}

func valueSize(v Value) int {
	switch v.tag {
	case TagNil:
		return 0
	case TagBool:
		return 2
	case TagInt:
		return 6
	case TagNumber:
		return 10
	case TagCString:
		return len(v.cstr) + 4
	case TagString:
		return len(v.str.data) + 4
	case TagArray:
		size := 2
		for _, item := range v.arr.items {
			size += valueSize(item)
		}
		return size
	case TagTable:
		size := 2
		for _, p := range v.tbl.pairs {
			size += valueSize(p.Key) + valueSize(p.Val)
		}
		return size
	default:
		return 0
	}
}
