package value

// Equal reports whether a and b are structurally equal: same tag, same
// scalar payload, or recursively equal container contents. It never
// observes refcounts and is intended for tests, not kernel logic.
func Equal(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case TagNil:
		return true
	case TagInt:
		return a.i == b.i
	case TagNumber:
		return a.n == b.n
	case TagBool:
		return a.b == b.b
	case TagCString:
		return string(a.cstr) == string(b.cstr)
	case TagString:
		return string(a.str.data) == string(b.str.data)
	case TagArray:
		if len(a.arr.items) != len(b.arr.items) {
			return false
		}
		for i := range a.arr.items {
			if !Equal(a.arr.items[i], b.arr.items[i]) {
				return false
			}
		}
		return true
	case TagTable:
		if len(a.tbl.pairs) != len(b.tbl.pairs) {
			return false
		}
		for i := range a.tbl.pairs {
			if !Equal(a.tbl.pairs[i].Key, b.tbl.pairs[i].Key) || !Equal(a.tbl.pairs[i].Val, b.tbl.pairs[i].Val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
