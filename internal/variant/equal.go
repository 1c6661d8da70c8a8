package variant

import (
	"bytes"
	"cmp"
	"math"
	"reflect"
)

// Epsilon is the tolerance for float lane comparison (single-precision
// machine epsilon).
const Epsilon = 1.1920929e-07

// Equal reports whether a and b hold structurally equal values. Float
// lanes compare within Epsilon, tables compare by key regardless of
// insertion order, and objects, chains and blocks compare by identity.
func Equal(a, b *Variant) bool {
	if a == b {
		return true
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case None, Any:
		return true
	case Float, Float2, Float3, Float4:
		traits, _ := VectorTypeOf(a.kind)
		for i := 0; i < traits.Dimension; i++ {
			if math.Abs(a.LaneFloat(i)-b.LaneFloat(i)) > Epsilon {
				return false
			}
		}
		return true
	case Object:
		return a.raw == b.raw && sameRef(a.ref, b.ref)
	case Chain, Block:
		return sameRef(a.ref, b.ref)
	case String, ContextVar, Bytes:
		return sharesStorage(a, b) || bytes.Equal(a.buf, b.buf)
	case Image:
		return a.raw == b.raw && (sharesStorage(a, b) || bytes.Equal(a.buf, b.buf))
	case Seq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		if sharesStorage(a, b) {
			return true
		}
		for i := range a.seq {
			if !Equal(&a.seq[i], &b.seq[i]) {
				return false
			}
		}
		return true
	case Table:
		if a.table == b.table {
			return true
		}
		if a.table.Len() != b.table.Len() {
			return false
		}
		equal := true
		a.table.Range(func(k string, av *Variant) bool {
			bv, ok := b.table.Get(k)
			equal = ok && Equal(av, bv)
			return equal
		})
		return equal
	}
	n := a.kind.PayloadSize()
	return bytes.Equal(a.raw[:n], b.raw[:n])
}

// sameRef compares host references by identity without panicking on
// incomparable dynamic types.
func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Compare orders a and b. Values of different kinds order by kind.
// Numeric vectors compare lane by lane, strings and bytes
// lexicographically, sequences element-wise and then by length, tables
// by size and then by their sorted entries. Values with no natural order
// (objects, chains, blocks) compare equal when Equal and by kind otherwise.
func Compare(a, b *Variant) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case None, Any:
		return 0
	case Bool:
		return cmp.Compare(a.raw[0], b.raw[0])
	case Enum:
		_, _, av := a.Enum()
		_, _, bv := b.Enum()
		return cmp.Compare(av, bv)
	case Int, Int2, Int3, Int4, Int8, Int16, Color:
		traits, _ := VectorTypeOf(a.kind)
		for i := 0; i < traits.Dimension; i++ {
			if c := cmp.Compare(a.LaneInt(i), b.LaneInt(i)); c != 0 {
				return c
			}
		}
		return 0
	case Float, Float2, Float3, Float4:
		traits, _ := VectorTypeOf(a.kind)
		for i := 0; i < traits.Dimension; i++ {
			x, y := a.LaneFloat(i), b.LaneFloat(i)
			if math.Abs(x-y) <= Epsilon {
				continue
			}
			return cmp.Compare(x, y)
		}
		return 0
	case String, ContextVar, Bytes, Image:
		return bytes.Compare(a.buf, b.buf)
	case Seq:
		for i := 0; i < len(a.seq) && i < len(b.seq); i++ {
			if c := Compare(&a.seq[i], &b.seq[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.seq), len(b.seq))
	case Table:
		if c := cmp.Compare(a.table.Len(), b.table.Len()); c != 0 {
			return c
		}
		ak, bk := a.table.SortedKeys(), b.table.SortedKeys()
		for i := range ak {
			if c := cmp.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			av, _ := a.table.Get(ak[i])
			bv, _ := b.table.Get(bk[i])
			if c := Compare(av, bv); c != 0 {
				return c
			}
		}
		return 0
	}
	return 0
}
