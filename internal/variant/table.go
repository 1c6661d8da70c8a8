package variant

import (
	"slices"
	"unicode/utf16"
)

// Map holds the entries of a Table variant in insertion order.
// Pointers returned by Get and Slot stay valid until the next insertion
// or deletion.
type Map struct {
	keys  []string
	vals  []Variant
	index map[string]int
}

func newMap(n int) *Map {
	return &Map{
		keys:  make([]string, 0, n),
		vals:  make([]Variant, 0, n),
		index: make(map[string]int, n),
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (*Variant, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return &m.vals[i], true
}

// Set stores val under key, taking ownership of val. A previous value
// under the same key is destroyed.
func (m *Map) Set(key string, val Variant) {
	if i, ok := m.index[key]; ok {
		Destroy(&m.vals[i])
		m.vals[i] = val
		return
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

// Slot returns the value slot for key, inserting a None entry if missing.
func (m *Map) Slot(key string) *Variant {
	if i, ok := m.index[key]; ok {
		return &m.vals[i]
	}
	m.Set(key, Variant{})
	return &m.vals[len(m.vals)-1]
}

// Delete destroys and removes the entry under key.
func (m *Map) Delete(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	Destroy(&m.vals[i])
	m.keys = slices.Delete(m.keys, i, i+1)
	m.vals = slices.Delete(m.vals, i, i+1)
	delete(m.index, key)
	for j := i; j < len(m.keys); j++ {
		m.index[m.keys[j]] = j
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// SortedKeys returns keys ordered by UTF-16 code units, the order used
// by the canonical JSON representation.
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, val *Variant) bool) {
	if m == nil {
		return
	}
	for i, k := range m.keys {
		if !fn(k, &m.vals[i]) {
			return
		}
	}
}

// Clear destroys every value and empties the map, keeping its capacity.
func (m *Map) Clear() {
	for i := range m.vals {
		Destroy(&m.vals[i])
	}
	m.keys = m.keys[:0]
	m.vals = m.vals[:0]
	clear(m.index)
}

// cloneFrom fills an empty map with deep copies of src's entries. All
// value slots come from a single allocation.
func (m *Map) cloneFrom(src *Map) {
	n := src.Len()
	if n == 0 {
		return
	}
	if cap(m.vals) < n {
		m.vals = make([]Variant, n)
	} else {
		m.vals = m.vals[:n]
	}
	m.keys = append(m.keys[:0], src.keys...)
	for i := range src.vals {
		Clone(&m.vals[i], &src.vals[i])
		m.index[m.keys[i]] = i
	}
}

// compareKeysUTF16 orders strings by UTF-16 code units as required by
// RFC 8785. Go's native string order is by UTF-8 bytes, which differs for
// characters outside the BMP.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
