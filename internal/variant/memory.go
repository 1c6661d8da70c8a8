package variant

import (
	"encoding/binary"
	"fmt"
)

// Destroy releases everything v transitively owns and resets v to None.
// It is idempotent and safe on a zero Variant. Destroying a borrowed view
// only resets the view.
func Destroy(v *Variant) {
	if v.borrowed {
		*v = Variant{}
		return
	}
	switch v.kind {
	case Seq:
		for i := range v.seq {
			Destroy(&v.seq[i])
		}
	case Table:
		if v.table != nil {
			v.table.Clear()
		}
	}
	if v.owns {
		untrack()
	}
	*v = Variant{}
}

// Clone deep-copies src into dst. dst's existing storage is recycled when
// it is owned, of a compatible kind, and large enough; otherwise it is
// released and reallocated. src is left unchanged and must not be part of
// dst's own tree.
func Clone(dst, src *Variant) {
	if dst == src || sharesStorage(dst, src) {
		return
	}
	switch src.kind {
	case String, ContextVar, Bytes:
		copy(dst.MakeBuffer(src.kind, len(src.buf)), src.buf)
	case Image:
		info := src.Image()
		copy(dst.MakeImage(info.Channels, info.Flags, info.Width, info.Height), src.buf)
	case Seq:
		elems := dst.MakeSeq(len(src.seq))
		for i := range src.seq {
			Clone(&elems[i], &src.seq[i])
		}
	case Table:
		dst.MakeTable().cloneFrom(src.table)
	default:
		Destroy(dst)
		dst.kind = src.kind
		dst.raw = src.raw
		dst.ref = src.ref
	}
}

// Clone returns an independently owned deep copy of v.
func (v *Variant) Clone() Variant {
	var out Variant
	Clone(&out, v)
	return out
}

// sharesStorage reports whether dst and src are the same value seen
// through different headers, e.g. a variant and a borrowed view of it.
func sharesStorage(dst, src *Variant) bool {
	if dst.kind != src.kind {
		return false
	}
	switch src.kind {
	case String, ContextVar, Bytes, Image:
		return len(src.buf) > 0 && len(dst.buf) == len(src.buf) && &dst.buf[0] == &src.buf[0]
	case Seq:
		return len(src.seq) > 0 && len(dst.seq) == len(src.seq) && &dst.seq[0] == &src.seq[0]
	case Table:
		return src.table != nil && dst.table == src.table
	}
	return false
}

func (v *Variant) reusable(kinds ...Kind) bool {
	if !v.owns || v.borrowed {
		return false
	}
	for _, k := range kinds {
		if v.kind == k {
			return true
		}
	}
	return false
}

// MakeBuffer turns v into an owned String, ContextVar or Bytes of length n
// and returns the buffer to fill. Existing storage is reused when possible.
func (v *Variant) MakeBuffer(kind Kind, n int) []byte {
	if v.reusable(String, ContextVar, Bytes, Image) && cap(v.buf) >= n {
		v.kind = kind
		v.buf = v.buf[:n]
		v.raw = [16]byte{}
		return v.buf
	}
	Destroy(v)
	v.kind = kind
	v.buf = make([]byte, n)
	v.owns = true
	track()
	return v.buf
}

// MakeImage turns v into an owned Image with the given geometry and
// returns the pixel buffer to fill.
func (v *Variant) MakeImage(channels, flags uint8, width, height uint16) []byte {
	buf := v.MakeBuffer(Image, int(width)*int(height)*int(channels))
	v.raw[0] = channels
	v.raw[1] = flags
	binary.LittleEndian.PutUint16(v.raw[2:], width)
	binary.LittleEndian.PutUint16(v.raw[4:], height)
	return buf
}

// MakeSeq turns v into an owned Seq of n elements and returns the element
// slots. When v already is an owned Seq its elements are kept in place so
// callers can recycle their storage; elements beyond n are destroyed.
func (v *Variant) MakeSeq(n int) []Variant {
	if v.reusable(Seq) {
		if n <= cap(v.seq) {
			for i := n; i < len(v.seq); i++ {
				Destroy(&v.seq[i])
			}
			v.seq = v.seq[:n]
			return v.seq
		}
		grown := make([]Variant, n)
		copy(grown, v.seq)
		v.seq = grown
		return v.seq
	}
	Destroy(v)
	v.kind = Seq
	v.seq = make([]Variant, n)
	v.owns = true
	track()
	return v.seq
}

// MakeTable turns v into an owned, empty Table and returns its entries.
func (v *Variant) MakeTable() *Map {
	if v.reusable(Table) && v.table != nil {
		v.table.Clear()
		return v.table
	}
	Destroy(v)
	v.kind = Table
	v.table = newMap(0)
	v.owns = true
	track()
	return v.table
}

// SetPayload overwrites v with a blittable value of the given kind whose
// inline payload is p. Object payloads carry no reference.
func (v *Variant) SetPayload(kind Kind, p []byte) error {
	if !kind.Blittable() {
		return fmt.Errorf("SetPayload: %s is not blittable", kind)
	}
	n := kind.PayloadSize()
	if len(p) < n {
		return fmt.Errorf("SetPayload: %s needs %d bytes, got %d", kind, n, len(p))
	}
	Destroy(v)
	v.kind = kind
	copy(v.raw[:n], p)
	return nil
}

// Put stores val under key, taking ownership of val. A None variant
// becomes an empty table first.
func (v *Variant) Put(key string, val Variant) {
	if v.kind != Table {
		v.MakeTable()
	}
	v.table.Set(key, val)
}
