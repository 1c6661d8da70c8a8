package variant

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// Variant is a tagged value. The active payload is fully determined by
// the kind:
//   - blittable kinds keep their lanes little-endian in raw
//   - Object, Chain and Block additionally carry a non-owning ref
//   - String, ContextVar, Bytes and Image keep their bytes in buf
//   - Seq keeps its elements in seq, Table keeps its entries in table
//
// A Variant that owns storage must be released with Destroy. Copying the
// struct by assignment does not copy storage; use Clone or Borrow.
type Variant struct {
	kind     Kind
	owns     bool // holds a tracked backing allocation
	borrowed bool // view over storage owned elsewhere
	raw      [16]byte
	ref      any
	buf      []byte
	seq      []Variant
	table    *Map
}

// live counts backing allocations currently owned by variants.
var live atomic.Int64

// LiveAllocations returns the number of owned backing allocations that
// have been made and not yet released by Destroy.
func LiveAllocations() int64 {
	return live.Load()
}

func track() {
	live.Add(1)
}

func untrack() {
	live.Add(-1)
}

// Kind returns the discriminant.
func (v *Variant) Kind() Kind {
	return v.kind
}

// IsNone reports whether v holds no value.
func (v *Variant) IsNone() bool {
	return v.kind == None
}

// Borrowed reports whether v is a view over storage it does not own.
func (v *Variant) Borrowed() bool {
	return v.borrowed
}

// Borrow returns a non-owning view of v. The view shares v's storage,
// must not be mutated, and stays valid only while v is neither destroyed
// nor overwritten. Destroying a view never releases v's storage.
func (v *Variant) Borrow() Variant {
	view := *v
	view.owns = false
	view.borrowed = v.kind >= EndOfBlittable
	return view
}

// Scalar constructors.

func NewBool(b bool) Variant {
	v := Variant{kind: Bool}
	if b {
		v.raw[0] = 1
	}
	return v
}

func NewInt(n int64) Variant {
	v := Variant{kind: Int}
	binary.LittleEndian.PutUint64(v.raw[0:], uint64(n))
	return v
}

func NewInt2(x, y int64) Variant {
	v := Variant{kind: Int2}
	binary.LittleEndian.PutUint64(v.raw[0:], uint64(x))
	binary.LittleEndian.PutUint64(v.raw[8:], uint64(y))
	return v
}

func NewInt3(x, y, z int32) Variant {
	v := Variant{kind: Int3}
	for i, n := range [3]int32{x, y, z} {
		binary.LittleEndian.PutUint32(v.raw[i*4:], uint32(n))
	}
	return v
}

func NewInt4(x, y, z, w int32) Variant {
	v := Variant{kind: Int4}
	for i, n := range [4]int32{x, y, z, w} {
		binary.LittleEndian.PutUint32(v.raw[i*4:], uint32(n))
	}
	return v
}

func NewInt8(lanes [8]int16) Variant {
	v := Variant{kind: Int8}
	for i, n := range lanes {
		binary.LittleEndian.PutUint16(v.raw[i*2:], uint16(n))
	}
	return v
}

func NewInt16(lanes [16]int8) Variant {
	v := Variant{kind: Int16}
	for i, n := range lanes {
		v.raw[i] = byte(n)
	}
	return v
}

func NewFloat(f float64) Variant {
	v := Variant{kind: Float}
	binary.LittleEndian.PutUint64(v.raw[0:], math.Float64bits(f))
	return v
}

func NewFloat2(x, y float64) Variant {
	v := Variant{kind: Float2}
	binary.LittleEndian.PutUint64(v.raw[0:], math.Float64bits(x))
	binary.LittleEndian.PutUint64(v.raw[8:], math.Float64bits(y))
	return v
}

func NewFloat3(x, y, z float32) Variant {
	v := Variant{kind: Float3}
	for i, f := range [3]float32{x, y, z} {
		binary.LittleEndian.PutUint32(v.raw[i*4:], math.Float32bits(f))
	}
	return v
}

func NewFloat4(x, y, z, w float32) Variant {
	v := Variant{kind: Float4}
	for i, f := range [4]float32{x, y, z, w} {
		binary.LittleEndian.PutUint32(v.raw[i*4:], math.Float32bits(f))
	}
	return v
}

func NewColor(r, g, b, a uint8) Variant {
	v := Variant{kind: Color}
	v.raw[0], v.raw[1], v.raw[2], v.raw[3] = r, g, b, a
	return v
}

// NewAny returns the Any wildcard value, used mostly in type positions.
func NewAny() Variant {
	return Variant{kind: Any}
}

// NewEnum creates an enum value of the type identified by (vendor, typ).
func NewEnum(vendor, typ, value int32) Variant {
	v := Variant{kind: Enum}
	binary.LittleEndian.PutUint32(v.raw[0:], uint32(vendor))
	binary.LittleEndian.PutUint32(v.raw[4:], uint32(typ))
	binary.LittleEndian.PutUint32(v.raw[8:], uint32(value))
	return v
}

// NewObject wraps an opaque host object. The variant never owns ref;
// ref should be a pointer so identity comparison is meaningful.
func NewObject(vendor, typ int32, ref any) Variant {
	v := Variant{kind: Object, ref: ref}
	binary.LittleEndian.PutUint32(v.raw[0:], uint32(vendor))
	binary.LittleEndian.PutUint32(v.raw[4:], uint32(typ))
	return v
}

// NewChainRef wraps a non-owning reference to a chain.
func NewChainRef(ref any) Variant {
	return Variant{kind: Chain, ref: ref}
}

// NewBlockRef wraps a non-owning reference to a block.
func NewBlockRef(ref any) Variant {
	return Variant{kind: Block, ref: ref}
}

// Owning constructors. Each returned variant must eventually be destroyed.

func NewString(s string) Variant {
	var v Variant
	copy(v.MakeBuffer(String, len(s)), s)
	return v
}

// NewContextVar creates a reference to a context variable by name.
func NewContextVar(name string) Variant {
	var v Variant
	copy(v.MakeBuffer(ContextVar, len(name)), name)
	return v
}

func NewBytes(b []byte) Variant {
	var v Variant
	copy(v.MakeBuffer(Bytes, len(b)), b)
	return v
}

// NewImage creates an image with the given geometry. pixels must hold
// exactly width*height*channels bytes.
func NewImage(channels, flags uint8, width, height uint16, pixels []byte) (Variant, error) {
	want := int(width) * int(height) * int(channels)
	if len(pixels) != want {
		return Variant{}, fmt.Errorf("image: got %d pixel bytes, want %d", len(pixels), want)
	}
	var v Variant
	copy(v.MakeImage(channels, flags, width, height), pixels)
	return v, nil
}

// NewSeq creates a sequence that takes ownership of elems.
func NewSeq(elems ...Variant) Variant {
	var v Variant
	dst := v.MakeSeq(len(elems))
	copy(dst, elems)
	return v
}

// NewTable creates an empty table.
func NewTable() Variant {
	var v Variant
	v.MakeTable()
	return v
}

// Accessors. Each returns the zero value when the kind does not match.

func (v *Variant) Bool() bool {
	return v.kind == Bool && v.raw[0] != 0
}

func (v *Variant) Int() int64 {
	if v.kind != Int {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(v.raw[0:]))
}

func (v *Variant) Int2() [2]int64 {
	if v.kind != Int2 {
		return [2]int64{}
	}
	return [2]int64{
		int64(binary.LittleEndian.Uint64(v.raw[0:])),
		int64(binary.LittleEndian.Uint64(v.raw[8:])),
	}
}

func (v *Variant) Int3() [3]int32 {
	var out [3]int32
	if v.kind == Int3 {
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(v.raw[i*4:]))
		}
	}
	return out
}

func (v *Variant) Int4() [4]int32 {
	var out [4]int32
	if v.kind == Int4 {
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(v.raw[i*4:]))
		}
	}
	return out
}

func (v *Variant) Int8() [8]int16 {
	var out [8]int16
	if v.kind == Int8 {
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(v.raw[i*2:]))
		}
	}
	return out
}

func (v *Variant) Int16() [16]int8 {
	var out [16]int8
	if v.kind == Int16 {
		for i := range out {
			out[i] = int8(v.raw[i])
		}
	}
	return out
}

func (v *Variant) Float() float64 {
	if v.kind != Float {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.raw[0:]))
}

func (v *Variant) Float2() [2]float64 {
	if v.kind != Float2 {
		return [2]float64{}
	}
	return [2]float64{
		math.Float64frombits(binary.LittleEndian.Uint64(v.raw[0:])),
		math.Float64frombits(binary.LittleEndian.Uint64(v.raw[8:])),
	}
}

func (v *Variant) Float3() [3]float32 {
	var out [3]float32
	if v.kind == Float3 {
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(v.raw[i*4:]))
		}
	}
	return out
}

func (v *Variant) Float4() [4]float32 {
	var out [4]float32
	if v.kind == Float4 {
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(v.raw[i*4:]))
		}
	}
	return out
}

func (v *Variant) Color() [4]uint8 {
	if v.kind != Color {
		return [4]uint8{}
	}
	return [4]uint8{v.raw[0], v.raw[1], v.raw[2], v.raw[3]}
}

// Enum returns the enum type ids and value.
func (v *Variant) Enum() (vendor, typ, value int32) {
	if v.kind != Enum {
		return 0, 0, 0
	}
	return int32(binary.LittleEndian.Uint32(v.raw[0:])),
		int32(binary.LittleEndian.Uint32(v.raw[4:])),
		int32(binary.LittleEndian.Uint32(v.raw[8:]))
}

// TypeID returns the (vendor, type) pair of an Object or Enum.
func (v *Variant) TypeID() (vendor, typ int32) {
	if v.kind != Object && v.kind != Enum {
		return 0, 0
	}
	return int32(binary.LittleEndian.Uint32(v.raw[0:])), int32(binary.LittleEndian.Uint32(v.raw[4:]))
}

// Ref returns the referenced host value of an Object, Chain or Block.
func (v *Variant) Ref() any {
	return v.ref
}

// Text returns the contents of a String or ContextVar.
func (v *Variant) Text() string {
	if v.kind != String && v.kind != ContextVar {
		return ""
	}
	return string(v.buf)
}

// Bytes returns the backing bytes of a String, ContextVar, Bytes or Image.
// The slice aliases v's storage.
func (v *Variant) Bytes() []byte {
	switch v.kind {
	case String, ContextVar, Bytes, Image:
		return v.buf
	}
	return nil
}

// ImageInfo describes the geometry of an Image variant.
type ImageInfo struct {
	Channels uint8
	Flags    uint8
	Width    uint16
	Height   uint16
}

// Image returns the image geometry.
func (v *Variant) Image() ImageInfo {
	if v.kind != Image {
		return ImageInfo{}
	}
	return ImageInfo{
		Channels: v.raw[0],
		Flags:    v.raw[1],
		Width:    binary.LittleEndian.Uint16(v.raw[2:]),
		Height:   binary.LittleEndian.Uint16(v.raw[4:]),
	}
}

// Seq returns the elements of a sequence. The slice aliases v's storage.
func (v *Variant) Seq() []Variant {
	if v.kind != Seq {
		return nil
	}
	return v.seq
}

// Map returns the entries of a table, or nil.
func (v *Variant) Map() *Map {
	if v.kind != Table {
		return nil
	}
	return v.table
}

// Len returns the element count of a Seq or Table, or the byte length of
// a String, ContextVar, Bytes or Image.
func (v *Variant) Len() int {
	switch v.kind {
	case Seq:
		return len(v.seq)
	case Table:
		if v.table == nil {
			return 0
		}
		return v.table.Len()
	case String, ContextVar, Bytes, Image:
		return len(v.buf)
	}
	return 0
}

// Payload returns a copy of the inline payload of a blittable kind.
func (v *Variant) Payload() []byte {
	n := v.kind.PayloadSize()
	out := make([]byte, n)
	copy(out, v.raw[:n])
	return out
}

// Append adds elem to the end of a sequence, taking ownership of elem.
// A None variant becomes an empty sequence first.
func (v *Variant) Append(elem Variant) {
	if v.kind != Seq {
		v.MakeSeq(0)
	}
	v.seq = append(v.seq, elem)
}

// String renders v for logs and diagnostics.
func (v *Variant) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v *Variant) format(sb *strings.Builder) {
	switch v.kind {
	case None:
		sb.WriteString("None")
	case Any:
		sb.WriteString("Any")
	case Bool:
		fmt.Fprintf(sb, "%t", v.Bool())
	case Int:
		fmt.Fprintf(sb, "%d", v.Int())
	case Float:
		fmt.Fprintf(sb, "%g", v.Float())
	case Int2, Int3, Int4, Int8, Int16, Float2, Float3, Float4, Color:
		traits, _ := VectorTypeOf(v.kind)
		sb.WriteByte('(')
		for i := 0; i < traits.Dimension; i++ {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if traits.IsInteger {
				fmt.Fprintf(sb, "%d", v.LaneInt(i))
			} else {
				fmt.Fprintf(sb, "%g", v.LaneFloat(i))
			}
		}
		sb.WriteByte(')')
	case Enum:
		vendor, typ, value := v.Enum()
		fmt.Fprintf(sb, "Enum(%d/%d:%d)", vendor, typ, value)
	case Object:
		vendor, typ := v.TypeID()
		fmt.Fprintf(sb, "Object(%d/%d)", vendor, typ)
	case Chain, Block:
		if n, ok := v.ref.(interface{ Name() string }); ok {
			fmt.Fprintf(sb, "%s(%s)", v.kind, n.Name())
		} else {
			sb.WriteString(v.kind.String())
		}
	case String:
		fmt.Fprintf(sb, "%q", v.buf)
	case ContextVar:
		fmt.Fprintf(sb, "$%s", v.buf)
	case Bytes:
		fmt.Fprintf(sb, "Bytes(%d)", len(v.buf))
	case Image:
		info := v.Image()
		fmt.Fprintf(sb, "Image(%dx%dx%d)", info.Width, info.Height, info.Channels)
	case Seq:
		sb.WriteByte('[')
		for i := range v.seq {
			if i > 0 {
				sb.WriteByte(' ')
			}
			v.seq[i].format(sb)
		}
		sb.WriteByte(']')
	case Table:
		sb.WriteByte('{')
		if v.table != nil {
			for i, k := range v.table.keys {
				if i > 0 {
					sb.WriteString(" ")
				}
				fmt.Fprintf(sb, "%s: ", k)
				v.table.vals[i].format(sb)
			}
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(v.kind.String())
	}
}
