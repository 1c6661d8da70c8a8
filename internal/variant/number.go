package variant

import (
	"encoding/binary"
	"fmt"
	"math"
)

// NumberType is the storage type of a single lane.
type NumberType uint8

const (
	UInt8 NumberType = iota
	Int8Number
	Int16Number
	Int32Number
	Int64Number
	Float32Number
	Float64Number
)

var numberSizes = [...]int{
	UInt8:         1,
	Int8Number:    1,
	Int16Number:   2,
	Int32Number:   4,
	Int64Number:   8,
	Float32Number: 4,
	Float64Number: 8,
}

var numberNames = [...]string{
	UInt8:         "uint8",
	Int8Number:    "int8",
	Int16Number:   "int16",
	Int32Number:   "int32",
	Int64Number:   "int64",
	Float32Number: "float32",
	Float64Number: "float64",
}

// Size returns the lane width in bytes.
func (n NumberType) Size() int {
	return numberSizes[n]
}

func (n NumberType) String() string {
	return numberNames[n]
}

// IsInteger reports whether the lane holds an integer.
func (n NumberType) IsInteger() bool {
	return n != Float32Number && n != Float64Number
}

// VectorTraits describes a numeric kind as a fixed number of lanes.
type VectorTraits struct {
	Kind       Kind
	Name       string
	Dimension  int
	IsInteger  bool
	NumberType NumberType
}

var vectorTraits = []VectorTraits{
	{Kind: Int, Name: "Int", Dimension: 1, IsInteger: true, NumberType: Int64Number},
	{Kind: Int2, Name: "Int2", Dimension: 2, IsInteger: true, NumberType: Int64Number},
	{Kind: Int3, Name: "Int3", Dimension: 3, IsInteger: true, NumberType: Int32Number},
	{Kind: Int4, Name: "Int4", Dimension: 4, IsInteger: true, NumberType: Int32Number},
	{Kind: Int8, Name: "Int8", Dimension: 8, IsInteger: true, NumberType: Int16Number},
	{Kind: Int16, Name: "Int16", Dimension: 16, IsInteger: true, NumberType: Int8Number},
	{Kind: Float, Name: "Float", Dimension: 1, IsInteger: false, NumberType: Float64Number},
	{Kind: Float2, Name: "Float2", Dimension: 2, IsInteger: false, NumberType: Float64Number},
	{Kind: Float3, Name: "Float3", Dimension: 3, IsInteger: false, NumberType: Float32Number},
	{Kind: Float4, Name: "Float4", Dimension: 4, IsInteger: false, NumberType: Float32Number},
	{Kind: Color, Name: "Color", Dimension: 4, IsInteger: true, NumberType: UInt8},
}

var (
	traitsByKind = make(map[Kind]VectorTraits, len(vectorTraits))
	traitsByName = make(map[string]VectorTraits, len(vectorTraits))
)

func init() {
	for _, t := range vectorTraits {
		traitsByKind[t.Kind] = t
		traitsByName[t.Name] = t
	}
}

// VectorTypeOf returns the lane layout of a numeric kind.
func VectorTypeOf(k Kind) (VectorTraits, bool) {
	t, ok := traitsByKind[k]
	return t, ok
}

// VectorTypeByName looks up a numeric kind by name, e.g. "Float3".
func VectorTypeByName(name string) (VectorTraits, bool) {
	t, ok := traitsByName[name]
	return t, ok
}

// VectorTypeFor finds the numeric kind with the given lane type and
// dimension, e.g. (Float32Number, 3) is Float3.
func VectorTypeFor(n NumberType, dimension int) (VectorTraits, bool) {
	for _, t := range vectorTraits {
		if t.NumberType == n && t.Dimension == dimension {
			return t, true
		}
	}
	return VectorTraits{}, false
}

// IsNumeric reports whether k has a lane layout.
func IsNumeric(k Kind) bool {
	_, ok := traitsByKind[k]
	return ok
}

func readLane(raw []byte, n NumberType, i int) (int64, float64) {
	off := i * n.Size()
	switch n {
	case UInt8:
		x := raw[off]
		return int64(x), float64(x)
	case Int8Number:
		x := int8(raw[off])
		return int64(x), float64(x)
	case Int16Number:
		x := int16(binary.LittleEndian.Uint16(raw[off:]))
		return int64(x), float64(x)
	case Int32Number:
		x := int32(binary.LittleEndian.Uint32(raw[off:]))
		return int64(x), float64(x)
	case Int64Number:
		x := int64(binary.LittleEndian.Uint64(raw[off:]))
		return x, float64(x)
	case Float32Number:
		x := math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		return int64(x), float64(x)
	default:
		x := math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
		return int64(x), x
	}
}

func writeLane(raw []byte, n NumberType, i int, iv int64, fv float64, fromFloat bool) {
	off := i * n.Size()
	if n.IsInteger() && fromFloat {
		iv = int64(fv)
	}
	switch n {
	case UInt8:
		raw[off] = uint8(iv)
	case Int8Number:
		raw[off] = byte(int8(iv))
	case Int16Number:
		binary.LittleEndian.PutUint16(raw[off:], uint16(int16(iv)))
	case Int32Number:
		binary.LittleEndian.PutUint32(raw[off:], uint32(int32(iv)))
	case Int64Number:
		binary.LittleEndian.PutUint64(raw[off:], uint64(iv))
	case Float32Number:
		if !fromFloat {
			fv = float64(iv)
		}
		binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(float32(fv)))
	case Float64Number:
		if !fromFloat {
			fv = float64(iv)
		}
		binary.LittleEndian.PutUint64(raw[off:], math.Float64bits(fv))
	}
}

// LaneInt returns lane i of a numeric variant as an integer. Float lanes
// are truncated. It returns 0 for non-numeric kinds or out-of-range lanes.
func (v *Variant) LaneInt(i int) int64 {
	t, ok := traitsByKind[v.kind]
	if !ok || i < 0 || i >= t.Dimension {
		return 0
	}
	n, _ := readLane(v.raw[:], t.NumberType, i)
	return n
}

// LaneFloat returns lane i of a numeric variant as a float64.
func (v *Variant) LaneFloat(i int) float64 {
	t, ok := traitsByKind[v.kind]
	if !ok || i < 0 || i >= t.Dimension {
		return 0
	}
	_, f := readLane(v.raw[:], t.NumberType, i)
	return f
}

// SetLaneInt stores x into lane i, converting to the lane type.
func (v *Variant) SetLaneInt(i int, x int64) {
	t, ok := traitsByKind[v.kind]
	if !ok || i < 0 || i >= t.Dimension {
		return
	}
	writeLane(v.raw[:], t.NumberType, i, x, 0, false)
}

// SetLaneFloat stores f into lane i, converting to the lane type.
func (v *Variant) SetLaneFloat(i int, f float64) {
	t, ok := traitsByKind[v.kind]
	if !ok || i < 0 || i >= t.Dimension {
		return
	}
	writeLane(v.raw[:], t.NumberType, i, 0, f, true)
}

// Convert casts a numeric variant to another numeric kind lane by lane.
// Lanes missing from src are zero; surplus lanes are dropped. Integer
// targets truncate float sources.
func Convert(src *Variant, to Kind) (Variant, error) {
	from, ok := traitsByKind[src.kind]
	if !ok {
		return Variant{}, fmt.Errorf("convert: %s is not numeric", src.kind)
	}
	target, ok := traitsByKind[to]
	if !ok {
		return Variant{}, fmt.Errorf("convert: %s is not numeric", to)
	}
	out := Variant{kind: to}
	for i := 0; i < target.Dimension && i < from.Dimension; i++ {
		iv, fv := readLane(src.raw[:], from.NumberType, i)
		writeLane(out.raw[:], target.NumberType, i, iv, fv, !from.IsInteger)
	}
	return out, nil
}
