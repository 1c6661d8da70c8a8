// Package types describes the static shape of variants and decides
// whether one shape can flow into another.
package types

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chainflow/internal/variant"
)

// TypeInfo is a structural description of the values a slot can hold.
//
// SeqTypes lists the possible element types of a Seq; empty means
// unconstrained. Tables pair Keys[i] with Types[i] when keyed; an
// unkeyed table lists only Types. VendorID and TypeID identify Object
// and Enum types. ContextVar uses Types for the referenced variable.
type TypeInfo struct {
	Kind     variant.Kind `json:"kind"`
	VendorID int32        `json:"vendor_id,omitempty"`
	TypeID   int32        `json:"type_id,omitempty"`
	SeqTypes []TypeInfo   `json:"seq_types,omitempty"`
	Keys     []string     `json:"keys,omitempty"`
	Types    []TypeInfo   `json:"types,omitempty"`
}

// Common descriptors.
var (
	NoneType       = TypeInfo{Kind: variant.None}
	AnyType        = TypeInfo{Kind: variant.Any}
	BoolType       = TypeInfo{Kind: variant.Bool}
	IntType        = TypeInfo{Kind: variant.Int}
	Int2Type       = TypeInfo{Kind: variant.Int2}
	Int3Type       = TypeInfo{Kind: variant.Int3}
	Int4Type       = TypeInfo{Kind: variant.Int4}
	Int8Type       = TypeInfo{Kind: variant.Int8}
	Int16Type      = TypeInfo{Kind: variant.Int16}
	FloatType      = TypeInfo{Kind: variant.Float}
	Float2Type     = TypeInfo{Kind: variant.Float2}
	Float3Type     = TypeInfo{Kind: variant.Float3}
	Float4Type     = TypeInfo{Kind: variant.Float4}
	ColorType      = TypeInfo{Kind: variant.Color}
	StringType     = TypeInfo{Kind: variant.String}
	BytesType      = TypeInfo{Kind: variant.Bytes}
	ImageType      = TypeInfo{Kind: variant.Image}
	ContextVarType = TypeInfo{Kind: variant.ContextVar}
	ChainType      = TypeInfo{Kind: variant.Chain}
	BlockType      = TypeInfo{Kind: variant.Block}
	AnySeqType     = TypeInfo{Kind: variant.Seq}
	AnyTableType   = TypeInfo{Kind: variant.Table}
)

// NumericTypes lists every kind with a lane layout.
var NumericTypes = []TypeInfo{
	IntType, Int2Type, Int3Type, Int4Type, Int8Type, Int16Type,
	FloatType, Float2Type, Float3Type, Float4Type, ColorType,
}

// Of returns the plain descriptor for kind.
func Of(kind variant.Kind) TypeInfo {
	return TypeInfo{Kind: kind}
}

// SeqOf describes a sequence whose elements are any of elems.
func SeqOf(elems ...TypeInfo) TypeInfo {
	return TypeInfo{Kind: variant.Seq, SeqTypes: elems}
}

// TableOf describes a keyed table; keys and types pair up by index.
func TableOf(keys []string, types []TypeInfo) TypeInfo {
	return TypeInfo{Kind: variant.Table, Keys: keys, Types: types}
}

// TableOfAny describes an unkeyed table whose values are any of types.
func TableOfAny(types ...TypeInfo) TypeInfo {
	return TypeInfo{Kind: variant.Table, Types: types}
}

// EnumOf describes an enum type. (0, 0) stands for any enum.
func EnumOf(vendor, typ int32) TypeInfo {
	return TypeInfo{Kind: variant.Enum, VendorID: vendor, TypeID: typ}
}

// ObjectOf describes an opaque object type.
func ObjectOf(vendor, typ int32) TypeInfo {
	return TypeInfo{Kind: variant.Object, VendorID: vendor, TypeID: typ}
}

// Equal reports whether a and b are the same descriptor.
func Equal(a, b TypeInfo) bool {
	if a.Kind != b.Kind || a.VendorID != b.VendorID || a.TypeID != b.TypeID {
		return false
	}
	return slices.Equal(a.Keys, b.Keys) &&
		slices.EqualFunc(a.SeqTypes, b.SeqTypes, Equal) &&
		slices.EqualFunc(a.Types, b.Types, Equal)
}

// String renders t, e.g. "Seq[Int Float]" or "Table{a: Int}".
func (t TypeInfo) String() string {
	var sb strings.Builder
	t.format(&sb)
	return sb.String()
}

func (t TypeInfo) format(sb *strings.Builder) {
	sb.WriteString(t.Kind.String())
	switch t.Kind {
	case variant.Seq:
		if len(t.SeqTypes) == 0 {
			return
		}
		sb.WriteByte('[')
		for i, e := range t.SeqTypes {
			if i > 0 {
				sb.WriteByte(' ')
			}
			e.format(sb)
		}
		sb.WriteByte(']')
	case variant.Table:
		if len(t.Types) == 0 {
			return
		}
		sb.WriteByte('{')
		for i, e := range t.Types {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if i < len(t.Keys) {
				sb.WriteString(t.Keys[i])
				sb.WriteString(": ")
			}
			e.format(sb)
		}
		sb.WriteByte('}')
	case variant.Object, variant.Enum:
		if t.VendorID != 0 || t.TypeID != 0 {
			fmt.Fprintf(sb, "(%d/%d)", t.VendorID, t.TypeID)
		}
	}
}

// Derive computes the descriptor of a concrete value. Sequence element
// types are deduplicated; tables are keyed by their entries.
func Derive(v *variant.Variant) TypeInfo {
	t := TypeInfo{Kind: v.Kind()}
	switch v.Kind() {
	case variant.Object, variant.Enum:
		t.VendorID, t.TypeID = v.TypeID()
	case variant.Seq:
		for i := range v.Seq() {
			et := Derive(&v.Seq()[i])
			if !slices.ContainsFunc(t.SeqTypes, func(x TypeInfo) bool { return Equal(x, et) }) {
				t.SeqTypes = append(t.SeqTypes, et)
			}
		}
	case variant.Table:
		v.Map().Range(func(k string, ev *variant.Variant) bool {
			t.Keys = append(t.Keys, k)
			t.Types = append(t.Types, Derive(ev))
			return true
		})
	}
	return t
}

// ParseName resolves a descriptor from a kind name such as "Int" or
// "Float3". Container element types cannot be expressed by name.
func ParseName(name string) (TypeInfo, error) {
	kind, err := variant.ParseKind(name)
	if err != nil {
		return TypeInfo{}, err
	}
	return Of(kind), nil
}
