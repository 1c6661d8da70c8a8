package variant

import "fmt"

// Kind is the discriminant of a Variant.
// The numeric value is also the tag byte of the binary encoding, so the
// order of these constants must never change.
type Kind uint8

const (
	None Kind = iota
	Any
	Object
	Enum
	Bool
	Int
	Int2
	Int3
	Int4
	Int8
	Int16
	Float
	Float2
	Float3
	Float4
	Color
	Chain
	Block
	EndOfBlittable
	Bytes
	String
	ContextVar
	Image
	Seq
	Table
)

var kindNames = [...]string{
	None:           "None",
	Any:            "Any",
	Object:         "Object",
	Enum:           "Enum",
	Bool:           "Bool",
	Int:            "Int",
	Int2:           "Int2",
	Int3:           "Int3",
	Int4:           "Int4",
	Int8:           "Int8",
	Int16:          "Int16",
	Float:          "Float",
	Float2:         "Float2",
	Float3:         "Float3",
	Float4:         "Float4",
	Color:          "Color",
	Chain:          "Chain",
	Block:          "Block",
	EndOfBlittable: "EndOfBlittable",
	Bytes:          "Bytes",
	String:         "String",
	ContextVar:     "ContextVar",
	Image:          "Image",
	Seq:            "Seq",
	Table:          "Table",
}

// payloadSizes holds the natural byte width of each blittable kind's payload.
var payloadSizes = [...]int{
	Enum:   12,
	Bool:   1,
	Int:    8,
	Int2:   16,
	Int3:   12,
	Int4:   16,
	Int8:   16,
	Int16:  16,
	Float:  8,
	Float2: 16,
	Float3: 12,
	Float4: 16,
	Color:  4,
	Object: 8,
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k <= Table
}

// Blittable reports whether values of this kind are flat copies
// with no owned storage.
func (k Kind) Blittable() bool {
	return k < EndOfBlittable
}

// PayloadSize returns the fixed payload width in bytes for blittable kinds
// that carry inline data. It returns 0 for None, Any, Chain, Block and
// every non-blittable kind.
func (k Kind) PayloadSize() int {
	if int(k) < len(payloadSizes) {
		return payloadSizes[k]
	}
	return 0
}

// ParseKind resolves a kind from its name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name && Kind(k) != EndOfBlittable {
			return Kind(k), nil
		}
	}
	return None, fmt.Errorf("unknown variant kind %q", name)
}
