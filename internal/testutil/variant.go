package testutil

import (
	"pgregory.net/rapid"

	"github.com/roach88/chainflow/internal/variant"
)

// VariantGen generates owned variants of every serializable kind, nesting
// sequences and tables up to depth levels. Strings are printable ASCII so
// generated values survive NFC normalization unchanged.
func VariantGen(depth int) *rapid.Generator[variant.Variant] {
	return rapid.Custom(func(t *rapid.T) variant.Variant {
		choices := 14
		if depth > 0 {
			choices = 16
		}
		switch rapid.IntRange(0, choices-1).Draw(t, "kind") {
		case 0:
			return variant.Variant{}
		case 1:
			return variant.NewBool(rapid.Bool().Draw(t, "bool"))
		case 2:
			return variant.NewInt(rapid.Int64().Draw(t, "int"))
		case 3:
			return variant.NewInt2(rapid.Int64().Draw(t, "x"), rapid.Int64().Draw(t, "y"))
		case 4:
			return variant.NewInt3(rapid.Int32().Draw(t, "x"), rapid.Int32().Draw(t, "y"), rapid.Int32().Draw(t, "z"))
		case 5:
			return variant.NewInt4(rapid.Int32().Draw(t, "x"), rapid.Int32().Draw(t, "y"),
				rapid.Int32().Draw(t, "z"), rapid.Int32().Draw(t, "w"))
		case 6:
			return variant.NewFloat(rapid.Float64Range(-1e9, 1e9).Draw(t, "float"))
		case 7:
			return variant.NewFloat2(rapid.Float64Range(-1e9, 1e9).Draw(t, "x"), rapid.Float64Range(-1e9, 1e9).Draw(t, "y"))
		case 8:
			return variant.NewFloat3(rapid.Float32Range(-1e6, 1e6).Draw(t, "x"), rapid.Float32Range(-1e6, 1e6).Draw(t, "y"),
				rapid.Float32Range(-1e6, 1e6).Draw(t, "z"))
		case 9:
			return variant.NewColor(rapid.Uint8().Draw(t, "r"), rapid.Uint8().Draw(t, "g"),
				rapid.Uint8().Draw(t, "b"), rapid.Uint8().Draw(t, "a"))
		case 10:
			return variant.NewEnum(rapid.Int32Range(0, 100).Draw(t, "vendor"), rapid.Int32Range(0, 100).Draw(t, "type"),
				rapid.Int32().Draw(t, "value"))
		case 11:
			return variant.NewString(rapid.StringMatching(`[ -~]{0,16}`).Draw(t, "string"))
		case 12:
			return variant.NewBytes(rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "bytes"))
		case 13:
			w := rapid.Uint16Range(0, 4).Draw(t, "width")
			h := rapid.Uint16Range(0, 4).Draw(t, "height")
			ch := rapid.Uint8Range(1, 4).Draw(t, "channels")
			pixels := rapid.SliceOfN(rapid.Byte(), int(w)*int(h)*int(ch), int(w)*int(h)*int(ch)).Draw(t, "pixels")
			img, err := variant.NewImage(ch, 0, w, h, pixels)
			if err != nil {
				t.Fatalf("image: %v", err)
			}
			return img
		case 14:
			n := rapid.IntRange(0, 4).Draw(t, "len")
			seq := variant.NewSeq()
			for i := 0; i < n; i++ {
				seq.Append(VariantGen(depth-1).Draw(t, "elem"))
			}
			return seq
		default:
			n := rapid.IntRange(0, 4).Draw(t, "len")
			table := variant.NewTable()
			for i := 0; i < n; i++ {
				key := rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "key")
				table.Put(key, VariantGen(depth-1).Draw(t, "value"))
			}
			return table
		}
	})
}
