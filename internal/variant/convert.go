package variant

import (
	"fmt"
	"slices"
)

// FromGo converts a plain Go value, as produced by YAML or JSON decoders,
// into an owned variant: integers become Int, floats Float, strings
// String, []byte Bytes, slices Seq and string-keyed maps Table.
func FromGo(x any) (Variant, error) {
	switch val := x.(type) {
	case nil:
		return Variant{}, nil
	case Variant:
		return val.Clone(), nil
	case bool:
		return NewBool(val), nil
	case int:
		return NewInt(int64(val)), nil
	case int8:
		return NewInt(int64(val)), nil
	case int16:
		return NewInt(int64(val)), nil
	case int32:
		return NewInt(int64(val)), nil
	case int64:
		return NewInt(val), nil
	case uint8:
		return NewInt(int64(val)), nil
	case uint16:
		return NewInt(int64(val)), nil
	case uint32:
		return NewInt(int64(val)), nil
	case uint64:
		return NewInt(int64(val)), nil
	case float32:
		return NewFloat(float64(val)), nil
	case float64:
		return NewFloat(val), nil
	case string:
		return NewString(val), nil
	case []byte:
		return NewBytes(val), nil
	case []any:
		out := NewSeq()
		for i, item := range val {
			elem, err := FromGo(item)
			if err != nil {
				Destroy(&out)
				return Variant{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out.Append(elem)
		}
		return out, nil
	case map[string]any:
		out := NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			elem, err := FromGo(val[k])
			if err != nil {
				Destroy(&out)
				return Variant{}, fmt.Errorf("[%q]: %w", k, err)
			}
			out.Put(k, elem)
		}
		return out, nil
	}
	return Variant{}, fmt.Errorf("unsupported Go type %T", x)
}

// ToGo converts v into plain Go values, the inverse of FromGo for the
// kinds FromGo produces. Vectors become slices of their lanes.
func ToGo(v *Variant) any {
	switch v.kind {
	case None:
		return nil
	case Bool:
		return v.Bool()
	case Int:
		return v.Int()
	case Float:
		return v.Float()
	case String, ContextVar:
		return v.Text()
	case Bytes:
		return slices.Clone(v.buf)
	case Seq:
		out := make([]any, len(v.seq))
		for i := range v.seq {
			out[i] = ToGo(&v.seq[i])
		}
		return out
	case Table:
		out := make(map[string]any, v.Len())
		v.table.Range(func(k string, ev *Variant) bool {
			out[k] = ToGo(ev)
			return true
		})
		return out
	}
	if traits, ok := VectorTypeOf(v.kind); ok {
		if traits.IsInteger {
			lanes := make([]any, traits.Dimension)
			for i := range lanes {
				lanes[i] = v.LaneInt(i)
			}
			return lanes
		}
		lanes := make([]any, traits.Dimension)
		for i := range lanes {
			lanes[i] = v.LaneFloat(i)
		}
		return lanes
	}
	return v.String()
}
