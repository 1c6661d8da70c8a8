package variant

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the structured external representation of v:
// a JSON object with a "type" field naming the kind and kind-specific
// fields, written in RFC 8785 canonical form.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings and table keys are NFC normalized
//  4. NaN and infinities are rejected
//
// Objects, chains and blocks are described but cannot be parsed back.
func MarshalCanonical(v *Variant) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler using the canonical form.
func (v Variant) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(&v)
}

type field struct {
	key string
	val []byte
}

func writeCanonical(buf *bytes.Buffer, v *Variant) error {
	fields := []field{{"type", quote(v.kind.String())}}
	add := func(key string, val []byte) {
		fields = append(fields, field{key, val})
	}

	switch v.kind {
	case None, Any:
	case Bool:
		add("value", []byte(strconv.FormatBool(v.Bool())))
	case Int:
		add("value", []byte(strconv.FormatInt(v.Int(), 10)))
	case Float:
		f, err := formatFloat(v.Float(), 64)
		if err != nil {
			return err
		}
		add("value", f)
	case Int2, Int3, Int4, Int8, Int16, Float2, Float3, Float4, Color:
		lanes, err := formatLanes(v)
		if err != nil {
			return err
		}
		add("value", lanes)
	case Enum:
		vendor, typ, value := v.Enum()
		add("vendor", []byte(strconv.FormatInt(int64(vendor), 10)))
		add("typeid", []byte(strconv.FormatInt(int64(typ), 10)))
		add("value", []byte(strconv.FormatInt(int64(value), 10)))
	case Object:
		vendor, typ := v.TypeID()
		add("vendor", []byte(strconv.FormatInt(int64(vendor), 10)))
		add("typeid", []byte(strconv.FormatInt(int64(typ), 10)))
	case Chain, Block:
		if n, ok := v.ref.(interface{ Name() string }); ok {
			add("name", quote(n.Name()))
		}
	case String, ContextVar:
		add("value", quote(v.Text()))
	case Bytes:
		add("value", quote(base64.StdEncoding.EncodeToString(v.buf)))
	case Image:
		info := v.Image()
		add("channels", []byte(strconv.Itoa(int(info.Channels))))
		add("flags", []byte(strconv.Itoa(int(info.Flags))))
		add("width", []byte(strconv.Itoa(int(info.Width))))
		add("height", []byte(strconv.Itoa(int(info.Height))))
		add("value", quote(base64.StdEncoding.EncodeToString(v.buf)))
	case Seq:
		var arr bytes.Buffer
		arr.WriteByte('[')
		for i := range v.seq {
			if i > 0 {
				arr.WriteByte(',')
			}
			if err := writeCanonical(&arr, &v.seq[i]); err != nil {
				return fmt.Errorf("seq[%d]: %w", i, err)
			}
		}
		arr.WriteByte(']')
		add("value", arr.Bytes())
	case Table:
		var entries []field
		var err error
		v.table.Range(func(k string, ev *Variant) bool {
			var eb bytes.Buffer
			if err = writeCanonical(&eb, ev); err != nil {
				err = fmt.Errorf("table[%q]: %w", k, err)
				return false
			}
			entries = append(entries, field{norm.NFC.String(k), eb.Bytes()})
			return true
		})
		if err != nil {
			return err
		}
		var obj bytes.Buffer
		writeObject(&obj, entries)
		add("value", obj.Bytes())
	default:
		return fmt.Errorf("unsupported kind for canonical JSON: %s", v.kind)
	}

	writeObject(buf, fields)
	return nil
}

func writeObject(buf *bytes.Buffer, fields []field) {
	slices.SortFunc(fields, func(a, b field) int {
		return compareKeysUTF16(a.key, b.key)
	})
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(quote(f.key))
		buf.WriteByte(':')
		buf.Write(f.val)
	}
	buf.WriteByte('}')
}

// quote produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; the
// encoder's escaping of U+2028 and U+2029 is undone.
func quote(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string never fails.
	_ = enc.Encode(norm.NFC.String(s))
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return unescapeLineSeparators(out)
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into the
// literal characters unless the backslash itself is escaped.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && string(data[i+1:i+5]) == "u202" &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

func formatFloat(f float64, bits int) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v has no canonical form", f)
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, bits)), nil
}

func formatLanes(v *Variant) ([]byte, error) {
	traits, _ := VectorTypeOf(v.kind)
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < traits.Dimension; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if traits.IsInteger {
			buf.WriteString(strconv.FormatInt(v.LaneInt(i), 10))
			continue
		}
		bits := 64
		if traits.NumberType == Float32Number {
			bits = 32
		}
		f, err := formatFloat(v.LaneFloat(i), bits)
		if err != nil {
			return nil, err
		}
		buf.Write(f)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// ParseCanonical decodes the structured representation produced by
// MarshalCanonical. The returned variant is owned by the caller.
func ParseCanonical(data []byte) (Variant, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Variant{}, fmt.Errorf("parse variant: %w", err)
	}
	return FromDocument(doc)
}

// UnmarshalJSON implements json.Unmarshaler for the canonical form.
func (v *Variant) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCanonical(data)
	if err != nil {
		return err
	}
	Destroy(v)
	*v = parsed
	return nil
}

// FromDocument builds a variant from a decoded canonical document
// (map[string]any with json.Number or native numbers).
func FromDocument(doc any) (Variant, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return Variant{}, fmt.Errorf("variant document must be an object, got %T", doc)
	}
	name, ok := obj["type"].(string)
	if !ok {
		return Variant{}, fmt.Errorf("variant document missing \"type\"")
	}
	kind, err := ParseKind(name)
	if err != nil {
		return Variant{}, err
	}
	value := obj["value"]

	switch kind {
	case None:
		return Variant{}, nil
	case Any:
		return NewAny(), nil
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return Variant{}, fmt.Errorf("Bool value must be a boolean")
		}
		return NewBool(b), nil
	case Int:
		n, err := docInt(value)
		if err != nil {
			return Variant{}, fmt.Errorf("Int value: %w", err)
		}
		return NewInt(n), nil
	case Float:
		f, err := docFloat(value)
		if err != nil {
			return Variant{}, fmt.Errorf("Float value: %w", err)
		}
		return NewFloat(f), nil
	case Int2, Int3, Int4, Int8, Int16, Float2, Float3, Float4, Color:
		return parseLanes(kind, value)
	case Enum:
		vendor, err1 := docInt(obj["vendor"])
		typ, err2 := docInt(obj["typeid"])
		n, err3 := docInt(value)
		if err1 != nil || err2 != nil || err3 != nil {
			return Variant{}, fmt.Errorf("Enum requires integer vendor, typeid and value")
		}
		return NewEnum(int32(vendor), int32(typ), int32(n)), nil
	case Object:
		vendor, err1 := docInt(obj["vendor"])
		typ, err2 := docInt(obj["typeid"])
		if err1 != nil || err2 != nil {
			return Variant{}, fmt.Errorf("Object requires integer vendor and typeid")
		}
		return NewObject(int32(vendor), int32(typ), nil), nil
	case String, ContextVar:
		s, ok := value.(string)
		if !ok {
			return Variant{}, fmt.Errorf("%s value must be a string", kind)
		}
		if kind == String {
			return NewString(s), nil
		}
		return NewContextVar(s), nil
	case Bytes:
		b, err := docBase64(value)
		if err != nil {
			return Variant{}, err
		}
		return NewBytes(b), nil
	case Image:
		pixels, err := docBase64(value)
		if err != nil {
			return Variant{}, err
		}
		ch, _ := docInt(obj["channels"])
		flags, _ := docInt(obj["flags"])
		w, _ := docInt(obj["width"])
		h, _ := docInt(obj["height"])
		return NewImage(uint8(ch), uint8(flags), uint16(w), uint16(h), pixels)
	case Seq:
		items, ok := value.([]any)
		if !ok {
			return Variant{}, fmt.Errorf("Seq value must be an array")
		}
		out := NewSeq()
		for i, item := range items {
			elem, err := FromDocument(item)
			if err != nil {
				Destroy(&out)
				return Variant{}, fmt.Errorf("seq[%d]: %w", i, err)
			}
			out.Append(elem)
		}
		return out, nil
	case Table:
		entries, ok := value.(map[string]any)
		if !ok {
			return Variant{}, fmt.Errorf("Table value must be an object")
		}
		out := NewTable()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysUTF16)
		for _, k := range keys {
			elem, err := FromDocument(entries[k])
			if err != nil {
				Destroy(&out)
				return Variant{}, fmt.Errorf("table[%q]: %w", k, err)
			}
			out.Put(k, elem)
		}
		return out, nil
	}
	return Variant{}, fmt.Errorf("%s values cannot be parsed from a document", kind)
}

func parseLanes(kind Kind, value any) (Variant, error) {
	traits, _ := VectorTypeOf(kind)
	items, ok := value.([]any)
	if !ok || len(items) != traits.Dimension {
		return Variant{}, fmt.Errorf("%s value must be an array of %d numbers", kind, traits.Dimension)
	}
	out := Variant{kind: kind}
	for i, item := range items {
		if traits.IsInteger {
			n, err := docInt(item)
			if err != nil {
				return Variant{}, fmt.Errorf("%s lane %d: %w", kind, i, err)
			}
			out.SetLaneInt(i, n)
			continue
		}
		f, err := docFloat(item)
		if err != nil {
			return Variant{}, fmt.Errorf("%s lane %d: %w", kind, i, err)
		}
		out.SetLaneFloat(i, f)
	}
	return out, nil
}

func docInt(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func docFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func docBase64(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected base64 string, got %T", v)
	}
	return base64.StdEncoding.DecodeString(s)
}
