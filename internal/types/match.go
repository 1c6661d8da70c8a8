package types

import "github.com/roach88/chainflow/internal/variant"

// Match reports whether a value described by exposed may flow into a slot
// that accepts consumed.
//
// Any always matches. None matches anything except in parameter context,
// where a literal must actually fit the slot. Otherwise kinds must agree,
// and Object and Enum types must agree on (vendor, type); an Enum slot
// with ids (0, 0) accepts any enum.
//
// strict selects whether container element types are checked at all.
// When checked, an unconstrained slot (no element types) accepts anything;
// an unconstrained value (element types unknown) is accepted only outside
// parameter context or by a slot that lists Any.
func Match(exposed, consumed TypeInfo, isParameter, strict bool) bool {
	if consumed.Kind == variant.Any || (!isParameter && consumed.Kind == variant.None) {
		return true
	}
	if exposed.Kind != consumed.Kind {
		return false
	}
	switch exposed.Kind {
	case variant.Enum:
		if consumed.VendorID == 0 && consumed.TypeID == 0 {
			return true
		}
		return exposed.VendorID == consumed.VendorID && exposed.TypeID == consumed.TypeID
	case variant.Object:
		return exposed.VendorID == consumed.VendorID && exposed.TypeID == consumed.TypeID
	case variant.Seq:
		if !strict {
			return true
		}
		return matchElements(exposed.SeqTypes, consumed.SeqTypes, isParameter)
	case variant.ContextVar:
		if !strict {
			return true
		}
		return matchElements(exposed.Types, consumed.Types, isParameter)
	case variant.Table:
		if !strict {
			return true
		}
		return matchTable(exposed, consumed, isParameter)
	}
	return true
}

// MatchAny reports whether exposed matches at least one of consumed.
func MatchAny(exposed TypeInfo, consumed []TypeInfo, isParameter, strict bool) bool {
	for _, c := range consumed {
		if Match(exposed, c, isParameter, strict) {
			return true
		}
	}
	return false
}

func containsAny(ts []TypeInfo) bool {
	for _, t := range ts {
		if t.Kind == variant.Any {
			return true
		}
	}
	return false
}

// matchElements requires every exposed element type to fit some
// consumed element type.
func matchElements(exposed, consumed []TypeInfo, isParameter bool) bool {
	if len(consumed) == 0 {
		return true
	}
	if len(exposed) == 0 {
		return !isParameter || containsAny(consumed)
	}
	for _, e := range exposed {
		if !MatchAny(e, consumed, isParameter, true) {
			return false
		}
	}
	return true
}

// matchTable checks every exposed key/type pair against the consumed
// pairs. Pair order does not matter and repeated keys are tolerated.
func matchTable(exposed, consumed TypeInfo, isParameter bool) bool {
	if len(consumed.Types) == 0 {
		return true
	}
	if len(exposed.Types) == 0 {
		return !isParameter || containsAny(consumed.Types)
	}
	keyedConsumer := len(consumed.Keys) > 0
	keyedValue := len(exposed.Keys) > 0

	if !keyedConsumer {
		return matchElements(exposed.Types, consumed.Types, isParameter)
	}
	if !keyedValue {
		// Keys unknown until runtime.
		return !isParameter
	}
	for i, et := range exposed.Types {
		if i >= len(exposed.Keys) {
			break
		}
		found := false
		for j, ct := range consumed.Types {
			if j < len(consumed.Keys) && consumed.Keys[j] != exposed.Keys[i] && consumed.Keys[j] != "" {
				continue
			}
			if Match(et, ct, isParameter, true) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
