// Package serial is the binary codec for variants, blocks and chains.
//
// Every value is a tag byte (the variant Kind) followed by a
// tag-specific payload. All integers are little-endian; lengths and
// counts are uint64.
//
//	fixed kinds   raw payload (Int: 8 bytes, Float3: 12, Color: 4, ...)
//	String/Bytes  len, bytes
//	Seq           count, elements
//	Table         count, (key len, key, value)*
//	Image         channels u8, flags u8, width u16, height u16, pixels
//	Object        id u64 (vendor<<32 | type), blob len, blob
//	Block         name len, name, parameters in declaration order
//	Chain         name len, name, looped u8, unsafe u8,
//	              block count, blocks, variable count, (name, value)*
//
// Chain and Block values, and objects whose type has no registered codec,
// cannot be encoded and fail with ErrNotSerializable.
package serial
