// Package variant provides the tagged value that flows between blocks.
//
// This package is the foundational layer: every other internal package
// imports variant; variant imports nothing internal.
//
// Ownership rules:
//   - Kinds below EndOfBlittable are flat values and never own memory
//   - String, ContextVar, Bytes, Image, Seq and Table own their backing
//     storage unless the variant is a borrowed view (see Borrow)
//   - Clone deep-copies and may recycle the destination's storage
//   - Destroy releases owned storage recursively and resets to None
//
// The zero Variant is None. Destroy on a zero Variant is a no-op.
package variant
