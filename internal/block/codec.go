package block

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("block: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// CBORCodec is an ObjectCodec for object types whose state is a plain Go
// struct T; references are *T.
type CBORCodec[T any] struct{}

// Encode serializes a *T to canonical CBOR.
func (CBORCodec[T]) Encode(ref any) ([]byte, error) {
	v, ok := ref.(*T)
	if !ok {
		var zero T
		return nil, fmt.Errorf("cbor codec: expected *%T, got %T", zero, ref)
	}
	return cborEncMode.Marshal(v)
}

// Decode deserializes CBOR bytes into a new *T.
func (CBORCodec[T]) Decode(data []byte) (any, error) {
	var v T
	if err := cbor.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("cbor codec: unmarshal: %w", err)
	}
	return &v, nil
}
