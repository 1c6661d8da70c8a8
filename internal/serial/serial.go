package serial

import (
	"bytes"
	"fmt"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/variant"
)

// Marshal encodes v into a new byte slice.
func Marshal(v *variant.Variant, reg *block.Registry) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, reg).EncodeVariant(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into dst. data must hold exactly one value.
func Unmarshal(data []byte, dst *variant.Variant, reg *block.Registry) error {
	d := NewDecoder(bytes.NewReader(data), reg)
	if err := d.DecodeVariant(dst); err != nil {
		return err
	}
	return checkConsumed(d, len(data))
}

// MarshalChain encodes c's definition and variables. reg encodes object
// variables; it may be nil when the chain holds none.
func MarshalChain(c *engine.Chain, reg *block.Registry) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, reg).EncodeChain(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalChain decodes a chain, creating its blocks from reg.
func UnmarshalChain(data []byte, reg *block.Registry) (*engine.Chain, error) {
	d := NewDecoder(bytes.NewReader(data), reg)
	c, err := d.DecodeChain()
	if err != nil {
		return nil, err
	}
	if err := checkConsumed(d, len(data)); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func checkConsumed(d *Decoder, size int) error {
	if rest := int64(size) - d.BytesRead(); rest > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, rest)
	}
	return nil
}
