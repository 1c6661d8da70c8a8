package serial

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/variant"
)

// Encoder writes the binary format to an io.Writer.
type Encoder struct {
	w       io.Writer
	reg     *block.Registry
	scratch [8]byte
	n       int64
}

// NewEncoder creates an encoder. reg resolves object codecs and may be
// nil when no objects are encoded.
func NewEncoder(w io.Writer, reg *block.Registry) *Encoder {
	return &Encoder{w: w, reg: reg}
}

// Written returns the number of bytes written so far.
func (e *Encoder) Written() int64 {
	return e.n
}

func (e *Encoder) write(p []byte) error {
	n, err := e.w.Write(p)
	e.n += int64(n)
	return err
}

func (e *Encoder) writeU8(x uint8) error {
	e.scratch[0] = x
	return e.write(e.scratch[:1])
}

func (e *Encoder) writeU16(x uint16) error {
	binary.LittleEndian.PutUint16(e.scratch[:2], x)
	return e.write(e.scratch[:2])
}

func (e *Encoder) writeU64(x uint64) error {
	binary.LittleEndian.PutUint64(e.scratch[:8], x)
	return e.write(e.scratch[:8])
}

func (e *Encoder) writeBytes(p []byte) error {
	if err := e.writeU64(uint64(len(p))); err != nil {
		return err
	}
	return e.write(p)
}

func (e *Encoder) writeString(s string) error {
	if err := e.writeU64(uint64(len(s))); err != nil {
		return err
	}
	return e.write([]byte(s))
}

// EncodeVariant writes v.
func (e *Encoder) EncodeVariant(v *variant.Variant) error {
	kind := v.Kind()
	switch kind {
	case variant.Chain, variant.Block:
		return fmt.Errorf("%w: %s value", ErrNotSerializable, kind)
	}
	if err := e.writeU8(uint8(kind)); err != nil {
		return err
	}

	switch kind {
	case variant.None, variant.Any:
		return nil
	case variant.Object:
		return e.encodeObject(v)
	case variant.String, variant.ContextVar, variant.Bytes:
		return e.writeBytes(v.Bytes())
	case variant.Image:
		info := v.Image()
		if err := e.writeU8(info.Channels); err != nil {
			return err
		}
		if err := e.writeU8(info.Flags); err != nil {
			return err
		}
		if err := e.writeU16(info.Width); err != nil {
			return err
		}
		if err := e.writeU16(info.Height); err != nil {
			return err
		}
		return e.write(v.Bytes())
	case variant.Seq:
		elems := v.Seq()
		if err := e.writeU64(uint64(len(elems))); err != nil {
			return err
		}
		for i := range elems {
			if err := e.EncodeVariant(&elems[i]); err != nil {
				return err
			}
		}
		return nil
	case variant.Table:
		m := v.Map()
		if err := e.writeU64(uint64(m.Len())); err != nil {
			return err
		}
		var err error
		m.Range(func(key string, val *variant.Variant) bool {
			if err = e.writeString(key); err != nil {
				return false
			}
			err = e.EncodeVariant(val)
			return err == nil
		})
		return err
	}
	return e.write(v.Payload())
}

func (e *Encoder) encodeObject(v *variant.Variant) error {
	vendor, typ := v.TypeID()
	if e.reg == nil {
		return fmt.Errorf("%w: object %d/%d without a registry", ErrNotSerializable, vendor, typ)
	}
	info, ok := e.reg.ObjectType(vendor, typ)
	if !ok {
		return fmt.Errorf("%w: object type %d/%d is not registered", ErrNotSerializable, vendor, typ)
	}
	if err := e.writeU64(uint64(block.TypeKey(vendor, typ))); err != nil {
		return err
	}
	if info.Codec == nil {
		return e.writeU64(0)
	}
	blob, err := info.Codec.Encode(v.Ref())
	if err != nil {
		return fmt.Errorf("encode object %s: %w", info.Name, err)
	}
	return e.writeBytes(blob)
}

// EncodeBlock writes b's name and its parameters in declaration order.
func (e *Encoder) EncodeBlock(b block.Block) error {
	if err := e.writeString(b.Name()); err != nil {
		return err
	}
	for i := range b.Parameters() {
		p, err := b.GetParam(i)
		if err != nil {
			return fmt.Errorf("block %s: %w", b.Name(), err)
		}
		if err := e.EncodeVariant(&p); err != nil {
			return fmt.Errorf("block %s parameter %d: %w", b.Name(), i, err)
		}
	}
	return nil
}

// EncodeChain writes c's definition and its variables, sorted by name.
func (e *Encoder) EncodeChain(c *engine.Chain) error {
	if err := e.writeString(c.Name()); err != nil {
		return err
	}
	if err := e.writeU8(boolByte(c.Looped())); err != nil {
		return err
	}
	if err := e.writeU8(boolByte(c.Unsafe())); err != nil {
		return err
	}
	blocks := c.Blocks()
	if err := e.writeU64(uint64(len(blocks))); err != nil {
		return err
	}
	for _, b := range blocks {
		if err := e.EncodeBlock(b); err != nil {
			return fmt.Errorf("chain %s: %w", c.Name(), err)
		}
	}
	names := c.Variables()
	if err := e.writeU64(uint64(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		v, _ := c.FindVariable(name)
		if err := e.writeString(name); err != nil {
			return err
		}
		if err := e.EncodeVariant(v); err != nil {
			return fmt.Errorf("chain %s variable %s: %w", c.Name(), name, err)
		}
	}
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
