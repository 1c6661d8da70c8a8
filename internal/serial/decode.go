package serial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/compose"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/variant"
)

// maxPrealloc bounds allocations sized by counts read from the stream.
// Larger payloads grow as their contents arrive.
const maxPrealloc = 1 << 16

// Decoder reads the binary format from an io.Reader.
type Decoder struct {
	r       io.Reader
	reg     *block.Registry
	scratch [16]byte
	n       int64
}

// NewDecoder creates a decoder. reg creates blocks and resolves object
// codecs; it may be nil when only plain values are decoded.
func NewDecoder(r io.Reader, reg *block.Registry) *Decoder {
	return &Decoder{r: r, reg: reg}
}

// BytesRead returns the number of bytes consumed so far.
func (d *Decoder) BytesRead() int64 {
	return d.n
}

func (d *Decoder) read(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.n += int64(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated input", ErrCorrupt)
	}
	return err
}

func (d *Decoder) readU8() (uint8, error) {
	if err := d.read(d.scratch[:1]); err != nil {
		return 0, err
	}
	return d.scratch[0], nil
}

func (d *Decoder) readU16() (uint16, error) {
	if err := d.read(d.scratch[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.scratch[:2]), nil
}

func (d *Decoder) readU64() (uint64, error) {
	if err := d.read(d.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(d.scratch[:8]), nil
}

// readBlob reads n bytes without trusting n for the initial allocation.
func (d *Decoder) readBlob(n uint64) ([]byte, error) {
	if n <= maxPrealloc {
		buf := make([]byte, n)
		return buf, d.read(buf)
	}
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, d.r, int64(n))
	d.n += copied
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated input", ErrCorrupt)
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Decoder) readString() (string, error) {
	n, err := d.readU64()
	if err != nil {
		return "", err
	}
	b, err := d.readBlob(n)
	return string(b), err
}

// DecodeVariant reads one value into dst. dst's existing storage is
// reused when the decoded kind matches it.
func (d *Decoder) DecodeVariant(dst *variant.Variant) error {
	tag, err := d.readU8()
	if err != nil {
		return err
	}
	kind := variant.Kind(tag)
	if !kind.Valid() || kind == variant.EndOfBlittable {
		return fmt.Errorf("%w: invalid tag %d", ErrCorrupt, tag)
	}

	switch kind {
	case variant.None:
		variant.Destroy(dst)
		return nil
	case variant.Any:
		variant.Destroy(dst)
		*dst = variant.NewAny()
		return nil
	case variant.Chain, variant.Block:
		return fmt.Errorf("%w: %s value", ErrNotSerializable, kind)
	case variant.Object:
		return d.decodeObject(dst)
	case variant.String, variant.ContextVar, variant.Bytes:
		n, err := d.readU64()
		if err != nil {
			return err
		}
		if n <= maxPrealloc {
			return d.read(dst.MakeBuffer(kind, int(n)))
		}
		blob, err := d.readBlob(n)
		if err != nil {
			return err
		}
		copy(dst.MakeBuffer(kind, len(blob)), blob)
		return nil
	case variant.Image:
		return d.decodeImage(dst)
	case variant.Seq:
		return d.decodeSeq(dst)
	case variant.Table:
		return d.decodeTable(dst)
	}

	p := d.scratch[:kind.PayloadSize()]
	if err := d.read(p); err != nil {
		return err
	}
	return dst.SetPayload(kind, p)
}

func (d *Decoder) decodeImage(dst *variant.Variant) error {
	channels, err := d.readU8()
	if err != nil {
		return err
	}
	flags, err := d.readU8()
	if err != nil {
		return err
	}
	width, err := d.readU16()
	if err != nil {
		return err
	}
	height, err := d.readU16()
	if err != nil {
		return err
	}
	n := uint64(channels) * uint64(width) * uint64(height)
	if n <= maxPrealloc {
		return d.read(dst.MakeImage(channels, flags, width, height))
	}
	pixels, err := d.readBlob(n)
	if err != nil {
		return err
	}
	copy(dst.MakeImage(channels, flags, width, height), pixels)
	return nil
}

func (d *Decoder) decodeSeq(dst *variant.Variant) error {
	n, err := d.readU64()
	if err != nil {
		return err
	}
	elems := dst.MakeSeq(int(min(n, maxPrealloc)))
	for i := range elems {
		if err := d.DecodeVariant(&elems[i]); err != nil {
			return err
		}
	}
	for i := uint64(len(elems)); i < n; i++ {
		var elem variant.Variant
		if err := d.DecodeVariant(&elem); err != nil {
			variant.Destroy(&elem)
			return err
		}
		dst.Append(elem)
	}
	return nil
}

func (d *Decoder) decodeTable(dst *variant.Variant) error {
	n, err := d.readU64()
	if err != nil {
		return err
	}
	m := dst.MakeTable()
	for i := uint64(0); i < n; i++ {
		key, err := d.readString()
		if err != nil {
			return err
		}
		if err := d.DecodeVariant(m.Slot(key)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) decodeObject(dst *variant.Variant) error {
	key, err := d.readU64()
	if err != nil {
		return err
	}
	blobLen, err := d.readU64()
	if err != nil {
		return err
	}
	blob, err := d.readBlob(blobLen)
	if err != nil {
		return err
	}

	vendor, typ := block.SplitTypeKey(int64(key))
	if d.reg == nil {
		return fmt.Errorf("%w: object %d/%d without a registry", ErrNotSerializable, vendor, typ)
	}
	info, ok := d.reg.ObjectType(vendor, typ)
	if !ok || info.Codec == nil {
		return fmt.Errorf("%w: object type %d/%d has no codec", ErrNotSerializable, vendor, typ)
	}
	ref, err := info.Codec.Decode(blob)
	if err != nil {
		return fmt.Errorf("decode object %s: %w", info.Name, err)
	}
	variant.Destroy(dst)
	*dst = variant.NewObject(vendor, typ, ref)
	return nil
}

// DecodeBlock reads a block name, creates the block from the registry
// and replays its parameters through validated SetParam calls.
func (d *Decoder) DecodeBlock() (block.Block, error) {
	name, err := d.readString()
	if err != nil {
		return nil, err
	}
	if d.reg == nil {
		return nil, fmt.Errorf("%w: %q without a registry", ErrUnknownBlock, name)
	}
	b, err := d.reg.Create(name)
	if err != nil {
		return nil, err
	}

	var value variant.Variant
	defer variant.Destroy(&value)
	for i := range b.Parameters() {
		if err := d.DecodeVariant(&value); err != nil {
			b.Destroy()
			return nil, fmt.Errorf("block %s parameter %d: %w", name, i, err)
		}
		if err := compose.SetParam(b, i, &value); err != nil {
			b.Destroy()
			return nil, err
		}
	}
	return b, nil
}

// DecodeChain reads a chain definition with its blocks and variables.
func (d *Decoder) DecodeChain() (*engine.Chain, error) {
	name, err := d.readString()
	if err != nil {
		return nil, err
	}
	looped, err := d.readU8()
	if err != nil {
		return nil, err
	}
	unsafe, err := d.readU8()
	if err != nil {
		return nil, err
	}
	c := engine.NewChain(name, engine.Looped(looped != 0), engine.Unsafe(unsafe != 0))

	count, err := d.readU64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		b, err := d.DecodeBlock()
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("chain %s block %d: %w", name, i, err)
		}
		if err := c.AddBlock(b); err != nil {
			b.Destroy()
			c.Destroy()
			return nil, err
		}
	}

	vars, err := d.readU64()
	if err != nil {
		c.Destroy()
		return nil, err
	}
	for i := uint64(0); i < vars; i++ {
		key, err := d.readString()
		if err == nil {
			err = d.DecodeVariant(c.Variable(key))
		}
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("chain %s variable %d: %w", name, i, err)
		}
	}
	return c, nil
}
