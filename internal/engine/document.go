package engine

import (
	"fmt"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/variant"
)

// Document builds the structured representation of the chain's
// definition:
//
//	{name, looped, unsafe, input, blocks: [{name, params: [...]}]}
//
// Chain references inside parameters become {"$chain": name} and block
// references {"$block": name}. Variables and run state are not included.
// The caller owns the returned value.
func (c *Chain) Document() (variant.Variant, error) {
	doc := variant.NewTable()
	doc.Put("name", variant.NewString(c.name))
	doc.Put("looped", variant.NewBool(c.looped))
	doc.Put("unsafe", variant.NewBool(c.unsafe))
	doc.Put("input", variant.NewString(c.inputType.String()))

	blocks := make([]variant.Variant, 0, len(c.blocks))
	for _, b := range c.blocks {
		bd, err := blockDocument(b)
		if err != nil {
			for i := range blocks {
				variant.Destroy(&blocks[i])
			}
			variant.Destroy(&doc)
			return variant.Variant{}, fmt.Errorf("chain %s: %w", c.name, err)
		}
		blocks = append(blocks, bd)
	}
	doc.Put("blocks", variant.NewSeq(blocks...))
	return doc, nil
}

func blockDocument(b block.Block) (variant.Variant, error) {
	params := b.Parameters()
	values := make([]variant.Variant, 0, len(params))
	for i := range params {
		p, err := b.GetParam(i)
		if err != nil {
			for j := range values {
				variant.Destroy(&values[j])
			}
			return variant.Variant{}, fmt.Errorf("block %s: %w", b.Name(), err)
		}
		values = append(values, paramDocument(&p))
	}
	bd := variant.NewTable()
	bd.Put("name", variant.NewString(b.Name()))
	bd.Put("params", variant.NewSeq(values...))
	return bd, nil
}

// paramDocument deep-copies v, replacing chain and block references by
// name tables.
func paramDocument(v *variant.Variant) variant.Variant {
	switch v.Kind() {
	case variant.Chain:
		out := variant.NewTable()
		name := ""
		if ref, ok := v.Ref().(block.ChainRef); ok {
			name = ref.Name()
		}
		out.Put("$chain", variant.NewString(name))
		return out
	case variant.Block:
		out := variant.NewTable()
		name := ""
		if ref, ok := v.Ref().(block.Block); ok {
			name = ref.Name()
		}
		out.Put("$block", variant.NewString(name))
		return out
	case variant.Seq:
		elems := make([]variant.Variant, len(v.Seq()))
		for i := range v.Seq() {
			elems[i] = paramDocument(&v.Seq()[i])
		}
		return variant.NewSeq(elems...)
	case variant.Table:
		out := variant.NewTable()
		v.Map().Range(func(k string, ev *variant.Variant) bool {
			out.Put(k, paramDocument(ev))
			return true
		})
		return out
	}
	return v.Clone()
}

// Hash returns the content hash of the chain's definition.
func (c *Chain) Hash() (string, error) {
	doc, err := c.Document()
	if err != nil {
		return "", err
	}
	defer variant.Destroy(&doc)
	return variant.HashDomain(variant.DomainChain, &doc)
}

// MarshalJSON renders the chain's definition as canonical JSON.
func (c *Chain) MarshalJSON() ([]byte, error) {
	doc, err := c.Document()
	if err != nil {
		return nil, err
	}
	defer variant.Destroy(&doc)
	return variant.MarshalCanonical(&doc)
}
