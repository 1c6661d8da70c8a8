package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/compose"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// ValidationErrors is returned by Build when definitions do not validate.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Build validates defs and instantiates one engine chain per definition,
// keyed by name. Chain references resolve against the other definitions
// first and then against existing. On error nothing built is kept.
func Build(defs []*ChainDef, reg *block.Registry, existing map[string]*engine.Chain) (map[string]*engine.Chain, error) {
	known := make([]string, 0, len(existing))
	for name := range existing {
		known = append(known, name)
	}
	if errs := Validate(defs, reg, known...); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	chains := make(map[string]*engine.Chain, len(defs))
	for _, d := range defs {
		var opts []engine.ChainOption
		opts = append(opts, engine.Looped(d.Looped), engine.Unsafe(d.Unsafe))
		if d.Input != "" {
			t, _ := types.ParseName(d.Input)
			opts = append(opts, engine.WithInputType(t))
		}
		chains[d.Name] = engine.NewChain(d.Name, opts...)
	}
	lookup := func(name string) *engine.Chain {
		if c, ok := chains[name]; ok {
			return c
		}
		return existing[name]
	}

	for _, d := range defs {
		if err := populate(chains[d.Name], d, reg, lookup); err != nil {
			for _, c := range chains {
				c.Destroy()
			}
			return nil, err
		}
	}
	return chains, nil
}

func populate(c *engine.Chain, d *ChainDef, reg *block.Registry, lookup func(string) *engine.Chain) error {
	for i := range d.Variables {
		c.SetVariable(d.Variables[i].Name, &d.Variables[i].Value)
	}
	for i := range d.Blocks {
		b, err := buildBlock(&d.Blocks[i], reg, lookup)
		if err != nil {
			return fmt.Errorf("chain %s: %w", d.Name, err)
		}
		if err := c.AddBlock(b); err != nil {
			b.Destroy()
			return fmt.Errorf("chain %s: %w", d.Name, err)
		}
	}
	return nil
}

func buildBlock(def *BlockDef, reg *block.Registry, lookup func(string) *engine.Chain) (block.Block, error) {
	b, err := reg.Create(def.Name)
	if err != nil {
		return nil, err
	}
	for _, p := range def.Params {
		index, err := ParamIndex(b, p)
		if err != nil {
			b.Destroy()
			return nil, err
		}
		value := p.Value.Borrow()
		if p.ChainRef != "" {
			value = variant.NewChainRef(lookup(p.ChainRef))
		}
		err = compose.SetParam(b, index, &value)
		variant.Destroy(&value)
		if err != nil {
			b.Destroy()
			return nil, err
		}
	}
	return b, nil
}
