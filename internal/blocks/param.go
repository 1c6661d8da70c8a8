package blocks

import (
	"fmt"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/variant"
)

// paramVar holds a parameter that is either a literal or a ContextVar
// naming a variable looked up on first use in each run.
type paramVar struct {
	value  variant.Variant
	target *variant.Variant
}

func (p *paramVar) set(v *variant.Variant) {
	variant.Clone(&p.value, v)
	p.target = nil
}

func (p *paramVar) view() variant.Variant {
	return p.value.Borrow()
}

func (p *paramVar) isVariable() bool {
	return p.value.Kind() == variant.ContextVar
}

func (p *paramVar) variableName() string {
	return p.value.Text()
}

func (p *paramVar) get(ctx block.Context) *variant.Variant {
	if !p.isVariable() {
		return &p.value
	}
	if p.target == nil {
		p.target = ctx.Variable(p.variableName())
	}
	return p.target
}

func (p *paramVar) cleanup() {
	p.target = nil
}

func (p *paramVar) destroy() {
	variant.Destroy(&p.value)
	p.target = nil
}

func badIndex(index int) error {
	return fmt.Errorf("%w %d", block.ErrInvalidParameterIndex, index)
}
