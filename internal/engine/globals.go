package engine

import (
	"slices"
	"sync"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// Globals holds process-wide variables shared by every chain an engine
// runs.
//
// The mutex only protects the name table. Values themselves are guarded
// by convention: a chain writing a global owns it between ticks, and
// hosts ticking chains from several goroutines must serialize access to
// shared globals themselves.
type Globals struct {
	mu   sync.Mutex
	vars map[string]*variant.Variant
}

// NewGlobals creates an empty variable set.
func NewGlobals() *Globals {
	return &Globals{vars: make(map[string]*variant.Variant)}
}

// Variable returns the named variable, creating a None slot when missing.
// The returned pointer stays valid until Delete or Destroy.
func (g *Globals) Variable(name string) *variant.Variant {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.vars[name]
	if !ok {
		v = &variant.Variant{}
		g.vars[name] = v
	}
	return v
}

// Find looks a variable up without creating it.
func (g *Globals) Find(name string) (*variant.Variant, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.vars[name]
	return v, ok
}

// Set stores a deep copy of value under name.
func (g *Globals) Set(name string, value *variant.Variant) {
	variant.Clone(g.Variable(name), value)
}

// Delete destroys and removes the named variable.
func (g *Globals) Delete(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.vars[name]; ok {
		variant.Destroy(v)
		delete(g.vars, name)
	}
}

// Names returns the variable names, sorted.
func (g *Globals) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.vars))
	for name := range g.vars {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Exposed describes the current globals for composition.
func (g *Globals) Exposed() map[string][]block.ExposedInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string][]block.ExposedInfo, len(g.vars))
	for name, v := range g.vars {
		if v.IsNone() {
			continue
		}
		out[name] = []block.ExposedInfo{{Name: name, Type: types.Derive(v), Mutable: true, Global: true}}
	}
	return out
}

// Destroy releases every variable.
func (g *Globals) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, v := range g.vars {
		variant.Destroy(v)
		delete(g.vars, name)
	}
}
