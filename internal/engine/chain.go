package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/compose"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// State is the life-cycle position of a chain.
//
//	Stopped → Prepared → Starting → Iterating ⇄ IterationEnded → Ended | Failed
//
// IterationEnded loops back to Starting for looped chains. Stop returns
// any chain to Stopped.
type State uint8

const (
	Stopped State = iota
	Prepared
	Starting
	Iterating
	IterationEnded
	Ended
	Failed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Prepared:
		return "Prepared"
	case Starting:
		return "Starting"
	case Iterating:
		return "Iterating"
	case IterationEnded:
		return "IterationEnded"
	case Ended:
		return "Ended"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ParseState resolves a state by name.
func ParseState(name string) (State, error) {
	for s := Stopped; s <= Failed; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown chain state %q", name)
}

// Chain is an ordered, owned list of blocks plus chain-local variables.
//
// A chain owns at most one live coroutine. It must not be started,
// ticked or stopped from two goroutines at once; different chains may be
// driven from different goroutines.
type Chain struct {
	name      string
	blocks    []block.Block
	looped    bool
	unsafe    bool
	inputType types.TypeInfo
	variables map[string]*variant.Variant

	composed    *compose.Result
	composedKey string

	state  State
	co     *coroutine
	parent *Chain
	next   time.Duration
	runID  string
	err    error
	stop   atomic.Bool

	rootInput    variant.Variant
	pendingInput variant.Variant
	hasPending   bool
	output       variant.Variant

	// activated holds block indices in first-activation order for the
	// current run; seen mirrors blocks.
	activated []int
	seen      []bool
}

// ChainOption configures a chain at construction.
type ChainOption func(*Chain)

// Looped makes the chain start a new iteration after each one ends.
func Looped(looped bool) ChainOption {
	return func(c *Chain) { c.looped = looped }
}

// Unsafe lets a looped chain iterate without yielding to the host between
// iterations.
func Unsafe(unsafe bool) ChainOption {
	return func(c *Chain) { c.unsafe = unsafe }
}

// WithInputType declares the type of the value the chain is started with.
func WithInputType(t types.TypeInfo) ChainOption {
	return func(c *Chain) { c.inputType = t }
}

// NewChain creates an empty chain.
func NewChain(name string, opts ...ChainOption) *Chain {
	c := &Chain{
		name:      name,
		variables: make(map[string]*variant.Variant),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) Name() string              { return c.name }
func (c *Chain) Looped() bool              { return c.looped }
func (c *Chain) Unsafe() bool              { return c.unsafe }
func (c *Chain) InputType() types.TypeInfo { return c.inputType }
func (c *Chain) State() State              { return c.state }
func (c *Chain) RunID() string             { return c.runID }
func (c *Chain) Composed() *compose.Result { return c.composed }
func (c *Chain) Running() bool             { return c.co != nil }
func (c *Chain) SetLooped(looped bool)     { c.looped = looped }
func (c *Chain) SetUnsafe(unsafe bool)     { c.unsafe = unsafe }

func (c *Chain) SetInputType(t types.TypeInfo) {
	c.inputType = t
	c.invalidate()
}

// Blocks returns the chain's blocks in order. The slice must not be
// modified.
func (c *Chain) Blocks() []block.Block { return c.blocks }

// Err returns the runtime error of the last run, if any.
func (c *Chain) Err() error { return c.err }

// Output returns a view of the last finished iteration's output.
func (c *Chain) Output() variant.Variant { return c.output.Borrow() }

// AddBlock appends b and takes ownership of it.
func (c *Chain) AddBlock(b block.Block) error {
	if c.co != nil {
		return fmt.Errorf("chain %s: cannot add block %s while running", c.name, b.Name())
	}
	c.blocks = append(c.blocks, b)
	c.invalidate()
	return nil
}

// RemoveBlock detaches the block at index i and hands ownership back to
// the caller.
func (c *Chain) RemoveBlock(i int) (block.Block, error) {
	if c.co != nil {
		return nil, fmt.Errorf("chain %s: cannot remove block while running", c.name)
	}
	if i < 0 || i >= len(c.blocks) {
		return nil, fmt.Errorf("chain %s: block index %d out of range", c.name, i)
	}
	b := c.blocks[i]
	c.blocks = slices.Delete(c.blocks, i, i+1)
	c.invalidate()
	return b, nil
}

// invalidate forgets the last composition.
func (c *Chain) invalidate() {
	c.composed = nil
	c.composedKey = ""
}

// Variable returns the chain-local variable, creating a None slot when
// missing. The pointer stays valid until DeleteVariable or Destroy.
func (c *Chain) Variable(name string) *variant.Variant {
	v, ok := c.variables[name]
	if !ok {
		v = &variant.Variant{}
		c.variables[name] = v
	}
	return v
}

// FindVariable looks a chain-local variable up without creating it.
func (c *Chain) FindVariable(name string) (*variant.Variant, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// SetVariable stores a deep copy of value.
func (c *Chain) SetVariable(name string, value *variant.Variant) {
	variant.Clone(c.Variable(name), value)
}

// DeleteVariable destroys and removes a variable.
func (c *Chain) DeleteVariable(name string) {
	if v, ok := c.variables[name]; ok {
		variant.Destroy(v)
		delete(c.variables, name)
	}
}

// Variables returns the chain-local variable names, sorted.
func (c *Chain) Variables() []string {
	names := make([]string, 0, len(c.variables))
	for name := range c.variables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Chain) beginRun() {
	c.err = nil
	c.stop.Store(false)
	c.next = 0
	c.activated = c.activated[:0]
	c.seen = make([]bool, len(c.blocks))
	variant.Destroy(&c.output)
}

// markActivated records block i and reports whether this is its first
// activation since the last cleanup.
func (c *Chain) markActivated(i int) bool {
	if len(c.seen) != len(c.blocks) {
		c.seen = make([]bool, len(c.blocks))
	}
	if c.seen[i] {
		return false
	}
	c.seen[i] = true
	c.activated = append(c.activated, i)
	return true
}

func (c *Chain) forgetActivations() {
	c.activated = c.activated[:0]
	clear(c.seen)
}

// Cleanup runs Cleanup on every block activated since the last cleanup,
// in reverse activation order. A second call without activations in
// between does nothing.
func (c *Chain) Cleanup() {
	for i := len(c.activated) - 1; i >= 0; i-- {
		b := c.blocks[c.activated[i]]
		cleanupBlock(c.name, b)
	}
	c.forgetActivations()
}

func cleanupBlock(chain string, b block.Block) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("block cleanup panicked", "chain", chain, "block", b.Name(), "panic", r)
		}
	}()
	b.Cleanup()
}

// halt drives a live coroutine to completion with the stop flag set.
func (c *Chain) halt() {
	if c.co == nil {
		return
	}
	c.stop.Store(true)
	for !c.co.Done() {
		c.co.Resume()
	}
	c.co = nil
}

// Destroy stops the chain if needed, destroys every block and releases
// all variables. The chain must not be used afterwards.
func (c *Chain) Destroy() {
	c.halt()
	c.Cleanup()
	for _, b := range c.blocks {
		b.Destroy()
	}
	c.blocks = nil
	for name, v := range c.variables {
		variant.Destroy(v)
		delete(c.variables, name)
	}
	variant.Destroy(&c.rootInput)
	variant.Destroy(&c.pendingInput)
	variant.Destroy(&c.output)
	c.invalidate()
	c.state = Stopped
}
