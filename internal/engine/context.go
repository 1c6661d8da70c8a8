package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// runContext is the block.Context of one run of a root chain. It lives on
// the root chain's coroutine and is shared by every sub-chain run inline.
type runContext struct {
	engine  *Engine
	root    *Chain
	current *Chain
	block   string
	co      *coroutine
	quota   *QuotaEnforcer
	logger  *slog.Logger

	// inline lists sub-chains run during this run, in first-run order.
	inline []*Chain
	// activations lists every block of the root and its sub-chains in
	// first-activation order across the whole run.
	activations []activation
}

type activation struct {
	chain *Chain
	index int
}

func (x *runContext) markActivated(c *Chain, i int) {
	if c.markActivated(i) {
		x.activations = append(x.activations, activation{chain: c, index: i})
	}
}

// cleanup runs Cleanup on every block activated during the run, in reverse
// activation order, interleaving sub-chain blocks with their callers.
func (x *runContext) cleanup() {
	for i := len(x.activations) - 1; i >= 0; i-- {
		a := x.activations[i]
		cleanupBlock(a.chain.name, a.chain.blocks[a.index])
	}
	x.activations = x.activations[:0]
	x.root.forgetActivations()
	for _, c := range x.inline {
		c.forgetActivations()
	}
}

func newRunContext(e *Engine, c *Chain, co *coroutine) *runContext {
	return &runContext{
		engine:  e,
		root:    c,
		current: c,
		co:      co,
		quota:   NewQuotaEnforcer(e.maxRestarts),
		logger:  slog.Default().With("chain", c.name, "run_id", c.runID),
	}
}

var _ block.Context = (*runContext)(nil)

func (x *runContext) ChainName() string    { return x.current.name }
func (x *runContext) RunID() string        { return x.root.runID }
func (x *runContext) Stopped() bool        { return x.root.stop.Load() }
func (x *runContext) Err() error           { return x.root.err }
func (x *runContext) Logger() *slog.Logger { return x.logger }

// Suspend records the wake time on the root chain and yields to the host.
// A resume before the wake time yields again.
func (x *runContext) Suspend(seconds float64) block.Signal {
	if x.Stopped() {
		return block.Stop
	}
	wake := x.engine.clock.Now() + secondsToDuration(seconds)
	for {
		x.yield(wake)
		if x.Stopped() {
			return block.Stop
		}
		if x.engine.clock.Now() >= wake {
			return block.Continue
		}
	}
}

func (x *runContext) yield(wake time.Duration) {
	x.root.next = wake
	x.quota.Reset()
	x.co.Yield()
}

// Fail records err as the run's error. The first error wins; later ones
// are logged only.
func (x *runContext) Fail(err error) {
	if err == nil {
		return
	}
	var re *RuntimeError
	if !errors.As(err, &re) {
		err = NewBlockError(x.current.name, x.block, err)
	}
	if x.root.err != nil {
		x.logger.Warn("additional chain error", "block", x.block, "error", err)
		return
	}
	x.root.err = err
	if x.current != x.root {
		x.current.err = err
	}
	x.logger.Warn("chain error", "block", x.block, "error", err)
}

// Variable searches the current chain, then its callers, then globals.
// A missing variable is created in the current chain.
func (x *runContext) Variable(name string) *variant.Variant {
	if v, ok := x.FindVariable(name); ok {
		return v
	}
	return x.current.Variable(name)
}

func (x *runContext) FindVariable(name string) (*variant.Variant, bool) {
	for c := x.current; c != nil; c = c.parent {
		if v, ok := c.variables[name]; ok {
			return v, true
		}
	}
	return x.engine.globals.Find(name)
}

func (x *runContext) GlobalVariable(name string) *variant.Variant {
	return x.engine.globals.Variable(name)
}

// activate runs one block, converting a panic into a failure.
func (x *runContext) activate(b block.Block, input *variant.Variant) (res block.Result) {
	prev := x.block
	x.block = b.Name()
	defer func() {
		if r := recover(); r != nil {
			x.Fail(NewPanicError(x.current.name, b.Name(), r))
			res = block.Control(block.Stop)
		}
		x.block = prev
	}()
	return b.Activate(x, input)
}

// RunChain runs child inline on the caller's coroutine with input as its
// chain input. A Stop inside the child, including a failure, stops the
// caller too.
func (x *runContext) RunChain(ref block.ChainRef, input *variant.Variant) block.Result {
	child, ok := ref.(*Chain)
	if !ok {
		x.Fail(fmt.Errorf("cannot run chain %q: not created by this engine", ref.Name()))
		return block.Control(block.Stop)
	}
	for c := x.current; c != nil; c = c.parent {
		if c == child {
			x.Fail(NewCycleError(child.name))
			return block.Control(block.Stop)
		}
	}
	if child.co != nil {
		x.Fail(&RuntimeError{Code: ErrCodeChainRunning, Message: "chain is running on its own coroutine", Chain: child.name})
		return block.Control(block.Stop)
	}
	if child.composed == nil {
		inType := child.inputType
		if inType.Kind == variant.None {
			inType = types.Derive(input)
		}
		if _, err := x.engine.Compose(child, inType); err != nil {
			x.Fail(err)
			return block.Control(block.Stop)
		}
	}

	prev := x.current
	child.parent = prev
	child.runID = x.root.runID
	child.err = nil
	x.current = child
	defer func() {
		x.current = prev
		child.parent = nil
	}()
	if !slices.Contains(x.inline, child) {
		x.inline = append(x.inline, child)
	}

	child.state = Iterating
	for {
		flow, out := x.engine.activateBlocks(x, child, input)
		switch flow {
		case flowRestarting:
			if err := x.quota.Check(child.name); err != nil {
				x.Fail(&RuntimeError{Code: ErrCodeQuotaExceeded, Chain: child.name, Err: err})
				child.state = Failed
				return block.Control(block.Stop)
			}
			continue
		case flowStopping:
			variant.Clone(&child.output, &out)
			if x.root.err != nil {
				child.state = Failed
			} else {
				child.state = Ended
			}
			return block.Control(block.Stop)
		}
		variant.Clone(&child.output, &out)
		child.state = Ended
		return block.Output(child.output.Borrow())
	}
}
