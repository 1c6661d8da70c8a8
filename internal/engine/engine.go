package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/compose"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// DefaultTickInterval is the host loop cadence used by Run.
const DefaultTickInterval = time.Second / 60

// Engine composes, starts, ticks and stops chains.
//
// Thread-safety model:
//   - Schedule(): safe from any goroutine
//   - Start/Tick/Stop on one chain: never concurrently
//   - Run()/TickAll(): from exactly one goroutine
type Engine struct {
	registry     *block.Registry
	globals      *Globals
	clock        Clock
	runIDs       RunIDGenerator
	maxRestarts  int
	tickInterval time.Duration
	exitWhenIdle bool

	queue     *requestQueue
	scheduled []*Chain
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithRegistry sets the registry used for run-loop and exit callbacks.
func WithRegistry(r *block.Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithGlobals shares a global variable set between engines.
func WithGlobals(g *Globals) EngineOption {
	return func(e *Engine) { e.globals = g }
}

// WithClock replaces the monotonic clock, e.g. with a manual test clock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithRunIDGenerator sets the generator for run ids.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) { e.runIDs = g }
}

// WithMaxRestarts sets the restart quota per resume.
//
// Default: 1000 (DefaultMaxRestarts). Zero disables the quota.
func WithMaxRestarts(n int) EngineOption {
	return func(e *Engine) { e.maxRestarts = n }
}

// WithTickInterval sets the Run loop cadence.
func WithTickInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithExitWhenIdle makes Run return once no chain is running and no
// start request is pending.
func WithExitWhenIdle(exit bool) EngineOption {
	return func(e *Engine) { e.exitWhenIdle = exit }
}

// New creates an Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		registry:     block.NewRegistry(),
		globals:      NewGlobals(),
		clock:        NewMonotonicClock(),
		runIDs:       UUIDv7Generator{},
		maxRestarts:  DefaultMaxRestarts,
		tickInterval: DefaultTickInterval,
		queue:        newRequestQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *block.Registry { return e.registry }
func (e *Engine) Globals() *Globals         { return e.globals }
func (e *Engine) Clock() Clock              { return e.clock }

// Compose validates c's block list against input and records the result
// on the chain. Globals and the chain's existing variables are visible to
// the blocks' required variables; variables holding None are not.
func (e *Engine) Compose(c *Chain, input types.TypeInfo) (*compose.Result, error) {
	consumables := e.consumables(c)
	res, err := compose.ValidateConnections(c.blocks, input, compose.Options{
		ChainName:   c.name,
		Consumables: consumables,
	})
	if err != nil {
		c.invalidate()
		return res, &RuntimeError{Code: ErrCodeComposeFailed, Chain: c.name, Err: err}
	}
	c.composed = res
	c.composedKey = composeKey(c, input, consumables)
	return res, nil
}

func (e *Engine) consumables(c *Chain) map[string][]block.ExposedInfo {
	consumables := e.globals.Exposed()
	for _, name := range c.Variables() {
		if c.variables[name].IsNone() {
			continue
		}
		consumables[name] = append(consumables[name], block.ExposedInfo{
			Name:    name,
			Type:    types.Derive(c.variables[name]),
			Mutable: true,
		})
	}
	return consumables
}

// composeKey identifies a composition by definition, input type and the
// types of the variables visible to it. An empty key never matches, so
// chains that cannot be hashed are recomposed on every start.
func composeKey(c *Chain, input types.TypeInfo, consumables map[string][]block.ExposedInfo) string {
	h, err := c.Hash()
	if err != nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(h)
	sb.WriteString("|")
	sb.WriteString(input.String())
	for _, name := range slices.Sorted(maps.Keys(consumables)) {
		for _, info := range consumables[name] {
			fmt.Fprintf(&sb, "|%s:%s:%t:%t", name, info.Type, info.Mutable, info.Global)
		}
	}
	return sb.String()
}

func (e *Engine) ensureComposed(c *Chain, input types.TypeInfo) error {
	if c.composed != nil {
		if key := composeKey(c, input, e.consumables(c)); key != "" && key == c.composedKey {
			return nil
		}
	}
	_, err := e.Compose(c, input)
	return err
}

// Start composes c if its definition changed, attaches a coroutine and
// runs the chain until it first suspends or finishes. input may be nil.
func (e *Engine) Start(c *Chain, input *variant.Variant) error {
	if c.co != nil {
		return &RuntimeError{Code: ErrCodeChainRunning, Message: "chain already started", Chain: c.name}
	}

	inType := c.inputType
	if inType.Kind == variant.None && input != nil {
		inType = types.Derive(input)
	}
	if err := e.ensureComposed(c, inType); err != nil {
		c.state = Failed
		c.err = err
		slog.Warn("chain composition failed", "chain", c.name, "error", err)
		return err
	}

	c.beginRun()
	if input != nil {
		variant.Clone(&c.rootInput, input)
	} else {
		variant.Destroy(&c.rootInput)
	}
	c.runID = e.runIDs.Generate()
	c.state = Prepared
	c.co = newCoroutine(func(co *coroutine) { e.run(c, co) })

	slog.Info("chain started", "chain", c.name, "run_id", c.runID, "looped", c.looped)
	e.resume(c)
	return nil
}

// Tick resumes c if its wake time has passed. A non-nil input replaces
// the chain input from the next iteration on. Tick reports whether the
// chain is still running afterwards.
func (e *Engine) Tick(c *Chain, input *variant.Variant) bool {
	if c.co == nil {
		return false
	}
	if input != nil {
		variant.Clone(&c.pendingInput, input)
		c.hasPending = true
	}
	if e.clock.Now() < c.next {
		return true
	}
	e.resume(c)
	return c.co != nil
}

func (e *Engine) resume(c *Chain) {
	c.co.Resume()
	if c.co.Done() {
		c.co = nil
		slog.Info("chain finished", "chain", c.name, "run_id", c.runID, "state", c.state.String())
	}
}

// Stop cancels c. A suspended chain is resumed so that it unwinds; every
// block activated during the run is cleaned up exactly once. Stop returns
// a view of the last finished output and the run's error, and leaves the
// chain Stopped.
func (e *Engine) Stop(c *Chain) (variant.Variant, error) {
	if c.co != nil {
		c.halt()
		slog.Info("chain stopped", "chain", c.name, "run_id", c.runID)
	}
	c.state = Stopped
	return c.output.Borrow(), c.err
}

// run is the coroutine body of a root chain.
func (e *Engine) run(c *Chain, co *coroutine) {
	x := newRunContext(e, c, co)
	defer func() {
		if r := recover(); r != nil {
			x.Fail(NewPanicError(c.name, x.block, r))
			c.state = Failed
		}
		x.cleanup()
	}()

	if !e.warmup(x, c) {
		c.state = Failed
		return
	}

	for {
		c.state = Starting
		if c.hasPending {
			variant.Clone(&c.rootInput, &c.pendingInput)
			c.hasPending = false
		}
		c.state = Iterating

		flow, out := e.activateBlocks(x, c, &c.rootInput)
		switch flow {
		case flowRestarting:
			if err := x.quota.Check(c.name); err != nil {
				x.Fail(&RuntimeError{Code: ErrCodeQuotaExceeded, Chain: c.name, Err: err})
				c.state = Failed
				return
			}
			continue
		case flowStopping:
			variant.Clone(&c.output, &out)
			if c.err != nil {
				c.state = Failed
			} else {
				c.state = Ended
			}
			return
		}

		variant.Clone(&c.output, &out)
		if flow == flowReturning || !c.looped {
			c.state = Ended
			return
		}
		c.state = IterationEnded
		if !c.unsafe {
			x.yield(e.clock.Now())
		}
		if x.Stopped() {
			c.state = Ended
			return
		}
	}
}

func (e *Engine) warmup(x *runContext, c *Chain) (ok bool) {
	for _, b := range c.blocks {
		w, isWarmer := b.(block.Warmer)
		if !isWarmer {
			continue
		}
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = NewPanicError(c.name, b.Name(), r)
				}
			}()
			return w.Warmup(x)
		}()
		if err != nil {
			x.block = b.Name()
			x.Fail(&RuntimeError{Code: ErrCodeWarmupFailed, Chain: c.name, Block: b.Name(), Err: err})
			return false
		}
	}
	return true
}

type flowState uint8

const (
	flowContinuing flowState = iota
	flowStopping
	flowReturning
	flowRestarting
)

// activateBlocks feeds chainInput through c's blocks. It returns how the
// pass ended and a view of the pass output: the last block's output, or
// for Stop, Restart and Return the value that flowed into the block that
// raised the signal.
func (e *Engine) activateBlocks(x *runContext, c *Chain, chainInput *variant.Variant) (flowState, variant.Variant) {
	input := chainInput.Borrow()
	for i, b := range c.blocks {
		if x.Stopped() {
			return flowStopping, input
		}
		x.markActivated(c, i)
		res := x.activate(b, &input)
		switch res.Signal {
		case block.Continue:
			input = res.Value
		case block.Stop:
			return flowStopping, input
		case block.Restart:
			return flowRestarting, input
		case block.Return:
			return flowReturning, input
		case block.Rebase:
			input = chainInput.Borrow()
		}
	}
	return flowContinuing, input
}

// Schedule queues c to be started by the host loop with a copy of input.
// Safe from any goroutine. Returns false after Shutdown.
func (e *Engine) Schedule(c *Chain, input *variant.Variant) bool {
	r := request{chain: c}
	if input != nil {
		variant.Clone(&r.input, input)
	}
	if !e.queue.Enqueue(r) {
		variant.Destroy(&r.input)
		return false
	}
	return true
}

// Scheduled returns the chains the host loop is currently ticking.
func (e *Engine) Scheduled() []*Chain {
	return append([]*Chain(nil), e.scheduled...)
}

// TickAll starts queued chains, runs the registry's run-loop callbacks and
// ticks every scheduled chain once. Chains that finish are dropped from
// the schedule. It returns how many chains are still running.
//
// ERROR HANDLING: start failures are logged and the request dropped; one
// chain's failure never affects another.
func (e *Engine) TickAll() int {
	for {
		r, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		err := e.Start(r.chain, &r.input)
		variant.Destroy(&r.input)
		if err != nil {
			slog.Error("scheduled chain failed to start", "chain", r.chain.name, "error", err)
			continue
		}
		if r.chain.co != nil {
			e.scheduled = append(e.scheduled, r.chain)
		}
	}

	for _, fn := range e.registry.RunLoopCallbacks() {
		fn()
	}

	live := e.scheduled[:0]
	for _, c := range e.scheduled {
		if e.Tick(c, nil) {
			live = append(live, c)
		}
	}
	clear(e.scheduled[len(live):])
	e.scheduled = live
	return len(live)
}

// Run drives TickAll at the configured interval. It returns when ctx is
// cancelled, after stopping every scheduled chain, or, with
// WithExitWhenIdle, once nothing is left to run.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "tick_interval", e.tickInterval)

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		running := e.TickAll()
		if running == 0 && e.queue.Len() == 0 && e.exitWhenIdle {
			slog.Info("engine stopping: idle")
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.stopScheduled()
			return ctx.Err()
		case <-ticker.C:
		case _, open := <-e.queue.Wait():
			if !open {
				slog.Info("engine stopping: queue closed")
				e.stopScheduled()
				return nil
			}
		}
	}
}

func (e *Engine) stopScheduled() {
	for _, c := range e.scheduled {
		if _, err := e.Stop(c); err != nil {
			slog.Warn("chain stopped with error", "chain", c.name, "error", err)
		}
	}
	clear(e.scheduled)
	e.scheduled = e.scheduled[:0]
}

// Shutdown refuses further Schedule calls, stops every scheduled chain
// and runs the registry's exit callbacks. Call it after Run returned, or
// from the goroutine that drives TickAll.
func (e *Engine) Shutdown() {
	e.queue.Close()
	e.stopScheduled()
	for _, fn := range e.registry.ExitCallbacks() {
		fn()
	}
	slog.Info("engine shut down")
}
