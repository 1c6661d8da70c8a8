package harness

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/compiler"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/testutil"
	"github.com/roach88/chainflow/internal/variant"
)

// DefaultRunID is the run id used when a scenario does not set one.
const DefaultRunID = "test-run"

// Harness is the test execution engine.
// It runs one chain with a manual clock and a fixed run id.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.ManualClock
	chain  *engine.Chain
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario gets a fresh registry, engine and globals for isolation.
// Execution flow:
//  1. Compile the inline and file chain definitions and build them
//  2. Start the main chain with the scenario input
//  3. Execute steps, advancing the clock and ticking or stopping
//  4. Evaluate expectations and assertions
//
// Errors building the chains are returned; a chain that fails to compose
// or run is recorded in the trace so assertions can check it.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with a logger for per-step records.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	defs, err := compileChains(scenario)
	if err != nil {
		return nil, err
	}
	defer compiler.DestroyAll(defs)

	reg := blocks.NewRegistry()
	chains, err := compiler.Build(defs, reg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chains: %w", err)
	}
	defer func() {
		for _, c := range chains {
			c.Destroy()
		}
	}()
	main, ok := chains[scenario.Main]
	if !ok {
		return nil, fmt.Errorf("main chain %q is not defined", scenario.Main)
	}

	globals := engine.NewGlobals()
	defer globals.Destroy()
	for name, raw := range scenario.Globals {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", name, err)
		}
		globals.Set(name, &v)
		variant.Destroy(&v)
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	clock := testutil.NewManualClock()
	opts := []engine.EngineOption{
		engine.WithRegistry(reg),
		engine.WithGlobals(globals),
		engine.WithClock(clock),
		engine.WithRunIDGenerator(testutil.NewFixedRunID(runID)),
	}
	if scenario.MaxRestarts > 0 {
		opts = append(opts, engine.WithMaxRestarts(scenario.MaxRestarts))
	}

	h := &Harness{
		engine: engine.New(opts...),
		clock:  clock,
		chain:  main,
		logger: logger,
	}
	result := NewResult()

	if err := h.start(scenario.Input, result); err != nil {
		return nil, err
	}
	h.checkExpect("start", scenario.Expect, result)

	for i, step := range scenario.Steps {
		if err := h.executeStep(step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		h.checkExpect(fmt.Sprintf("steps[%d]", i), step.Expect, result)
	}

	h.captureFinal(result, globals)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func compileChains(scenario *Scenario) ([]*compiler.ChainDef, error) {
	var defs []*compiler.ChainDef
	if scenario.Chains != "" {
		inline, err := compiler.CompileSource(scenario.Name+".cue", []byte(scenario.Chains))
		if err != nil {
			return nil, fmt.Errorf("failed to compile inline chains: %w", err)
		}
		defs = append(defs, inline...)
	}
	for _, file := range scenario.Files {
		src, err := os.ReadFile(file)
		if err != nil {
			compiler.DestroyAll(defs)
			return nil, fmt.Errorf("failed to read chain file: %w", err)
		}
		more, err := compiler.CompileSource(file, src)
		if err != nil {
			compiler.DestroyAll(defs)
			return nil, fmt.Errorf("failed to compile %s: %w", file, err)
		}
		defs = append(defs, more...)
	}
	return defs, nil
}

func (h *Harness) start(raw any, result *Result) error {
	var input *variant.Variant
	if raw != nil {
		v, err := ValueOf(raw)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		defer variant.Destroy(&v)
		input = &v
	}
	// Compose and run failures surface through the chain state.
	_ = h.engine.Start(h.chain, input)
	h.record(EventStart, result)
	return nil
}

func (h *Harness) executeStep(step Step, result *Result) error {
	if step.Advance > 0 {
		h.clock.AdvanceSeconds(step.Advance)
	}

	if step.Stop {
		h.engine.Stop(h.chain)
		h.record(EventStop, result)
		return nil
	}

	var input *variant.Variant
	if step.Input != nil {
		v, err := ValueOf(step.Input)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		defer variant.Destroy(&v)
		input = &v
	}
	h.engine.Tick(h.chain, input)
	h.record(EventTick, result)
	return nil
}

func (h *Harness) record(typ string, result *Result) {
	out := h.chain.Output()
	ev := TraceEvent{
		Type:    typ,
		State:   h.chain.State().String(),
		Running: h.chain.Running(),
		Now:     h.clock.Now().Seconds(),
		Output:  canonical(&out),
	}
	if err := h.chain.Err(); err != nil {
		ev.Error = err.Error()
	}
	result.addEvent(ev)

	h.logger.Info("scenario step",
		"seq", len(result.Trace),
		"type", typ,
		"state", ev.State,
		"output", ev.Output,
	)
}

func (h *Harness) checkExpect(field string, expect *ExpectClause, result *Result) {
	if expect == nil {
		return
	}
	last := result.Trace[len(result.Trace)-1]
	if expect.State != "" && expect.State != last.State {
		result.AddError(fmt.Sprintf("%s: state = %s, want %s", field, last.State, expect.State))
	}
	if expect.Running != nil && *expect.Running != last.Running {
		result.AddError(fmt.Sprintf("%s: running = %t, want %t", field, last.Running, *expect.Running))
	}
	if expect.Output != nil {
		if err := matchValue(last.Output, expect.Output); err != nil {
			result.AddError(fmt.Sprintf("%s: output: %v", field, err))
		}
	}
}

func (h *Harness) captureFinal(result *Result, globals *engine.Globals) {
	result.State = h.chain.State().String()
	if err := h.chain.Err(); err != nil {
		result.Error = err.Error()
	}
	for _, name := range h.chain.Variables() {
		v, _ := h.chain.FindVariable(name)
		result.Variables[name] = canonical(v)
	}
	for _, name := range globals.Names() {
		v, _ := globals.Find(name)
		result.Globals[name] = canonical(v)
	}
}

// canonical renders v as canonical JSON. Kinds without a canonical form
// (chain and block references) render as their debug string.
func canonical(v *variant.Variant) string {
	data, err := variant.MarshalCanonical(v)
	if err != nil {
		return v.String()
	}
	return string(data)
}
