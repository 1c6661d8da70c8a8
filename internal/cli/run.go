package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/harness"
	"github.com/roach88/chainflow/internal/store"
	"github.com/roach88/chainflow/internal/variant"
)

const tickCounterCallback = "chainflow.cli.ticks"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Input string

	// RunIDs overrides the run id generator (for testing).
	// If nil, the engine's UUIDv7 generator is used.
	RunIDs engine.RunIDGenerator
}

// RunResult reports one chain run.
type RunResult struct {
	Chain     string                     `json:"chain"`
	RunID     string                     `json:"run_id"`
	State     string                     `json:"state"`
	Output    json.RawMessage            `json:"output"`
	Error     string                     `json:"error,omitempty"`
	ErrorCode string                     `json:"error_code,omitempty"`
	Ticks     int                        `json:"ticks"`
	Variables map[string]json.RawMessage `json:"variables,omitempty"`
	Snapshot  int64                      `json:"snapshot,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <chains-dir> <chain>",
		Short: "Run a chain on the host loop",
		Long: `Build the chains in a directory and run one of them on the engine's
host loop until it ends, fails, reaches --max-ticks or is interrupted.

With --db the chain definition and a snapshot of its variables are saved
after the run.

Examples:
  chainflow run ./chains Main
  chainflow run ./chains Main --input 20
  chainflow run ./chains Counter --max-ticks 100 --db ./chainflow.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainCommand(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "chain input as YAML/JSON, e.g. 3 or '{type: Float2, value: [1, 2]}'")
	addEngineFlags(cmd)

	return cmd
}

// addEngineFlags declares the flags that override config keys.
func addEngineFlags(cmd *cobra.Command) {
	defaults := Defaults()
	cmd.Flags().String("db", defaults.DB, "path to SQLite database for chains and variable snapshots")
	cmd.Flags().Int("max-ticks", defaults.MaxTicks, "stop after this many host loop iterations (0 = no limit)")
	cmd.Flags().Duration("tick-interval", defaults.TickInterval, "host loop cadence")
	cmd.Flags().String("log-level", defaults.LogLevel, "log level (debug|info|warn|error)")
}

func runChainCommand(opts *RunOptions, chainsDir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := LoadConfig(opts.ConfigFile, cmd.Flags())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "loading config", err)
	}
	configureLogging(cmd.ErrOrStderr(), cfg, opts.Verbose)

	input, err := parseInput(opts.Input)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid --input", err)
	}
	if input != nil {
		defer variant.Destroy(input)
	}

	built, err := buildChains(chainsDir, blocks.NewRegistry())
	if err != nil {
		return outputBuildError(formatter, err)
	}
	defer built.Destroy()
	formatter.VerboseLog("Built %d chain(s) from %d file(s)", len(built.Chains), built.FileCount)

	main, ok := built.Chains[name]
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeNoChain, fmt.Sprintf("chain %q is not defined in %s", name, chainsDir), nil)
	}

	var st *store.Store
	if cfg.DB != "" {
		st, err = store.Open(cfg.DB, store.WithRegistry(built.Registry))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer closeStore(st)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	result := executeChain(ctx, cfg, built.Registry, main, input, opts.RunIDs)
	if st != nil {
		if err := persistChain(context.WithoutCancel(ctx), st, main, &result); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to save run", err)
		}
	}
	return outputRunResult(formatter, result)
}

// executeChain schedules c on a fresh engine and drives the host loop
// until c finishes, ctx is cancelled or cfg.MaxTicks iterations ran.
func executeChain(ctx context.Context, cfg Config, reg *block.Registry, c *engine.Chain, input *variant.Variant, runIDs engine.RunIDGenerator) RunResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticks := 0
	reg.RegisterRunLoopCallback(tickCounterCallback, func() {
		ticks++
		if cfg.MaxTicks > 0 && ticks >= cfg.MaxTicks {
			cancel()
		}
	})
	defer reg.UnregisterRunLoopCallback(tickCounterCallback)

	opts := []engine.EngineOption{
		engine.WithRegistry(reg),
		engine.WithTickInterval(cfg.TickInterval),
		engine.WithExitWhenIdle(true),
	}
	if runIDs != nil {
		opts = append(opts, engine.WithRunIDGenerator(runIDs))
	}
	eng := engine.New(opts...)
	defer eng.Globals().Destroy()

	slog.Info("running chain", "chain", c.Name(), "max_ticks", cfg.MaxTicks)
	eng.Schedule(c, input)
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("host loop stopped", "error", err)
	}
	eng.Shutdown()

	out := c.Output()
	result := RunResult{
		Chain:     c.Name(),
		RunID:     c.RunID(),
		State:     c.State().String(),
		Output:    canonicalJSON(&out),
		Ticks:     ticks,
		Variables: variablesJSON(c),
	}
	if err := c.Err(); err != nil {
		result.Error = err.Error()
		result.ErrorCode = ErrCodeGeneric
		var rerr *engine.RuntimeError
		if errors.As(err, &rerr) {
			result.ErrorCode = string(rerr.Code)
		}
	}
	return result
}

// persistChain saves c's definition and a snapshot of its variables.
func persistChain(ctx context.Context, st *store.Store, c *engine.Chain, result *RunResult) error {
	info, err := st.SaveChain(ctx, c)
	if err != nil {
		return err
	}
	seq, err := st.SaveVariables(ctx, c)
	if err != nil {
		return err
	}
	slog.Info("run saved", "chain", info.Name, "chain_seq", info.Seq, "snapshot", seq)
	result.Snapshot = seq
	return nil
}

func outputRunResult(formatter *OutputFormatter, result RunResult) error {
	var failure error
	if result.State == engine.Failed.String() {
		failure = NewExitError(ExitFailure, fmt.Sprintf("chain %s failed: %s", result.Chain, result.Error))
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if failure != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: result.ErrorCode, Message: result.Error}
		}
		if err := formatter.WriteJSON(resp); err != nil {
			return err
		}
		return failure
	}

	w := formatter.Writer
	mark := "✓"
	if failure != nil {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Chain %s: %s after %d tick(s)\n", mark, result.Chain, result.State, result.Ticks)
	fmt.Fprintf(w, "  run:    %s\n", result.RunID)
	fmt.Fprintf(w, "  output: %s\n", result.Output)
	if result.Error != "" {
		fmt.Fprintf(w, "  error:  %s\n", result.Error)
	}
	for _, name := range slices.Sorted(maps.Keys(result.Variables)) {
		fmt.Fprintf(w, "  var %s = %s\n", name, result.Variables[name])
	}
	if result.Snapshot > 0 {
		fmt.Fprintf(w, "  saved snapshot %d\n", result.Snapshot)
	}
	return failure
}

// parseInput decodes a YAML (or JSON) input value. Empty means no input.
func parseInput(s string) (*variant.Variant, error) {
	if s == "" {
		return nil, nil
	}
	var raw any
	if err := yaml.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	v, err := harness.ValueOf(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func canonicalJSON(v *variant.Variant) json.RawMessage {
	data, err := variant.MarshalCanonical(v)
	if err != nil {
		data, _ = json.Marshal(v.String())
	}
	return data
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func closeStore(st io.Closer) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
