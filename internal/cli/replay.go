package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/store"
	"github.com/roach88/chainflow/internal/variant"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RunOptions
	Seq int64 // snapshot to restore; 0 = latest
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RunOptions: &RunOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "replay <chain>",
		Short: "Run a stored chain from a variable snapshot",
		Long: `Load a chain from the database, restore the variables of one of its
snapshots and run it again. The variables after the run are saved as a
new snapshot.

Exit codes:
  0 - The chain ran
  1 - The chain failed or is not stored
  2 - Command error (database not found, etc.)

Examples:
  chainflow replay Counter --db ./chainflow.db
  chainflow replay Counter --db ./chainflow.db --seq 3 --max-ticks 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Seq, "seq", 0, "snapshot to restore (default: latest)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "chain input as YAML/JSON")
	addEngineFlags(cmd)

	return cmd
}

func runReplay(opts *ReplayOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := LoadConfig(opts.ConfigFile, cmd.Flags())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "loading config", err)
	}
	configureLogging(cmd.ErrOrStderr(), cfg, opts.Verbose)
	if cfg.DB == "" {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "no database: pass --db or set db in the config", nil)
	}

	input, err := parseInput(opts.Input)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid --input", err)
	}
	if input != nil {
		defer variant.Destroy(input)
	}

	reg := blocks.NewRegistry()
	st, err := store.Open(cfg.DB, store.WithRegistry(reg))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := st.LoadChain(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitFailure, ErrCodeNoChain, fmt.Sprintf("chain %q is not stored", name), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "loading chain", err)
	}
	defer c.Destroy()

	seq := opts.Seq
	if seq > 0 {
		err = st.LoadSnapshot(ctx, c, seq)
	} else {
		seq, err = st.LoadVariables(ctx, c)
		if errors.Is(err, store.ErrNotFound) {
			err = nil
		}
	}
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, "restoring variables", err)
	}
	formatter.VerboseLog("Restored chain %s from snapshot %d", name, seq)

	result := executeChain(ctx, cfg, reg, c, input, opts.RunIDs)
	if err := persistChain(context.WithoutCancel(ctx), st, c, &result); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to save run", err)
	}
	return outputRunResult(formatter, result)
}
