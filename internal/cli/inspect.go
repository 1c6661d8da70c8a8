package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Seq int64 // snapshot to show; 0 = latest
}

// ChainReport describes one stored chain.
type ChainReport struct {
	store.ChainInfo
	Snapshots []int64                    `json:"snapshots"`
	Snapshot  int64                      `json:"snapshot,omitempty"`
	Def       json.RawMessage            `json:"definition"`
	Variables map[string]json.RawMessage `json:"variables,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [chain]",
		Short: "Show stored chains and variable snapshots",
		Long: `Show what a chainflow database holds.

Without arguments every stored chain is listed with its hash, version and
size. With a chain name its definition, snapshot numbers and the variables
of one snapshot (the latest unless --seq is given) are shown.

Examples:
  chainflow inspect --db ./chainflow.db
  chainflow inspect --db ./chainflow.db Counter --seq 2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	cmd.Flags().String("db", "", "path to SQLite database")
	cmd.Flags().Int64Var(&opts.Seq, "seq", 0, "snapshot to show (default: latest)")

	return cmd
}

func runInspect(opts *InspectOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openConfiguredStore(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 0 {
		infos, err := st.ListChains(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "listing chains", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(infos)
		}
		if len(infos) == 0 {
			fmt.Fprintln(formatter.Writer, "No chains stored.")
			return nil
		}
		for _, info := range infos {
			fmt.Fprintf(formatter.Writer, "%s  v%d  %d bytes  %s\n", info.Name, info.Seq, info.Size, info.Hash)
		}
		return nil
	}

	report, err := inspectChain(ctx, st, args[0], opts.Seq)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitFailure, ErrCodeNoChain, fmt.Sprintf("chain %q", args[0]), err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "reading chain", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "Chain %s (v%d, %d bytes)\n", report.Name, report.Seq, report.Size)
	fmt.Fprintf(w, "  hash:       %s\n", report.Hash)
	fmt.Fprintf(w, "  definition: %s\n", report.Def)
	fmt.Fprintf(w, "  snapshots:  %v\n", report.Snapshots)
	if report.Snapshot > 0 {
		fmt.Fprintf(w, "  snapshot %d:\n", report.Snapshot)
		for _, name := range slices.Sorted(maps.Keys(report.Variables)) {
			fmt.Fprintf(w, "    %s = %s\n", name, report.Variables[name])
		}
	}
	return nil
}

func inspectChain(ctx context.Context, st *store.Store, name string, seq int64) (*ChainReport, error) {
	info, err := st.Info(ctx, name)
	if err != nil {
		return nil, err
	}
	snapshots, err := st.Snapshots(ctx, name)
	if err != nil {
		return nil, err
	}
	c, err := st.LoadChain(ctx, name)
	if err != nil {
		return nil, err
	}
	defer c.Destroy()

	def, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	report := &ChainReport{ChainInfo: info, Snapshots: snapshots, Def: def}

	if len(snapshots) == 0 {
		if seq > 0 {
			return nil, fmt.Errorf("snapshot %d: %w", seq, store.ErrNotFound)
		}
		return report, nil
	}
	if seq == 0 {
		seq = snapshots[len(snapshots)-1]
	}
	if err := st.LoadSnapshot(ctx, c, seq); err != nil {
		return nil, err
	}
	report.Snapshot = seq
	report.Variables = variablesJSON(c)
	return report, nil
}

// openConfiguredStore opens the database named by --db or the config.
func openConfiguredStore(opts *RootOptions, cmd *cobra.Command) (*store.Store, error) {
	cfg, err := LoadConfig(opts.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.DB == "" {
		return nil, errors.New("no database: pass --db or set db in the config")
	}
	return store.Open(cfg.DB, store.WithRegistry(blocks.NewRegistry()))
}

func variablesJSON(c *engine.Chain) map[string]json.RawMessage {
	vars := make(map[string]json.RawMessage)
	for _, name := range c.Variables() {
		v, _ := c.FindVariable(name)
		vars[name] = canonicalJSON(v)
	}
	return vars
}
