package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/compiler"
	"github.com/roach88/chainflow/internal/engine"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledChain is the summary of one built chain.
type CompiledChain struct {
	Name   string          `json:"name"`
	Hash   string          `json:"hash"`
	Blocks int             `json:"blocks"`
	Looped bool            `json:"looped"`
	Def    json.RawMessage `json:"definition"`
}

// CompilationResult holds the built chains, sorted by name.
type CompilationResult struct {
	Chains []CompiledChain `json:"chains"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <chains-dir>",
		Short: "Build chains and print their canonical definitions",
		Long: `Build every chain in a directory and print its canonical JSON
definition together with its content hash.

The hash is the one the store records, so it identifies a chain
definition independently of formatting in the CUE source.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, chainsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	built, err := buildChains(chainsDir, blocks.NewRegistry())
	if err != nil {
		return outputBuildError(formatter, err)
	}
	defer built.Destroy()

	result := CompilationResult{Chains: make([]CompiledChain, 0, len(built.Chains))}
	for _, name := range built.Names() {
		c := built.Chains[name]
		formatter.VerboseLog("Compiling chain: %s", name)
		def, err := c.MarshalJSON()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "rendering chain "+name, err)
		}
		hash, err := c.Hash()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "hashing chain "+name, err)
		}
		result.Chains = append(result.Chains, CompiledChain{
			Name:   name,
			Hash:   hash,
			Blocks: len(c.Blocks()),
			Looped: c.Looped(),
			Def:    def,
		})
	}

	if opts.Output != "" {
		if err := writeJSONFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d chain(s)\n\n", len(result.Chains))
	for _, c := range result.Chains {
		kind := "once"
		if c.Looped {
			kind = "looped"
		}
		fmt.Fprintf(formatter.Writer, "  %s: %d block(s), %s, %s\n", c.Name, c.Blocks, kind, c.Hash)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote chain definitions to %s\n", opts.Output)
	}
	return nil
}

// BuiltChains holds the chains of one directory. Release with Destroy.
type BuiltChains struct {
	Chains    map[string]*engine.Chain
	Registry  *block.Registry
	FileCount int
}

// Names returns the chain names in sorted order.
func (b *BuiltChains) Names() []string {
	names := make([]string, 0, len(b.Chains))
	for name := range b.Chains {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Destroy releases every chain.
func (b *BuiltChains) Destroy() {
	for _, c := range b.Chains {
		c.Destroy()
	}
	b.Chains = nil
}

// buildChains loads, validates and builds the chains in dir.
func buildChains(dir string, reg *block.Registry) (*BuiltChains, error) {
	loadResult, loadErrors := LoadChains(dir, LoadModeFailFast)
	defer loadResult.Destroy()
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	chains, err := compiler.Build(loadResult.Chains, reg, nil)
	if err != nil {
		return nil, err
	}
	return &BuiltChains{Chains: chains, Registry: reg, FileCount: loadResult.FileCount}, nil
}

// outputBuildError reports a buildChains failure. Definition errors exit
// with ExitFailure, everything else with ExitCommandError.
func outputBuildError(formatter *OutputFormatter, err error) error {
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		return outputValidationErrors(formatter, verrs, 0)
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if isDefinitionError(loadErr.Code) {
			_ = formatter.Error(loadErr.Code, loadErr.Error(), nil)
			return NewExitError(ExitFailure, loadErr.Error())
		}
		return outputValidateError(formatter, loadErr.Code, loadErr.Message)
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, "building chains", err)
}

// isDefinitionError reports whether code blames the chain definitions
// rather than the command's inputs.
func isDefinitionError(code string) bool {
	return code == ErrCodeCompile || strings.HasPrefix(code, "E1")
}

func writeJSONFile(v any, filename string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
