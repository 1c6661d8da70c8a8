package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/serial"
)

// CodecResult describes an encoded or decoded chain.
type CodecResult struct {
	Name      string                     `json:"name"`
	Hash      string                     `json:"hash"`
	Size      int                        `json:"size"`
	File      string                     `json:"file"`
	Def       json.RawMessage            `json:"definition,omitempty"`
	Variables map[string]json.RawMessage `json:"variables,omitempty"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "encode <chains-dir> <chain>",
		Short: "Write a chain in the binary format",
		Long: `Build a chain and write its definition and variables in the binary
chain format. Chains whose parameters reference other chains cannot be
encoded.

Example:
  chainflow encode ./chains Main -o main.chain`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(rootOpts, args[0], args[1], output, cmd)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runEncode(opts *RootOptions, chainsDir, name, output string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	built, err := buildChains(chainsDir, blocks.NewRegistry())
	if err != nil {
		return outputBuildError(formatter, err)
	}
	defer built.Destroy()

	c, ok := built.Chains[name]
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeNoChain, fmt.Sprintf("chain %q is not defined in %s", name, chainsDir), nil)
	}

	data, err := serial.MarshalChain(c, built.Registry)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCodec, "encoding chain", err)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
	}

	result, err := describeChain(c, output, len(data))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCodec, "describing chain", err)
	}
	result.Def = nil
	result.Variables = nil

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Encoded chain %s (%d bytes) to %s\n", result.Name, result.Size, output)
	fmt.Fprintf(formatter.Writer, "  hash: %s\n", result.Hash)
	return nil
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Read a binary chain and print its definition",
		Long: `Decode a chain written by "chainflow encode" against the core block
registry and print its canonical definition and variables.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDecode(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := os.ReadFile(file)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "reading chain file", err)
	}

	c, err := serial.UnmarshalChain(data, blocks.NewRegistry())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCodec, "decoding chain", err)
	}
	defer c.Destroy()

	result, err := describeChain(c, file, len(data))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCodec, "describing chain", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Chain %s (%d bytes)\n", result.Name, result.Size)
	fmt.Fprintf(formatter.Writer, "  hash: %s\n", result.Hash)
	fmt.Fprintf(formatter.Writer, "  definition: %s\n", result.Def)
	for _, name := range c.Variables() {
		fmt.Fprintf(formatter.Writer, "  var %s = %s\n", name, result.Variables[name])
	}
	return nil
}

func describeChain(c *engine.Chain, file string, size int) (CodecResult, error) {
	def, err := c.MarshalJSON()
	if err != nil {
		return CodecResult{}, err
	}
	hash, err := c.Hash()
	if err != nil {
		return CodecResult{}, err
	}
	result := CodecResult{
		Name:      c.Name(),
		Hash:      hash,
		Size:      size,
		File:      file,
		Def:       def,
		Variables: variablesJSON(c),
	}
	return result, nil
}
