package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Chains int                        `json:"chains"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <chains-dir>",
		Short: "Validate chain definitions without running them",
		Long: `Validate the CUE chain definitions in a directory.

Checks block names, parameter names, indices and values against the block
registry, chain references and reference cycles between chains.

Exit codes:
  0 - All chains valid
  1 - Validation errors
  2 - Command error (directory not found, CUE syntax, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, chainsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadChains(chainsDir, LoadModeCollectAll)
	defer loadResult.Destroy()

	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, chainsDir)
	for _, def := range loadResult.Chains {
		formatter.VerboseLog("Validating chain: %s", def.Name)
	}

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		}
	}
	validationErrors = append(validationErrors, compiler.Validate(loadResult.Chains, blocks.NewRegistry())...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors, len(loadResult.Chains))
	}
	return outputValidateSuccess(formatter, len(loadResult.Chains))
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, chains int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Chains: chains})
	}

	fmt.Fprintf(formatter.Writer, "✓ All chains valid (%d)\n", chains)
	return nil
}

// outputValidateError reports a command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors reports definition errors (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError, chains int) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		err := formatter.WriteJSON(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Chains: chains, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}

// ValidateChainsDir validates all chains in a directory.
// This is a helper function for external callers.
func ValidateChainsDir(chainsDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadChains(chainsDir, LoadModeFailFast)
	defer loadResult.Destroy()
	if loadResult == nil || len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	return compiler.Validate(loadResult.Chains, blocks.NewRegistry()), nil
}
