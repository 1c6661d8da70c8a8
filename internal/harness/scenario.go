package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chainflow/internal/engine"
)

// Scenario defines a chain test scenario: chain definitions, a sequence
// of clock advances and ticks, and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Chains is inline CUE source with chain definitions.
	Chains string `yaml:"chains,omitempty"`

	// Files lists CUE files with more chain definitions.
	// Paths are relative to the scenario file location.
	Files []string `yaml:"files,omitempty"`

	// Main names the chain to run.
	Main string `yaml:"main"`

	// Input is the chain input for Start. Values use the plain YAML form
	// or the typed form {type: Float2, value: [1, 2]}.
	Input any `yaml:"input,omitempty"`

	// Globals are engine-wide variables set before Start.
	Globals map[string]any `yaml:"globals,omitempty"`

	// MaxRestarts bounds Core.Restart; zero keeps the engine default.
	MaxRestarts int `yaml:"max_restarts,omitempty"`

	// Steps run after Start, in order.
	Steps []Step `yaml:"steps,omitempty"`

	// Expect is checked right after Start.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the final trace and chain.
	// Supported types: final_state, output, variable, trace_count, error
	Assertions []Assertion `yaml:"assertions"`

	// RunID is the fixed run id; defaults to "test-run".
	RunID string `yaml:"run_id,omitempty"`
}

// Step advances the clock and then ticks or stops the main chain.
type Step struct {
	// Advance moves the clock forward, in seconds, before the tick.
	Advance float64 `yaml:"advance,omitempty"`

	// Input replaces the chain input from the next iteration on.
	Input any `yaml:"input,omitempty"`

	// Stop cancels the chain instead of ticking it.
	Stop bool `yaml:"stop,omitempty"`

	// Expect specifies the chain after this step.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the chain after a step.
type ExpectClause struct {
	// State is the expected chain state name (e.g., "Iterating", "Ended").
	State string `yaml:"state,omitempty"`

	// Output is the expected chain output. Nil skips the check.
	Output any `yaml:"output,omitempty"`

	// Running, when set, is whether the chain still has a coroutine.
	Running *bool `yaml:"running,omitempty"`
}

// Assertion validates the final trace and chain.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": Chain state after the last step
	// - "output": Chain output after the last step
	// - "variable": Chain (or global) variable value
	// - "trace_count": Number of trace events in a state
	// - "error": The chain error contains a substring
	Type string `yaml:"type"`

	// State is the chain state name (final_state, trace_count).
	State string `yaml:"state,omitempty"`

	// Name is the variable name (variable).
	Name string `yaml:"name,omitempty"`

	// Global reads an engine global instead of a chain variable (variable).
	Global bool `yaml:"global,omitempty"`

	// Value is the expected value (output, variable).
	Value any `yaml:"value,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Contains is the expected error substring (error).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertOutput     = "output"
	AssertVariable   = "variable"
	AssertTraceCount = "trace_count"
	AssertError      = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Files are resolved relative to the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving chain file paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, file := range scenario.Files {
		if !filepath.IsAbs(file) && basePath != "" {
			scenario.Files[i] = filepath.Join(basePath, file)
		}
	}
	for _, file := range scenario.Files {
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("invalid scenario: chain file not found: %s", file)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Main == "" {
		return fmt.Errorf("main is required")
	}
	if s.Chains == "" && len(s.Files) == 0 {
		return fmt.Errorf("chains or files is required")
	}
	for i, step := range s.Steps {
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must be non-negative", i)
		}
		if step.Stop && step.Input != nil {
			return fmt.Errorf("steps[%d]: a stop step takes no input", i)
		}
		if err := validateExpect(fmt.Sprintf("steps[%d]", i), step.Expect); err != nil {
			return err
		}
	}
	if err := validateExpect("expect", s.Expect); err != nil {
		return err
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(field string, e *ExpectClause) error {
	if e == nil || e.State == "" {
		return nil
	}
	if _, err := engine.ParseState(e.State); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState, AssertTraceCount:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for %s", index, a.Type)
		}
		if _, err := engine.ParseState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertOutput:
	case AssertVariable:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for variable", index)
		}
	case AssertError:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
