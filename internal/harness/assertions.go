package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/chainflow/internal/variant"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s output=%s", event.Seq, event.Type, event.State, event.Output)
		if event.Error != "" {
			fmt.Fprintf(&buf, " error=%q", event.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// ValueOf converts a scenario value into an owned variant. Maps with a
// string "type" key use the canonical typed form, e.g.
// {type: Float2, value: [1, 2]}; everything else converts as plain YAML.
func ValueOf(raw any) (variant.Variant, error) {
	if m, ok := raw.(map[string]any); ok {
		if _, typed := m["type"].(string); typed {
			return variant.FromDocument(m)
		}
	}
	return variant.FromGo(raw)
}

// matchValue compares the canonical JSON of an actual value against an
// expected scenario value.
func matchValue(actualJSON string, expected any) error {
	want, err := ValueOf(expected)
	if err != nil {
		return fmt.Errorf("bad expected value: %w", err)
	}
	defer variant.Destroy(&want)

	got, err := variant.ParseCanonical([]byte(actualJSON))
	if err != nil {
		return fmt.Errorf("got %s, want %s", actualJSON, canonical(&want))
	}
	defer variant.Destroy(&got)

	if !variant.Equal(&want, &got) {
		return fmt.Errorf("got %s, want %s", actualJSON, canonical(&want))
	}
	return nil
}

// assertFinalState checks the main chain's state after the last step.
func assertFinalState(result *Result, assertion Assertion) error {
	if result.State == assertion.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: assertion.State,
		Actual:   result.State,
		Trace:    result.Trace,
	}
}

// assertOutput checks the output recorded by the last step.
func assertOutput(result *Result, assertion Assertion) error {
	if len(result.Trace) == 0 {
		return &AssertionError{Type: AssertOutput, Expected: fmt.Sprint(assertion.Value), Actual: "empty trace"}
	}
	last := result.Trace[len(result.Trace)-1]
	if err := matchValue(last.Output, assertion.Value); err != nil {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprint(assertion.Value),
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertVariable checks a chain variable or engine global.
func assertVariable(result *Result, assertion Assertion) error {
	vars, scope := result.Variables, "variable"
	if assertion.Global {
		vars, scope = result.Globals, "global"
	}
	actual, ok := vars[assertion.Name]
	if !ok {
		return &AssertionError{
			Type:     AssertVariable,
			Expected: fmt.Sprintf("%s %s = %v", scope, assertion.Name, assertion.Value),
			Actual:   fmt.Sprintf("%s %s is not set", scope, assertion.Name),
			Trace:    result.Trace,
		}
	}
	if err := matchValue(actual, assertion.Value); err != nil {
		return &AssertionError{
			Type:     AssertVariable,
			Expected: fmt.Sprintf("%s %s = %v", scope, assertion.Name, assertion.Value),
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceCount checks how many trace events end in the given state.
func assertTraceCount(result *Result, assertion Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.State == assertion.State {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d events in state %s", assertion.Count, assertion.State),
		Actual:   fmt.Sprintf("%d events", count),
		Trace:    result.Trace,
	}
}

// assertError checks that the chain failed with a matching message.
func assertError(result *Result, assertion Assertion) error {
	if strings.Contains(result.Error, assertion.Contains) && result.Error != "" {
		return nil
	}
	actual := result.Error
	if actual == "" {
		actual = "no error"
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("error containing %q", assertion.Contains),
		Actual:   actual,
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertOutput:
			err = assertOutput(result, assertion)
		case AssertVariable:
			err = assertVariable(result, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		case AssertError:
			err = assertError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
