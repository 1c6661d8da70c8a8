package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chainflow/internal/variant"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// It serializes to canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// MarshalCanonical renders the snapshot as canonical JSON. Event outputs
// are embedded as values, not strings.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	doc := variant.NewTable()
	defer variant.Destroy(&doc)

	doc.Put("scenario_name", variant.NewString(s.ScenarioName))
	if s.RunID != "" {
		doc.Put("run_id", variant.NewString(s.RunID))
	}
	trace := variant.NewSeq()
	for _, event := range s.Trace {
		ev := variant.NewTable()
		ev.Put("seq", variant.NewInt(int64(event.Seq)))
		ev.Put("type", variant.NewString(event.Type))
		ev.Put("state", variant.NewString(event.State))
		ev.Put("running", variant.NewBool(event.Running))
		ev.Put("now", variant.NewFloat(event.Now))
		out, err := variant.ParseCanonical([]byte(event.Output))
		if err != nil {
			out = variant.NewString(event.Output)
		}
		ev.Put("output", out)
		if event.Error != "" {
			ev.Put("error", variant.NewString(event.Error))
		}
		trace.Append(ev)
	}
	doc.Put("trace", trace)
	return variant.MarshalCanonical(&doc)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunID:        runID,
		Trace:        result.Trace,
	}
	return assertSnapshot(t, scenario.Name, &snapshot)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return assertSnapshot(t, scenarioName, &snapshot)
}

func assertSnapshot(t *testing.T, name string, snapshot *TraceSnapshot) error {
	t.Helper()

	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
