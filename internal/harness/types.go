package harness

// Trace event types.
const (
	EventStart = "start"
	EventTick  = "tick"
	EventStop  = "stop"
)

// TraceEvent records the chain after one scenario step.
type TraceEvent struct {
	Seq     int     `json:"seq"`
	Type    string  `json:"type"` // "start", "tick" or "stop"
	State   string  `json:"state"`
	Running bool    `json:"running"`
	Now     float64 `json:"now"`    // clock reading in seconds
	Output  string  `json:"output"` // canonical JSON of the chain output
	Error   string  `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the main chain's state after the last step.
	State string `json:"state"`

	// Error is the main chain's error after the last step, if any.
	Error string `json:"error,omitempty"`

	// Variables and Globals hold the canonical JSON of the main chain's
	// variables and of the engine globals after the last step.
	Variables map[string]string `json:"variables,omitempty"`
	Globals   map[string]string `json:"globals,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Variables: make(map[string]string),
		Globals:   make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends ev with the next seq.
func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
