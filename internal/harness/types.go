package harness

// TraceEvent records one flow step and its outcome.
type TraceEvent struct {
	Step    int    `json:"step"`
	Kind    string `json:"kind"`   // "login" or "write"
	Target  string `json:"target"` // tenant id or input name
	Rows    int    `json:"rows,omitempty"`
	Outcome string `json:"outcome"` // "ok" or an error code
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Outputs maps every output to its final row count.
	Outputs map[string]int `json:"outputs"`

	// Size is the sum of Outputs.
	Size int `json:"size"`

	// Graph is the final dataflow graph in DOT.
	Graph string `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Outputs: map[string]int{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
