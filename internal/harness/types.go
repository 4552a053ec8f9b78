package harness

// TraceEvent records one executed step with every content address
// replaced by its scenario name.
type TraceEvent struct {
	Step    int      `json:"step"`
	Op      string   `json:"op"`
	Agent   string   `json:"agent"`
	Result  any      `json:"result,omitempty"`
	Error   string   `json:"error,omitempty"`
	Signals []string `json:"signals,omitempty"`
}

// canonical returns e as a value ir.MarshalCanonical accepts.
func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"step":  e.Step,
		"op":    e.Op,
		"agent": e.Agent,
	}
	if e.Result != nil {
		m["result"] = e.Result
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	if len(e.Signals) > 0 {
		signals := make([]any, len(e.Signals))
		for i, s := range e.Signals {
			signals[i] = s
		}
		m["signals"] = signals
	}
	return m
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
