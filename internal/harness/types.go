package harness

// Artifact is one rendered compiler output, e.g. the SQL of a where clause.
type Artifact struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Outcome is what one backend produced for one case.
type Outcome struct {
	Backend string `json:"backend"`

	// IDs are the matching record ids in result order. Nil when
	// compilation failed.
	IDs []string `json:"ids,omitempty"`

	// Code is the compile error code, if compilation failed.
	Code string `json:"code,omitempty"`

	// Path is the field path the compile error was reported at.
	Path string `json:"path,omitempty"`

	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// CaseResult groups the outcomes of one case across backends.
type CaseResult struct {
	Name     string    `json:"name"`
	Outcomes []Outcome `json:"outcomes"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every backend produced the expected
	// ids or error code for every case.
	Pass bool `json:"pass"`

	// Cases holds per-case outcomes in scenario order.
	Cases []CaseResult `json:"cases"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
