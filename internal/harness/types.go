package harness

import "github.com/relfold/relfold/session"

// CycleReport records one executed cycle for reports and golden files.
type CycleReport struct {
	// Name is the cycle name from the scenario.
	Name string `json:"name"`

	// Token is the session token the cycle ran under.
	Token string `json:"token"`

	// Mutations is the number of mutation steps the cycle declared.
	Mutations int `json:"mutations"`

	// Failed reports whether the cycle's fold was rejected. A failed
	// cycle leaves the root unchanged.
	Failed bool `json:"failed,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: every cycle behaved as
	// declared and every assertion held.
	Pass bool `json:"pass"`

	// Cycles reports each executed cycle in order.
	Cycles []CycleReport `json:"cycles"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FoldErrors records every cycle error observed, including the
	// ones a cycle's expect_error declared. Error assertions match
	// against this list.
	FoldErrors []string `json:"fold_errors,omitempty"`

	// Final is the root state after the last cycle.
	Final session.Root `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cycles: []CycleReport{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddFoldError records an observed cycle error without failing the
// result; whether it fails the scenario is the cycle's expect_error
// clause's decision.
func (r *Result) AddFoldError(err string) {
	r.FoldErrors = append(r.FoldErrors, err)
}
