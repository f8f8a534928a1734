package validation

import (
	"fmt"
	"sort"
)

// AllChecks selects every registered check.
const AllChecks = "all"

// UnknownCheckError is returned when a requested check is not registered.
type UnknownCheckError struct {
	Names []string
}

func (e *UnknownCheckError) Error() string {
	return fmt.Sprintf("unknown checks: %v", e.Names)
}

// Engine holds the check registry.
type Engine struct {
	checks []Check
	byName map[string]Check
}

// NewEngine creates an Engine with no checks registered.
func NewEngine() *Engine {
	return &Engine{
		checks: make([]Check, 0),
		byName: make(map[string]Check),
	}
}

// Register adds a check. Checks run in registration order.
// Register panics if a check with the same Name() is already registered.
func (e *Engine) Register(c Check) {
	if _, found := e.byName[c.Name()]; found {
		panic(fmt.Sprintf("validation: check %q already registered", c.Name()))
	}
	e.checks = append(e.checks, c)
	e.byName[c.Name()] = c
}

// Names returns all check names in registration order.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.checks))
	for _, c := range e.checks {
		names = append(names, c.Name())
	}
	return names
}

// ByCategory groups the check names by category.
func (e *Engine) ByCategory() map[Category][]string {
	out := make(map[Category][]string, len(Categories))
	for _, cat := range Categories {
		out[cat] = []string{}
	}
	for _, c := range e.checks {
		out[c.Category()] = append(out[c.Category()], c.Name())
	}
	return out
}

// Describe returns the check registered under name.
func (e *Engine) Describe(name string) (Check, bool) {
	c, ok := e.byName[name]
	return c, ok
}

// Resolve turns a requested list into the checks to run. An empty list or one containing
// AllChecks selects everything.
func (e *Engine) Resolve(names []string) ([]Check, error) {
	if IsAll(names) {
		return e.checks, nil
	}
	want := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		if _, ok := e.byName[n]; !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownCheckError{Names: unknown}
	}
	selected := make([]Check, 0, len(want))
	for _, c := range e.checks {
		if want[c.Name()] {
			selected = append(selected, c)
		}
	}
	return selected, nil
}

// Run executes the selected checks against s and scores the results.
func (e *Engine) Run(s Subject, names []string) (*Outcome, error) {
	selected, err := e.Resolve(names)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Issues:    []CheckResult{},
		AllChecks: make([]CheckResult, 0, len(selected)),
	}
	for _, c := range selected {
		res := runCheck(c, s)
		out.AllChecks = append(out.AllChecks, res)
		if !res.Passed {
			out.Issues = append(out.Issues, res)
		}
	}
	out.OverallScore = Score(out.AllChecks)
	return out, nil
}

// runCheck turns a panicking check into a failed result.
func runCheck(c Check, s Subject) (res CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(c.Name(), SeverityError, fmt.Sprintf("Check failed with an internal error: %v", r), nil, nil)
		}
	}()
	if s.Molecule == nil {
		return Failed(c.Name(), SeverityError, "No molecule to check", nil, nil)
	}
	res = c.Run(s)
	res.Name = c.Name()
	return res
}

// Score is 100 minus the penalty of every failed result, clamped to [0, 100].
func Score(results []CheckResult) int {
	score := 100
	for _, r := range results {
		if !r.Passed {
			score -= r.Severity.Penalty()
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
