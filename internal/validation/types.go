package validation

import "github.com/chemaudit/chemaudit/internal/chemkit"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityPass     Severity = "pass"
)

// Penalty is the number of points a failed check of this severity removes from the score.
func (s Severity) Penalty() int {
	switch s {
	case SeverityCritical:
		return 50
	case SeverityError:
		return 20
	case SeverityWarning:
		return 5
	}
	return 0
}

type Category string

const (
	CategoryBasic          Category = "basic"
	CategoryRepresentation Category = "representation"
	CategoryStereo         Category = "stereochemistry"
)

// Categories lists the categories in reporting order.
var Categories = []Category{CategoryBasic, CategoryRepresentation, CategoryStereo}

// Subject is what a check runs against. Checks must not modify the molecule.
type Subject struct {
	Kit      chemkit.Toolkit
	Molecule *chemkit.Molecule
}

// Check is a single stateless structure check.
type Check interface {
	Name() string
	Category() Category
	Description() string
	// Severity is the severity reported when the check fails.
	Severity() Severity
	Run(s Subject) CheckResult
}

type CheckResult struct {
	Name          string         `json:"check_name"`
	Passed        bool           `json:"passed"`
	Severity      Severity       `json:"severity"`
	Message       string         `json:"message"`
	AffectedAtoms []int          `json:"affected_atoms,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

type Outcome struct {
	OverallScore int           `json:"overall_score"`
	Issues       []CheckResult `json:"issues"`
	AllChecks    []CheckResult `json:"all_checks"`
}

// FailedChecks returns the names of the failed checks in run order.
func (o *Outcome) FailedChecks() []string {
	names := make([]string, 0, len(o.Issues))
	for _, r := range o.Issues {
		names = append(names, r.Name)
	}
	return names
}

// Passed builds a passing result.
func Passed(name, message string, details map[string]any) CheckResult {
	return CheckResult{Name: name, Passed: true, Severity: SeverityPass, Message: message, Details: details}
}

// Failed builds a failing result with the given severity.
func Failed(name string, severity Severity, message string, atoms []int, details map[string]any) CheckResult {
	return CheckResult{Name: name, Passed: false, Severity: severity, Message: message, AffectedAtoms: atoms, Details: details}
}
