package checks

import "github.com/chemaudit/chemaudit/internal/validation"

type base struct {
	name        string
	description string
	category    validation.Category
	severity    validation.Severity
}

func (b base) Name() string                  { return b.name }
func (b base) Description() string           { return b.description }
func (b base) Category() validation.Category { return b.category }
func (b base) Severity() validation.Severity { return b.severity }

func (b base) pass(message string, details map[string]any) validation.CheckResult {
	return validation.Passed(b.name, message, details)
}

func (b base) fail(message string, atoms []int, details map[string]any) validation.CheckResult {
	return validation.Failed(b.name, b.severity, message, atoms, details)
}

// All returns the checks in reporting order.
func All() []validation.Check {
	return []validation.Check{
		NewParsability(),
		NewSanitization(),
		NewValence(),
		NewAromaticity(),
		NewConnectivity(),
		NewSmilesRoundtrip(),
		NewIdentifierGeneration(),
		NewIdentifierRoundtrip(),
		NewUndefinedStereocenters(),
		NewUndefinedDoubleBondStereo(),
		NewConflictingStereo(),
	}
}

// NewEngine returns an engine with every check registered.
func NewEngine() *validation.Engine {
	e := validation.NewEngine()
	for _, c := range All() {
		e.Register(c)
	}
	return e
}
