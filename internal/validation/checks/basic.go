package checks

import (
	"fmt"
	"strings"

	"github.com/chemaudit/chemaudit/internal/validation"
)

// Compile-time assertions that the basic checks implement validation.Check.
var (
	_ validation.Check = (*Parsability)(nil)
	_ validation.Check = (*Sanitization)(nil)
	_ validation.Check = (*Valence)(nil)
	_ validation.Check = (*Aromaticity)(nil)
	_ validation.Check = (*Connectivity)(nil)
)

type Parsability struct{ base }

func NewParsability() *Parsability {
	return &Parsability{base{
		name:        "parsability",
		description: "Structure can be parsed into a molecule with at least one atom",
		category:    validation.CategoryBasic,
		severity:    validation.SeverityCritical,
	}}
}

func (c *Parsability) Run(s validation.Subject) validation.CheckResult {
	n := s.Molecule.NumAtoms()
	if n == 0 {
		return c.fail("Molecule has no atoms", nil, nil)
	}
	return c.pass("Molecule parsed successfully", map[string]any{"num_atoms": n})
}

type Sanitization struct{ base }

func NewSanitization() *Sanitization {
	return &Sanitization{base{
		name:        "sanitization",
		description: "Molecule passes all sanitization operations",
		category:    validation.CategoryBasic,
		severity:    validation.SeverityError,
	}}
}

func (c *Sanitization) Run(s validation.Subject) validation.CheckResult {
	flag, err := s.Kit.Sanitize(s.Molecule.Clone())
	if err != nil {
		return c.fail("Sanitization failed: "+err.Error(), nil, map[string]any{"failed_operations": flag.Names()})
	}
	return c.pass("Molecule sanitized successfully", nil)
}

type Valence struct{ base }

func NewValence() *Valence {
	return &Valence{base{
		name:        "valence",
		description: "Every atom has a permitted valence",
		category:    validation.CategoryBasic,
		severity:    validation.SeverityCritical,
	}}
}

func (c *Valence) Run(s validation.Subject) validation.CheckResult {
	var atoms []int
	var messages []string
	for _, p := range s.Kit.DetectProblems(s.Molecule) {
		if p.Type != "AtomValenceException" {
			continue
		}
		atoms = append(atoms, p.Atoms...)
		messages = append(messages, p.Message)
	}
	if len(atoms) > 0 {
		return c.fail(fmt.Sprintf("Invalid valence on %d atom(s)", len(atoms)), atoms, map[string]any{"problems": messages})
	}
	return c.pass("All atoms have valid valence", nil)
}

type Aromaticity struct{ base }

func NewAromaticity() *Aromaticity {
	return &Aromaticity{base{
		name:        "aromaticity",
		description: "Aromatic systems can be kekulized and sit in rings",
		category:    validation.CategoryBasic,
		severity:    validation.SeverityError,
	}}
}

func (c *Aromaticity) Run(s validation.Subject) validation.CheckResult {
	var atoms []int
	var messages []string
	for _, p := range s.Kit.DetectProblems(s.Molecule) {
		if !strings.Contains(p.Type, "Kekulize") {
			continue
		}
		atoms = append(atoms, p.Atoms...)
		messages = append(messages, p.Message)
	}
	if len(atoms) > 0 {
		return c.fail("Aromatic system cannot be kekulized", atoms, map[string]any{"problems": messages})
	}
	aromatic := 0
	for i := range s.Molecule.Atoms {
		if s.Molecule.Atoms[i].Aromatic {
			aromatic++
		}
	}
	return c.pass("Aromaticity is consistent", map[string]any{"aromatic_atoms": aromatic})
}

type Connectivity struct{ base }

func NewConnectivity() *Connectivity {
	return &Connectivity{base{
		name:        "connectivity",
		description: "Structure is a single connected fragment",
		category:    validation.CategoryBasic,
		severity:    validation.SeverityWarning,
	}}
}

func (c *Connectivity) Run(s validation.Subject) validation.CheckResult {
	comps := s.Molecule.Components()
	if len(comps) <= 1 {
		return c.pass("Molecule is a single connected fragment", map[string]any{"num_fragments": len(comps)})
	}
	sizes := make([]int, len(comps))
	for i, comp := range comps {
		sizes[i] = len(comp)
	}
	return c.fail(fmt.Sprintf("Molecule has %d disconnected fragments", len(comps)), nil,
		map[string]any{"num_fragments": len(comps), "fragment_sizes": sizes})
}
