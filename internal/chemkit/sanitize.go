package chemkit

import (
	"fmt"
	"sort"
	"strings"
)

// SanitizeFlags is a mask of the sanitization operations.
type SanitizeFlags uint32

const (
	SanitizeNone       SanitizeFlags = 0
	SanitizeProperties SanitizeFlags = 1 << iota
	SanitizeRadicals
	SanitizeKekulize
	SanitizeAromaticity
	SanitizeConjugation
	SanitizeHybridization
	SanitizeRingSymmetry
	SanitizeCleanup
)

var sanitizeNames = []struct {
	flag SanitizeFlags
	name string
}{
	{SanitizeProperties, "properties"},
	{SanitizeRadicals, "radicals"},
	{SanitizeKekulize, "kekulize"},
	{SanitizeAromaticity, "aromaticity"},
	{SanitizeConjugation, "conjugation"},
	{SanitizeHybridization, "hybridization"},
	{SanitizeRingSymmetry, "ring_symmetry"},
	{SanitizeCleanup, "cleanup"},
}

// Names returns the operations set in the mask, in sanitization order.
func (f SanitizeFlags) Names() []string {
	var out []string
	for _, n := range sanitizeNames {
		if f&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (f SanitizeFlags) String() string {
	if f == SanitizeNone {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}

// Problem is a chemistry issue found without modifying the molecule.
type Problem struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Atoms   []int  `json:"atoms,omitempty"`
}

// SanitizeError carries the operation that failed and why.
type SanitizeError struct {
	Flag    SanitizeFlags
	Message string
	Atoms   []int
}

func (e *SanitizeError) Error() string {
	return fmt.Sprintf("sanitization failed at %s: %s", e.Flag, e.Message)
}

// assignImplicitH fills ImplicitH for atoms written without brackets.
func (m *Molecule) assignImplicitH() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		a.ImplicitH = 0
		if a.NoImplicit || a.Number == 0 {
			continue
		}
		vals := allowedValences(a.Number, a.Charge)
		if vals == nil {
			continue
		}
		sum := m.bondValence(i) + a.ExplicitH
		if a.Aromatic {
			if h := vals[0] - sum - 1; h > 0 {
				a.ImplicitH = h
			}
			continue
		}
		for _, v := range vals {
			if v >= sum {
				a.ImplicitH = v - sum
				break
			}
		}
	}
}

func (m *Molecule) valenceProblem(atom int, kekule bool) *Problem {
	a := &m.Atoms[atom]
	vals := allowedValences(a.Number, a.Charge)
	if vals == nil {
		return nil
	}
	v := a.TotalH()
	if kekule {
		v += m.kekuleValence(atom)
	} else {
		v += m.bondValence(atom)
	}
	if v <= vals[len(vals)-1] {
		return nil
	}
	return &Problem{
		Type:    "AtomValenceException",
		Message: fmt.Sprintf("Explicit valence for atom # %d %s, %d, is greater than permitted", atom, a.Symbol, v),
		Atoms:   []int{atom},
	}
}

// normalizeNitro rewrites pentavalent nitro groups N(=O)=O into the charge separated form.
func (m *Molecule) normalizeNitro() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Number != 7 || a.Charge != 0 || a.Aromatic {
			continue
		}
		var oxo []int
		for _, idx := range m.adj[i] {
			b := &m.Bonds[idx]
			o := b.Other(i)
			if b.Order == BondDouble && m.Atoms[o].Number == 8 && m.Atoms[o].Charge == 0 && m.Degree(o) == 1 {
				oxo = append(oxo, idx)
			}
		}
		if len(oxo) != 2 {
			continue
		}
		a.Charge = 1
		m.Bonds[oxo[1]].Order = BondSingle
		o := m.Bonds[oxo[1]].Other(i)
		m.Atoms[o].Charge = -1
		if !m.Atoms[o].NoImplicit {
			m.Atoms[o].NoImplicit = true
			m.Atoms[o].ExplicitH = 0
		}
		if !a.NoImplicit {
			a.NoImplicit = true
			a.ExplicitH = 0
		}
	}
}

func (m *Molecule) assignRadicals() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		a.Radicals = 0
		if !a.NoImplicit {
			continue
		}
		vals := allowedValences(a.Number, a.Charge)
		if vals == nil {
			continue
		}
		v := m.kekuleValence(i) + a.TotalH()
		if v < vals[0] {
			a.Radicals = vals[0] - v
		}
	}
}

// sanitize runs the operations in order and stops at the first failure.
func (m *Molecule) sanitize() (SanitizeFlags, error) {
	m.normalizeNitro()
	m.assignImplicitH()

	for i := range m.Atoms {
		if m.Atoms[i].Aromatic {
			continue
		}
		if p := m.valenceProblem(i, false); p != nil {
			return SanitizeProperties, &SanitizeError{Flag: SanitizeProperties, Message: p.Message, Atoms: p.Atoms}
		}
	}

	m.ensureRings()

	inputAromatic := make([]int, 0)
	for i := range m.Atoms {
		if m.Atoms[i].Aromatic {
			inputAromatic = append(inputAromatic, i)
		}
	}
	if len(inputAromatic) > 0 {
		if err := m.kekulize(); err != nil {
			return SanitizeKekulize, &SanitizeError{Flag: SanitizeKekulize, Message: err.Error(), Atoms: err.(*KekulizeError).Atoms}
		}
		for _, i := range inputAromatic {
			if p := m.valenceProblem(i, true); p != nil {
				return SanitizeProperties, &SanitizeError{Flag: SanitizeProperties, Message: p.Message, Atoms: p.Atoms}
			}
		}
		for _, i := range inputAromatic {
			if !m.AtomInRing(i) {
				return SanitizeAromaticity, &SanitizeError{
					Flag:    SanitizeAromaticity,
					Message: fmt.Sprintf("non-ring atom %d marked aromatic", i),
					Atoms:   []int{i},
				}
			}
		}
	} else {
		for idx := range m.Bonds {
			m.Bonds[idx].Kekule = m.Bonds[idx].Order
		}
	}

	m.perceiveAromaticity()
	m.assignRadicals()
	m.sanitized = true
	return SanitizeNone, nil
}

// detectProblems collects every issue sanitize would stop at, on a copy.
func (m *Molecule) detectProblems() []Problem {
	c := m.Clone()
	c.sanitized = false
	c.normalizeNitro()
	c.assignImplicitH()

	var problems []Problem
	for i := range c.Atoms {
		if c.Atoms[i].Aromatic {
			continue
		}
		if p := c.valenceProblem(i, false); p != nil {
			problems = append(problems, *p)
		}
	}
	if !c.hasAromaticAtoms() {
		return problems
	}
	if err := c.kekulize(); err != nil {
		ke := err.(*KekulizeError)
		problems = append(problems, Problem{Type: "KekulizeException", Message: ke.Error(), Atoms: ke.Atoms})
		return problems
	}
	for i := range c.Atoms {
		if !c.Atoms[i].Aromatic {
			continue
		}
		if p := c.valenceProblem(i, true); p != nil {
			problems = append(problems, *p)
		}
		if !c.AtomInRing(i) {
			problems = append(problems, Problem{
				Type:    "AtomKekulizeException",
				Message: fmt.Sprintf("non-ring atom %d marked aromatic", i),
				Atoms:   []int{i},
			})
		}
	}
	return problems
}

func sortedInts(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}
