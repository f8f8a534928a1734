package chemkit

import (
	"fmt"
	"strings"
)

const kekulizeBudget = 200000

// KekulizeError lists the aromatic atoms for which no alternating assignment exists.
type KekulizeError struct {
	Atoms []int
}

func (e *KekulizeError) Error() string {
	ids := make([]string, len(e.Atoms))
	for i, a := range e.Atoms {
		ids[i] = fmt.Sprint(a)
	}
	return "Can't kekulize mol.  Unkekulized atoms: " + strings.Join(ids, " ")
}

// needsDouble reports whether an aromatic atom must take one double bond in the kekulé form.
func (m *Molecule) needsDouble(atom int) bool {
	a := &m.Atoms[atom]
	if !a.Aromatic {
		return false
	}
	vals := allowedValences(a.Number, a.Charge)
	if vals == nil {
		return false
	}
	current := a.TotalH()
	for _, idx := range m.adj[atom] {
		current += m.Bonds[idx].Order.valence()
	}
	for _, v := range vals {
		if v >= current {
			return v-current >= 1
		}
	}
	return false
}

// kekulize assigns alternating single/double orders to aromatic bonds, stored in Bond.Kekule.
func (m *Molecule) kekulize() error {
	needs := make(map[int]bool)
	for i := range m.Atoms {
		if m.needsDouble(i) {
			needs[i] = true
		}
	}
	partner := make(map[int]int, len(needs))

	options := func(atom int) []int {
		var out []int
		for _, idx := range m.adj[atom] {
			b := &m.Bonds[idx]
			if b.Order != BondAromatic {
				continue
			}
			other := b.Other(atom)
			if !needs[other] {
				continue
			}
			if _, taken := partner[other]; taken {
				continue
			}
			out = append(out, idx)
		}
		return out
	}

	steps := 0
	var solve func() bool
	solve = func() bool {
		steps++
		if steps > kekulizeBudget {
			return false
		}
		best, bestOpts := -1, []int(nil)
		for atom := range m.Atoms {
			if !needs[atom] {
				continue
			}
			if _, done := partner[atom]; done {
				continue
			}
			opts := options(atom)
			if best < 0 || len(opts) < len(bestOpts) {
				best, bestOpts = atom, opts
			}
			if len(opts) == 0 {
				break
			}
		}
		if best < 0 {
			return true
		}
		for _, idx := range bestOpts {
			other := m.Bonds[idx].Other(best)
			partner[best], partner[other] = idx, idx
			if solve() {
				return true
			}
			delete(partner, best)
			delete(partner, other)
		}
		return false
	}

	if !solve() {
		var unmatched []int
		for atom := range m.Atoms {
			if needs[atom] {
				if _, ok := partner[atom]; !ok {
					unmatched = append(unmatched, atom)
				}
			}
		}
		if len(unmatched) == 0 {
			for atom := range needs {
				unmatched = append(unmatched, atom)
			}
		}
		return &KekulizeError{Atoms: sortedInts(unmatched)}
	}

	double := make(map[int]bool, len(partner))
	for _, idx := range partner {
		double[idx] = true
	}
	for idx := range m.Bonds {
		b := &m.Bonds[idx]
		switch {
		case b.Order != BondAromatic:
			b.Kekule = b.Order
		case double[idx]:
			b.Kekule = BondDouble
		default:
			b.Kekule = BondSingle
		}
	}
	return nil
}

// perceiveAromaticity resets the aromatic flags from the kekulé form with a per-ring Hückel rule.
func (m *Molecule) perceiveAromaticity() {
	for idx := range m.Bonds {
		b := &m.Bonds[idx]
		if b.Kekule == 0 {
			b.Kekule = b.Order
		}
		b.Order = b.Kekule
	}
	for i := range m.Atoms {
		m.Atoms[i].Aromatic = false
	}

	for _, ring := range m.Rings() {
		if !m.aromaticRing(ring) {
			continue
		}
		for k, atom := range ring {
			m.Atoms[atom].Aromatic = true
			next := ring[(k+1)%len(ring)]
			if idx := m.BondBetween(atom, next); idx >= 0 {
				m.Bonds[idx].Order = BondAromatic
			}
		}
	}
}

func (m *Molecule) aromaticRing(ring []int) bool {
	members := make(map[int]bool, len(ring))
	for _, a := range ring {
		members[a] = true
	}
	total := 0
	for _, atom := range ring {
		e := m.piElectrons(atom, members)
		if e < 0 {
			return false
		}
		total += e
	}
	return total >= 2 && (total-2)%4 == 0
}

// piElectrons is the contribution of a ring atom, -1 when the atom breaks conjugation.
func (m *Molecule) piElectrons(atom int, ring map[int]bool) int {
	a := &m.Atoms[atom]
	switch a.Number {
	case 5, 6, 7, 8, 15, 16, 33, 34, 52:
	default:
		return -1
	}

	double := -1
	for _, idx := range m.adj[atom] {
		switch m.Bonds[idx].Kekule {
		case BondDouble:
			if double >= 0 {
				return -1
			}
			double = idx
		case BondTriple, BondQuadruple:
			return -1
		}
	}
	connections := m.Degree(atom) + a.TotalH()

	if double >= 0 {
		other := m.Bonds[double].Other(atom)
		switch {
		case ring[other]:
			return 1
		case m.AtomInRing(other) && !m.RingBond(double) && m.Atoms[other].Number == 6:
			return -1
		case m.AtomInRing(other):
			return 1
		case m.Atoms[other].Number == 7 || m.Atoms[other].Number == 8 || m.Atoms[other].Number == 16:
			return 0
		}
		return -1
	}

	switch a.Number {
	case 6:
		switch a.Charge {
		case -1:
			return 2
		case 1:
			return 0
		}
		return -1
	case 5:
		if connections == 3 {
			return 0
		}
		return -1
	case 7, 15, 33:
		if a.Charge == 0 && connections == 3 {
			return 2
		}
		if a.Charge == -1 && connections == 2 {
			return 2
		}
		return -1
	default:
		if a.Charge == 0 && connections == 2 {
			return 2
		}
		if a.Charge == 1 && connections == 3 {
			return 2
		}
		return -1
	}
}
