package chemkit

import "math"

// Descriptors are the physico-chemical properties computed by the toolkit.
type Descriptors struct {
	MolecularFormula string  `json:"molecular_formula"`
	MolecularWeight  float64 `json:"molecular_weight"`
	HeavyAtoms       int     `json:"heavy_atoms"`
	NumBonds         int     `json:"num_bonds"`
	NumRings         int     `json:"num_rings"`
	NumAromaticRings int     `json:"num_aromatic_rings"`
	FormalCharge     int     `json:"formal_charge"`
	HBondDonors      int     `json:"hbd"`
	HBondAcceptors   int     `json:"hba"`
	RotatableBonds   int     `json:"rotatable_bonds"`
	LogP             float64 `json:"logp"`
	TPSA             float64 `json:"tpsa"`
	FractionCSP3     float64 `json:"fraction_csp3"`
	NumFragments     int     `json:"num_fragments"`
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (m *Molecule) descriptors() Descriptors {
	d := Descriptors{
		MolecularFormula: m.Formula(),
		MolecularWeight:  round(m.MolecularWeight(), 3),
		HeavyAtoms:       m.HeavyAtomCount(),
		NumBonds:         len(m.Bonds),
		NumRings:         m.RingCount(),
		FormalCharge:     m.NetCharge(),
		NumFragments:     len(m.Components()),
	}
	for _, ring := range m.Rings() {
		aromatic := true
		for _, a := range ring {
			if !m.Atoms[a].Aromatic {
				aromatic = false
				break
			}
		}
		if aromatic {
			d.NumAromaticRings++
		}
	}

	carbons, sp3 := 0, 0
	logp, tpsa := 0.0, 0.0
	for i := range m.Atoms {
		a := &m.Atoms[i]
		h := a.TotalH()
		switch a.Number {
		case 7, 8:
			d.HBondAcceptors++
			if h > 0 {
				d.HBondDonors++
			}
		}
		if a.Number == 6 {
			carbons++
			if m.saturated(i) {
				sp3++
			}
		}
		logp += m.logPContribution(i)
		tpsa += m.polarSurface(i)
	}
	if carbons > 0 {
		d.FractionCSP3 = round(float64(sp3)/float64(carbons), 3)
	}
	d.LogP = round(logp, 2)
	d.TPSA = round(tpsa, 2)

	for idx := range m.Bonds {
		b := &m.Bonds[idx]
		if b.Order != BondSingle || m.RingBond(idx) {
			continue
		}
		if m.heavyDegree(b.Begin) < 2 || m.heavyDegree(b.End) < 2 {
			continue
		}
		if m.hasTriple(b.Begin) || m.hasTriple(b.End) {
			continue
		}
		d.RotatableBonds++
	}
	return d
}

func (m *Molecule) heavyDegree(atom int) int {
	n := 0
	for _, other := range m.Neighbors(atom) {
		if m.Atoms[other].Number != 1 {
			n++
		}
	}
	return n
}

func (m *Molecule) hasTriple(atom int) bool {
	for _, b := range m.adj[atom] {
		if m.Bonds[b].Order == BondTriple {
			return true
		}
	}
	return false
}

func (m *Molecule) saturated(atom int) bool {
	if m.Atoms[atom].Aromatic {
		return false
	}
	for _, b := range m.adj[atom] {
		if m.Bonds[b].Order != BondSingle {
			return false
		}
	}
	return true
}

func (m *Molecule) doubleBondedTo(atom, number int) bool {
	for _, b := range m.adj[atom] {
		if m.Bonds[b].Order == BondDouble && m.Atoms[m.Bonds[b].Other(atom)].Number == number {
			return true
		}
	}
	return false
}

// logPContribution is a coarse atom-contribution estimate of the octanol/water partition.
func (m *Molecule) logPContribution(atom int) float64 {
	a := &m.Atoms[atom]
	v := 0.0
	switch a.Number {
	case 6:
		v = 0.36
		if a.Aromatic {
			v = 0.29
		}
	case 7:
		v = -1.0
		if a.Aromatic {
			v = -0.5
		}
	case 8:
		switch {
		case a.TotalH() > 0:
			v = -0.9
		case m.Degree(atom) == 1:
			v = -0.5
		default:
			v = -0.3
		}
	case 16:
		v = 0.5
	case 9:
		v = 0.35
	case 17:
		v = 0.7
	case 35:
		v = 0.9
	case 53:
		v = 1.2
	case 15:
		v = -0.3
	}
	if a.Charge != 0 {
		v -= 1.5
	}
	return v
}

// polarSurface approximates the topological polar surface contribution of N and O atoms.
func (m *Molecule) polarSurface(atom int) float64 {
	a := &m.Atoms[atom]
	h := a.TotalH()
	switch a.Number {
	case 7:
		switch {
		case a.Aromatic && h > 0:
			return 15.79
		case a.Aromatic:
			return 12.89
		case a.Charge > 0:
			return 4.36 * float64(h+1)
		case m.doubleBondedTo(atom, 6) || m.doubleBondedTo(atom, 7):
			return 12.36 + 11.68*float64(h)
		case h == 2:
			return 26.02
		case h == 1:
			return 12.03
		case m.hasTriple(atom):
			return 23.79
		}
		return 3.24
	case 8:
		switch {
		case a.Aromatic:
			return 13.14
		case a.Charge < 0:
			return 23.06
		case h > 0:
			return 20.23
		case m.Degree(atom) == 1:
			return 17.07
		}
		return 9.23
	}
	return 0
}
