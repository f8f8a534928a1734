package chemkit

// largestFragment keeps the component with the most heavy atoms. Ties are broken by
// molecular weight and then by the smaller canonical form.
func (m *Molecule) largestFragment() (*Molecule, bool) {
	comps := m.Components()
	if len(comps) <= 1 {
		return m.Clone(), false
	}
	var best *Molecule
	var bestHeavy int
	var bestWeight float64
	var bestSmiles string
	for _, comp := range comps {
		frag := m.Subset(comp)
		heavy := frag.HeavyAtomCount()
		weight := round(frag.MolecularWeight(), 6)
		smiles := frag.writeSMILES(SmilesOptions{})
		switch {
		case best == nil,
			heavy > bestHeavy,
			heavy == bestHeavy && weight > bestWeight,
			heavy == bestHeavy && weight == bestWeight && smiles < bestSmiles:
			best, bestHeavy, bestWeight, bestSmiles = frag, heavy, weight, smiles
		}
	}
	return best, true
}

func (m *Molecule) adjustH(atom, delta int) {
	a := &m.Atoms[atom]
	if a.NoImplicit {
		a.ExplicitH += delta
		if a.ExplicitH < 0 {
			a.ExplicitH = 0
		}
	}
}

func (m *Molecule) nextToCharge(atom int, positive bool) bool {
	for _, n := range m.Neighbors(atom) {
		q := m.Atoms[n].Charge
		if (positive && q > 0) || (!positive && q < 0) {
			return true
		}
	}
	return false
}

// uncharge neutralises protonated cations and deprotonated anions. Charges that are part of a
// charge separated group (nitro, N-oxide) are left alone, as are quaternary cations.
func (m *Molecule) uncharge() (*Molecule, bool, error) {
	out := m.Clone()
	changed := false
	for i := range out.Atoms {
		a := &out.Atoms[i]
		switch {
		case a.Charge < 0 && (a.Number == 8 || a.Number == 16 || a.Number == 7) && !out.nextToCharge(i, true):
			out.adjustH(i, -a.Charge)
			a.Charge = 0
			changed = true
		case a.Charge > 0 && a.Number == 7 && a.TotalH() > 0 && !out.nextToCharge(i, false):
			out.adjustH(i, -a.Charge)
			a.Charge = 0
			changed = true
		}
	}
	if !changed {
		return out, false, nil
	}
	if _, err := out.sanitize(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// enolSite finds C=C-[OH] with non-aromatic atoms and returns the hydroxyl oxygen, its carbon,
// the remote carbon and the double bond.
func (m *Molecule) enolSite() (oxygen, carbon, remote, double int, ok bool) {
	for o := range m.Atoms {
		a := &m.Atoms[o]
		if a.Number != 8 || a.Aromatic || a.Charge != 0 || a.TotalH() != 1 || m.Degree(o) != 1 {
			continue
		}
		c := m.Neighbors(o)[0]
		if m.Atoms[c].Number != 6 || m.Atoms[c].Aromatic {
			continue
		}
		for _, b := range m.adj[c] {
			bond := &m.Bonds[b]
			r := bond.Other(c)
			if bond.Order == BondDouble && m.Atoms[r].Number == 6 && !m.Atoms[r].Aromatic {
				return o, c, r, b, true
			}
		}
	}
	return 0, 0, 0, 0, false
}

// canonicalTautomer applies the keto form for every enol. Double bond stereo on a converted
// bond cannot survive and is dropped.
func (m *Molecule) canonicalTautomer() (*Molecule, bool, error) {
	out := m.Clone()
	changed := false
	for guard := 0; guard < len(out.Atoms); guard++ {
		o, c, r, double, ok := out.enolSite()
		if !ok {
			break
		}
		out.Bonds[double].Order = BondSingle
		out.Bonds[double].Kekule = BondSingle
		co := out.BondBetween(c, o)
		out.Bonds[co].Order = BondDouble
		out.Bonds[co].Kekule = BondDouble
		out.adjustH(o, -1)
		out.adjustH(r, 1)
		if st := out.stereoFor(double); st >= 0 {
			out.BondStereo = append(out.BondStereo[:st], out.BondStereo[st+1:]...)
		}
		for _, b := range out.adj[c] {
			out.Bonds[b].Dir = DirNone
		}
		for _, b := range out.adj[r] {
			out.Bonds[b].Dir = DirNone
		}
		out.assignImplicitH()
		changed = true
	}
	if !changed {
		return out, false, nil
	}
	out.invalidate()
	if _, err := out.sanitize(); err != nil {
		return nil, false, err
	}
	out.assignStereo()
	return out, true, nil
}
