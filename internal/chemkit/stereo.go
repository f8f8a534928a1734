package chemkit

// StereoInfo summarises the stereo elements of a molecule.
type StereoInfo struct {
	DefinedCenters   []int    `json:"defined_centers"`
	UndefinedCenters []int    `json:"undefined_centers"`
	DefinedBonds     []int    `json:"defined_double_bonds"`
	UndefinedBonds   []int    `json:"undefined_double_bonds"`
	Conflicts        []string `json:"conflicts,omitempty"`
	Ignored          []int    `json:"ignored_markers,omitempty"`
}

func (s StereoInfo) Count() int {
	return len(s.DefinedCenters) + len(s.DefinedBonds)
}

func (m *Molecule) isStereocenter(atom int, classes []int) bool {
	a := &m.Atoms[atom]
	if a.Aromatic || a.TotalH() > 1 {
		return false
	}
	connections := m.Degree(atom) + a.TotalH()
	doubles := 0
	for _, b := range m.adj[atom] {
		switch m.Bonds[b].Order {
		case BondSingle:
		case BondDouble:
			doubles++
		default:
			return false
		}
	}
	switch a.Number {
	case 6, 14:
		if connections != 4 || doubles > 0 {
			return false
		}
	case 7:
		if connections != 4 || a.Charge != 1 || doubles > 0 {
			return false
		}
	case 15:
		if connections != 4 && !(connections == 3 && doubles == 0) {
			return false
		}
	case 16:
		if !(connections == 3 && doubles == 1) && connections != 4 {
			return false
		}
	default:
		return false
	}

	seen := map[int]bool{}
	if a.TotalH() == 1 {
		seen[-1] = true
	}
	for _, n := range m.Neighbors(atom) {
		if seen[classes[n]] {
			return false
		}
		seen[classes[n]] = true
	}
	return true
}

func (m *Molecule) inSmallRing(bond int) bool {
	if !m.RingBond(bond) {
		return false
	}
	b := &m.Bonds[bond]
	for _, ring := range m.Rings() {
		if len(ring) >= 8 {
			continue
		}
		for k, a := range ring {
			next := ring[(k+1)%len(ring)]
			if (a == b.Begin && next == b.End) || (a == b.End && next == b.Begin) {
				return true
			}
		}
	}
	return false
}

func (m *Molecule) isStereoBond(bond int, classes []int) bool {
	b := &m.Bonds[bond]
	if b.Order != BondDouble || m.inSmallRing(bond) {
		return false
	}
	for _, end := range []int{b.Begin, b.End} {
		other := b.Other(end)
		var subst []int
		for _, n := range m.Neighbors(end) {
			if n != other {
				subst = append(subst, n)
			}
		}
		h := m.Atoms[end].TotalH()
		switch {
		case len(subst) == 2 && h == 0:
			if classes[subst[0]] == classes[subst[1]] {
				return false
			}
		case len(subst) == 1 && h == 1:
		case len(subst) == 1 && h == 0 && m.Atoms[end].Number == 7:
		default:
			return false
		}
	}
	return true
}

// assignStereo drops markers on atoms and bonds that cannot carry stereo.
func (m *Molecule) assignStereo() {
	classes := m.symmetryClasses()
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Chirality == ChiralNone {
			continue
		}
		if !m.isStereocenter(i, classes) {
			a.Chirality = ChiralNone
			m.Ignored = append(m.Ignored, i)
		}
	}
	kept := m.BondStereo[:0]
	for _, st := range m.BondStereo {
		if m.isStereoBond(st.Bond, classes) {
			kept = append(kept, st)
		}
	}
	m.BondStereo = kept
}

func (m *Molecule) stereoInfo() StereoInfo {
	classes := m.symmetryClasses()
	info := StereoInfo{
		DefinedCenters:   []int{},
		UndefinedCenters: []int{},
		DefinedBonds:     []int{},
		UndefinedBonds:   []int{},
		Conflicts:        m.Conflicts,
		Ignored:          m.Ignored,
	}
	for i := range m.Atoms {
		if !m.isStereocenter(i, classes) {
			continue
		}
		if m.Atoms[i].Chirality != ChiralNone {
			info.DefinedCenters = append(info.DefinedCenters, i)
		} else {
			info.UndefinedCenters = append(info.UndefinedCenters, i)
		}
	}
	for b := range m.Bonds {
		if !m.isStereoBond(b, classes) {
			continue
		}
		if m.stereoFor(b) >= 0 {
			info.DefinedBonds = append(info.DefinedBonds, b)
		} else {
			info.UndefinedBonds = append(info.UndefinedBonds, b)
		}
	}
	return info
}
