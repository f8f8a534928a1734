package chemkit

import "sort"

type Chirality int

const (
	ChiralNone Chirality = iota
	// ChiralCCW is "@": looking from the first neighbour the others are anticlockwise.
	ChiralCCW
	// ChiralCW is "@@".
	ChiralCW
)

func (c Chirality) invert() Chirality {
	switch c {
	case ChiralCCW:
		return ChiralCW
	case ChiralCW:
		return ChiralCCW
	}
	return c
}

type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// valence is the contribution of the bond to an atom valence, aromatic bonds counting as single.
func (o BondOrder) valence() int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondQuadruple:
		return 4
	}
	return 1
}

// BondDir is the directional marker of a single bond, read from Begin to End.
type BondDir int

const (
	DirNone BondDir = iota
	DirUp           // "/"
	DirDown         // "\"
)

func (d BondDir) flip() BondDir {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	}
	return d
}

// hydrogenRef stands for the (implicit or bracket) hydrogen inside a chirality neighbour order.
const hydrogenRef = -1

type Atom struct {
	Symbol    string
	Number    int
	Isotope   int
	Charge    int
	ExplicitH int
	ImplicitH int
	// NoImplicit is set for bracket atoms: their hydrogen count is exactly ExplicitH.
	NoImplicit bool
	Aromatic   bool
	Chirality  Chirality
	// Order lists the neighbours in the order the chirality refers to.
	Order    []int
	Radicals int
	MapNum   int
}

func (a *Atom) TotalH() int {
	return a.ExplicitH + a.ImplicitH
}

type Bond struct {
	Begin  int
	End    int
	Order  BondOrder
	Dir    BondDir
	Kekule BondOrder
}

func (b *Bond) Other(atom int) int {
	if b.Begin == atom {
		return b.End
	}
	return b.Begin
}

// dirFrom is the direction of the bond seen from atom.
func (b *Bond) dirFrom(atom int) BondDir {
	if b.Begin == atom {
		return b.Dir
	}
	return b.Dir.flip()
}

// DoubleBondStereo stores a configured double bond relative to one reference neighbour on each side.
type DoubleBondStereo struct {
	Bond int
	RefA int
	RefB int
	Cis  bool
}

type Molecule struct {
	Atoms      []Atom
	Bonds      []Bond
	BondStereo []DoubleBondStereo
	// Conflicts lists stereo descriptors that contradict each other.
	Conflicts []string
	// Ignored lists atoms whose chirality marker was dropped because they are not stereocenters.
	Ignored []int

	adj       [][]int
	rings     [][]int
	ringBonds map[int]bool
	sanitized bool
}

func NewMolecule() *Molecule {
	return &Molecule{}
}

func (m *Molecule) NumAtoms() int {
	return len(m.Atoms)
}

func (m *Molecule) NumBonds() int {
	return len(m.Bonds)
}

func (m *Molecule) addAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adj = append(m.adj, nil)
	m.invalidate()
	return len(m.Atoms) - 1
}

func (m *Molecule) addBond(b Bond) int {
	m.Bonds = append(m.Bonds, b)
	idx := len(m.Bonds) - 1
	m.adj[b.Begin] = append(m.adj[b.Begin], idx)
	m.adj[b.End] = append(m.adj[b.End], idx)
	m.invalidate()
	return idx
}

func (m *Molecule) invalidate() {
	m.rings = nil
	m.ringBonds = nil
}

// BondsOf returns the bond indices of atom.
func (m *Molecule) BondsOf(atom int) []int {
	return m.adj[atom]
}

func (m *Molecule) Neighbors(atom int) []int {
	out := make([]int, 0, len(m.adj[atom]))
	for _, b := range m.adj[atom] {
		out = append(out, m.Bonds[b].Other(atom))
	}
	return out
}

func (m *Molecule) Degree(atom int) int {
	return len(m.adj[atom])
}

// BondBetween returns the bond index joining a and b or -1.
func (m *Molecule) BondBetween(a, b int) int {
	for _, idx := range m.adj[a] {
		if m.Bonds[idx].Other(a) == b {
			return idx
		}
	}
	return -1
}

func (m *Molecule) bondValence(atom int) int {
	v := 0
	for _, idx := range m.adj[atom] {
		v += m.Bonds[idx].Order.valence()
	}
	return v
}

// kekuleValence uses the kekulé orders once aromatic bonds were resolved.
func (m *Molecule) kekuleValence(atom int) int {
	v := 0
	for _, idx := range m.adj[atom] {
		b := &m.Bonds[idx]
		if b.Kekule != 0 {
			v += b.Kekule.valence()
			continue
		}
		v += b.Order.valence()
	}
	return v
}

func (m *Molecule) hasAromaticAtoms() bool {
	for i := range m.Atoms {
		if m.Atoms[i].Aromatic {
			return true
		}
	}
	return false
}

func (m *Molecule) NetCharge() int {
	q := 0
	for i := range m.Atoms {
		q += m.Atoms[i].Charge
	}
	return q
}

// Components returns the atom sets of the connected fragments, each sorted.
func (m *Molecule) Components() [][]int {
	seen := make([]bool, len(m.Atoms))
	var out [][]int
	for start := range m.Atoms {
		if seen[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, cur)
			for _, n := range m.Neighbors(cur) {
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
		sort.Ints(comp)
		out = append(out, comp)
	}
	return out
}

// Clone returns a deep copy.
func (m *Molecule) Clone() *Molecule {
	all := make([]int, len(m.Atoms))
	for i := range all {
		all[i] = i
	}
	return m.Subset(all)
}

// Subset returns the molecule restricted to atoms, renumbered in the given order.
func (m *Molecule) Subset(atoms []int) *Molecule {
	remap := make(map[int]int, len(atoms))
	for newIdx, old := range atoms {
		remap[old] = newIdx
	}
	out := &Molecule{sanitized: m.sanitized}
	for _, old := range atoms {
		a := m.Atoms[old]
		if len(a.Order) > 0 {
			order := make([]int, 0, len(a.Order))
			for _, n := range a.Order {
				if n == hydrogenRef {
					order = append(order, n)
				} else if mapped, ok := remap[n]; ok {
					order = append(order, mapped)
				}
			}
			a.Order = order
		}
		out.addAtom(a)
	}
	bondRemap := make(map[int]int)
	for idx, b := range m.Bonds {
		nb, okB := remap[b.Begin]
		ne, okE := remap[b.End]
		if !okB || !okE {
			continue
		}
		b.Begin, b.End = nb, ne
		bondRemap[idx] = out.addBond(b)
	}
	for _, st := range m.BondStereo {
		nb, ok := bondRemap[st.Bond]
		ra, okA := remap[st.RefA]
		rb, okB := remap[st.RefB]
		if ok && okA && okB {
			out.BondStereo = append(out.BondStereo, DoubleBondStereo{Bond: nb, RefA: ra, RefB: rb, Cis: st.Cis})
		}
	}
	out.Conflicts = append(out.Conflicts, m.Conflicts...)
	for _, i := range m.Ignored {
		if mapped, ok := remap[i]; ok {
			out.Ignored = append(out.Ignored, mapped)
		}
	}
	return out
}

func (m *Molecule) HeavyAtomCount() int {
	n := 0
	for i := range m.Atoms {
		if m.Atoms[i].Number != 1 {
			n++
		}
	}
	return n
}

func (m *Molecule) stereoFor(bond int) int {
	for i, st := range m.BondStereo {
		if st.Bond == bond {
			return i
		}
	}
	return -1
}
