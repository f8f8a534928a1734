package chemkit

import (
	"fmt"
	"sort"
	"strings"
)

// SmilesOptions controls the written line notation.
type SmilesOptions struct {
	Kekule     bool
	NoStereo   bool
	NoIsotopes bool
}

type childEdge struct {
	atom int
	bond int
}

type directed struct {
	from int
	dir  BondDir
}

type smilesWriter struct {
	m        *Molecule
	opts     SmilesOptions
	ranks    []int
	visited  []bool
	preorder []int
	children [][]childEdge
	ringAt   [][]int
	ringBond map[int]bool
	digits   map[int]int
	free     []bool
	dirs     map[int]directed
	sb       strings.Builder
}

func (m *Molecule) writeSMILES(opts SmilesOptions) string {
	w := &smilesWriter{
		m:        m,
		opts:     opts,
		ranks:    m.canonicalRanks(),
		visited:  make([]bool, len(m.Atoms)),
		preorder: make([]int, len(m.Atoms)),
		children: make([][]childEdge, len(m.Atoms)),
		ringAt:   make([][]int, len(m.Atoms)),
		ringBond: map[int]bool{},
		digits:   map[int]int{},
		free:     make([]bool, 100),
		dirs:     map[int]directed{},
	}
	for i := range w.free {
		w.free[i] = true
	}

	comps := m.Components()
	sort.Slice(comps, func(a, b int) bool {
		return w.minRank(comps[a]) < w.minRank(comps[b])
	})

	counter := 0
	starts := make([]int, 0, len(comps))
	for _, comp := range comps {
		start := comp[0]
		for _, a := range comp {
			if w.ranks[a] < w.ranks[start] {
				start = a
			}
		}
		starts = append(starts, start)
		w.walk(start, -1, &counter)
	}
	for b := range w.ringBond {
		bond := &m.Bonds[b]
		w.ringAt[bond.Begin] = append(w.ringAt[bond.Begin], b)
		w.ringAt[bond.End] = append(w.ringAt[bond.End], b)
	}
	if !opts.NoStereo {
		w.assignDirections()
	}

	for k, start := range starts {
		if k > 0 {
			w.sb.WriteByte('.')
		}
		w.write(start, -1, -1)
	}
	return w.sb.String()
}

func (w *smilesWriter) minRank(comp []int) int {
	best := w.ranks[comp[0]]
	for _, a := range comp {
		if w.ranks[a] < best {
			best = w.ranks[a]
		}
	}
	return best
}

func (w *smilesWriter) sortedBonds(atom, skip int) []int {
	var bonds []int
	for _, b := range w.m.adj[atom] {
		if b != skip {
			bonds = append(bonds, b)
		}
	}
	sort.Slice(bonds, func(i, j int) bool {
		return w.ranks[w.m.Bonds[bonds[i]].Other(atom)] < w.ranks[w.m.Bonds[bonds[j]].Other(atom)]
	})
	return bonds
}

func (w *smilesWriter) walk(atom, parentBond int, counter *int) {
	w.visited[atom] = true
	w.preorder[atom] = *counter
	*counter++
	for _, b := range w.sortedBonds(atom, parentBond) {
		other := w.m.Bonds[b].Other(atom)
		if w.visited[other] {
			w.ringBond[b] = true
			continue
		}
		if w.ringBond[b] {
			continue
		}
		w.children[atom] = append(w.children[atom], childEdge{atom: other, bond: b})
		w.walk(other, b, counter)
	}
}

// ringOrder lists the ring bonds of atom: closures first, then openings by partner rank.
func (w *smilesWriter) ringOrder(atom int) (closing, opening []int) {
	for _, b := range w.ringAt[atom] {
		other := w.m.Bonds[b].Other(atom)
		if w.preorder[other] < w.preorder[atom] {
			closing = append(closing, b)
		} else {
			opening = append(opening, b)
		}
	}
	sort.Slice(closing, func(i, j int) bool { return w.digits[closing[i]] < w.digits[closing[j]] })
	sort.Slice(opening, func(i, j int) bool {
		return w.ranks[w.m.Bonds[opening[i]].Other(atom)] < w.ranks[w.m.Bonds[opening[j]].Other(atom)]
	})
	return closing, opening
}

func (w *smilesWriter) write(atom, parentBond, parent int) {
	if parentBond >= 0 {
		w.sb.WriteString(w.bondText(parentBond, parent))
	}
	closing, opening := w.ringOrder(atom)

	var order []int
	if parent >= 0 {
		order = append(order, parent)
	}
	if w.m.Atoms[atom].TotalH() > 0 {
		order = append(order, hydrogenRef)
	}
	for _, b := range closing {
		order = append(order, w.m.Bonds[b].Other(atom))
	}
	for _, b := range opening {
		order = append(order, w.m.Bonds[b].Other(atom))
	}
	for _, c := range w.children[atom] {
		order = append(order, c.atom)
	}
	w.sb.WriteString(w.atomText(atom, w.outputChirality(atom, order)))

	for _, b := range closing {
		w.sb.WriteString(digitText(w.digits[b]))
	}
	for _, b := range opening {
		d := w.allocDigit()
		w.digits[b] = d
		w.sb.WriteString(w.bondText(b, atom))
		w.sb.WriteString(digitText(d))
	}
	for _, b := range closing {
		w.free[w.digits[b]] = true
	}

	for k, c := range w.children[atom] {
		if k < len(w.children[atom])-1 {
			w.sb.WriteByte('(')
			w.write(c.atom, c.bond, atom)
			w.sb.WriteByte(')')
			continue
		}
		w.write(c.atom, c.bond, atom)
	}
}

func (w *smilesWriter) allocDigit() int {
	for d := 1; d < len(w.free); d++ {
		if w.free[d] {
			w.free[d] = false
			return d
		}
	}
	return 99
}

func digitText(d int) string {
	if d < 10 {
		return string(rune('0' + d))
	}
	return fmt.Sprintf("%%%02d", d)
}

// outputChirality maps the stored tag onto the neighbour order used in the output.
func (w *smilesWriter) outputChirality(atom int, order []int) Chirality {
	a := &w.m.Atoms[atom]
	if w.opts.NoStereo || a.Chirality == ChiralNone {
		return ChiralNone
	}
	if len(order) != len(a.Order) {
		return ChiralNone
	}
	pos := make(map[int]int, len(a.Order))
	for i, n := range a.Order {
		pos[n] = i
	}
	perm := make([]int, len(order))
	for i, n := range order {
		p, ok := pos[n]
		if !ok {
			return ChiralNone
		}
		perm[i] = p
	}
	if permutationParity(perm) {
		return a.Chirality.invert()
	}
	return a.Chirality
}

// permutationParity reports an odd permutation.
func permutationParity(perm []int) bool {
	odd := false
	for i := 0; i < len(perm); i++ {
		for j := i + 1; j < len(perm); j++ {
			if perm[i] > perm[j] {
				odd = !odd
			}
		}
	}
	return odd
}

func (w *smilesWriter) aromaticOut(atom int) bool {
	return w.m.Atoms[atom].Aromatic && !w.opts.Kekule
}

func (w *smilesWriter) bondOrder(b int) BondOrder {
	bond := &w.m.Bonds[b]
	if w.opts.Kekule && bond.Kekule != 0 {
		return bond.Kekule
	}
	return bond.Order
}

// impliedH is the hydrogen count a reader infers for the atom written without brackets.
func (w *smilesWriter) impliedH(atom int) int {
	a := &w.m.Atoms[atom]
	vals := allowedValences(a.Number, 0)
	if vals == nil {
		return 0
	}
	sum := 0
	for _, b := range w.m.adj[atom] {
		sum += w.bondOrder(b).valence()
	}
	if w.aromaticOut(atom) {
		if h := vals[0] - sum - 1; h > 0 {
			return h
		}
		return 0
	}
	for _, v := range vals {
		if v >= sum {
			return v - sum
		}
	}
	return 0
}

func (w *smilesWriter) atomText(atom int, chirality Chirality) string {
	a := &w.m.Atoms[atom]
	sym := a.Symbol
	if w.aromaticOut(atom) {
		sym = strings.ToLower(sym)
	}
	isotope := a.Isotope
	if w.opts.NoIsotopes {
		isotope = 0
	}
	bracket := !organicSubset[a.Symbol] || isotope != 0 || a.Charge != 0 ||
		chirality != ChiralNone || a.Radicals > 0 || w.impliedH(atom) != a.TotalH()
	if !bracket {
		return sym
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if isotope != 0 {
		sb.WriteString(fmt.Sprint(isotope))
	}
	sb.WriteString(sym)
	switch chirality {
	case ChiralCCW:
		sb.WriteString("@")
	case ChiralCW:
		sb.WriteString("@@")
	}
	switch h := a.TotalH(); {
	case h == 1:
		sb.WriteString("H")
	case h > 1:
		sb.WriteString(fmt.Sprintf("H%d", h))
	}
	switch {
	case a.Charge == 1:
		sb.WriteString("+")
	case a.Charge == -1:
		sb.WriteString("-")
	case a.Charge > 1:
		sb.WriteString(fmt.Sprintf("+%d", a.Charge))
	case a.Charge < -1:
		sb.WriteString(fmt.Sprintf("-%d", -a.Charge))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (w *smilesWriter) bondText(b, from int) string {
	if d, ok := w.dirs[b]; ok {
		dir := d.dir
		if d.from != from {
			dir = dir.flip()
		}
		if dir == DirUp {
			return "/"
		}
		return "\\"
	}
	bond := &w.m.Bonds[b]
	switch w.bondOrder(b) {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondQuadruple:
		return "$"
	case BondAromatic:
		if w.aromaticOut(bond.Begin) && w.aromaticOut(bond.End) {
			return ""
		}
		return ":"
	}
	if w.aromaticOut(bond.Begin) && w.aromaticOut(bond.End) {
		return "-"
	}
	return ""
}

// assignDirections chooses "/" and "\" markers that reproduce every stored double bond configuration.
func (w *smilesWriter) assignDirections() {
	stereo := append([]DoubleBondStereo(nil), w.m.BondStereo...)
	sort.Slice(stereo, func(i, j int) bool {
		return w.bondRank(stereo[i].Bond) < w.bondRank(stereo[j].Bond)
	})
	for _, st := range stereo {
		db := &w.m.Bonds[st.Bond]
		if db.Order != BondDouble {
			continue
		}
		x, y := db.Begin, db.End
		refA, refB := st.RefA, st.RefB
		if w.m.BondBetween(x, refA) < 0 {
			refA, refB = refB, refA
		}
		cis := st.Cis

		a := w.pickReference(x, st.Bond)
		b := w.pickReference(y, st.Bond)
		if a < 0 || b < 0 {
			continue
		}
		if a != refA {
			cis = !cis
		}
		if b != refB {
			cis = !cis
		}

		bondXA := w.m.BondBetween(x, a)
		bondYB := w.m.BondBetween(y, b)
		relX := DirUp
		if d, ok := w.dirs[bondXA]; ok {
			relX = relative(d, x)
		}
		want := relX
		if !cis {
			want = want.flip()
		}
		if d, ok := w.dirs[bondYB]; ok && relative(d, y) != want {
			continue
		}
		w.dirs[bondXA] = directed{from: x, dir: relX}
		w.dirs[bondYB] = directed{from: y, dir: want}
	}
}

func relative(d directed, atom int) BondDir {
	if d.from == atom {
		return d.dir
	}
	return d.dir.flip()
}

func (w *smilesWriter) bondRank(b int) int {
	bond := &w.m.Bonds[b]
	r := w.ranks[bond.Begin]
	if w.ranks[bond.End] < r {
		r = w.ranks[bond.End]
	}
	return r
}

// pickReference prefers a neighbour whose bond already carries a direction, else the lowest ranked one.
func (w *smilesWriter) pickReference(atom, doubleBond int) int {
	best := -1
	for _, b := range w.m.adj[atom] {
		if b == doubleBond || w.m.Bonds[b].Order != BondSingle {
			continue
		}
		other := w.m.Bonds[b].Other(atom)
		if _, ok := w.dirs[b]; ok {
			return other
		}
		if best < 0 || w.ranks[other] < w.ranks[best] {
			best = other
		}
	}
	return best
}
