package chemkit

import "sort"

func (m *Molecule) atomInvariant(i int) []int {
	a := &m.Atoms[i]
	aromatic, ring := 0, 0
	if a.Aromatic {
		aromatic = 1
	}
	if m.AtomInRing(i) {
		ring = 1
	}
	return []int{a.Number, a.Isotope, a.Charge, m.Degree(i), a.TotalH(), aromatic, ring}
}

func bondCode(o BondOrder) int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondQuadruple:
		return 5
	case BondAromatic:
		return 4
	}
	return 1
}

// denseRank ranks the keys lexicographically; equal keys share a rank.
func denseRank(keys [][]int) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return lessInts(keys[idx[a]], keys[idx[b]])
	})
	ranks := make([]int, len(keys))
	rank := 0
	for k, i := range idx {
		if k > 0 && lessInts(keys[idx[k-1]], keys[i]) {
			rank++
		}
		ranks[i] = rank
	}
	return ranks
}

func lessInts(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func distinct(ranks []int) int {
	seen := make(map[int]struct{}, len(ranks))
	for _, r := range ranks {
		seen[r] = struct{}{}
	}
	return len(seen)
}

// refine splits rank classes by their neighbourhoods until the partition is stable.
func (m *Molecule) refine(ranks []int) []int {
	for {
		keys := make([][]int, len(m.Atoms))
		for i := range m.Atoms {
			var nbr []int
			for _, idx := range m.adj[i] {
				b := &m.Bonds[idx]
				nbr = append(nbr, ranks[b.Other(i)]*8+bondCode(b.Order))
			}
			sort.Ints(nbr)
			keys[i] = append([]int{ranks[i]}, nbr...)
		}
		next := denseRank(keys)
		if distinct(next) == distinct(ranks) {
			return next
		}
		ranks = next
	}
}

// symmetryClasses groups topologically equivalent atoms.
func (m *Molecule) symmetryClasses() []int {
	keys := make([][]int, len(m.Atoms))
	for i := range m.Atoms {
		keys[i] = m.atomInvariant(i)
	}
	return m.refine(denseRank(keys))
}

// canonicalRanks breaks the remaining ties of the symmetry classes, lowest index first.
func (m *Molecule) canonicalRanks() []int {
	ranks := m.symmetryClasses()
	for distinct(ranks) < len(ranks) {
		count := make(map[int]int, len(ranks))
		for _, r := range ranks {
			count[r]++
		}
		tied := -1
		for _, r := range ranks {
			if count[r] > 1 && (tied < 0 || r < tied) {
				tied = r
			}
		}
		chosen := -1
		for i, r := range ranks {
			if r == tied {
				chosen = i
				break
			}
		}
		for i := range ranks {
			ranks[i] *= 2
		}
		ranks[chosen]--
		ranks = m.refine(ranks)
	}
	return ranks
}
