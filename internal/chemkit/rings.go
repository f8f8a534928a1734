package chemkit

import (
	"sort"
)

// RingBond reports whether the bond lies on a cycle.
func (m *Molecule) RingBond(bond int) bool {
	m.ensureRings()
	return m.ringBonds[bond]
}

func (m *Molecule) AtomInRing(atom int) bool {
	for _, b := range m.adj[atom] {
		if m.RingBond(b) {
			return true
		}
	}
	return false
}

// Rings returns a set of smallest rings, one per independent cycle, as atom cycles in ring order.
func (m *Molecule) Rings() [][]int {
	m.ensureRings()
	return m.rings
}

func (m *Molecule) ensureRings() {
	if m.ringBonds != nil {
		return
	}
	m.ringBonds = m.findRingBonds()
	m.rings = m.findRings()
}

// findRingBonds marks every bond that is not a bridge.
func (m *Molecule) findRingBonds() map[int]bool {
	n := len(m.Atoms)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	bridges := map[int]bool{}
	timer := 0

	var visit func(u, parentBond int)
	visit = func(u, parentBond int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, b := range m.adj[u] {
			if b == parentBond {
				continue
			}
			v := m.Bonds[b].Other(u)
			if disc[v] < 0 {
				visit(v, b)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if low[v] > disc[u] {
					bridges[b] = true
				}
			} else if disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] < 0 {
			visit(i, -1)
		}
	}

	ring := make(map[int]bool, len(m.Bonds))
	for b := range m.Bonds {
		if !bridges[b] {
			ring[b] = true
		}
	}
	return ring
}

// findRings takes, for every bond closing a cycle of the spanning forest, the shortest path
// between its atoms that avoids it.
func (m *Molecule) findRings() [][]int {
	n := len(m.Atoms)
	seen := make([]bool, n)
	tree := make(map[int]bool, len(m.Bonds))
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		seen[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, b := range m.adj[u] {
				v := m.Bonds[b].Other(u)
				if !seen[v] {
					seen[v] = true
					tree[b] = true
					queue = append(queue, v)
				}
			}
		}
	}

	var rings [][]int
	known := map[string]bool{}
	for b := range m.Bonds {
		if tree[b] {
			continue
		}
		path := m.shortestPath(m.Bonds[b].Begin, m.Bonds[b].End, b)
		if path == nil {
			continue
		}
		key := ringKey(path)
		if known[key] {
			continue
		}
		known[key] = true
		rings = append(rings, path)
	}
	sort.SliceStable(rings, func(i, j int) bool {
		if len(rings[i]) != len(rings[j]) {
			return len(rings[i]) < len(rings[j])
		}
		return ringKey(rings[i]) < ringKey(rings[j])
	})
	return rings
}

func (m *Molecule) shortestPath(from, to, skipBond int) []int {
	prev := make([]int, len(m.Atoms))
	for i := range prev {
		prev[i] = -2
	}
	prev[from] = -1
	queue := []int{from}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if u == to {
			break
		}
		for _, b := range m.adj[u] {
			if b == skipBond {
				continue
			}
			v := m.Bonds[b].Other(u)
			if prev[v] == -2 {
				prev[v] = u
				queue = append(queue, v)
			}
		}
	}
	if prev[to] == -2 {
		return nil
	}
	var path []int
	for cur := to; cur != -1; cur = prev[cur] {
		path = append(path, cur)
	}
	return path
}

func ringKey(ring []int) string {
	sorted := append([]int(nil), ring...)
	sort.Ints(sorted)
	key := make([]byte, 0, len(sorted)*3)
	for _, a := range sorted {
		key = append(key, byte(a>>8), byte(a), ',')
	}
	return string(key)
}

// RingCount is the number of independent cycles.
func (m *Molecule) RingCount() int {
	return len(m.Rings())
}
