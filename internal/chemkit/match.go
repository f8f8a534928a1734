package chemkit

import (
	"strconv"
	"strings"
)

// maxMatches bounds the number of unique matches collected per pattern.
const maxMatches = 100

// Pattern is a substructure query written in line notation. A '*' atom matches any element,
// bracket atoms additionally constrain charge and hydrogen count.
type Pattern struct {
	Source string
	mol    *Molecule
	order  []int
}

func parsePattern(src string) (*Pattern, error) {
	m, err := parseSMILES(src)
	if err != nil {
		return nil, err
	}
	p := &Pattern{Source: src, mol: m}
	p.order = p.searchOrder()
	return p, nil
}

// searchOrder visits pattern atoms breadth first so every atom after the first of a
// fragment is adjacent to an already mapped one.
func (p *Pattern) searchOrder() []int {
	seen := make([]bool, len(p.mol.Atoms))
	order := make([]int, 0, len(p.mol.Atoms))
	for start := range p.mol.Atoms {
		if seen[start] {
			continue
		}
		seen[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			a := queue[0]
			queue = queue[1:]
			order = append(order, a)
			for _, n := range p.mol.Neighbors(a) {
				if !seen[n] {
					seen[n] = true
					queue = append(queue, n)
				}
			}
		}
	}
	return order
}

func (p *Pattern) atomMatches(pa int, m *Molecule, ta int) bool {
	q := &p.mol.Atoms[pa]
	t := &m.Atoms[ta]
	if q.Number != 0 && q.Number != t.Number {
		return false
	}
	if q.Number != 0 && q.Aromatic != t.Aromatic {
		return false
	}
	if q.NoImplicit {
		if q.Charge != t.Charge {
			return false
		}
		if q.ExplicitH > 0 && q.ExplicitH != t.TotalH() {
			return false
		}
	}
	return true
}

func bondMatches(q, t BondOrder) bool {
	if q == BondSingle {
		return t == BondSingle || t == BondAromatic
	}
	return q == t
}

type matcher struct {
	p       *Pattern
	m       *Molecule
	mapping []int
	used    []bool
	seen    map[string]bool
	results [][]int
}

func (p *Pattern) match(m *Molecule) [][]int {
	if len(p.mol.Atoms) == 0 || len(p.mol.Atoms) > len(m.Atoms) {
		return nil
	}
	mt := &matcher{
		p:       p,
		m:       m,
		mapping: make([]int, len(p.mol.Atoms)),
		used:    make([]bool, len(m.Atoms)),
		seen:    map[string]bool{},
	}
	for i := range mt.mapping {
		mt.mapping[i] = -1
	}
	mt.extend(0)
	return mt.results
}

func (mt *matcher) extend(depth int) bool {
	if len(mt.results) >= maxMatches {
		return true
	}
	if depth == len(mt.p.order) {
		mt.record()
		return len(mt.results) >= maxMatches
	}
	pa := mt.p.order[depth]
	for ta := range mt.m.Atoms {
		if mt.used[ta] || !mt.p.atomMatches(pa, mt.m, ta) || !mt.bondsConsistent(pa, ta) {
			continue
		}
		mt.mapping[pa] = ta
		mt.used[ta] = true
		done := mt.extend(depth + 1)
		mt.used[ta] = false
		mt.mapping[pa] = -1
		if done {
			return true
		}
	}
	return false
}

// bondsConsistent checks every pattern bond from pa to an already mapped atom.
func (mt *matcher) bondsConsistent(pa, ta int) bool {
	for _, b := range mt.p.mol.BondsOf(pa) {
		qb := &mt.p.mol.Bonds[b]
		other := mt.mapping[qb.Other(pa)]
		if other < 0 {
			continue
		}
		tb := mt.m.BondBetween(ta, other)
		if tb < 0 || !bondMatches(qb.Order, mt.m.Bonds[tb].Order) {
			return false
		}
	}
	return true
}

func (mt *matcher) record() {
	atoms := sortedInts(mt.mapping)
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = strconv.Itoa(a)
	}
	key := strings.Join(parts, ",")
	if mt.seen[key] {
		return
	}
	mt.seen[key] = true
	mt.results = append(mt.results, append([]int(nil), mt.mapping...))
}
