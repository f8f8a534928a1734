package chemkit

import (
	"fmt"
	"strings"
)

// ParseError reports a syntax error in a line notation.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("SMILES Parse Error: %s at position %d", e.Msg, e.Pos)
}

type ringOpening struct {
	atom    int
	order   BondOrder
	dir     BondDir
	hasBond bool
	slot    int
}

type smilesParser struct {
	src     string
	pos     int
	mol     *Molecule
	prev    int
	order   BondOrder
	dir     BondDir
	hasBond bool
	bondPos int
	branch  []int
	rings   map[int]*ringOpening
}

// placeholder kept in an atom order until its ring closure is seen
const ringSlot = -2

func parseSMILES(src string) (*Molecule, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ParseError{Pos: 0, Msg: "empty input"}
	}
	p := &smilesParser{
		src:   src,
		mol:   NewMolecule(),
		prev:  -1,
		rings: map[int]*ringOpening{},
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	p.mol.perceiveDirectionalStereo()
	return p.mol, nil
}

func (p *smilesParser) fail(msg string, args ...interface{}) error {
	return &ParseError{Pos: p.pos, Msg: fmt.Sprintf(msg, args...)}
}

func (p *smilesParser) run() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail("branch opened without a preceding atom")
			}
			if p.hasBond {
				return p.fail("bond symbol before branch")
			}
			p.branch = append(p.branch, p.prev)
			p.pos++
		case c == ')':
			if len(p.branch) == 0 {
				return p.fail("unbalanced parenthesis")
			}
			if p.hasBond {
				return p.fail("bond symbol without a following atom")
			}
			p.prev = p.branch[len(p.branch)-1]
			p.branch = p.branch[:len(p.branch)-1]
			p.pos++
		case c == '.':
			if p.hasBond {
				return p.fail("bond symbol before fragment separator")
			}
			if len(p.branch) > 0 {
				return p.fail("fragment separator inside a branch")
			}
			p.prev = -1
			p.pos++
		case strings.IndexByte("-=#$:/\\", c) >= 0:
			if p.hasBond {
				return p.fail("two consecutive bond symbols")
			}
			p.setBond(c)
			p.pos++
		case c == '%' || (c >= '0' && c <= '9'):
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.organicAtom(); err != nil {
				return err
			}
		}
	}
	if p.hasBond {
		return p.fail("bond symbol at end of input")
	}
	if len(p.branch) > 0 {
		return p.fail("unclosed branch")
	}
	for num := range p.rings {
		return p.fail("unclosed ring %d", num)
	}
	if len(p.mol.Atoms) == 0 {
		return p.fail("no atoms")
	}
	return nil
}

func (p *smilesParser) setBond(c byte) {
	p.hasBond = true
	p.bondPos = p.pos
	p.dir = DirNone
	switch c {
	case '-':
		p.order = BondSingle
	case '=':
		p.order = BondDouble
	case '#':
		p.order = BondTriple
	case '$':
		p.order = BondQuadruple
	case ':':
		p.order = BondAromatic
	case '/':
		p.order = BondSingle
		p.dir = DirUp
	case '\\':
		p.order = BondSingle
		p.dir = DirDown
	}
}

func (p *smilesParser) clearBond() {
	p.hasBond = false
	p.order = 0
	p.dir = DirNone
}

func (p *smilesParser) ringClosure() error {
	if p.prev < 0 {
		return p.fail("ring closure without a preceding atom")
	}
	num := 0
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return p.fail("malformed ring closure")
		}
		num = int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
	} else {
		num = int(p.src[p.pos] - '0')
		p.pos++
	}

	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = &ringOpening{
			atom:    p.prev,
			order:   p.order,
			dir:     p.dir,
			hasBond: p.hasBond,
			slot:    len(p.mol.Atoms[p.prev].Order),
		}
		p.mol.Atoms[p.prev].Order = append(p.mol.Atoms[p.prev].Order, ringSlot)
		p.clearBond()
		return nil
	}
	delete(p.rings, num)
	if open.atom == p.prev {
		return p.fail("ring closure %d bonds an atom to itself", num)
	}
	if p.mol.BondBetween(open.atom, p.prev) >= 0 {
		return p.fail("ring closure %d duplicates an existing bond", num)
	}

	bond := Bond{Begin: open.atom, End: p.prev}
	switch {
	case open.hasBond && p.hasBond:
		if open.order != p.order {
			return p.fail("conflicting bond orders on ring closure %d", num)
		}
		bond.Order, bond.Dir = open.order, open.dir
	case open.hasBond:
		bond.Order, bond.Dir = open.order, open.dir
	case p.hasBond:
		bond.Begin, bond.End = p.prev, open.atom
		bond.Order, bond.Dir = p.order, p.dir
	default:
		bond.Order = p.defaultOrder(open.atom, p.prev)
	}
	p.mol.addBond(bond)
	p.mol.Atoms[open.atom].Order[open.slot] = p.prev
	p.mol.Atoms[p.prev].Order = append(p.mol.Atoms[p.prev].Order, open.atom)
	p.clearBond()
	return nil
}

func (p *smilesParser) defaultOrder(a, b int) BondOrder {
	if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) attach(atom Atom, hydrogens int) {
	idx := p.mol.addAtom(atom)
	if p.prev >= 0 {
		order := p.order
		if !p.hasBond {
			order = p.defaultOrder(p.prev, idx)
		}
		p.mol.addBond(Bond{Begin: p.prev, End: idx, Order: order, Dir: p.dir})
		p.mol.Atoms[p.prev].Order = append(p.mol.Atoms[p.prev].Order, idx)
		p.mol.Atoms[idx].Order = append(p.mol.Atoms[idx].Order, p.prev)
	}
	if hydrogens > 0 {
		p.mol.Atoms[idx].Order = append(p.mol.Atoms[idx].Order, hydrogenRef)
	}
	p.prev = idx
	p.clearBond()
}

func (p *smilesParser) organicAtom() error {
	rest := p.src[p.pos:]
	for _, two := range []string{"Cl", "Br"} {
		if strings.HasPrefix(rest, two) {
			p.pos += 2
			p.attach(newAtom(two, false), 0)
			return nil
		}
	}
	c := string(rest[0])
	if organicSubset[c] {
		p.pos++
		p.attach(newAtom(c, false), 0)
		return nil
	}
	if sym, ok := aromaticSymbols[c]; ok && organicSubset[sym] {
		p.pos++
		p.attach(newAtom(sym, true), 0)
		return nil
	}
	return p.fail("unexpected character '%c'", rest[0])
}

func newAtom(symbol string, aromatic bool) Atom {
	e, _ := lookupElement(symbol)
	return Atom{Symbol: symbol, Number: e.number, Aromatic: aromatic}
}

func (p *smilesParser) bracketAtom() error {
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return p.fail("unclosed bracket atom")
	}
	body := p.src[p.pos+1 : p.pos+end]
	start := p.pos
	p.pos += end + 1

	i := 0
	bad := func(msg string) error {
		return &ParseError{Pos: start + 1 + i, Msg: msg}
	}

	isotope := 0
	for i < len(body) && isDigit(body[i]) {
		isotope = isotope*10 + int(body[i]-'0')
		i++
	}

	var (
		symbol   string
		aromatic bool
	)
	switch {
	case i < len(body) && body[i] == '*':
		symbol = "*"
		i++
	case i < len(body) && body[i] >= 'A' && body[i] <= 'Z':
		if i+1 < len(body) && body[i+1] >= 'a' && body[i+1] <= 'z' {
			if _, ok := lookupElement(body[i : i+2]); ok {
				symbol = body[i : i+2]
				i += 2
				break
			}
		}
		symbol = body[i : i+1]
		i++
	case i < len(body) && body[i] >= 'a' && body[i] <= 'z':
		if i+1 < len(body) {
			if sym, ok := aromaticSymbols[body[i:i+2]]; ok {
				symbol, aromatic = sym, true
				i += 2
				break
			}
		}
		if sym, ok := aromaticSymbols[body[i:i+1]]; ok {
			symbol, aromatic = sym, true
			i++
		}
	}
	if symbol == "" {
		return bad("missing element symbol")
	}
	e, ok := lookupElement(symbol)
	if !ok {
		return bad(fmt.Sprintf("unknown element %q", symbol))
	}

	chirality := ChiralNone
	if i < len(body) && body[i] == '@' {
		i++
		chirality = ChiralCCW
		switch {
		case i < len(body) && body[i] == '@':
			chirality = ChiralCW
			i++
		case strings.HasPrefix(body[i:], "TH1"):
			i += 3
		case strings.HasPrefix(body[i:], "TH2"):
			chirality = ChiralCW
			i += 3
		case i < len(body) && body[i] >= 'A' && body[i] <= 'Z' && body[i] != 'H':
			return bad("unsupported chirality class")
		}
	}

	hydrogens := 0
	if i < len(body) && body[i] == 'H' {
		i++
		hydrogens = 1
		if i < len(body) && isDigit(body[i]) {
			hydrogens = int(body[i] - '0')
			i++
		}
	}

	charge := 0
	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		sym := body[i]
		i++
		switch {
		case i < len(body) && isDigit(body[i]):
			n := 0
			for i < len(body) && isDigit(body[i]) {
				n = n*10 + int(body[i]-'0')
				i++
			}
			charge = sign * n
		default:
			charge = sign
			for i < len(body) && body[i] == sym {
				charge += sign
				i++
			}
		}
	}

	mapNum := 0
	if i < len(body) && body[i] == ':' {
		i++
		if i >= len(body) || !isDigit(body[i]) {
			return bad("malformed atom class")
		}
		for i < len(body) && isDigit(body[i]) {
			mapNum = mapNum*10 + int(body[i]-'0')
			i++
		}
	}
	if i != len(body) {
		return bad(fmt.Sprintf("unexpected %q in bracket atom", body[i:]))
	}

	p.attach(Atom{
		Symbol:     symbol,
		Number:     e.number,
		Isotope:    isotope,
		Charge:     charge,
		ExplicitH:  hydrogens,
		NoImplicit: true,
		Aromatic:   aromatic,
		Chirality:  chirality,
		MapNum:     mapNum,
	}, hydrogens)
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// perceiveDirectionalStereo turns "/" and "\" markers around double bonds into configurations.
func (m *Molecule) perceiveDirectionalStereo() {
	for idx := range m.Bonds {
		b := &m.Bonds[idx]
		if b.Order != BondDouble {
			continue
		}
		refA, dirA, okA := m.directionalNeighbor(b.Begin, idx)
		refB, dirB, okB := m.directionalNeighbor(b.End, idx)
		if !okA || !okB {
			continue
		}
		m.BondStereo = append(m.BondStereo, DoubleBondStereo{Bond: idx, RefA: refA, RefB: refB, Cis: dirA == dirB})
	}
}

// directionalNeighbor returns the first neighbour of atom bonded with a directional bond,
// recording a conflict when two such neighbours sit on the same side.
func (m *Molecule) directionalNeighbor(atom, doubleBond int) (int, BondDir, bool) {
	ref, refDir := -1, DirNone
	for _, idx := range m.adj[atom] {
		if idx == doubleBond {
			continue
		}
		b := &m.Bonds[idx]
		if b.Dir == DirNone {
			continue
		}
		d := b.dirFrom(atom)
		if ref < 0 {
			ref, refDir = b.Other(atom), d
			continue
		}
		if d == refDir {
			m.Conflicts = append(m.Conflicts,
				fmt.Sprintf("atoms %d and %d are both marked on the same side of the double bond at atom %d", ref, b.Other(atom), atom))
		}
	}
	return ref, refDir, ref >= 0
}
