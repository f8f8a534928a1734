package chemkit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MolfileError reports a malformed connection table.
type MolfileError struct {
	Line int
	Msg  string
}

func (e *MolfileError) Error() string {
	return fmt.Sprintf("MOL block error on line %d: %s", e.Line+1, e.Msg)
}

func fixedInt(line string, from, to int) (int, bool) {
	if from >= len(line) {
		return 0, false
	}
	if to > len(line) {
		to = len(line)
	}
	v, err := strconv.Atoi(strings.TrimSpace(line[from:to]))
	return v, err == nil
}

func parseMolBlock(block string) (*Molecule, error) {
	lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	if len(lines) < 4 {
		return nil, &MolfileError{Line: len(lines), Msg: "missing counts line"}
	}
	counts := lines[3]
	if strings.Contains(counts, "V3000") {
		return nil, &MolfileError{Line: 3, Msg: "V3000 connection tables are not supported"}
	}
	natoms, okA := fixedInt(counts, 0, 3)
	nbonds, okB := fixedInt(counts, 3, 6)
	if !okA || !okB {
		fields := strings.Fields(counts)
		if len(fields) < 2 {
			return nil, &MolfileError{Line: 3, Msg: "malformed counts line"}
		}
		var err1, err2 error
		natoms, err1 = strconv.Atoi(fields[0])
		nbonds, err2 = strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			return nil, &MolfileError{Line: 3, Msg: "malformed counts line"}
		}
	}
	if natoms == 0 {
		return nil, &MolfileError{Line: 3, Msg: "no atoms"}
	}
	if len(lines) < 4+natoms+nbonds {
		return nil, &MolfileError{Line: len(lines), Msg: "truncated atom or bond block"}
	}

	m := NewMolecule()
	for i := 0; i < natoms; i++ {
		ln := 4 + i
		fields := strings.Fields(lines[ln])
		if len(fields) < 4 {
			return nil, &MolfileError{Line: ln, Msg: "malformed atom line"}
		}
		symbol := fields[3]
		e, ok := lookupElement(symbol)
		if !ok {
			if symbol == "R" || symbol == "A" || symbol == "Q" || symbol == "R#" {
				e, _ = lookupElement("*")
				symbol = "*"
			} else {
				return nil, &MolfileError{Line: ln, Msg: fmt.Sprintf("unknown element %q", symbol)}
			}
		}
		atom := Atom{Symbol: symbol, Number: e.number, Order: nil}
		if len(fields) >= 6 {
			code, _ := strconv.Atoi(fields[5])
			switch code {
			case 1, 2, 3:
				atom.Charge = 4 - code
			case 4:
				atom.Radicals = 1
			case 5, 6, 7:
				atom.Charge = 4 - code
			}
		}
		m.addAtom(atom)
	}

	for i := 0; i < nbonds; i++ {
		ln := 4 + natoms + i
		line := lines[ln]
		a1, ok1 := fixedInt(line, 0, 3)
		a2, ok2 := fixedInt(line, 3, 6)
		bt, ok3 := fixedInt(line, 6, 9)
		if !ok1 || !ok2 || !ok3 {
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, &MolfileError{Line: ln, Msg: "malformed bond line"}
			}
			a1, _ = strconv.Atoi(fields[0])
			a2, _ = strconv.Atoi(fields[1])
			bt, _ = strconv.Atoi(fields[2])
		}
		if a1 < 1 || a1 > natoms || a2 < 1 || a2 > natoms || a1 == a2 {
			return nil, &MolfileError{Line: ln, Msg: "bond references an unknown atom"}
		}
		var order BondOrder
		switch bt {
		case 1:
			order = BondSingle
		case 2:
			order = BondDouble
		case 3:
			order = BondTriple
		case 4:
			order = BondAromatic
			m.Atoms[a1-1].Aromatic = true
			m.Atoms[a2-1].Aromatic = true
		default:
			return nil, &MolfileError{Line: ln, Msg: fmt.Sprintf("unsupported bond type %d", bt)}
		}
		if m.BondBetween(a1-1, a2-1) >= 0 {
			return nil, &MolfileError{Line: ln, Msg: "duplicate bond"}
		}
		m.addBond(Bond{Begin: a1 - 1, End: a2 - 1, Order: order})
	}

	chargeReset := false
	for ln := 4 + natoms + nbonds; ln < len(lines); ln++ {
		line := lines[ln]
		if strings.HasPrefix(line, "M  END") {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "M" {
			continue
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || len(fields) < 3+2*n {
			return nil, &MolfileError{Line: ln, Msg: "malformed property line"}
		}
		for k := 0; k < n; k++ {
			idx, err1 := strconv.Atoi(fields[3+2*k])
			val, err2 := strconv.Atoi(fields[4+2*k])
			if err1 != nil || err2 != nil || idx < 1 || idx > natoms {
				return nil, &MolfileError{Line: ln, Msg: "malformed property line"}
			}
			a := &m.Atoms[idx-1]
			switch fields[1] {
			case "CHG":
				// a CHG line supersedes every charge of the atom block
				if !chargeReset {
					for j := range m.Atoms {
						m.Atoms[j].Charge = 0
					}
					chargeReset = true
				}
				a.Charge = val
			case "ISO":
				a.Isotope = val
			case "RAD":
				a.Radicals = val
			}
		}
	}

	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Radicals == 0 {
			continue
		}
		a.NoImplicit = true
		if vals := allowedValences(a.Number, a.Charge); vals != nil {
			if h := vals[0] - m.bondValence(i) - a.Radicals; h > 0 {
				a.ExplicitH = h
			}
		}
	}
	return m.collapseHydrogens(), nil
}

// collapseHydrogens folds plain hydrogen atoms into the explicit count of their neighbour.
func (m *Molecule) collapseHydrogens() *Molecule {
	extra := make(map[int]int)
	var keep []int
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Number == 1 && a.Isotope == 0 && a.Charge == 0 && m.Degree(i) == 1 {
			n := m.Neighbors(i)[0]
			if m.Atoms[n].Number != 1 {
				extra[n]++
				continue
			}
		}
		keep = append(keep, i)
	}
	if len(extra) == 0 {
		return m
	}
	out := m.Subset(keep)
	for newIdx, old := range keep {
		out.Atoms[newIdx].ExplicitH += extra[old]
	}
	return out
}

func chargeCode(q int) int {
	if q >= -3 && q <= 3 && q != 0 {
		return 4 - q
	}
	return 0
}

// writeMolBlock renders a V2000 connection table with a circular 2D layout.
func (m *Molecule) writeMolBlock(title string) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString("     chemkit          2D\n")
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(m.Atoms), len(m.Bonds)))

	n := float64(len(m.Atoms))
	radius := 1.5 * n / (2 * math.Pi)
	if radius < 1 {
		radius = 1
	}
	for i := range m.Atoms {
		a := &m.Atoms[i]
		angle := 2 * math.Pi * float64(i) / n
		x, y := radius*math.Cos(angle), radius*math.Sin(angle)
		code := chargeCode(a.Charge)
		sb.WriteString(fmt.Sprintf("%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0\n", x, y, 0.0, a.Symbol, code))
	}
	for idx := range m.Bonds {
		b := &m.Bonds[idx]
		order := b.Kekule
		if order == 0 {
			order = b.Order
		}
		bt := 1
		switch order {
		case BondDouble:
			bt = 2
		case BondTriple:
			bt = 3
		case BondAromatic:
			bt = 4
		}
		sb.WriteString(fmt.Sprintf("%3d%3d%3d  0\n", b.Begin+1, b.End+1, bt))
	}

	writeProps := func(tag string, value func(a *Atom) int) {
		var pairs [][2]int
		for i := range m.Atoms {
			if v := value(&m.Atoms[i]); v != 0 {
				pairs = append(pairs, [2]int{i + 1, v})
			}
		}
		for start := 0; start < len(pairs); start += 8 {
			end := start + 8
			if end > len(pairs) {
				end = len(pairs)
			}
			sb.WriteString(fmt.Sprintf("M  %s%3d", tag, end-start))
			for _, p := range pairs[start:end] {
				sb.WriteString(fmt.Sprintf(" %3d %3d", p[0], p[1]))
			}
			sb.WriteString("\n")
		}
	}
	writeProps("CHG", func(a *Atom) int { return a.Charge })
	writeProps("ISO", func(a *Atom) int { return a.Isotope })
	writeProps("RAD", func(a *Atom) int {
		if a.Radicals > 0 {
			return 2
		}
		return 0
	})
	sb.WriteString("M  END\n")
	return sb.String()
}
