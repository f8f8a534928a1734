package chemkit

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

const (
	IdentifierPrefix = "InChI="
	identifierLayer  = "1S/"
	connectionLayer  = "/x"
)

// IdentifierError is returned for identifiers this toolkit cannot read.
type IdentifierError struct {
	Msg string
}

func (e *IdentifierError) Error() string {
	return "identifier error: " + e.Msg
}

func (m *Molecule) elementCounts() map[string]int {
	counts := map[string]int{}
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Number == 0 {
			continue
		}
		counts[a.Symbol]++
		if h := a.TotalH(); h > 0 {
			counts["H"] += h
		}
	}
	return counts
}

// Formula returns the Hill-order molecular formula with a trailing net charge.
func (m *Molecule) Formula() string {
	counts := m.elementCounts()
	var symbols []string
	for s := range counts {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var order []string
	if counts["C"] > 0 {
		order = append(order, "C")
		if counts["H"] > 0 {
			order = append(order, "H")
		}
		for _, s := range symbols {
			if s != "C" && s != "H" {
				order = append(order, s)
			}
		}
	} else {
		order = symbols
	}

	var sb strings.Builder
	for _, s := range order {
		sb.WriteString(s)
		if counts[s] > 1 {
			sb.WriteString(fmt.Sprint(counts[s]))
		}
	}
	switch q := m.NetCharge(); {
	case q == 1:
		sb.WriteString("+")
	case q == -1:
		sb.WriteString("-")
	case q > 1:
		sb.WriteString(fmt.Sprintf("+%d", q))
	case q < -1:
		sb.WriteString(fmt.Sprintf("-%d", -q))
	}
	return sb.String()
}

// MolecularWeight uses average atomic weights.
func (m *Molecule) MolecularWeight() float64 {
	w := 0.0
	h := elementByNumber(1).weight
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if e := elementByNumber(a.Number); e != nil {
			w += e.weight
		}
		w += float64(a.TotalH()) * h
	}
	return w
}

func (m *Molecule) identifier() string {
	return IdentifierPrefix + identifierLayer + m.Formula() + connectionLayer + m.writeSMILES(SmilesOptions{})
}

// parseIdentifier reads identifiers carrying the connection layer written by identifier().
func parseIdentifier(s string) (*Molecule, error) {
	if !strings.HasPrefix(s, IdentifierPrefix) {
		return nil, &IdentifierError{Msg: "missing InChI= prefix"}
	}
	body := strings.TrimPrefix(s, IdentifierPrefix)
	if !strings.HasPrefix(body, identifierLayer) && !strings.HasPrefix(body, "1/") {
		return nil, &IdentifierError{Msg: "unknown identifier version"}
	}
	_, layers, _ := strings.Cut(body, "/")
	formula, rest, ok := strings.Cut(layers, "/")
	if !ok || !strings.HasPrefix(rest, "x") {
		return nil, &IdentifierError{Msg: "no connection layer readable by the built-in toolkit"}
	}
	m, err := parseSMILES(strings.TrimPrefix(rest, "x"))
	if err != nil {
		return nil, &IdentifierError{Msg: err.Error()}
	}
	check := m.Clone()
	if _, err := check.sanitize(); err == nil && check.Formula() != formula {
		return nil, &IdentifierError{Msg: fmt.Sprintf("formula layer %s does not match connection layer %s", formula, check.Formula())}
	}
	return m, nil
}

func hashLetters(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = 'A' + sum[i]%26
	}
	return string(out)
}

// canonicalKey is a 27 character key: 14 letters of connectivity, 8 letters of stereo and isotopes
// followed by the "SA" flag pair, and one protonation letter.
func (m *Molecule) canonicalKey() string {
	skeleton := m.writeSMILES(SmilesOptions{NoStereo: true, NoIsotopes: true})
	full := m.writeSMILES(SmilesOptions{})
	q := m.NetCharge()
	if q < -12 {
		q = -12
	}
	if q > 12 {
		q = 12
	}
	protonation := byte('N' + q)
	return hashLetters(skeleton, 14) + "-" + hashLetters(full, 8) + "SA" + "-" + string(protonation)
}
