// Package chemkit holds the chemistry toolkit contract used by the validation engine and a
// built-in pure Go implementation of it.
package chemkit

import "errors"

var ErrNotSanitized = errors.New("molecule has not been sanitized")

// Toolkit is the set of chemistry operations the rest of the system relies on.
// Implementations must be deterministic: the same input always yields the same output.
type Toolkit interface {
	Name() string
	Version() string

	// Parsers never sanitize.
	ParseSMILES(s string) (*Molecule, error)
	ParseIdentifier(s string) (*Molecule, error)
	ParseMolBlock(s string) (*Molecule, error)
	ParsePattern(s string) (*Pattern, error)

	DetectProblems(m *Molecule) []Problem
	// Sanitize returns the operation that failed, or SanitizeNone.
	Sanitize(m *Molecule) (SanitizeFlags, error)
	AssignStereochemistry(m *Molecule)

	CanonicalSMILES(m *Molecule, opts SmilesOptions) (string, error)
	StandardIdentifier(m *Molecule) (string, error)
	CanonicalKey(m *Molecule) (string, error)
	MolBlock(m *Molecule, title string) (string, error)

	Descriptors(m *Molecule) Descriptors
	StereoInfo(m *Molecule) StereoInfo
	Match(m *Molecule, p *Pattern) [][]int

	LargestFragment(m *Molecule) (*Molecule, bool)
	Uncharge(m *Molecule) (*Molecule, bool, error)
	CanonicalTautomer(m *Molecule) (*Molecule, bool, error)
}

const (
	builtinName    = "chemaudit-builtin"
	builtinVersion = "1.0"
)

type builtin struct{}

// NewBuiltin returns the built-in toolkit. It holds no state and is safe for concurrent use
// as long as a single molecule is not shared between goroutines.
func NewBuiltin() Toolkit {
	return builtin{}
}

func (builtin) Name() string    { return builtinName }
func (builtin) Version() string { return builtinVersion }

func (builtin) ParseSMILES(s string) (*Molecule, error) {
	return parseSMILES(s)
}

func (builtin) ParseIdentifier(s string) (*Molecule, error) {
	return parseIdentifier(s)
}

func (builtin) ParseMolBlock(s string) (*Molecule, error) {
	return parseMolBlock(s)
}

func (builtin) ParsePattern(s string) (*Pattern, error) {
	return parsePattern(s)
}

func (builtin) DetectProblems(m *Molecule) []Problem {
	return m.detectProblems()
}

func (builtin) Sanitize(m *Molecule) (SanitizeFlags, error) {
	return m.sanitize()
}

func (builtin) AssignStereochemistry(m *Molecule) {
	m.assignStereo()
}

func (builtin) CanonicalSMILES(m *Molecule, opts SmilesOptions) (string, error) {
	if !m.sanitized {
		return "", ErrNotSanitized
	}
	return m.writeSMILES(opts), nil
}

func (builtin) StandardIdentifier(m *Molecule) (string, error) {
	if !m.sanitized {
		return "", ErrNotSanitized
	}
	return m.identifier(), nil
}

func (builtin) CanonicalKey(m *Molecule) (string, error) {
	if !m.sanitized {
		return "", ErrNotSanitized
	}
	return m.canonicalKey(), nil
}

func (builtin) MolBlock(m *Molecule, title string) (string, error) {
	if !m.sanitized {
		return "", ErrNotSanitized
	}
	return m.writeMolBlock(title), nil
}

func (builtin) Descriptors(m *Molecule) Descriptors {
	return m.descriptors()
}

func (builtin) StereoInfo(m *Molecule) StereoInfo {
	return m.stereoInfo()
}

func (builtin) Match(m *Molecule, p *Pattern) [][]int {
	return p.match(m)
}

func (builtin) LargestFragment(m *Molecule) (*Molecule, bool) {
	return m.largestFragment()
}

func (builtin) Uncharge(m *Molecule) (*Molecule, bool, error) {
	return m.uncharge()
}

func (builtin) CanonicalTautomer(m *Molecule) (*Molecule, bool, error) {
	return m.canonicalTautomer()
}

// Sanitized reports whether sanitization completed on the molecule.
func (m *Molecule) Sanitized() bool {
	return m.sanitized
}
