package checks

import (
	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/validation"
)

var (
	_ validation.Check = (*SmilesRoundtrip)(nil)
	_ validation.Check = (*IdentifierGeneration)(nil)
	_ validation.Check = (*IdentifierRoundtrip)(nil)
)

// reread parses text with parse, then sanitizes and assigns stereo like the structure parser.
func reread(kit chemkit.Toolkit, parse func(string) (*chemkit.Molecule, error), text string) (*chemkit.Molecule, error) {
	m, err := parse(text)
	if err != nil {
		return nil, err
	}
	if _, err := kit.Sanitize(m); err != nil {
		return nil, err
	}
	kit.AssignStereochemistry(m)
	return m, nil
}

type SmilesRoundtrip struct{ base }

func NewSmilesRoundtrip() *SmilesRoundtrip {
	return &SmilesRoundtrip{base{
		name:        "smiles_roundtrip",
		description: "Canonical SMILES parses back to the same molecule",
		category:    validation.CategoryRepresentation,
		severity:    validation.SeverityError,
	}}
}

func (c *SmilesRoundtrip) Run(s validation.Subject) validation.CheckResult {
	first, err := s.Kit.CanonicalSMILES(s.Molecule, chemkit.SmilesOptions{})
	if err != nil {
		return c.fail("Could not write canonical SMILES: "+err.Error(), nil, nil)
	}
	m, err := reread(s.Kit, s.Kit.ParseSMILES, first)
	if err != nil {
		return c.fail("Canonical SMILES could not be parsed back: "+err.Error(), nil, map[string]any{"canonical_smiles": first})
	}
	second, err := s.Kit.CanonicalSMILES(m, chemkit.SmilesOptions{})
	if err != nil || second != first {
		return c.fail("SMILES round trip changed the structure", nil,
			map[string]any{"original": first, "roundtrip": second})
	}
	return c.pass("SMILES round trip preserved the structure", map[string]any{"canonical_smiles": first})
}

type IdentifierGeneration struct{ base }

func NewIdentifierGeneration() *IdentifierGeneration {
	return &IdentifierGeneration{base{
		name:        "inchi_generation",
		description: "A standard identifier can be generated",
		category:    validation.CategoryRepresentation,
		severity:    validation.SeverityError,
	}}
}

func (c *IdentifierGeneration) Run(s validation.Subject) validation.CheckResult {
	id, err := s.Kit.StandardIdentifier(s.Molecule)
	if err != nil || id == "" {
		msg := "InChI generation failed"
		if err != nil {
			msg += ": " + err.Error()
		}
		return c.fail(msg, nil, nil)
	}
	return c.pass("InChI generated successfully", map[string]any{"inchi": id})
}

type IdentifierRoundtrip struct{ base }

func NewIdentifierRoundtrip() *IdentifierRoundtrip {
	return &IdentifierRoundtrip{base{
		name:        "inchi_roundtrip",
		description: "Standard identifier parses back to the same canonical key",
		category:    validation.CategoryRepresentation,
		severity:    validation.SeverityWarning,
	}}
}

func (c *IdentifierRoundtrip) Run(s validation.Subject) validation.CheckResult {
	id, err := s.Kit.StandardIdentifier(s.Molecule)
	if err != nil {
		return c.fail("No InChI to round trip: "+err.Error(), nil, nil)
	}
	key, err := s.Kit.CanonicalKey(s.Molecule)
	if err != nil {
		return c.fail("No InChIKey to compare: "+err.Error(), nil, nil)
	}
	m, err := reread(s.Kit, s.Kit.ParseIdentifier, id)
	if err != nil {
		return c.fail("InChI could not be parsed back: "+err.Error(), nil, map[string]any{"inchi": id})
	}
	back, err := s.Kit.CanonicalKey(m)
	if err != nil || back != key {
		return c.fail("InChI round trip changed the structure", nil,
			map[string]any{"original_inchikey": key, "roundtrip_inchikey": back})
	}
	return c.pass("InChI round trip preserved the structure", map[string]any{"inchikey": key})
}
