// Package structure turns raw structure text into a sanitized molecule and its canonical forms.
package structure

import (
	"fmt"
	"strings"

	"github.com/chemaudit/chemaudit/internal/chemkit"
)

type Format string

const (
	FormatAuto   Format = ""
	FormatSMILES Format = "smiles"
	FormatInChI  Format = "inchi"
	FormatMol    Format = "mol"
)

func (f Format) label() string {
	switch f {
	case FormatInChI:
		return "InChI"
	case FormatMol:
		return "MOL block"
	}
	return "SMILES"
}

// ParseFormat accepts the format names used on the wire. Unknown names are an error.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "smiles":
		return FormatSMILES, nil
	case "inchi":
		return FormatInChI, nil
	case "mol", "molblock", "sdf":
		return FormatMol, nil
	}
	return FormatAuto, fmt.Errorf("unknown input format %q", s)
}

const forbiddenChars = "<>&;|$`"

// InputError rejects text before any chemistry is attempted.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

// ParseError carries every error and warning collected while parsing.
type ParseError struct {
	Format   Format
	Errors   []string
	Warnings []string
}

func (e *ParseError) Error() string {
	if len(e.Errors) == 0 {
		return "Failed to parse " + e.Format.label()
	}
	return e.Errors[0]
}

type Options struct {
	Format Format
	// Kekulize writes the canonical form without aromatic notation.
	Kekulize bool
}

type Result struct {
	Input           string            `json:"input"`
	Format          Format            `json:"format"`
	Molecule        *chemkit.Molecule `json:"-"`
	CanonicalSMILES string            `json:"canonical_smiles"`
	CanonicalKey    string            `json:"inchikey,omitempty"`
	Identifier      string            `json:"inchi,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
}

type Parser struct {
	kit       chemkit.Toolkit
	maxLength int
}

func NewParser(kit chemkit.Toolkit, maxLength int) *Parser {
	return &Parser{kit: kit, maxLength: maxLength}
}

func (p *Parser) Toolkit() chemkit.Toolkit {
	return p.kit
}

// CheckInput applies the length cap and the forbidden character screen.
func (p *Parser) CheckInput(input string) error {
	if p.maxLength > 0 && len(input) > p.maxLength {
		return &InputError{Reason: fmt.Sprintf("structure exceeds maximum length of %d characters", p.maxLength)}
	}
	if i := strings.IndexAny(input, forbiddenChars); i >= 0 {
		return &InputError{Reason: fmt.Sprintf("structure contains forbidden character %q", input[i])}
	}
	return nil
}

// Detect guesses the input shape of s.
func Detect(s string) Format {
	switch {
	case strings.HasPrefix(s, chemkit.IdentifierPrefix):
		return FormatInChI
	case strings.Contains(s, "M  END"), strings.Contains(s, "\n"):
		return FormatMol
	}
	return FormatSMILES
}

// Parse runs parse, diagnostics, sanitization, stereo assignment and canonicalization.
// Any error recorded on the way fails the parse with a *ParseError; warnings alone do not.
func (p *Parser) Parse(input string, opts Options) (*Result, error) {
	text := strings.TrimSpace(input)
	format := opts.Format
	if text == "" {
		return nil, &ParseError{Format: format, Errors: []string{"Empty molecule input"}}
	}
	if err := p.CheckInput(text); err != nil {
		return nil, err
	}
	if format == FormatAuto {
		format = Detect(text)
	}
	if format == FormatMol {
		// the header line of a connection table can be blank
		text = strings.TrimRight(input, " \t\r\n")
	}

	res := &Result{Input: text, Format: format}
	var errs []string

	m, err := p.read(text, format)
	if err != nil {
		return nil, &ParseError{Format: format, Errors: []string{"Failed to parse " + format.label(), err.Error()}}
	}

	for _, problem := range p.kit.DetectProblems(m) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", problem.Type, problem.Message))
	}

	if flag, err := p.kit.Sanitize(m); err != nil {
		for _, name := range flag.Names() {
			errs = append(errs, fmt.Sprintf("%s: %s", sanitizeMessages[name], err.Error()))
		}
		if len(errs) == 0 {
			errs = append(errs, "Sanitization failed: "+err.Error())
		}
		return nil, &ParseError{Format: format, Errors: errs, Warnings: res.Warnings}
	}

	p.kit.AssignStereochemistry(m)

	canonical, err := p.kit.CanonicalSMILES(m, chemkit.SmilesOptions{Kekule: opts.Kekulize})
	if err != nil || canonical == "" {
		msg := "Failed to generate canonical SMILES"
		if err != nil {
			msg += ": " + err.Error()
		}
		return nil, &ParseError{Format: format, Errors: []string{msg}, Warnings: res.Warnings}
	}
	res.CanonicalSMILES = canonical
	res.Molecule = m
	if key, err := p.kit.CanonicalKey(m); err == nil {
		res.CanonicalKey = key
	}
	if id, err := p.kit.StandardIdentifier(m); err == nil {
		res.Identifier = id
	}
	return res, nil
}

func (p *Parser) read(text string, format Format) (*chemkit.Molecule, error) {
	switch format {
	case FormatInChI:
		return p.kit.ParseIdentifier(text)
	case FormatMol:
		return p.kit.ParseMolBlock(text)
	}
	return p.kit.ParseSMILES(text)
}

var sanitizeMessages = map[string]string{
	"properties":    "Invalid atom properties (valence or charge)",
	"radicals":      "Radical electron assignment failed",
	"kekulize":      "Kekulization failed",
	"aromaticity":   "Aromaticity perception failed",
	"conjugation":   "Conjugation perception failed",
	"hybridization": "Hybridization assignment failed",
	"ring_symmetry": "Ring symmetry analysis failed",
	"cleanup":       "Structure cleanup failed",
}
