package structure_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/structure"
)

var _ = Describe("parser", func() {
	var parser *structure.Parser

	BeforeEach(func() {
		parser = structure.NewParser(chemkit.NewBuiltin(), 100)
	})

	It("detects input formats", func() {
		Expect(structure.Detect("CCO")).To(Equal(structure.FormatSMILES))
		Expect(structure.Detect("InChI=1S/CH4/xC")).To(Equal(structure.FormatInChI))
		Expect(structure.Detect("\n  test\n\n  1  0  0\nM  END")).To(Equal(structure.FormatMol))
	})

	It("parses a line notation", func() {
		res, err := parser.Parse("  CCO ", structure.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Format).To(Equal(structure.FormatSMILES))
		Expect(res.CanonicalSMILES).NotTo(BeEmpty())
		Expect(res.CanonicalKey).To(HaveLen(27))
		Expect(res.Identifier).To(HavePrefix("InChI="))
		Expect(res.Molecule.Sanitized()).To(BeTrue())
	})

	It("parses its own identifier", func() {
		first, err := parser.Parse("CC(=O)O", structure.Options{})
		Expect(err).NotTo(HaveOccurred())
		second, err := parser.Parse(first.Identifier, structure.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Format).To(Equal(structure.FormatInChI))
		Expect(second.CanonicalKey).To(Equal(first.CanonicalKey))
	})

	It("parses a connection table with a blank title", func() {
		kit := chemkit.NewBuiltin()
		m, err := kit.ParseSMILES("CCO")
		Expect(err).NotTo(HaveOccurred())
		_, err = kit.Sanitize(m)
		Expect(err).NotTo(HaveOccurred())
		block, err := kit.MolBlock(m, "")
		Expect(err).NotTo(HaveOccurred())

		long := structure.NewParser(kit, 10000)
		res, err := long.Parse(block, structure.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Format).To(Equal(structure.FormatMol))
		Expect(res.Molecule.Formula()).To(Equal("C2H6O"))
	})

	It("kekulizes on request", func() {
		res, err := parser.Parse("c1ccccc1", structure.Options{Kekulize: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.CanonicalSMILES).To(ContainSubstring("="))
		Expect(res.CanonicalSMILES).NotTo(ContainSubstring("c"))
	})

	It("fails unparsable input with a generic first error", func() {
		_, err := parser.Parse("invalid_smiles_xyz", structure.Options{})
		var perr *structure.ParseError
		Expect(err).To(BeAssignableToTypeOf(perr))
		perr = err.(*structure.ParseError)
		Expect(perr.Error()).To(Equal("Failed to parse SMILES"))
		Expect(perr.Errors).To(HaveLen(2))
	})

	It("reports the failed sanitization step", func() {
		_, err := parser.Parse("c1cccc1", structure.Options{})
		Expect(err).To(HaveOccurred())
		perr := err.(*structure.ParseError)
		Expect(perr.Errors[0]).To(HavePrefix("Kekulization failed"))
	})

	It("keeps diagnostics of a failing structure as warnings", func() {
		_, err := parser.Parse("C(C)(C)(C)(C)C", structure.Options{})
		Expect(err).To(HaveOccurred())
		perr := err.(*structure.ParseError)
		Expect(perr.Warnings).To(HaveLen(1))
		Expect(perr.Warnings[0]).To(HavePrefix("AtomValenceException"))
	})

	It("rejects empty input", func() {
		_, err := parser.Parse("   ", structure.Options{})
		Expect(err).To(MatchError("Empty molecule input"))
	})

	It("screens forbidden characters and length", func() {
		_, err := parser.Parse("CCO;rm", structure.Options{})
		Expect(err).To(BeAssignableToTypeOf(&structure.InputError{}))
		_, err = parser.Parse(strings.Repeat("C", 101), structure.Options{})
		Expect(err).To(BeAssignableToTypeOf(&structure.InputError{}))
	})

	It("maps wire format names", func() {
		f, err := structure.ParseFormat("SDF")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(structure.FormatMol))
		_, err = structure.ParseFormat("pdb")
		Expect(err).To(HaveOccurred())
	})
})
