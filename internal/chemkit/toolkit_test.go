package chemkit_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/chemkit"
)

var _ = Describe("builtin toolkit", func() {
	var kit chemkit.Toolkit

	BeforeEach(func() {
		kit = chemkit.NewBuiltin()
	})

	load := func(smiles string) *chemkit.Molecule {
		m, err := kit.ParseSMILES(smiles)
		Expect(err).NotTo(HaveOccurred())
		flag, err := kit.Sanitize(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(flag).To(Equal(chemkit.SanitizeNone))
		kit.AssignStereochemistry(m)
		return m
	}

	canonical := func(smiles string) string {
		s, err := kit.CanonicalSMILES(load(smiles), chemkit.SmilesOptions{})
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	Context("parsing", func() {
		It("reads ethanol", func() {
			m := load("CCO")
			Expect(m.NumAtoms()).To(Equal(3))
			Expect(m.Formula()).To(Equal("C2H6O"))
			Expect(m.MolecularWeight()).To(BeNumerically("~", 46.069, 0.01))
		})

		It("rejects garbage", func() {
			for _, in := range []string{"INVALID", "invalid_smiles_xyz", "C1CC", "C(C", "C=", "[Xx]"} {
				_, err := kit.ParseSMILES(in)
				Expect(err).To(HaveOccurred(), in)
			}
		})

		It("does not sanitize on parse", func() {
			m, err := kit.ParseSMILES("CCO")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Sanitized()).To(BeFalse())
			_, err = kit.CanonicalSMILES(m, chemkit.SmilesOptions{})
			Expect(err).To(MatchError(chemkit.ErrNotSanitized))
		})
	})

	Context("sanitization", func() {
		It("reports a valence failure", func() {
			m, err := kit.ParseSMILES("C(C)(C)(C)(C)C")
			Expect(err).NotTo(HaveOccurred())
			flag, err := kit.Sanitize(m)
			Expect(err).To(HaveOccurred())
			Expect(flag).To(Equal(chemkit.SanitizeProperties))
			Expect(err.Error()).To(ContainSubstring("Explicit valence"))
		})

		It("reports a kekulization failure", func() {
			m, err := kit.ParseSMILES("c1cccc1")
			Expect(err).NotTo(HaveOccurred())
			flag, err := kit.Sanitize(m)
			Expect(err).To(HaveOccurred())
			Expect(flag).To(Equal(chemkit.SanitizeKekulize))
		})

		It("collects problems without touching the molecule", func() {
			m, err := kit.ParseSMILES("C(C)(C)(C)(C)C")
			Expect(err).NotTo(HaveOccurred())
			problems := kit.DetectProblems(m)
			Expect(problems).To(HaveLen(1))
			Expect(problems[0].Type).To(Equal("AtomValenceException"))
			Expect(m.Sanitized()).To(BeFalse())
		})
	})

	Context("canonical forms", func() {
		It("is independent of atom order", func() {
			Expect(canonical("OCC")).To(Equal(canonical("CCO")))
			Expect(canonical("OC(=O)C")).To(Equal(canonical("CC(=O)O")))
		})

		It("perceives aromaticity in kekule input", func() {
			Expect(canonical("C1=CC=CC=C1")).To(Equal(canonical("c1ccccc1")))
		})

		It("is stable when re-read", func() {
			for _, in := range []string{"CCO", "c1ccccc1O", "C[C@H](N)O", "F/C=C/F", "CC(=O)[O-].[Na+]", "[13CH4]"} {
				first := canonical(in)
				Expect(canonical(first)).To(Equal(first), in)
			}
		})

		It("keeps enantiomers apart", func() {
			Expect(canonical("C[C@H](N)O")).NotTo(Equal(canonical("C[C@@H](N)O")))
			Expect(canonical("F/C=C/F")).NotTo(Equal(canonical("F/C=C\\F")))
		})

		It("builds a 27 character key", func() {
			key, err := kit.CanonicalKey(load("CCO"))
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(HaveLen(27))
			Expect(key).To(MatchRegexp(`^[A-Z]{14}-[A-Z]{10}-[A-Z]$`))
			other, err := kit.CanonicalKey(load("OCC"))
			Expect(err).NotTo(HaveOccurred())
			Expect(other).To(Equal(key))
		})

		It("round trips the standard identifier", func() {
			id, err := kit.StandardIdentifier(load("CC(=O)O"))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(HavePrefix(chemkit.IdentifierPrefix + "1S/C2H4O2/"))
			m, err := kit.ParseIdentifier(id)
			Expect(err).NotTo(HaveOccurred())
			_, err = kit.Sanitize(m)
			Expect(err).NotTo(HaveOccurred())
			back, err := kit.StandardIdentifier(m)
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(id))
		})

		It("rejects identifiers it cannot read", func() {
			_, err := kit.ParseIdentifier("InChI=1S/CH4/h1H4")
			Expect(err).To(HaveOccurred())
			_, err = kit.ParseIdentifier("CCO")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("stereo", func() {
		It("separates defined and undefined centers", func() {
			Expect(kit.StereoInfo(load("C[C@H](N)O")).DefinedCenters).To(HaveLen(1))
			info := kit.StereoInfo(load("CC(N)O"))
			Expect(info.DefinedCenters).To(BeEmpty())
			Expect(info.UndefinedCenters).To(HaveLen(1))
		})

		It("separates defined and undefined double bonds", func() {
			Expect(kit.StereoInfo(load("F/C=C/F")).DefinedBonds).To(HaveLen(1))
			Expect(kit.StereoInfo(load("FC=CF")).UndefinedBonds).To(HaveLen(1))
		})

		It("drops markers on atoms that are not stereocenters", func() {
			info := kit.StereoInfo(load("C[C@H](C)O"))
			Expect(info.DefinedCenters).To(BeEmpty())
			Expect(info.Ignored).To(HaveLen(1))
		})
	})

	Context("connection tables", func() {
		It("round trips through a mol block", func() {
			block, err := kit.MolBlock(load("CC(=O)O"), "acetic acid")
			Expect(err).NotTo(HaveOccurred())
			Expect(block).To(ContainSubstring("V2000"))
			Expect(strings.TrimSpace(block)).To(HaveSuffix("M  END"))

			m, err := kit.ParseMolBlock(block)
			Expect(err).NotTo(HaveOccurred())
			_, err = kit.Sanitize(m)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Formula()).To(Equal("C2H4O2"))
		})

		It("rejects truncated blocks", func() {
			_, err := kit.ParseMolBlock("title\n\n\n  3  2  0")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("descriptors", func() {
		It("describes ethanol", func() {
			d := kit.Descriptors(load("CCO"))
			Expect(d.MolecularFormula).To(Equal("C2H6O"))
			Expect(d.HeavyAtoms).To(Equal(3))
			Expect(d.HBondDonors).To(Equal(1))
			Expect(d.HBondAcceptors).To(Equal(1))
			Expect(d.RotatableBonds).To(Equal(0))
			Expect(d.NumRings).To(Equal(0))
			Expect(d.FractionCSP3).To(Equal(1.0))
		})

		It("counts aromatic rings", func() {
			d := kit.Descriptors(load("c1ccccc1CCc1ccccc1"))
			Expect(d.NumRings).To(Equal(2))
			Expect(d.NumAromaticRings).To(Equal(2))
			Expect(d.RotatableBonds).To(Equal(3))
		})
	})

	Context("substructure match", func() {
		It("finds a carbonyl", func() {
			p, err := kit.ParsePattern("C=O")
			Expect(err).NotTo(HaveOccurred())
			Expect(kit.Match(load("CC(=O)O"), p)).To(HaveLen(1))
			Expect(kit.Match(load("CCO"), p)).To(BeEmpty())
		})

		It("reports each ring once", func() {
			p, err := kit.ParsePattern("c1ccccc1")
			Expect(err).NotTo(HaveOccurred())
			Expect(kit.Match(load("Cc1ccccc1"), p)).To(HaveLen(1))
		})

		It("honours bracket charges", func() {
			p, err := kit.ParsePattern("[N+](=O)[O-]")
			Expect(err).NotTo(HaveOccurred())
			Expect(kit.Match(load("C[N+](=O)[O-]"), p)).To(HaveLen(1))
			Expect(kit.Match(load("CN=O"), p)).To(BeEmpty())
		})
	})

	Context("transforms", func() {
		It("keeps the largest fragment", func() {
			frag, changed := kit.LargestFragment(load("CCO.Cl"))
			Expect(changed).To(BeTrue())
			Expect(frag.Formula()).To(Equal("C2H6O"))
		})

		It("neutralises a carboxylate", func() {
			out, changed, err := kit.Uncharge(load("CC(=O)[O-]"))
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(out.NetCharge()).To(Equal(0))
			Expect(out.Formula()).To(Equal("C2H4O2"))
		})

		It("leaves nitro groups alone", func() {
			_, changed, err := kit.Uncharge(load("C[N+](=O)[O-]"))
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("converts an enol into the keto form", func() {
			out, changed, err := kit.CanonicalTautomer(load("CC(O)=C"))
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			s, err := kit.CanonicalSMILES(out, chemkit.SmilesOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(canonical("CC(C)=O")))
		})
	})
})
