package alerts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/structure"
)

var _ = Describe("screener", Ordered, func() {
	var (
		screener *alerts.Screener
		parser   *structure.Parser
	)

	BeforeAll(func() {
		kit := chemkit.NewBuiltin()
		var err error
		screener, err = alerts.NewScreener(kit)
		Expect(err).NotTo(HaveOccurred())
		parser = structure.NewParser(kit, 10000)
	})

	mol := func(s string) *chemkit.Molecule {
		res, err := parser.Parse(s, structure.Options{})
		Expect(err).NotTo(HaveOccurred())
		return res.Molecule
	}

	It("loads every embedded catalog", func() {
		infos := screener.Catalogs()
		Expect(infos).To(HaveLen(3))
		Expect(infos[0].Name).To(Equal("BRENK"))
		Expect(infos[1].Name).To(Equal("NIH"))
		Expect(infos[2].Name).To(Equal("PAINS"))
		for _, info := range infos {
			Expect(info.NumPatterns).To(BeNumerically(">", 0))
		}
	})

	It("finds a nitro group", func() {
		out, err := screener.Screen(mol("c1ccccc1[N+](=O)[O-]"), []string{"brenk"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.HasAlerts).To(BeTrue())
		Expect(out.ScreenedCatalogs).To(Equal([]string{"BRENK"}))
		Expect(out.Alerts[0].Name).To(Equal("nitro_group"))
		Expect(out.Alerts[0].MatchedAtoms).To(HaveLen(1))
	})

	It("finds a catechol", func() {
		out, err := screener.Screen(mol("Oc1ccccc1O"), nil)
		Expect(err).NotTo(HaveOccurred())
		names := []string{}
		for _, a := range out.Alerts {
			names = append(names, a.Catalog+"/"+a.Name)
		}
		Expect(names).To(ContainElement("PAINS/catechol_A"))
	})

	It("reports nothing for ethanol", func() {
		out, err := screener.Screen(mol("CCO"), []string{"all"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.HasAlerts).To(BeFalse())
		Expect(out.Alerts).To(BeEmpty())
		Expect(out.ScreenedCatalogs).To(HaveLen(3))

		found, err := screener.QuickCheck(mol("CCO"), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("quick checks an epoxide", func() {
		found, err := screener.QuickCheck(mol("CC1OC1"), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
	})

	It("rejects unknown catalogs", func() {
		_, err := screener.Screen(mol("CCO"), []string{"ZINC"})
		Expect(err).To(BeAssignableToTypeOf(&alerts.UnknownCatalogError{}))
	})
})
