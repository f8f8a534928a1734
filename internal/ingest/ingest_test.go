package ingest_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/ingest"
	"github.com/chemaudit/chemaudit/internal/jobs"
	"github.com/chemaudit/chemaudit/internal/structure"
)

func sanitized(kit chemkit.Toolkit, smiles string) *chemkit.Molecule {
	m, err := kit.ParseSMILES(smiles)
	ExpectWithOffset(1, err).To(BeNil())
	_, err = kit.Sanitize(m)
	ExpectWithOffset(1, err).To(BeNil())
	return m
}

func readAll(r *ingest.Reader) []jobs.Item {
	var items []jobs.Item
	for {
		item, err := r.Next()
		if errors.Is(err, io.EOF) {
			return items
		}
		ExpectWithOffset(1, err).To(BeNil())
		items = append(items, item)
	}
}

const ethanolBlock = `Ethanol
  chemaudit

  3  2  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    1.5000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    2.2500    1.2990    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
  2  3  1  0
M  END`

func createSheet(rows [][]string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			Expect(err).To(BeNil())
			Expect(f.SetCellValue("Sheet1", cell, v)).To(Succeed())
		}
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	Expect(err).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("ingest", func() {
	Context("delimited files", func() {
		It("reads structures and names from a csv", func() {
			data := []byte("smiles,name\nCCO,Ethanol\nCC(=O)O,Acetic\nc1ccccc1,Benzene\nINVALID,Bad\nC,Methane\n")
			r, err := ingest.Open("batch.csv", data, ingest.Options{})
			Expect(err).To(BeNil())
			Expect(r.Kind()).To(Equal(ingest.KindTabular))
			Expect(r.StructureColumn).To(Equal("smiles"))
			Expect(r.NameColumn).To(Equal("name"))

			items := readAll(r)
			Expect(items).To(HaveLen(5))
			Expect(items[3]).To(Equal(jobs.Item{Index: 3, Input: "INVALID", Name: "Bad"}))

			n, err := ingest.Count("batch.csv", data, ingest.Options{})
			Expect(err).To(BeNil())
			Expect(n).To(Equal(5))
		})

		It("falls back to tabs and index names", func() {
			data := []byte("SMILES\tscore\nCCO\t1\nCCC\t2\n")
			r, err := ingest.Open("batch.tsv", data, ingest.Options{})
			Expect(err).To(BeNil())
			Expect(r.NameColumn).To(BeEmpty())
			items := readAll(r)
			Expect(items[0].Name).To(Equal("mol_0"))
			Expect(items[1].Name).To(Equal("mol_1"))
			Expect(items[1].Input).To(Equal("CCC"))
		})

		It("detects columns by substring", func() {
			data := []byte("Compound ID,Canonical SMILES\nX1,CCO\n")
			r, err := ingest.Open("batch.csv", data, ingest.Options{})
			Expect(err).To(BeNil())
			Expect(r.StructureColumn).To(Equal("Canonical SMILES"))
			Expect(r.NameColumn).To(Equal("Compound ID"))
			Expect(readAll(r)[0]).To(Equal(jobs.Item{Index: 0, Input: "CCO", Name: "X1"}))
		})

		It("flags empty structure cells and skips blank rows", func() {
			data := []byte("smiles,name\nCCO,a\n,b\n,\nC,c\n")
			items := readAll(must(ingest.Open("batch.csv", data, ingest.Options{})))
			Expect(items).To(HaveLen(3))
			Expect(items[1].PreError).To(Equal(ingest.EmptyStructure))
			Expect(items[1].Name).To(Equal("b"))
			Expect(items[2].Index).To(Equal(2))
		})

		It("uses the nominated columns", func() {
			data := []byte("a,b,c\nx,CCO,Eth\n")
			r, err := ingest.Open("batch.csv", data, ingest.Options{StructureColumn: "B", NameColumn: "c"})
			Expect(err).To(BeNil())
			Expect(readAll(r)[0]).To(Equal(jobs.Item{Index: 0, Input: "CCO", Name: "Eth"}))

			_, err = ingest.Open("batch.csv", data, ingest.Options{StructureColumn: "missing"})
			var fileErr *ingest.FileError
			Expect(errors.As(err, &fileErr)).To(BeTrue())
			Expect(fileErr.Reason).To(ContainSubstring("missing"))
		})

		It("rejects files without a structure column", func() {
			_, err := ingest.Open("batch.csv", []byte("foo,bar\n1,2\n"), ingest.Options{})
			var fileErr *ingest.FileError
			Expect(errors.As(err, &fileErr)).To(BeTrue())
			Expect(fileErr.Reason).To(HavePrefix("No SMILES column found"))
		})

		It("rejects empty files", func() {
			_, err := ingest.Open("batch.csv", []byte("  \n"), ingest.Options{})
			Expect(err).To(HaveOccurred())
			_, err = ingest.Count("batch.csv", []byte("smiles\n"), ingest.Options{})
			Expect(err).To(MatchError(ingest.ErrNoMolecules))
		})
	})

	Context("archives", func() {
		It("reads records and keeps going past a broken one", func() {
			data := []byte(ethanolBlock + "\n> <Name>\nEtOH\n\n$$$$\nbroken\nrecord\n$$$$\n" + ethanolBlock + "\n$$$$\n")
			r, err := ingest.Open("batch.sdf", data, ingest.Options{})
			Expect(err).To(BeNil())
			Expect(r.Kind()).To(Equal(ingest.KindSDF))

			items := readAll(r)
			Expect(items).To(HaveLen(3))
			Expect(items[0].Name).To(Equal("EtOH"))
			Expect(items[0].PreError).To(BeEmpty())
			Expect(items[0].Input).NotTo(ContainSubstring("\n"))
			kit := chemkit.NewBuiltin()
			ethanol, err := kit.CanonicalSMILES(sanitized(kit, "CCO"), chemkit.SmilesOptions{})
			Expect(err).To(BeNil())
			Expect(items[0].Input).To(Equal(ethanol))
			Expect(items[1].PreError).To(Equal(ingest.InvalidRecord))
			Expect(items[2].Name).To(Equal("Ethanol"))
			Expect(items[2].Index).To(Equal(2))
			Expect(items[2].Input).To(Equal(ethanol))
		})

		It("caps the length of the structure, not of the connection table", func() {
			kit := chemkit.NewBuiltin()
			block, err := kit.MolBlock(sanitized(kit, strings.Repeat("C", 160)), "Hexacontahectane")
			Expect(err).To(BeNil())
			Expect(len(block)).To(BeNumerically(">", 10000))

			items := readAll(must(ingest.Open("long.sdf", []byte(block+"\n$$$$\n"), ingest.Options{Toolkit: kit})))
			Expect(items).To(HaveLen(1))
			Expect(items[0].PreError).To(BeEmpty())
			Expect(strings.Count(items[0].Input, "C")).To(Equal(160))
			Expect(len(items[0].Input)).To(BeNumerically("<", 10000))
			_, err = structure.NewParser(kit, 10000).Parse(items[0].Input, structure.Options{})
			Expect(err).To(BeNil())
		})

		It("turns a connection table that does not parse into an error item", func() {
			bad := strings.Replace(ethanolBlock, "  1  2  1  0", "  1  9  1  0", 1)
			items := readAll(must(ingest.Open("bad.sdf", []byte(bad+"\n$$$$\n"), ingest.Options{})))
			Expect(items).To(HaveLen(1))
			Expect(items[0].PreError).To(HavePrefix(ingest.InvalidRecord + ": "))
			Expect(items[0].Input).To(Equal("Ethanol"))
		})

		It("detects an archive by content", func() {
			Expect(ingest.DetectKind("upload", []byte(ethanolBlock+"\n$$$$\n"))).To(Equal(ingest.KindSDF))
			Expect(ingest.DetectKind("upload", []byte("smiles\nC\n"))).To(Equal(ingest.KindTabular))
		})
	})

	Context("content screen", func() {
		DescribeTable("rejects unsafe uploads",
			func(filename string, data []byte, reason string) {
				_, err := ingest.Open(filename, data, ingest.Options{})
				var fileErr *ingest.FileError
				Expect(errors.As(err, &fileErr)).To(BeTrue())
				Expect(fileErr.Reason).To(ContainSubstring(reason))

				_, err = ingest.Count(filename, data, ingest.Options{})
				Expect(errors.As(err, &fileErr)).To(BeTrue())
			},
			Entry("script tag", "batch.csv", []byte("smiles,name\nCCO,<SCRIPT>alert(1)</script>\n"), "script tag"),
			Entry("iframe tag", "batch.csv", []byte("smiles\nCCO\n<iframe src=x>\n"), "iframe tag"),
			Entry("null byte", "batch.csv", []byte("smiles\nCC\x00O\n"), "null bytes"),
			Entry("windows executable", "batch.csv", []byte("MZ\x90\x00\x03"), "Windows executable"),
			Entry("elf executable", "batch.sdf", []byte("\x7fELF\x02\x01\x01"), "ELF executable"),
			Entry("gzip archive", "batch.csv", []byte("\x1f\x8b\x08\x00smiles"), "gzip archive"),
			Entry("zip posing as text", "batch.csv", []byte("PK\x03\x04smiles\nCCO\n"), "zip archive"),
			Entry("binary noise", "batch.csv", []byte("smiles\nCCO\x01\x02\x03\n"), "non-printable characters"),
		)

		It("accepts plain text with tabs and carriage returns", func() {
			Expect(ingest.Screen(ingest.KindTabular, []byte("smiles\tname\r\nCCO\tEthanol\r\n"))).To(Succeed())
			Expect(ingest.Screen(ingest.KindSDF, []byte(ethanolBlock+"\n$$$$\n"))).To(Succeed())
		})
	})

	Context("spreadsheets", func() {
		It("reads the first sheet", func() {
			data := createSheet([][]string{{"Name", "SMILES"}, {"Ethanol", "CCO"}, {"Methane", "C"}})
			Expect(ingest.DetectKind("upload.bin", data)).To(Equal(ingest.KindSheet))

			r, err := ingest.Open("batch.xlsx", data, ingest.Options{})
			Expect(err).To(BeNil())
			items := readAll(r)
			Expect(items).To(Equal([]jobs.Item{
				{Index: 0, Input: "CCO", Name: "Ethanol"},
				{Index: 1, Input: "C", Name: "Methane"},
			}))
		})
	})
})

func must(r *ingest.Reader, err error) *ingest.Reader {
	ExpectWithOffset(1, err).To(BeNil())
	return r
}
