package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/scoring"
	"github.com/chemaudit/chemaudit/internal/service/export"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/internal/structure"
	"github.com/chemaudit/chemaudit/internal/validation"
)

func sampleData() *export.Data {
	generated := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	items := []model.ResultItem{
		{
			Index: 0, Input: "CCO", Name: "ethanol", Status: model.ItemStatusSuccess,
			CanonicalSMILES: "CCO", CanonicalKey: "LFQSCWFLJHTTHZ-UHFFFAOYSA-N",
			Validation: &validation.Outcome{OverallScore: 95},
			Scoring: &scoring.Outcome{
				MLReadiness:   scoring.MLReadiness{Score: 88},
				Druglikeness:  scoring.Druglikeness{QED: 0.407, LipinskiPassed: true},
				ADMET:         scoring.ADMET{SAScore: 1.98, SAClassification: "easy"},
				SafetyFilters: &scoring.SafetyFilters{AllPassed: true, PAINSPassed: true, BrenkPassed: true},
			},
		},
		{
			Index: 1, Input: "c1ccccc1", Name: "benzene", Status: model.ItemStatusSuccess,
			CanonicalSMILES: "c1ccccc1",
			Validation: &validation.Outcome{
				OverallScore: 40,
				Issues:       []validation.CheckResult{{Name: "valence", Passed: false}},
			},
		},
		model.ErrorItem(2, "XYZ", "broken", "Failed to parse SMILES"),
	}
	stats := model.NewStatistics(items, 2*time.Second)
	return &export.Data{
		Job:         &model.Job{ID: "0123456789abcdef", Status: model.JobStatusComplete},
		Items:       items,
		Statistics:  &stats,
		GeneratedAt: generated,
	}
}

var _ = Describe("export", func() {
	var factory *export.Factory

	BeforeEach(func() {
		factory = export.NewFactory(structure.NewParser(chemkit.NewBuiltin(), 10000))
	})

	render := func(format export.Format) []byte {
		r, err := factory.Get(format)
		Expect(err).NotTo(HaveOccurred())
		out, err := r.Render(sampleData())
		Expect(err).NotTo(HaveOccurred())
		return out
	}

	Context("formats", func() {
		It("accepts tokens and aliases", func() {
			for token, want := range map[string]export.Format{
				"tabular-csv": export.FormatCSV, "CSV": export.FormatCSV,
				"excel": export.FormatSheet, "xlsx": export.FormatSheet,
				"sdf": export.FormatSDF, "json": export.FormatJSON, "pdf": export.FormatPDF,
				"report-document": export.FormatPDF,
			} {
				got, err := export.ParseFormat(token)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			}
		})

		It("rejects unknown tokens", func() {
			_, err := export.ParseFormat("docx")
			Expect(err).To(HaveOccurred())
		})

		It("names files from the job id and time", func() {
			at := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
			Expect(export.Filename("0123456789abcdef", at, "csv")).To(Equal("batch_01234567_20240309_140506.csv"))
			Expect(export.Filename("abc", at, "pdf")).To(Equal("batch_abc_20240309_140506.pdf"))
		})
	})

	Context("csv", func() {
		It("writes a header and one row per item", func() {
			rows, err := csv.NewReader(bytes.NewReader(render(export.FormatCSV))).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(4))
			Expect(rows[0][:5]).To(Equal([]string{"index", "name", "input_smiles", "canonical_smiles", "overall_score"}))
			Expect(rows[1][4]).To(Equal("95"))
			Expect(rows[2][9]).To(Equal("valence"))
			Expect(rows[3][4]).To(BeEmpty())
			Expect(rows[3][6]).To(Equal("Failed to parse SMILES"))
			Expect(rows[0][15:]).To(Equal([]string{"qed_score", "sa_score", "safety_alerts"}))
			Expect(rows[1][15:]).To(Equal([]string{"0.407", "1.98", "0"}))
			Expect(rows[2][15:]).To(Equal([]string{"", "", ""}))
		})
	})

	Context("sheet", func() {
		It("writes results and summary sheets", func() {
			f, err := excelize.OpenReader(bytes.NewReader(render(export.FormatSheet)))
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()

			Expect(f.GetSheetList()).To(Equal([]string{"Results", "Summary"}))
			rows, err := f.GetRows("Results")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(4))
			Expect(rows[0][0]).To(Equal("Index"))
			Expect(rows[1][1]).To(Equal("ethanol"))
			Expect(rows[1][4]).To(Equal("95"))

			id, err := f.GetCellValue("Summary", "B1")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("0123456789abcdef"))
		})
	})

	Context("sdf", func() {
		It("writes only items with a structure", func() {
			out := string(render(export.FormatSDF))
			Expect(strings.Count(out, "$$$$")).To(Equal(2))
			Expect(strings.Count(out, "M  END")).To(Equal(2))
			Expect(out).To(ContainSubstring("> <overall_score>\n95\n"))
			Expect(out).To(ContainSubstring("> <name>\nbenzene\n"))
			Expect(out).NotTo(ContainSubstring("broken"))
		})

		It("keeps every data value on one line", func() {
			data := sampleData()
			data.Items[0].Input = "Ethanol\n  chemaudit\n\n  3  2\nM  END"
			r, err := factory.Get(export.FormatSDF)
			Expect(err).NotTo(HaveOccurred())
			out, err := r.Render(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(ContainSubstring("> <input_smiles>\nEthanol chemaudit 3 2 M END\n\n> <canonical_smiles>\nCCO\n"))
		})
	})

	Context("json", func() {
		It("writes metadata and every item", func() {
			var doc struct {
				Metadata struct {
					JobID        string `json:"job_id"`
					TotalResults int    `json:"total_results"`
				} `json:"metadata"`
				Results []model.ResultItem `json:"results"`
			}
			Expect(json.Unmarshal(render(export.FormatJSON), &doc)).To(Succeed())
			Expect(doc.Metadata.JobID).To(Equal("0123456789abcdef"))
			Expect(doc.Metadata.TotalResults).To(Equal(3))
			Expect(doc.Results).To(HaveLen(3))
			Expect(doc.Results[2].Error).To(Equal("Failed to parse SMILES"))
		})
	})

	Context("pdf", func() {
		It("writes the same document for the same results", func() {
			first := render(export.FormatPDF)
			Expect(string(first)).To(HavePrefix("%PDF"))
			Expect(render(export.FormatPDF)).To(Equal(first))
		})
	})
})
