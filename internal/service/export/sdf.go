package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/internal/structure"
)

// SDFRenderer writes one connection table per successful item. Items without a
// structure are left out.
type SDFRenderer struct {
	parser *structure.Parser
}

func NewSDFRenderer(parser *structure.Parser) *SDFRenderer {
	return &SDFRenderer{parser: parser}
}

func (r *SDFRenderer) SupportedFormat() Format { return FormatSDF }
func (r *SDFRenderer) ContentType() string     { return "chemical/x-mdl-sdfile" }
func (r *SDFRenderer) Extension() string       { return "sdf" }

func (r *SDFRenderer) Render(data *Data) ([]byte, error) {
	var buf bytes.Buffer
	for i := range data.Items {
		item := &data.Items[i]
		block, ok := r.molBlock(item)
		if !ok {
			continue
		}
		buf.WriteString(block)
		if !strings.HasSuffix(block, "\n") {
			buf.WriteByte('\n')
		}
		for _, field := range dataFields(item) {
			fmt.Fprintf(&buf, "> <%s>\n%s\n\n", field[0], oneLine(field[1]))
		}
		buf.WriteString("$$$$\n")
	}
	return buf.Bytes(), nil
}

func (r *SDFRenderer) molBlock(item *model.ResultItem) (string, bool) {
	if item.Status != model.ItemStatusSuccess || item.CanonicalSMILES == "" {
		return "", false
	}
	res, err := r.parser.Parse(item.CanonicalSMILES, structure.Options{Format: structure.FormatSMILES})
	if err != nil {
		return "", false
	}
	block, err := r.parser.Toolkit().MolBlock(res.Molecule, item.Name)
	if err != nil {
		return "", false
	}
	return block, true
}

func dataFields(item *model.ResultItem) [][2]string {
	fields := [][2]string{
		{"index", fmt.Sprintf("%d", item.Index)},
		{"name", item.Name},
		{"input_smiles", item.Input},
		{"canonical_smiles", item.CanonicalSMILES},
	}
	if item.CanonicalKey != "" {
		fields = append(fields, [2]string{"inchikey", item.CanonicalKey})
	}
	if s := scoreText(item); s != "" {
		fields = append(fields, [2]string{"overall_score", s})
	}
	if failed := failedChecks(item); len(failed) > 0 {
		fields = append(fields, [2]string{"failed_checks", strings.Join(failed, ";")})
	}
	if item.Scoring != nil {
		fields = append(fields, [2]string{"ml_readiness_score", fmt.Sprintf("%d", item.Scoring.MLReadiness.Score)})
		fields = append(fields, [2]string{"qed_score", fmt.Sprintf("%.3f", item.Scoring.Druglikeness.QED)})
	}
	if item.Alerts != nil {
		fields = append(fields, [2]string{"alert_count", fmt.Sprintf("%d", item.Alerts.TotalAlerts)})
	}
	return fields
}

// oneLine folds a value onto a single line. A blank line ends an SD data field.
func oneLine(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
