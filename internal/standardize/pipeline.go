// Package standardize runs the structure standardization pipeline.
package standardize

import (
	"fmt"

	"github.com/chemaudit/chemaudit/internal/chemkit"
)

const (
	StepFragmentParent = "fragment_parent"
	StepUncharge       = "uncharge"
	StepTautomer       = "tautomer"
)

type Options struct {
	FragmentParent bool `json:"fragment_parent"`
	Uncharge       bool `json:"uncharge"`
	Tautomer       bool `json:"tautomer"`
}

// DefaultOptions keeps the parent fragment and neutralises it. Tautomer canonicalization is opt-in
// because it can drop stereo.
func DefaultOptions() Options {
	return Options{FragmentParent: true, Uncharge: true}
}

type StepResult struct {
	Name    string `json:"step_name"`
	Applied bool   `json:"applied"`
	Changed bool   `json:"changed"`
	Message string `json:"message,omitempty"`
}

type Outcome struct {
	OriginalSMILES     string       `json:"original_smiles"`
	StandardizedSMILES string       `json:"standardized_smiles"`
	Steps              []StepResult `json:"steps"`
	Changed            bool         `json:"changed"`
	StereoLost         bool         `json:"stereo_lost"`
	StereoBefore       int          `json:"stereo_before"`
	StereoAfter        int          `json:"stereo_after"`
	ExcludedFragments  []string     `json:"excluded_fragments,omitempty"`
	Error              string       `json:"error,omitempty"`
}

// StepInfo describes a pipeline step for the options endpoint.
type StepInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

func Steps() []StepInfo {
	d := DefaultOptions()
	return []StepInfo{
		{Name: StepFragmentParent, Description: "Keep the largest organic fragment and drop salts and solvents", Default: d.FragmentParent},
		{Name: StepUncharge, Description: "Neutralise charges where a neutral form exists", Default: d.Uncharge},
		{Name: StepTautomer, Description: "Replace the molecule with its canonical tautomer, may remove stereo", Default: d.Tautomer},
	}
}

type Pipeline struct {
	kit chemkit.Toolkit
}

func NewPipeline(kit chemkit.Toolkit) *Pipeline {
	return &Pipeline{kit: kit}
}

// Run standardizes m. m itself is not modified. Step failures end the pipeline and are
// reported on the outcome together with the steps completed so far.
func (p *Pipeline) Run(m *chemkit.Molecule, opts Options) (*Outcome, *chemkit.Molecule) {
	out := &Outcome{Steps: []StepResult{}}
	original, err := p.kit.CanonicalSMILES(m, chemkit.SmilesOptions{})
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.OriginalSMILES = original
	out.StereoBefore = p.kit.StereoInfo(m).Count()

	current := m.Clone()
	if opts.FragmentParent {
		parent, changed := p.kit.LargestFragment(current)
		step := StepResult{Name: StepFragmentParent, Applied: true, Changed: changed}
		if changed {
			excluded, err := p.excluded(current, parent)
			if err == nil {
				out.ExcludedFragments = excluded
				step.Message = fmt.Sprintf("removed %d fragment(s)", len(excluded))
			}
			current = parent
		}
		out.Steps = append(out.Steps, step)
	}
	if opts.Uncharge {
		neutral, changed, err := p.kit.Uncharge(current)
		if err != nil {
			out.Steps = append(out.Steps, StepResult{Name: StepUncharge, Applied: false, Message: err.Error()})
			out.Error = fmt.Sprintf("%s failed: %v", StepUncharge, err)
			return p.finish(out, current)
		}
		out.Steps = append(out.Steps, StepResult{Name: StepUncharge, Applied: true, Changed: changed})
		current = neutral
	}
	if opts.Tautomer {
		taut, changed, err := p.kit.CanonicalTautomer(current)
		if err != nil {
			out.Steps = append(out.Steps, StepResult{Name: StepTautomer, Applied: false, Message: err.Error()})
			out.Error = fmt.Sprintf("%s failed: %v", StepTautomer, err)
			return p.finish(out, current)
		}
		out.Steps = append(out.Steps, StepResult{Name: StepTautomer, Applied: true, Changed: changed})
		current = taut
	}
	return p.finish(out, current)
}

func (p *Pipeline) finish(out *Outcome, current *chemkit.Molecule) (*Outcome, *chemkit.Molecule) {
	smiles, err := p.kit.CanonicalSMILES(current, chemkit.SmilesOptions{})
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.StandardizedSMILES = smiles
	out.Changed = smiles != out.OriginalSMILES
	out.StereoAfter = p.kit.StereoInfo(current).Count()
	out.StereoLost = out.StereoAfter < out.StereoBefore
	return out, current
}

// excluded lists the canonical forms of the fragments that are not the parent.
func (p *Pipeline) excluded(all, parent *chemkit.Molecule) ([]string, error) {
	keep, err := p.kit.CanonicalSMILES(parent, chemkit.SmilesOptions{})
	if err != nil {
		return nil, err
	}
	var out []string
	skipped := false
	for _, comp := range all.Components() {
		s, err := p.kit.CanonicalSMILES(all.Subset(comp), chemkit.SmilesOptions{})
		if err != nil {
			return nil, err
		}
		if s == keep && !skipped {
			skipped = true
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
