package scoring

import (
	"math"

	"github.com/chemaudit/chemaudit/internal/chemkit"
)

type ADMET struct {
	SAScore          float64 `json:"sa_score"`
	SAClassification string  `json:"sa_classification"`
	LogS             float64 `json:"logs"`
	SolubilityClass  string  `json:"solubility_class"`
	FractionCSP3     float64 `json:"fsp3"`
}

// saBaseline stands in for the fragment contribution term of a typical drug-like compound.
const saBaseline = 1.5

func admet(m *chemkit.Molecule, d chemkit.Descriptors, stereo chemkit.StereoInfo) ADMET {
	sa := syntheticAccessibility(m, d, len(stereo.DefinedCenters)+len(stereo.UndefinedCenters))
	logS := esol(m, d)
	return ADMET{
		SAScore:          round2(sa),
		SAClassification: classifySA(sa),
		LogS:             round2(logS),
		SolubilityClass:  classifySolubility(logS),
		FractionCSP3:     d.FractionCSP3,
	}
}

// syntheticAccessibility applies the complexity penalties of the Ertl and Schuffenhauer score
// (size, stereocenters, non-aromatic rings, macrocycles) to a constant fragment term and maps
// the result onto 1 (easy) .. 10 (hard).
func syntheticAccessibility(m *chemkit.Molecule, d chemkit.Descriptors, stereocenters int) float64 {
	n := float64(d.HeavyAtoms)
	penalty := math.Pow(n, 1.005) - n
	penalty += math.Log10(float64(stereocenters) + 1)
	if aliphatic := d.NumRings - d.NumAromaticRings; aliphatic > 0 {
		penalty += math.Log10(float64(aliphatic) + 1)
	}
	for _, ring := range m.Rings() {
		if len(ring) > 8 {
			penalty += math.Log10(2)
			break
		}
	}

	const lo, hi = -4.0, 2.5
	sa := 11 - (saBaseline-penalty-lo+1)/(hi-lo)*9
	if sa > 8 {
		sa = 8 + math.Log(sa+1-9)
	}
	return math.Max(1, math.Min(10, sa))
}

func classifySA(sa float64) string {
	switch {
	case sa <= 3:
		return "easy"
	case sa <= 6:
		return "moderate"
	}
	return "difficult"
}

// esol is the Delaney estimate of log10 of the aqueous solubility in mol/L.
func esol(m *chemkit.Molecule, d chemkit.Descriptors) float64 {
	aromatic := 0
	for i := range m.Atoms {
		if m.Atoms[i].Aromatic {
			aromatic++
		}
	}
	proportion := 0.0
	if d.HeavyAtoms > 0 {
		proportion = float64(aromatic) / float64(d.HeavyAtoms)
	}
	return 0.16 - 0.63*d.LogP - 0.0062*d.MolecularWeight + 0.066*float64(d.RotatableBonds) - 0.74*proportion
}

func classifySolubility(logS float64) string {
	switch {
	case logS >= 0:
		return "highly soluble"
	case logS >= -2:
		return "very soluble"
	case logS >= -4:
		return "soluble"
	case logS >= -6:
		return "moderately soluble"
	case logS >= -10:
		return "poorly soluble"
	}
	return "insoluble"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
