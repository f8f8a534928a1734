// Package scoring computes drug-likeness rules, safety filters, ADMET estimates and an
// ML-readiness score from toolkit descriptors.
package scoring

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/chemkit"
)

const (
	lipinskiMaxWeight    = 500
	lipinskiMaxLogP      = 5
	lipinskiMaxDonors    = 5
	lipinskiMaxAcceptors = 10
	veberMaxRotatable    = 10
	veberMaxTPSA         = 140
)

type RuleResult struct {
	Passed     bool     `json:"passed"`
	Violations int      `json:"violations"`
	Details    []string `json:"details,omitempty"`
}

type MLReadiness struct {
	Score          int            `json:"score"`
	Interpretation string         `json:"interpretation"`
	Breakdown      map[string]int `json:"breakdown"`
}

type Outcome struct {
	Descriptors  chemkit.Descriptors `json:"descriptors"`
	Lipinski     RuleResult          `json:"lipinski"`
	Veber        RuleResult          `json:"veber"`
	MLReadiness  MLReadiness         `json:"ml_readiness"`
	Druglikeness Druglikeness        `json:"druglikeness"`
	// SafetyFilters is nil when no screener is configured or the screen failed.
	SafetyFilters *SafetyFilters `json:"safety_filters,omitempty"`
	ADMET         ADMET          `json:"admet"`
}

type Druglikeness struct {
	QED                float64 `json:"qed"`
	LipinskiPassed     bool    `json:"lipinski_passed"`
	LipinskiViolations int     `json:"lipinski_violations"`
}

type SafetyFilters struct {
	AllPassed   bool `json:"all_passed"`
	TotalAlerts int  `json:"total_alerts"`
	PAINSPassed bool `json:"pains_passed"`
	BrenkPassed bool `json:"brenk_passed"`
}

type Scorer struct {
	kit      chemkit.Toolkit
	screener *alerts.Screener
}

// NewScorer returns a scorer. screener may be nil, the safety filters are left out then.
func NewScorer(kit chemkit.Toolkit, screener *alerts.Screener) *Scorer {
	return &Scorer{kit: kit, screener: screener}
}

func (s *Scorer) Score(m *chemkit.Molecule) *Outcome {
	d := s.kit.Descriptors(m)
	rule5 := lipinski(d)
	out := &Outcome{
		Descriptors: d,
		Lipinski:    rule5,
		Veber:       veber(d),
		MLReadiness: mlReadiness(d),
		ADMET:       admet(m, d, s.kit.StereoInfo(m)),
	}
	out.SafetyFilters = s.safety(m)
	structuralAlerts := 0
	if out.SafetyFilters != nil {
		structuralAlerts = out.SafetyFilters.TotalAlerts
	}
	out.Druglikeness = Druglikeness{
		QED:                QED(d, structuralAlerts),
		LipinskiPassed:     rule5.Passed,
		LipinskiViolations: rule5.Violations,
	}
	return out
}

// safety screens m against every catalog.
func (s *Scorer) safety(m *chemkit.Molecule) *SafetyFilters {
	if s.screener == nil {
		return nil
	}
	screened, err := s.screener.Screen(m, nil)
	if err != nil {
		zap.S().Named("scoring").Warnw("safety screen failed", "error", err)
		return nil
	}
	f := &SafetyFilters{TotalAlerts: screened.TotalAlerts, PAINSPassed: true, BrenkPassed: true}
	for _, a := range screened.Alerts {
		switch a.Catalog {
		case "PAINS":
			f.PAINSPassed = false
		case "BRENK":
			f.BrenkPassed = false
		}
	}
	f.AllPassed = f.TotalAlerts == 0
	return f
}

// lipinski allows one violation of the rule of five.
func lipinski(d chemkit.Descriptors) RuleResult {
	var r RuleResult
	if d.MolecularWeight > lipinskiMaxWeight {
		r.Details = append(r.Details, fmt.Sprintf("molecular weight %.1f > %d", d.MolecularWeight, lipinskiMaxWeight))
	}
	if d.LogP > lipinskiMaxLogP {
		r.Details = append(r.Details, fmt.Sprintf("logP %.2f > %d", d.LogP, lipinskiMaxLogP))
	}
	if d.HBondDonors > lipinskiMaxDonors {
		r.Details = append(r.Details, fmt.Sprintf("H-bond donors %d > %d", d.HBondDonors, lipinskiMaxDonors))
	}
	if d.HBondAcceptors > lipinskiMaxAcceptors {
		r.Details = append(r.Details, fmt.Sprintf("H-bond acceptors %d > %d", d.HBondAcceptors, lipinskiMaxAcceptors))
	}
	r.Violations = len(r.Details)
	r.Passed = r.Violations <= 1
	return r
}

func veber(d chemkit.Descriptors) RuleResult {
	var r RuleResult
	if d.RotatableBonds > veberMaxRotatable {
		r.Details = append(r.Details, fmt.Sprintf("rotatable bonds %d > %d", d.RotatableBonds, veberMaxRotatable))
	}
	if d.TPSA > veberMaxTPSA {
		r.Details = append(r.Details, fmt.Sprintf("TPSA %.1f > %d", d.TPSA, veberMaxTPSA))
	}
	r.Violations = len(r.Details)
	r.Passed = r.Violations == 0
	return r
}

// mlReadiness is a 0..100 score made of four parts: size (30), composition (25),
// single component (25) and rule compliance (20).
func mlReadiness(d chemkit.Descriptors) MLReadiness {
	breakdown := map[string]int{}

	switch {
	case d.HeavyAtoms >= 5 && d.HeavyAtoms <= 70:
		breakdown["size"] = 30
	case d.HeavyAtoms >= 3 && d.HeavyAtoms <= 100:
		breakdown["size"] = 15
	default:
		breakdown["size"] = 0
	}

	composition := 25
	if d.FormalCharge != 0 {
		composition -= 10
	}
	if d.NumRings > 6 {
		composition -= 10
	}
	if composition < 0 {
		composition = 0
	}
	breakdown["composition"] = composition

	if d.NumFragments <= 1 {
		breakdown["single_component"] = 25
	} else {
		breakdown["single_component"] = 5
	}

	rules := 20 - 5*lipinski(d).Violations - 5*veber(d).Violations
	if rules < 0 {
		rules = 0
	}
	breakdown["rule_compliance"] = rules

	score := 0
	for _, v := range breakdown {
		score += v
	}
	return MLReadiness{Score: score, Interpretation: interpret(score), Breakdown: breakdown}
}

func interpret(score int) string {
	switch {
	case score >= 80:
		return "Excellent - well suited for ML applications"
	case score >= 60:
		return "Good - usable with minor caveats"
	case score >= 40:
		return "Moderate - review before use"
	}
	return "Poor - not recommended for ML datasets"
}
