package scoring

import (
	"math"

	"github.com/chemaudit/chemaudit/internal/chemkit"
)

// desirability is an asymmetric double sigmoid fitted to the property distribution of oral drugs.
type desirability struct {
	a, b, c, d, e, f, max float64
	weight                float64
}

func (p desirability) at(x float64) float64 {
	rise := p.a + p.b/(1+math.Exp(-(x-p.c+p.d/2)/p.e))
	fall := 1 - 1/(1+math.Exp(-(x-p.c-p.d/2)/p.f))
	return rise * fall / p.max
}

// Bickerton et al. 2012, mean weights.
var (
	qedWeight     = desirability{2.817065973, 392.5754953, 290.7489764, 2.419764353, 49.22325677, 65.37051707, 104.9805561, 0.66}
	qedLogP       = desirability{3.172690585, 137.8624751, 2.534937431, 4.581497897, 0.822739154, 0.576295591, 131.3186604, 0.46}
	qedAcceptors  = desirability{2.948620388, 160.4605972, 3.615294657, 4.435986202, 0.290141953, 1.300669958, 148.7763046, 0.05}
	qedDonors     = desirability{1.618662227, 1010.051101, 0.985094388, 0.000000001, 0.713820843, 0.920922555, 258.1632616, 0.61}
	qedPSA        = desirability{1.876861559, 125.2232657, 62.90773554, 87.83366614, 12.01999824, 28.51324732, 104.5686167, 0.06}
	qedRotatable  = desirability{0.010000000, 272.4121427, 2.558379970, 1.565547684, 1.271567166, 2.758063707, 105.4420403, 0.65}
	qedAromatic   = desirability{3.217788970, 957.7374108, 2.274627939, 0.000000001, 1.317690384, 0.375760881, 312.3372610, 0.48}
	qedAlertCount = desirability{0.010000000, 1199.094025, -0.09002883, 0.000000001, 0.185904477, 0.875193782, 417.7253140, 0.95}
)

// QED is the weighted geometric mean of the eight property desirabilities, in (0, 1].
func QED(d chemkit.Descriptors, structuralAlerts int) float64 {
	terms := []struct {
		p desirability
		x float64
	}{
		{qedWeight, d.MolecularWeight},
		{qedLogP, d.LogP},
		{qedAcceptors, float64(d.HBondAcceptors)},
		{qedDonors, float64(d.HBondDonors)},
		{qedPSA, d.TPSA},
		{qedRotatable, float64(d.RotatableBonds)},
		{qedAromatic, float64(d.NumAromaticRings)},
		{qedAlertCount, float64(structuralAlerts)},
	}
	sum, weights := 0.0, 0.0
	for _, t := range terms {
		v := t.p.at(t.x)
		if v <= 0 {
			v = 1e-9
		}
		sum += t.p.weight * math.Log(v)
		weights += t.p.weight
	}
	return math.Round(math.Exp(sum/weights)*1000) / 1000
}
