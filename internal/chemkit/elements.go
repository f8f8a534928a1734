package chemkit

type element struct {
	symbol   string
	number   int
	weight   float64
	valences []int
}

// valences are only known for main-group elements; nil means unconstrained.
var elementTable = []element{
	{"*", 0, 0, nil},
	{"H", 1, 1.008, []int{1}},
	{"He", 2, 4.0026, []int{0}},
	{"Li", 3, 6.94, []int{1}},
	{"Be", 4, 9.0122, []int{2}},
	{"B", 5, 10.81, []int{3}},
	{"C", 6, 12.011, []int{4}},
	{"N", 7, 14.007, []int{3}},
	{"O", 8, 15.999, []int{2}},
	{"F", 9, 18.998, []int{1}},
	{"Ne", 10, 20.180, []int{0}},
	{"Na", 11, 22.990, []int{1}},
	{"Mg", 12, 24.305, []int{2}},
	{"Al", 13, 26.982, []int{3}},
	{"Si", 14, 28.085, []int{4}},
	{"P", 15, 30.974, []int{3, 5}},
	{"S", 16, 32.06, []int{2, 4, 6}},
	{"Cl", 17, 35.45, []int{1}},
	{"Ar", 18, 39.948, []int{0}},
	{"K", 19, 39.098, []int{1}},
	{"Ca", 20, 40.078, []int{2}},
	{"Sc", 21, 44.956, nil},
	{"Ti", 22, 47.867, nil},
	{"V", 23, 50.942, nil},
	{"Cr", 24, 51.996, nil},
	{"Mn", 25, 54.938, nil},
	{"Fe", 26, 55.845, nil},
	{"Co", 27, 58.933, nil},
	{"Ni", 28, 58.693, nil},
	{"Cu", 29, 63.546, nil},
	{"Zn", 30, 65.38, nil},
	{"Ga", 31, 69.723, []int{3}},
	{"Ge", 32, 72.630, []int{4}},
	{"As", 33, 74.922, []int{3, 5}},
	{"Se", 34, 78.971, []int{2, 4, 6}},
	{"Br", 35, 79.904, []int{1}},
	{"Kr", 36, 83.798, []int{0}},
	{"Rb", 37, 85.468, []int{1}},
	{"Sr", 38, 87.62, []int{2}},
	{"Y", 39, 88.906, nil},
	{"Zr", 40, 91.224, nil},
	{"Nb", 41, 92.906, nil},
	{"Mo", 42, 95.95, nil},
	{"Tc", 43, 98, nil},
	{"Ru", 44, 101.07, nil},
	{"Rh", 45, 102.91, nil},
	{"Pd", 46, 106.42, nil},
	{"Ag", 47, 107.87, nil},
	{"Cd", 48, 112.41, nil},
	{"In", 49, 114.82, []int{3}},
	{"Sn", 50, 118.71, []int{2, 4}},
	{"Sb", 51, 121.76, []int{3, 5}},
	{"Te", 52, 127.60, []int{2, 4, 6}},
	{"I", 53, 126.90, []int{1, 3, 5}},
	{"Xe", 54, 131.29, []int{0}},
	{"Cs", 55, 132.91, []int{1}},
	{"Ba", 56, 137.33, []int{2}},
	{"La", 57, 138.91, nil},
	{"Ce", 58, 140.12, nil},
	{"Pr", 59, 140.91, nil},
	{"Nd", 60, 144.24, nil},
	{"Pm", 61, 145, nil},
	{"Sm", 62, 150.36, nil},
	{"Eu", 63, 151.96, nil},
	{"Gd", 64, 157.25, nil},
	{"Tb", 65, 158.93, nil},
	{"Dy", 66, 162.50, nil},
	{"Ho", 67, 164.93, nil},
	{"Er", 68, 167.26, nil},
	{"Tm", 69, 168.93, nil},
	{"Yb", 70, 173.05, nil},
	{"Lu", 71, 174.97, nil},
	{"Hf", 72, 178.49, nil},
	{"Ta", 73, 180.95, nil},
	{"W", 74, 183.84, nil},
	{"Re", 75, 186.21, nil},
	{"Os", 76, 190.23, nil},
	{"Ir", 77, 192.22, nil},
	{"Pt", 78, 195.08, nil},
	{"Au", 79, 196.97, nil},
	{"Hg", 80, 200.59, nil},
	{"Tl", 81, 204.38, []int{1, 3}},
	{"Pb", 82, 207.2, []int{2, 4}},
	{"Bi", 83, 208.98, []int{3, 5}},
	{"Po", 84, 209, []int{2, 4, 6}},
	{"At", 85, 210, []int{1}},
	{"Rn", 86, 222, []int{0}},
}

var elementsBySymbol = func() map[string]*element {
	m := make(map[string]*element, len(elementTable))
	for i := range elementTable {
		m[elementTable[i].symbol] = &elementTable[i]
	}
	return m
}()

// organic subset atoms may be written without brackets
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true, "*": true,
}

// aromaticSymbols are the lowercase symbols accepted for aromatic atoms.
var aromaticSymbols = map[string]string{
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S", "se": "Se", "as": "As", "te": "Te",
}

func lookupElement(symbol string) (*element, bool) {
	e, ok := elementsBySymbol[symbol]
	return e, ok
}

func elementByNumber(n int) *element {
	if n < 0 || n >= len(elementTable) {
		return nil
	}
	return &elementTable[n]
}

// allowedValences follows the isoelectronic shift: a charged atom takes the valences of the
// element whose atomic number is shifted by the charge (N+ behaves like C, O- like F).
func allowedValences(number, charge int) []int {
	e := elementByNumber(number)
	if e == nil || e.valences == nil {
		return nil
	}
	if charge == 0 {
		return e.valences
	}
	shifted := elementByNumber(number - charge)
	if shifted == nil || shifted.valences == nil {
		return nil
	}
	return shifted.valences
}
