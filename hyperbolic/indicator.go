package hyperbolic

import "math"

/*
	Indicator computes the entropy-commutator smoothness value alpha_i in
	[0,1] for one node: 0 in smooth regions, 1 at strong discontinuities.
	The high-order graph viscosity is the blend

		d_ij^H = max(alpha_i, alpha_j) * d_ij

	so the antidiffusive flux p_ij removes (1 - alpha_ij) of the low-order
	viscosity before limiting.

	The commutator measures how far the discrete evaluation of the Harten
	entropy flux divergence is from the chain-rule value eta'(U_i) applied
	to the state flux divergence; the two agree to discretization order in
	smooth regions and diverge at shocks.
*/
type Indicator struct {
	System *SystemView
	// Power sharpens the raw quotient; larger values keep alpha closer
	// to 0 in smooth regions.
	Power float64
}

func NewIndicator(sv *SystemView) (ind Indicator) {
	ind = Indicator{
		System: sv,
		Power:  1.5,
	}
	return
}

// indicatorAccumulator carries the per-node running sums of one sweep.
type indicatorAccumulator struct {
	dEta        State
	etaOverRhoI float64
	numerator   float64
	denominator float64
}

func (ind Indicator) reset(U State, prec Precomputed) (acc indicatorAccumulator) {
	acc.dEta = ind.System.SurrogateHartenEntropyDerivative(U, prec.Eta, prec.GammaMin)
	acc.etaOverRhoI = safeDivision(prec.Eta, U.Density())
	return
}

func (ind Indicator) accumulate(acc *indicatorAccumulator, Uj State, precJ Precomputed, cij Vector) {
	var (
		mj       = Uj.Momentum()
		fluxTerm = FluxDot(Uj, precJ.P, cij)
	)
	var left float64
	for n := 0; n < ProblemDim; n++ {
		left += acc.dEta[n] * fluxTerm[n]
	}
	right := safeDivision(precJ.Eta, Uj.Density()) * mj.Dot(cij)

	acc.numerator += left - right
	acc.denominator += math.Abs(left) + math.Abs(right)
}

func (ind Indicator) alpha(acc indicatorAccumulator) float64 {
	var (
		eps   = math.Nextafter(1, 2) - 1
		ridge = eps * math.Abs(acc.etaOverRhoI)
	)
	if acc.denominator <= ridge {
		return 0.
	}
	quotient := math.Abs(acc.numerator) / (acc.denominator + ridge)
	return math.Min(1., math.Pow(quotient, ind.Power))
}

// Alpha evaluates the indicator for node i over its stencil.
func (ind Indicator) Alpha(view *SparsityView, i int, U []State, prec []Precomputed) float64 {
	acc := ind.reset(U[i], prec[i])
	cols := view.Columns(i)
	for k := 1; k < len(cols); k++ {
		j := cols[k]
		ind.accumulate(&acc, U[j], prec[j], view.Cij(i, k))
	}
	return ind.alpha(acc)
}
