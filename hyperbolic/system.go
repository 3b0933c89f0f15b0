package hyperbolic

import (
	"math"

	"github.com/jordanhoffart/ryujin/eos"
)

/*
	SystemView combines the (opaque) equation of state oracle with the
	Noble-Abel stiffened gas interpolation used to construct surrogate
	thermodynamic quantities. The surrogates give the kernel closed-form,
	provably convex entropy-type functionals even when the true equation of
	state has no closed-form polytropic exponent:

		gamma(U, p) = 1 + (p + pinf)(1 - b rho) / (rho e - rho q - (1 - b rho) pinf)

	All members are read-only after construction; the view is safe for
	concurrent use.
*/
type SystemView struct {
	Oracle eos.EquationOracle

	// NASG interpolation coefficients
	B      float64 // Covolume b
	Pinfty float64 // Reference pressure p_infty
	Q      float64 // Specific internal energy offset q

	ReferenceDensity      float64
	VacuumStateRelaxation float64
}

func NewSystemView(oracle eos.EquationOracle, b, pinfty, q float64) (sv *SystemView) {
	sv = &SystemView{
		Oracle:                oracle,
		B:                     b,
		Pinfty:                pinfty,
		Q:                     q,
		ReferenceDensity:      1.,
		VacuumStateRelaxation: 1.e4,
	}
	return
}

// Precomputed holds the per-node quantities evaluated once per step ahead
// of the edge sweeps.
type Precomputed struct {
	P        float64 // Oracle pressure
	GammaMin float64 // Neighborhood minimum of the surrogate gamma
	S        float64 // Surrogate specific entropy at GammaMin
	Eta      float64 // Surrogate Harten entropy at GammaMin
}

// FilterVacuumDensity clips densities below the vacuum cutoff
//
//	|rho| < reference_density * relaxation * eps
//
// to exactly zero so that downstream wave-speed formulas can special-case
// vacuum instead of dividing by a denormal.
func (sv *SystemView) FilterVacuumDensity(rho float64) float64 {
	var (
		eps    = math.Nextafter(1, 2) - 1
		cutoff = sv.ReferenceDensity * sv.VacuumStateRelaxation * eps
	)
	if math.Abs(rho) < cutoff {
		return 0.
	}
	return rho
}

// IsAdmissible tests rho > 0 and a positive shifted internal energy.
func (sv *SystemView) IsAdmissible(U State) bool {
	var (
		rho      = U.Density()
		rhoE     = U.InternalEnergy()
		covolume = 1. - sv.B*rho
		shift    = rhoE - rho*sv.Q - sv.Pinfty*covolume
	)
	return rho > 0. && shift > 0.
}

func (sv *SystemView) SurrogateGamma(U State, p float64) (gamma float64) {
	var (
		rho       = U.Density()
		rhoE      = U.InternalEnergy()
		covolume  = 1. - sv.B*rho
		numerator = (p + sv.Pinfty) * covolume
		denom     = rhoE - rho*sv.Q - covolume*sv.Pinfty
	)
	gamma = 1. + safeDivision(numerator, denom)
	return
}

// SurrogatePressure is the complementary function to SurrogateGamma:
//
//	SurrogateGamma(U, SurrogatePressure(U, gamma)) == gamma
//	SurrogatePressure(U, SurrogateGamma(U, p)) == p
func (sv *SystemView) SurrogatePressure(U State, gamma float64) (p float64) {
	var (
		rho      = U.Density()
		rhoE     = U.InternalEnergy()
		covolume = 1. - sv.B*rho
	)
	p = positivePart(gamma-1.)*safeDivision(rhoE-rho*sv.Q, covolume) - gamma*sv.Pinfty
	return
}

// SurrogateSpecificEntropy returns the scaled surrogate specific entropy
//
//	exp((gamma-1) s) = (rho e - rho q - pinf (1 - b rho)) (1/rho - b)^gamma / (1 - b rho)
func (sv *SystemView) SurrogateSpecificEntropy(U State, gammaMin float64) (s float64) {
	var (
		rho      = U.Density()
		oorho    = 1. / rho
		covolume = 1. - sv.B*rho
		shift    = U.InternalEnergy() - rho*sv.Q - sv.Pinfty*covolume
	)
	s = shift * math.Pow(oorho-sv.B, gammaMin) / covolume
	return
}

// SurrogateHartenEntropy returns the Harten-type entropy
//
//	eta = (rho^2 e_q (1 - b rho)^(gamma-1))^(1/(gamma+1))
func (sv *SystemView) SurrogateHartenEntropy(U State, gammaMin float64) (eta float64) {
	var (
		rho      = U.Density()
		m        = U.Momentum()
		E        = U.TotalEnergy()
		rhoRhoEq = rho*E - 0.5*m.Dot(m) - rho*rho*sv.Q
		exponent = 1. / (gammaMin + 1.)
		covolume = 1. - sv.B*rho
	)
	covolumeTerm := math.Pow(covolume, gammaMin-1.)
	rhoPinfCov := rho * sv.Pinfty * covolume
	eta = math.Pow(positivePart(rhoRhoEq-rhoPinfCov)*covolumeTerm, exponent)
	return
}

// SurrogateHartenEntropyDerivative returns the gradient of the Harten
// entropy with respect to the conserved state.
func (sv *SystemView) SurrogateHartenEntropyDerivative(U State, eta, gammaMin float64) (dU State) {
	var (
		rho      = U.Density()
		m        = U.Momentum()
		E        = U.TotalEnergy()
		covolume = 1. - sv.B*rho
		oocov    = 1. / covolume
		shift    = rho*E - 0.5*m.Dot(m) - rho*rho*sv.Q - rho*sv.Pinfty*covolume
		eps      = math.Nextafter(1, 2) - 1
	)
	regularization := m.Norm() * eps
	factor := math.Pow(math.Max(regularization, eta*oocov), -gammaMin)
	factor *= oocov * oocov / (gammaMin + 1.)

	firstTerm := E - 2.*rho*sv.Q - sv.Pinfty*(1.-2.*sv.B*rho)
	secondTerm := -(gammaMin - 1.) * shift * sv.B

	dU[0] = factor * (covolume*firstTerm + secondTerm)
	for d := 0; d < SpaceDim; d++ {
		dU[1+d] = -factor * covolume * m[d]
	}
	dU[1+SpaceDim] = factor * covolume * rho
	return
}

// SurrogateSpeedOfSound returns the NASG interpolated sound speed at the
// given surrogate gamma.
func (sv *SystemView) SurrogateSpeedOfSound(U State, gamma float64) (a float64) {
	var (
		rho      = U.Density()
		rhoE     = U.InternalEnergy()
		covolume = 1. - sv.B*rho
	)
	radicand := (rhoE - rho*sv.Q - sv.Pinfty*covolume) / (covolume * covolume * rho)
	radicand *= gamma * (gamma - 1.)
	a = math.Sqrt(positivePart(radicand))
	return
}

/*
	PrecomputeCycle runs one of the two precomputation cycles over the node
	subrange [left, right):

	cycle 0 evaluates the oracle pressure and the local surrogate gamma for
	every node. When the oracle prefers its vector interface the rho/e
	extraction, the batched oracle call and the scatter run as three separate
	loops over the subrange.

	cycle 1 reduces the neighborhood minimum of the surrogate gamma and
	evaluates both surrogate entropies. Cycle 1 reads the cycle-0 results of
	neighbor nodes, so the caller must place a barrier between cycles.
*/
func (sv *SystemView) PrecomputeCycle(view *SparsityView, cycle int, U []State, prec []Precomputed, left, right int) (err error) {
	switch cycle {
	case 0:
		if sv.Oracle.PreferVectorInterface() {
			var (
				size = right - left
				rho  = make([]float64, size)
				e    = make([]float64, size)
				p    = make([]float64, size)
			)
			for i := left; i < right; i++ {
				if view.RowLength(i) == 1 {
					// Constrained degrees of freedom may hold arbitrary
					// states; feed the batch a benign entry, the scatter
					// below skips the slot
					rho[i-left] = 1.
					e[i-left] = 1.
					continue
				}
				rhoI := U[i].Density()
				rho[i-left] = rhoI
				e[i-left] = U[i].InternalEnergy() / rhoI
			}
			sv.Oracle.PressureBatch(p, rho, e)
			for i := left; i < right; i++ {
				if view.RowLength(i) == 1 {
					continue
				}
				pI := p[i-left]
				if err = eos.CheckFinite("pressure", pI); err != nil {
					return
				}
				prec[i] = Precomputed{P: pI, GammaMin: sv.SurrogateGamma(U[i], pI)}
			}
			return
		}
		for i := left; i < right; i++ {
			if view.RowLength(i) == 1 {
				continue
			}
			var (
				rhoI = U[i].Density()
				eI   = U[i].InternalEnergy() / rhoI
				pI   = sv.Oracle.Pressure(rhoI, eI)
			)
			if err = eos.CheckFinite("pressure", pI); err != nil {
				return
			}
			prec[i] = Precomputed{P: pI, GammaMin: sv.SurrogateGamma(U[i], pI)}
		}
	case 1:
		for i := left; i < right; i++ {
			if view.RowLength(i) == 1 {
				continue
			}
			precI := prec[i]
			for _, j := range view.Columns(i)[1:] {
				gammaJ := sv.SurrogateGamma(U[j], prec[j].P)
				precI.GammaMin = math.Min(precI.GammaMin, gammaJ)
			}
			precI.S = sv.SurrogateSpecificEntropy(U[i], precI.GammaMin)
			precI.Eta = sv.SurrogateHartenEntropy(U[i], precI.GammaMin)
			prec[i] = precI
		}
	default:
		panic("unknown precomputation cycle")
	}
	return
}

func positivePart(x float64) float64 {
	return 0.5 * (math.Abs(x) + x)
}

func negativePart(x float64) float64 {
	return 0.5 * (math.Abs(x) - x)
}

func safeDivision(num, den float64) float64 {
	var (
		eps    = math.Nextafter(1, 2) - 1
		minDen = math.SmallestNonzeroFloat64 / eps
	)
	if math.Abs(den) < minDen {
		return 0.
	}
	return num / den
}
