package hyperbolic

import (
	"math"
)

// Limiters selects the convex functional enforced as a lower bound in
// addition to the density interval.
type Limiters uint8

const (
	// LimiterNone enforces the density interval only.
	LimiterNone Limiters = iota
	// LimiterSpecificEntropy enforces the minimum-entropy principle on the
	// surrogate specific entropy (the production default).
	LimiterSpecificEntropy
)

func (l Limiters) String() string {
	strings := []string{
		"None",
		"Specific Entropy",
	}
	return strings[int(l)]
}

type LimiterParameters struct {
	// Iterations caps the entropy line search.
	Iterations int
	// Tolerance is the relative line search tolerance on t.
	Tolerance float64
	// RelaxBounds enables the slack that prevents clamping to the exact
	// neighborhood extrema, which would destroy high-order accuracy at
	// smooth extrema.
	RelaxBounds      bool
	RelaxationOrder  int
	RelaxationFactor float64
}

func DefaultLimiterParameters() LimiterParameters {
	return LimiterParameters{
		Iterations:       2,
		Tolerance:        1.e-10,
		RelaxBounds:      true,
		RelaxationOrder:  3,
		RelaxationFactor: 1.,
	}
}

// Bounds is the admissible set of one node for one step: a density
// interval plus a lower bound on the surrogate specific entropy evaluated
// with the neighborhood-minimum gamma.
type Bounds struct {
	RhoMin, RhoMax float64
	SMin           float64
	GammaMin       float64
}

/*
	Limiter computes, per antidiffusive flux P_ij, the largest
	l in [0,1] such that

		U_i^L + l * P_ij

	stays inside the admissible set described by Bounds. The density
	constraint is linear in l and solved in closed form; the entropy
	constraint is nonlinear and solved with a monotone, bracketed
	regula-falsi/bisection line search: decreasing l always moves toward
	the provably admissible low-order state, so the left bracket end is
	always a safe return value.
*/
type Limiter struct {
	System     *SystemView
	Limiter    Limiters
	Parameters LimiterParameters
}

func NewLimiter(sv *SystemView, choice Limiters, params LimiterParameters) (lim *Limiter) {
	lim = &Limiter{
		System:     sv,
		Limiter:    choice,
		Parameters: params,
	}
	return
}

// ResetBounds starts the per-node accumulation from the node's own state.
func (lim *Limiter) ResetBounds(U State, prec Precomputed) (b Bounds) {
	rho := U.Density()
	b = Bounds{
		RhoMin:   rho,
		RhoMax:   rho,
		SMin:     prec.S,
		GammaMin: prec.GammaMin,
	}
	return
}

/*
	AccumulateBounds widens the bounds by one stencil edge. The density
	interval tracks the bar state

		u_bar_ij = (U_i + U_j)/2 - (f(U_j) - f(U_i)).c_ij / (2 d_ij)

	because the low-order update is a convex combination of the node state
	and the edge bar states, so the interval accumulated here is
	guaranteed to contain it. The entropy minimum tracks the neighbor
	state; the minimum principle carries it to the bar states.
*/
func (lim *Limiter) AccumulateBounds(b *Bounds, Ubar State, prec Precomputed) {
	rho := Ubar.Density()
	b.RhoMin = math.Min(b.RhoMin, rho)
	b.RhoMax = math.Max(b.RhoMax, rho)
	b.SMin = math.Min(b.SMin, prec.S)
	b.GammaMin = math.Min(b.GammaMin, prec.GammaMin)
}

// RelaxBounds applies the configured multiplicative slack. The slack
// scales with the local mesh size m_i^(1/d) raised to the relaxation
// order, so it vanishes under mesh refinement faster than the
// discretization error.
func (lim *Limiter) RelaxBounds(b *Bounds, mi float64) {
	if !lim.Parameters.RelaxBounds {
		return
	}
	var (
		h = math.Pow(mi, 1./float64(SpaceDim))
		r = lim.Parameters.RelaxationFactor * math.Pow(h, 0.5*float64(lim.Parameters.RelaxationOrder))
	)
	rhoSlack := r * (b.RhoMax - b.RhoMin)
	b.RhoMin = math.Max(0., b.RhoMin-rhoSlack)
	b.RhoMax += rhoSlack
	b.SMin *= 1. - r
}

/*
	Limit returns the admissible fraction l in [0, tMax] of the
	antidiffusive flux P at the low-order state U, together with a success
	flag. success == false means the low-order state itself violates the
	bounds, which is the invariant-domain-violation signal consumed by the
	orchestrator; the returned l is then 0 (fully diffusive) so the bound
	is never silently violated.
*/
func (lim *Limiter) Limit(b Bounds, U, P State, tMax float64) (l float64, success bool) {
	var (
		eps     = math.Nextafter(1, 2) - 1
		relaxed = eps * b.RhoMax
	)
	success = true
	l = tMax

	// Density interval, closed form: rho enters P linearly.
	var (
		rhoU = U.Density()
		rhoP = P.Density()
	)
	if rhoU < b.RhoMin-relaxed || rhoU > b.RhoMax+relaxed {
		success = false
		l = 0.
		return
	}
	if rhoU+l*rhoP < b.RhoMin {
		l = math.Abs(b.RhoMin-rhoU) / (math.Abs(rhoP) + relaxed)
	}
	if rhoU+l*rhoP > b.RhoMax {
		l = math.Abs(b.RhoMax-rhoU) / (math.Abs(rhoP) + relaxed)
	}
	l = math.Min(l, tMax)

	if lim.Limiter != LimiterSpecificEntropy {
		return
	}

	// Entropy constraint psi(l) >= 0, psi concave along the line segment.
	psiL := lim.psi(b, U, P, 0.)
	if psiL < 0. {
		success = false
		l = 0.
		return
	}
	psiR := lim.psi(b, U, P, l)
	if psiR >= 0. {
		return
	}

	var (
		tl, tr = 0., l
	)
	for it := 0; it < lim.Parameters.Iterations; it++ {
		if tr-tl <= lim.Parameters.Tolerance*tMax {
			break
		}
		// Regula falsi step; psiL >= 0 > psiR keeps the bracket valid
		tNew := tl + psiL*(tr-tl)/(psiL-psiR)
		if !(tNew > tl && tNew < tr) {
			tNew = 0.5 * (tl + tr)
		}
		if psiNew := lim.psi(b, U, P, tNew); psiNew >= 0. {
			tl, psiL = tNew, psiNew
		} else {
			tr, psiR = tNew, psiNew
		}
	}
	// The left bracket end is on the safe side of the constraint
	l = tl
	return
}

/*
	psi evaluates the entropy constraint functional at U + t*P:

		psi = (rho e - rho q - pinf (1 - b rho)) (1 - b rho)^(gamma-1) - s_min rho^gamma

	which is nonnegative exactly when the surrogate specific entropy is
	above s_min. For the polytropic case (b = pinf = q = 0) this reduces to
	the familiar rho e - s_min rho^gamma.
*/
func (lim *Limiter) psi(bounds Bounds, U, P State, t float64) float64 {
	var (
		sv       = lim.System
		V        = U.Axpy(t, P)
		rho      = V.Density()
		covolume = 1. - sv.B*rho
		shift    = V.InternalEnergy() - rho*sv.Q - sv.Pinfty*covolume
		gamma    = bounds.GammaMin
	)
	return shift*math.Pow(covolume, gamma-1.) - bounds.SMin*math.Pow(rho, gamma)
}
