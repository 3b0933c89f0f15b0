package hyperbolic

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jordanhoffart/ryujin/eos"
	"github.com/jordanhoffart/ryujin/sod_shock_tube"
)

func testModule(n int, periodic bool, strategy IDViolationStrategy) (mod *HyperbolicModule, oracle eos.EquationOracle) {
	var (
		gamma = 1.4
		h     = 1. / float64(n-1)
	)
	oracle = eos.NewIdealGas(gamma)
	sv := NewSystemView(oracle, 0., 0., 0.)
	view := NewLineGraph(n, h, periodic)
	riemann := NewRiemannSolver(sv, gamma, NewtonMaxIterDefault)
	limiter := NewLimiter(sv, LimiterSpecificEntropy, DefaultLimiterParameters())
	mod = NewHyperbolicModule(view, sv, riemann, limiter, strategy, 2)
	mod.Prepare()
	return
}

// smoothWave fills U with a smooth periodic density/velocity profile.
func smoothWave(oracle eos.EquationOracle, n int) (U []State) {
	U = make([]State, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		rho := 1. + 0.3*math.Sin(2.*math.Pi*x)
		u := 0.2 * math.Cos(2.*math.Pi*x)
		p := 1. + 0.1*math.Sin(4.*math.Pi*x)
		U[i] = conservativeState(oracle, rho, u, 0., p)
	}
	return
}

func TestStepUniformIsFixedPoint(t *testing.T) {
	var (
		n           = 16
		mod, oracle = testModule(n, true, RaiseException)
		U           = make([]State, n)
		Unew        = make([]State, n)
	)
	for i := 0; i < n; i++ {
		U[i] = conservativeState(oracle, 1., 0.3, 0., 1.)
	}
	assert.NoError(t, mod.PrepareStateVector(U))
	tau, err := mod.Step(U, nil, nil, Unew, 0., math.Inf(1))
	assert.NoError(t, err)
	assert.True(t, tau > 0.)
	// Flux sums telescope on a translation-invariant graph: a uniform
	// state must be reproduced to machine precision
	for i := 0; i < n; i++ {
		for c := 0; c < ProblemDim; c++ {
			assert.True(t, near(U[i][c], Unew[i][c], 1.e-13))
		}
	}
}

func TestStepConservation(t *testing.T) {
	var (
		n           = 32
		mod, oracle = testModule(n, true, RaiseException)
		U           = smoothWave(oracle, n)
		Unew        = make([]State, n)
	)
	assert.NoError(t, mod.PrepareStateVector(U))
	_, err := mod.Step(U, nil, nil, Unew, 0., math.Inf(1))
	assert.NoError(t, err)
	var total, totalNew State
	for i := 0; i < n; i++ {
		mi := mod.View.LumpedMass(i)
		for c := 0; c < ProblemDim; c++ {
			total[c] += mi * U[i][c]
			totalNew[c] += mi * Unew[i][c]
		}
	}
	for c := 0; c < ProblemDim; c++ {
		assert.True(t, near(total[c], totalNew[c], 1.e-12))
	}
}

func TestStepInvariantDomain(t *testing.T) {
	var (
		n           = 32
		mod, oracle = testModule(n, true, RaiseException)
		U           = smoothWave(oracle, n)
		Unew        = make([]State, n)
	)
	// March a number of automatic steps; every committed state must stay
	// strictly admissible
	for step := 0; step < 20; step++ {
		assert.NoError(t, mod.PrepareStateVector(U))
		_, err := mod.Step(U, nil, nil, Unew, 0., math.Inf(1))
		assert.NoError(t, err)
		for i := 0; i < n; i++ {
			assert.True(t, mod.System.IsAdmissible(Unew[i]))
			l := mod.Lij()[i]
			for k := 1; k < len(l); k++ {
				assert.True(t, l[k] >= 0. && l[k] <= 1.)
			}
			assert.True(t, mod.Alpha()[i] >= 0. && mod.Alpha()[i] <= 1.)
		}
		U, Unew = Unew, U
	}
}

func TestStepRoughStatesStayAdmissible(t *testing.T) {
	// Pseudo-random admissible data with large jumps between neighbors
	var (
		n           = 48
		mod, oracle = testModule(n, true, RaiseException)
		U           = make([]State, n)
		Unew        = make([]State, n)
	)
	for i := 0; i < n; i++ {
		// Deterministic scatter in place of a seeded RNG
		s := float64(i) * 12.9898
		rho := 0.1 + math.Abs(math.Sin(s*78.233))
		u := 2. * math.Sin(s*39.425)
		p := 0.05 + math.Abs(math.Cos(s*11.135))
		U[i] = conservativeState(oracle, rho, u, 0., p)
	}
	for step := 0; step < 10; step++ {
		assert.NoError(t, mod.PrepareStateVector(U))
		_, err := mod.StepWithRestart(U, nil, nil, Unew, math.Inf(1), 5)
		assert.NoError(t, err)
		for i := 0; i < n; i++ {
			assert.True(t, mod.System.IsAdmissible(Unew[i]))
		}
		U, Unew = Unew, U
	}
}

func TestStepCollidingStreams(t *testing.T) {
	// Uniform density and pressure with converging velocity: the density
	// interval of the old states degenerates to a point, but the update
	// stays inside the bar-state bounds and must commit without restarts
	var (
		n           = 9
		mod, oracle = testModule(n, false, RaiseException)
		U           = make([]State, n)
		Unew        = make([]State, n)
	)
	for i := 0; i < n; i++ {
		u := 1.
		if float64(i)/float64(n-1) >= 0.5 {
			u = -1.
		}
		U[i] = conservativeState(oracle, 1., u, 0., 1.)
	}
	for step := 0; step < 5; step++ {
		assert.NoError(t, mod.PrepareStateVector(U))
		_, err := mod.StepWithRestart(U, nil, nil, Unew, math.Inf(1), 5)
		assert.NoError(t, err)
		for i := 0; i < n; i++ {
			assert.True(t, mod.System.IsAdmissible(Unew[i]))
		}
		U, Unew = Unew, U
	}
	assert.Equal(t, 0, mod.NRestarts())
}

func TestStepNoLimitingOnSmoothData(t *testing.T) {
	// A gentle monotone ramp has no extrema: interior edges must pass the
	// full antidiffusive flux (l == 1), no unnecessary limiting
	var (
		n           = 32
		mod, oracle = testModule(n, false, Warn)
		U           = make([]State, n)
		Unew        = make([]State, n)
	)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		U[i] = conservativeState(oracle, 1.+0.1*x, 0.1, 0., 1.)
	}
	assert.NoError(t, mod.PrepareStateVector(U))
	_, err := mod.Step(U, nil, nil, Unew, 0., math.Inf(1))
	assert.NoError(t, err)
	for i := 2; i < n-2; i++ {
		l := mod.Lij()[i]
		for k := 1; k < len(l); k++ {
			assert.True(t, l[k] == 1.)
		}
	}
}

func TestStepCallerTau(t *testing.T) {
	var (
		n         = 16
		mod, orac = testModule(n, true, RaiseException)
		U         = smoothWave(orac, n)
		UnewA     = make([]State, n)
		UnewB     = make([]State, n)
	)
	assert.NoError(t, mod.PrepareStateVector(U))
	tauAuto, err := mod.Step(U, nil, nil, UnewA, 0., math.Inf(1))
	assert.NoError(t, err)
	// Prescribing the automatic step size must reproduce the same update
	assert.NoError(t, mod.PrepareStateVector(U))
	tauGiven, err := mod.Step(U, nil, nil, UnewB, tauAuto, math.Inf(1))
	assert.NoError(t, err)
	assert.True(t, tauGiven == tauAuto)
	for i := 0; i < n; i++ {
		for c := 0; c < ProblemDim; c++ {
			assert.True(t, UnewA[i][c] == UnewB[i][c])
		}
	}
	// tauMax caps the automatic selection
	tauCapped, err := mod.Step(U, nil, nil, UnewB, 0., 0.25*tauAuto)
	assert.NoError(t, err)
	assert.True(t, near(0.25*tauAuto, tauCapped))
}

func TestStepRestartSignal(t *testing.T) {
	var (
		n           = 32
		mod, oracle = testModule(n, true, RaiseException)
		U           = smoothWave(oracle, n)
		Unew        = make([]State, n)
	)
	assert.NoError(t, mod.PrepareStateVector(U))
	// A grossly excessive prescribed step leaves the invariant domain and
	// must abort with the restart signal
	_, err := mod.Step(U, nil, nil, Unew, 100., math.Inf(1))
	assert.True(t, errors.Is(err, ErrRestart))
	assert.Equal(t, 1, mod.NRestarts())
}

func TestStepWarnStrategy(t *testing.T) {
	var (
		n           = 32
		mod, oracle = testModule(n, true, Warn)
		U           = smoothWave(oracle, n)
		Unew        = make([]State, n)
	)
	assert.NoError(t, mod.PrepareStateVector(U))
	_, err := mod.Step(U, nil, nil, Unew, 100., math.Inf(1))
	assert.NoError(t, err)
	assert.True(t, mod.NWarnings() >= 1)
	assert.Equal(t, 0, mod.NRestarts())
}

func TestStepWithRestartRecovers(t *testing.T) {
	var (
		n           = 32
		mod, oracle = testModule(n, true, RaiseException)
		U           = smoothWave(oracle, n)
		Unew        = make([]State, n)
	)
	assert.NoError(t, mod.PrepareStateVector(U))
	tau, err := mod.StepWithRestart(U, nil, nil, Unew, math.Inf(1), 5)
	assert.NoError(t, err)
	assert.True(t, tau > 0.)
	assert.Equal(t, 0, mod.NRestarts())
}

func TestStepLimitingExtremes(t *testing.T) {
	var (
		n           = 32
		mod, oracle = testModule(n, true, Warn)
		U           = smoothWave(oracle, n)
		Unew        = make([]State, n)
	)
	{ // l_ij == 0 everywhere reduces the update to the low-order one
		zero := 0.
		mod.forceLij = &zero
		assert.NoError(t, mod.PrepareStateVector(U))
		_, err := mod.Step(U, nil, nil, Unew, 0., math.Inf(1))
		assert.NoError(t, err)
		low := mod.LowOrderUpdate()
		for i := 0; i < n; i++ {
			for c := 0; c < ProblemDim; c++ {
				assert.True(t, Unew[i][c] == low[i][c])
			}
		}
	}
	{ // l_ij == 1 everywhere applies the full antidiffusive flux; the
		// update is still conservative
		one := 1.
		mod.forceLij = &one
		assert.NoError(t, mod.PrepareStateVector(U))
		_, err := mod.Step(U, nil, nil, Unew, 0., math.Inf(1))
		assert.NoError(t, err)
		var total, totalNew State
		for i := 0; i < n; i++ {
			mi := mod.View.LumpedMass(i)
			for c := 0; c < ProblemDim; c++ {
				total[c] += mi * U[i][c]
				totalNew[c] += mi * Unew[i][c]
			}
		}
		for c := 0; c < ProblemDim; c++ {
			assert.True(t, near(total[c], totalNew[c], 1.e-12))
		}
	}
	mod.forceLij = nil
}

func TestStepStageBlending(t *testing.T) {
	var (
		n           = 16
		mod, oracle = testModule(n, true, RaiseException)
		U           = smoothWave(oracle, n)
		UnewA       = make([]State, n)
		UnewB       = make([]State, n)
	)
	// Blending with the current state as the (only) stage state cancels
	// the flux correction exactly, for any weight
	assert.NoError(t, mod.PrepareStateVector(U))
	_, err := mod.Step(U, nil, nil, UnewA, 0., math.Inf(1))
	assert.NoError(t, err)
	assert.NoError(t, mod.PrepareStateVector(U))
	_, err = mod.Step(U, [][]State{U}, []float64{0.5}, UnewB, 0., math.Inf(1))
	assert.NoError(t, err)
	for i := 0; i < n; i++ {
		for c := 0; c < ProblemDim; c++ {
			assert.True(t, near(UnewA[i][c], UnewB[i][c], 1.e-14))
		}
	}
	// Mismatched weights are rejected
	_, err = mod.Step(U, [][]State{U}, nil, UnewB, 0., math.Inf(1))
	assert.Error(t, err)
}

func TestSodShockTubeEndToEnd(t *testing.T) {
	// Full mini-simulation: Sod tube on [0,1], Dirichlet states pinned at
	// the ends, compared against the analytic solution at the final time
	var (
		n        = 200
		h        = 1. / float64(n-1)
		mod, orc = testModule(n, false, RaiseException)
		U        = make([]State, n)
		Unew     = make([]State, n)
		finalT   = 0.2
	)
	for i := 0; i < n; i++ {
		rho, p := 1., 1.
		if float64(i)*h >= 0.5 {
			rho, p = 0.125, 0.1
		}
		U[i] = conservativeState(orc, rho, 0., 0., p)
	}
	left, right := U[0], U[n-1]
	var (
		tEnd  float64
		steps int
	)
	for tEnd < finalT && steps < 5000 {
		assert.NoError(t, mod.PrepareStateVector(U))
		tau, err := mod.StepWithRestart(U, nil, nil, Unew, finalT-tEnd, 5)
		assert.NoError(t, err)
		Unew[0], Unew[n-1] = left, right
		U, Unew = Unew, U
		tEnd += tau
		steps++
	}
	assert.True(t, near(finalT, tEnd, 1.e-10))

	// Density stays within the initial data bounds and positive
	for i := 0; i < n; i++ {
		rho := U[i].Density()
		assert.True(t, rho > 0. && rho <= 1.+1.e-8)
	}
	// L1 density error against the exact solution; first order in h with
	// a shock-dominated constant
	// (loose bound, catches gross dispersion or wrong wave speeds)
	sol := sod_shock_tube.SOD_calc(finalT)
	var errL1 float64
	for i := 0; i < n; i++ {
		rho, _, _ := sol.Sample(float64(i) * h)
		errL1 += h * math.Abs(U[i].Density()-rho)
	}
	assert.True(t, errL1 < 0.05)
}
