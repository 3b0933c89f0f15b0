package hyperbolic

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/jordanhoffart/ryujin/utils"
)

// IDViolationStrategy controls the behavior on detection of an invariant
// domain violation. Such a case might occur for aggressive CFL numbers
// > 1, and/or later stages in a Runge Kutta scheme when the time step tau
// is prescribed by the caller.
type IDViolationStrategy uint8

const (
	// Warn counts the violation and continues; acceptable only for
	// diagnosing non-systemic roundoff.
	Warn IDViolationStrategy = iota
	// RaiseException aborts the step and signals ErrRestart to the caller.
	RaiseException
)

func (s IDViolationStrategy) String() string {
	strings := []string{
		"warn",
		"raise_exception",
	}
	return strings[int(s)]
}

// ErrRestart is the distinguished control-flow signal returned by Step
// when the update left the invariant domain. It is not a fault: the
// caller is expected to retry the step with a smaller time step size.
var ErrRestart = errors.New("invariant domain violation, restart step")

/*
	HyperbolicModule performs explicit forward Euler time stepping for the
	hyperbolic system with convex limiting. One step runs the pipeline

	  Precomputing -> LowOrderAssembly -> HighOrderAssembly -> Limiting ->
	  Finalizing -> Committed | Restarting

	with thread-parallel sweeps over disjoint node partitions; each
	goroutine writes only to the slots of its own subrange, and the
	WaitGroup joins between sweeps are the required synchronization
	barriers (in particular the one between the two precomputation cycles
	and the one before the global tau_max reduction).
*/
type HyperbolicModule struct {
	View      *SparsityView
	System    *SystemView
	Riemann   RiemannSolver
	Limiter   *Limiter
	Indicator Indicator
	Strategy  IDViolationStrategy

	ParallelDegree int
	Partitions     *utils.PartitionMap

	// cfl is mutated only between steps, by a single external caller
	cfl       float64
	nRestarts int
	nWarnings int

	prepared    bool
	precomputed []Precomputed
	alpha       []float64
	bounds      []Bounds
	flux        [][SpaceDim]State
	stageFlux   [][][SpaceDim]State
	low         []State
	dij         [][]float64
	lij         [][]float64
	pij         [][]State
	tauMaxPart  []float64
	violPart    []int
	errPart     []error

	// Test hook: when non-nil every limiting coefficient is replaced with
	// this value before the final gather.
	forceLij *float64
}

func NewHyperbolicModule(view *SparsityView, system *SystemView, riemann RiemannSolver,
	limiter *Limiter, strategy IDViolationStrategy, procLimit int) (h *HyperbolicModule) {
	h = &HyperbolicModule{
		View:      view,
		System:    system,
		Riemann:   riemann,
		Limiter:   limiter,
		Indicator: NewIndicator(system),
		Strategy:  strategy,
		cfl:       0.9,
	}
	if procLimit != 0 {
		h.ParallelDegree = procLimit
	} else {
		h.ParallelDegree = runtime.NumCPU()
	}
	if h.ParallelDegree > view.NNodes() {
		h.ParallelDegree = 1
	}
	h.Partitions = utils.NewPartitionMap(h.ParallelDegree, view.NNodes())
	return
}

// Prepare allocates the per-step scratch storage. Must be called once
// before PrepareStateVector/Step; calling it again is a no-op.
func (h *HyperbolicModule) Prepare() {
	if h.prepared {
		return
	}
	n := h.View.NNodes()
	h.precomputed = make([]Precomputed, n)
	h.alpha = make([]float64, n)
	h.bounds = make([]Bounds, n)
	h.flux = make([][SpaceDim]State, n)
	h.low = make([]State, n)
	h.dij = h.View.AllocateEdgeScalars()
	h.lij = h.View.AllocateEdgeScalars()
	h.pij = h.View.AllocateEdgeStates()
	h.tauMaxPart = make([]float64, h.ParallelDegree)
	h.violPart = make([]int, h.ParallelDegree)
	h.errPart = make([]error, h.ParallelDegree)
	h.prepared = true
}

func (h *HyperbolicModule) CFL() float64 { return h.cfl }

// SetCFL sets the relative CFL number. Values in (0,1) guarantee that the
// low-order update and the limiting stage preserve the invariant domain.
func (h *HyperbolicModule) SetCFL(cfl float64) {
	if cfl <= 0. {
		panic("CFL number must be positive")
	}
	h.cfl = cfl
}

// NRestarts returns the number of restarts signalled by Step.
func (h *HyperbolicModule) NRestarts() int { return h.nRestarts }

// NWarnings returns the number of invariant domain violation warnings
// encountered under the Warn strategy.
func (h *HyperbolicModule) NWarnings() int { return h.nWarnings }

// Alpha returns the indicator values of the last executed step.
func (h *HyperbolicModule) Alpha() []float64 { return h.alpha }

// Dij returns the row-structured graph viscosity of the last step.
func (h *HyperbolicModule) Dij() [][]float64 { return h.dij }

// Lij returns the row-structured limiting coefficients of the last step.
func (h *HyperbolicModule) Lij() [][]float64 { return h.lij }

// LowOrderUpdate returns the low-order provisional states of the last step.
func (h *HyperbolicModule) LowOrderUpdate() []State { return h.low }

// parallelSweep runs f over all node partitions and joins; the join is
// the barrier separating dependent sweeps.
func (h *HyperbolicModule) parallelSweep(f func(np, kMin, kMax int)) {
	wg := sync.WaitGroup{}
	for np := 0; np < h.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			kMin, kMax := h.Partitions.GetBucketRange(np)
			f(np, kMin, kMax)
		}(np)
	}
	wg.Wait()
}

/*
	PrepareStateVector runs the two precomputation cycles on U: cycle 0
	evaluates the oracle pressure and local surrogate gamma per node, cycle
	1 reduces the neighborhood gamma minimum and evaluates the surrogate
	entropies. A barrier separates the cycles because cycle 1 reads
	neighbor values produced by cycle 0.

	Must be called on the old state vector before every call to Step.
*/
func (h *HyperbolicModule) PrepareStateVector(U []State) (err error) {
	h.Prepare()
	if len(U) != h.View.NNodes() {
		return fmt.Errorf("state vector has %d nodes, want %d", len(U), h.View.NNodes())
	}
	for cycle := 0; cycle < 2; cycle++ {
		h.parallelSweep(func(np, kMin, kMax int) {
			h.errPart[np] = h.System.PrecomputeCycle(h.View, cycle, U, h.precomputed, kMin, kMax)
		})
		for np := 0; np < h.ParallelDegree; np++ {
			if h.errPart[np] != nil {
				return h.errPart[np]
			}
		}
	}
	return
}

/*
	Step performs one explicit Euler update of oldU into newU and returns
	the time step size actually used.

	The step is taken with tau if tau is nonzero (the caller, e.g. an
	IMEX splitting driver, is trusted to have validated admissibility), and
	otherwise with min(tau_max_computed, tauMax) where tau_max_computed is
	the CFL-scaled global minimum of the per-node admissible step sizes.

	stages/stageWeights assemble the modified high-order flux

	  F~_i = (1 - sum_s w_s) F_i + sum_s w_s F_i^s

	used by multi-stage integrators; the residual weight applies to the
	current-stage flux. Both slices may be empty.

	On an invariant domain violation the RaiseException strategy aborts
	with ErrRestart; the Warn strategy increments the warning counter and
	commits anyway. Constrained degrees of freedom (row length 1) are
	copied through unchanged.
*/
func (h *HyperbolicModule) Step(oldU []State, stages [][]State, stageWeights []float64,
	newU []State, tau, tauMax float64) (tauUsed float64, err error) {
	if !h.prepared {
		err = errors.New("call Prepare and PrepareStateVector before Step")
		return
	}
	if len(stages) != len(stageWeights) {
		err = fmt.Errorf("have %d stage states but %d weights", len(stages), len(stageWeights))
		return
	}
	if len(oldU) != h.View.NNodes() || len(newU) != h.View.NNodes() {
		err = fmt.Errorf("state vector length mismatch")
		return
	}
	if h.stageFlux == nil || len(h.stageFlux) < len(stages) {
		h.stageFlux = make([][][SpaceDim]State, len(stages))
	}
	for s := range stages {
		if h.stageFlux[s] == nil {
			h.stageFlux[s] = make([][SpaceDim]State, h.View.NNodes())
		}
	}

	/*
		Sweep 1: per-node physical fluxes, indicator values and the upper
		triangle of the wave-speed bounds d_ij = lambda_max |c_ij|.
	*/
	h.parallelSweep(func(np, kMin, kMax int) {
		h.View.ForEachBatch(kMin, kMax, func(b Batch) {
			for i := b.Start; i < b.End; i++ {
				h.flux[i] = Flux(oldU[i], h.precomputed[i].P)
				for s := range stages {
					Us := stages[s][i]
					rho := Us.Density()
					h.stageFlux[s][i] = Flux(Us, h.System.Oracle.Pressure(rho, Us.InternalEnergy()/rho))
				}
				h.alpha[i] = h.Indicator.Alpha(h.View, i, oldU, h.precomputed)
				cols := h.View.Columns(i)
				for k := 1; k < b.RowLength; k++ {
					j := cols[k]
					if j < i {
						continue
					}
					lambdaMax, _, _ := h.Riemann.Compute(oldU[i], oldU[j], h.View.Nij(i, k))
					h.dij[i][k] = lambdaMax * h.View.NormCij(i, k)
				}
			}
		})
	})

	/*
		Sweep 2: symmetrize d_ij, set the conservation-preserving diagonal
		d_ii = -sum_j d_ij and reduce the per-partition admissible time
		step m_i / (-2 d_ii).
	*/
	h.parallelSweep(func(np, kMin, kMax int) {
		tauMaxLocal := math.Inf(1)
		h.View.ForEachBatch(kMin, kMax, func(b Batch) {
			for i := b.Start; i < b.End; i++ {
				cols := h.View.Columns(i)
				var dSum float64
				for k := 1; k < b.RowLength; k++ {
					if j := cols[k]; j < i {
						h.dij[i][k] = h.dij[j][h.View.TransposeIndex(i, k)]
					}
					dSum += h.dij[i][k]
				}
				h.dij[i][0] = -dSum
				if dSum > 0. {
					tauMaxLocal = math.Min(tauMaxLocal, h.View.LumpedMass(i)/(2.*dSum))
				}
			}
		})
		h.tauMaxPart[np] = tauMaxLocal
	})

	// Deterministic global min-reduction: a serial sweep over the ordered
	// per-partition minima gives bit-identical results for any schedule.
	tauMaxComputed := math.Inf(1)
	for np := 0; np < h.ParallelDegree; np++ {
		tauMaxComputed = math.Min(tauMaxComputed, h.tauMaxPart[np])
	}
	tauMaxComputed *= h.cfl
	if tau > 0. {
		tauUsed = tau
	} else {
		tauUsed = math.Min(tauMaxComputed, tauMax)
	}
	if math.IsInf(tauUsed, 0) || tauUsed <= 0. {
		err = fmt.Errorf("no admissible time step size, tau = %v", tauUsed)
		return
	}

	/*
		Sweep 3: low-order update, antidiffusive fluxes and per-node
		bounds.

		  U_i^L  = U_i + tau/m_i sum_j (-(f_i + f_j).c_ij + d_ij (U_j - U_i))
		  p_ij   = tau [ (alpha_ij - 1) d_ij (U_j - U_i)
		                 + sum_s w_s ((f_i + f_j) - (f_i^s + f_j^s)).c_ij ]

		The bounds are accumulated over U_i and the edge bar states
		u_bar_ij, of which U_i^L is the convex combination

		  U_i^L = (1 - 2 tau/m_i sum_j d_ij) U_i
		          + sum_j (2 tau d_ij/m_i) u_bar_ij

		so the low-order state never leaves the unrelaxed interval (up to
		roundoff) and limiting failures stay exceptional.
	*/
	h.parallelSweep(func(np, kMin, kMax int) {
		h.View.ForEachBatch(kMin, kMax, func(b Batch) {
			for i := b.Start; i < b.End; i++ {
				var (
					cols     = h.View.Columns(i)
					mi       = h.View.LumpedMass(i)
					tauOverM = tauUsed / mi
					sum      State
				)
				bnds := h.Limiter.ResetBounds(oldU[i], h.precomputed[i])
				// Diagonal flux contribution (nonzero c_ii on boundary rows)
				cii := h.View.Cij(i, 0)
				for d := 0; d < SpaceDim; d++ {
					if cii[d] != 0. {
						for n := 0; n < ProblemDim; n++ {
							sum[n] -= 2. * h.flux[i][d][n] * cii[d]
						}
					}
				}
				for k := 1; k < b.RowLength; k++ {
					var (
						j       = cols[k]
						cV      = h.View.Cij(i, k)
						d       = h.dij[i][k]
						alphaIJ = math.Max(h.alpha[i], h.alpha[j])
						dU      = oldU[j].Sub(oldU[i])
					)
					var p, bar State
					for n := 0; n < ProblemDim; n++ {
						bar[n] = 0.5 * (oldU[i][n] + oldU[j][n])
					}
					for dd := 0; dd < SpaceDim; dd++ {
						c := cV[dd]
						if c == 0. {
							continue
						}
						for n := 0; n < ProblemDim; n++ {
							fc := (h.flux[i][dd][n] + h.flux[j][dd][n]) * c
							sum[n] -= fc
							if d > 0. {
								bar[n] -= 0.5 * c / d * (h.flux[j][dd][n] - h.flux[i][dd][n])
							}
							for s := range stages {
								fcS := (h.stageFlux[s][i][dd][n] + h.stageFlux[s][j][dd][n]) * c
								p[n] += stageWeights[s] * (fc - fcS)
							}
						}
					}
					h.Limiter.AccumulateBounds(&bnds, bar, h.precomputed[j])
					for n := 0; n < ProblemDim; n++ {
						sum[n] += d * dU[n]
						p[n] = tauUsed * ((alphaIJ-1.)*d*dU[n] + p[n])
					}
					h.pij[i][k] = p
				}
				h.low[i] = oldU[i].Axpy(tauOverM, sum)
				h.Limiter.RelaxBounds(&bnds, mi)
				h.bounds[i] = bnds
			}
		})
	})

	/*
		Sweep 4: first limiter pass, l_ij from the node-local bounds. The
		candidate tested per edge is U^L + l (N_i/m_i) p_ij with N_i the
		neighbor count: the applied update U^L + (1/m_i) sum_j l_ij p_ij is
		then the convex average (1/N_i) sum_j of per-edge candidates, so
		every bound certified here survives the summation.
	*/
	h.parallelSweep(func(np, kMin, kMax int) {
		h.violPart[np] = 0
		h.View.ForEachBatch(kMin, kMax, func(b Batch) {
			for i := b.Start; i < b.End; i++ {
				scale := float64(b.RowLength-1) / h.View.LumpedMass(i)
				for k := 1; k < b.RowLength; k++ {
					var P State
					for n := 0; n < ProblemDim; n++ {
						P[n] = h.pij[i][k][n] * scale
					}
					l, ok := h.Limiter.Limit(h.bounds[i], h.low[i], P, 1.)
					if !ok {
						h.violPart[np]++
					}
					h.lij[i][k] = l
				}
			}
		})
	})

	if h.forceLij != nil {
		for i := range h.lij {
			for k := 1; k < len(h.lij[i]); k++ {
				h.lij[i][k] = *h.forceLij
			}
		}
	}

	/*
		Sweep 5: symmetrization pass l_ij := min(l_ij, l_ji), application
		of the limited antidiffusive fluxes and the final admissibility
		check. Constrained nodes are passed through.
	*/
	h.parallelSweep(func(np, kMin, kMax int) {
		for i := kMin; i < kMax; i++ {
			if h.View.RowLength(i) == 1 {
				newU[i] = oldU[i]
				continue
			}
			var (
				cols = h.View.Columns(i)
				ooMi = 1. / h.View.LumpedMass(i)
				sum  State
			)
			for k := 1; k < len(cols); k++ {
				j := cols[k]
				l := math.Min(h.lij[i][k], h.lij[j][h.View.TransposeIndex(i, k)])
				for n := 0; n < ProblemDim; n++ {
					sum[n] += l * h.pij[i][k][n]
				}
			}
			newU[i] = h.low[i].Axpy(ooMi, sum)
			if !h.System.IsAdmissible(newU[i]) {
				h.violPart[np]++
			}
		}
	})

	violations := 0
	for np := 0; np < h.ParallelDegree; np++ {
		violations += h.violPart[np]
	}
	if violations > 0 {
		switch h.Strategy {
		case Warn:
			h.nWarnings++
		case RaiseException:
			h.nRestarts++
			err = ErrRestart
			return
		}
	}
	return
}

/*
	StepWithRestart drives Step through the bounded retry policy: on
	ErrRestart the step is retried with half the previous time step size,
	up to maxRestarts times. Any other error is passed through unchanged.
*/
func (h *HyperbolicModule) StepWithRestart(oldU []State, stages [][]State, stageWeights []float64,
	newU []State, tauMax float64, maxRestarts int) (tauUsed float64, err error) {
	tau := 0.
	for attempt := 0; ; attempt++ {
		tauUsed, err = h.Step(oldU, stages, stageWeights, newU, tau, tauMax)
		if !errors.Is(err, ErrRestart) {
			return
		}
		if attempt == maxRestarts {
			err = fmt.Errorf("step did not recover after %d restarts: %w", maxRestarts, err)
			return
		}
		tau = 0.5 * tauUsed
	}
}
