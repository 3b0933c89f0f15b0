package hyperbolic

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/jordanhoffart/ryujin/utils"
)

/*
	SparsityView is the kernel's read-only adapter onto the graph produced
	by the (external) discretization layer: row-based adjacency with the
	geometric coefficient vectors c_ij, lumped masses m_i and the derived
	per-edge quantities |c_ij| and n_ij = c_ij/|c_ij|.

	Conventions carried over from the producing layer:
	  - every row starts with the diagonal entry, Columns(i)[0] == i;
	  - a row of length 1 marks a constrained (boundary) degree of freedom
	    that the kernel skips entirely;
	  - c_ij = -c_ji for i != j (verified at construction, the update is
	    only conservative if this holds).

	Rows of identical length are grouped into batches so the edge sweeps
	run with a uniform inner trip count; nodes that do not fit a batch are
	dispatched to the scalar remainder path explicitly.
*/
type SparsityView struct {
	n       int
	rows    [][]int
	pos     [][]int // pos[i][k] = index of i within the row of rows[i][k]
	cij     [][]Vector
	normCij [][]float64
	nij     [][]Vector
	mass    []float64
	batches []Batch
}

// Batch is a run of consecutive unconstrained nodes sharing one row
// length. VecEnd-Start is the portion divisible by SIMDWidth; nodes in
// [VecEnd, End) take the scalar remainder path.
type Batch struct {
	Start, End int
	RowLength  int
	VecEnd     int
}

// SIMDWidth is the fixed batch lane width of the vectorized sweeps.
const SIMDWidth = 4

/*
	NewSparsityView assembles the adapter from one coefficient matrix per
	space direction plus the lumped mass vector. The matrices are consumed
	through the mat.Matrix interface; a CSR matrix (sparse.CSR) is
	traversed via its nonzero structure, anything else by dense scan.
*/
func NewSparsityView(c [SpaceDim]mat.Matrix, mass []float64) (sv *SparsityView, err error) {
	n := len(mass)
	for d := 0; d < SpaceDim; d++ {
		r, cc := c[d].Dims()
		if r != n || cc != n {
			err = fmt.Errorf("coefficient matrix %d is %dx%d, want %dx%d", d, r, cc, n, n)
			return
		}
	}
	sv = &SparsityView{
		n:       n,
		rows:    make([][]int, n),
		pos:     make([][]int, n),
		cij:     make([][]Vector, n),
		normCij: make([][]float64, n),
		nij:     make([][]Vector, n),
		mass:    mass,
	}
	for i := 0; i < n; i++ {
		cols := neighborColumns(c, i, n)
		sv.rows[i] = append([]int{i}, cols...)
		sv.cij[i] = make([]Vector, len(sv.rows[i]))
		sv.normCij[i] = make([]float64, len(sv.rows[i]))
		sv.nij[i] = make([]Vector, len(sv.rows[i]))
		for k, j := range sv.rows[i] {
			var cV Vector
			for d := 0; d < SpaceDim; d++ {
				cV[d] = c[d].At(i, j)
			}
			sv.cij[i][k] = cV
			sv.normCij[i][k] = cV.Norm()
			if k > 0 && sv.normCij[i][k] > 0 {
				for d := 0; d < SpaceDim; d++ {
					sv.nij[i][k][d] = cV[d] / sv.normCij[i][k]
				}
			}
		}
	}
	if err = sv.verifyAntisymmetry(); err != nil {
		sv = nil
		return
	}
	sv.buildPositions()
	sv.buildBatches()
	return
}

func neighborColumns(c [SpaceDim]mat.Matrix, i, n int) (cols []int) {
	seen := make(map[int]bool)
	for d := 0; d < SpaceDim; d++ {
		if csr, ok := c[d].(*sparse.CSR); ok {
			csr.DoRowNonZero(i, func(_, j int, v float64) {
				if j != i && v != 0 && !seen[j] {
					seen[j] = true
					cols = append(cols, j)
				}
			})
			continue
		}
		for j := 0; j < n; j++ {
			if j != i && c[d].At(i, j) != 0 && !seen[j] {
				seen[j] = true
				cols = append(cols, j)
			}
		}
	}
	// Keep column order deterministic
	for a := 1; a < len(cols); a++ {
		for b := a; b > 0 && cols[b-1] > cols[b]; b-- {
			cols[b-1], cols[b] = cols[b], cols[b-1]
		}
	}
	return
}

func (sv *SparsityView) verifyAntisymmetry() error {
	for i := 0; i < sv.n; i++ {
		for k, j := range sv.rows[i] {
			if k == 0 {
				continue
			}
			kj := sv.indexInRow(j, i)
			if kj < 0 {
				return fmt.Errorf("edge (%d,%d) has no transpose entry", i, j)
			}
			for d := 0; d < SpaceDim; d++ {
				if math.Abs(sv.cij[i][k][d]+sv.cij[j][kj][d]) > 1.e-12 {
					return fmt.Errorf("c_ij antisymmetry violated on edge (%d,%d)", i, j)
				}
			}
		}
	}
	return nil
}

func (sv *SparsityView) indexInRow(i, j int) int {
	for k, col := range sv.rows[i] {
		if col == j {
			return k
		}
	}
	return -1
}

func (sv *SparsityView) buildPositions() {
	for i := 0; i < sv.n; i++ {
		sv.pos[i] = make([]int, len(sv.rows[i]))
		for k, j := range sv.rows[i] {
			sv.pos[i][k] = sv.indexInRow(j, i)
		}
	}
}

func (sv *SparsityView) buildBatches() {
	i := 0
	for i < sv.n {
		rl := len(sv.rows[i])
		if rl == 1 {
			i++
			continue
		}
		start := i
		for i < sv.n && len(sv.rows[i]) == rl {
			i++
		}
		b := Batch{Start: start, End: i, RowLength: rl}
		b.VecEnd = start + ((i-start)/SIMDWidth)*SIMDWidth
		sv.batches = append(sv.batches, b)
	}
}

func (sv *SparsityView) NNodes() int { return sv.n }

// RowLength returns the stencil size of node i including the diagonal;
// a value of 1 marks a constrained degree of freedom.
func (sv *SparsityView) RowLength(i int) int { return len(sv.rows[i]) }

// Columns returns the neighbor indices of node i; Columns(i)[0] == i.
func (sv *SparsityView) Columns(i int) []int { return sv.rows[i] }

// TransposeIndex returns the position of i within the row of its k-th
// neighbor, for writing/reading the (j,i) slot of edge matrices.
func (sv *SparsityView) TransposeIndex(i, k int) int { return sv.pos[i][k] }

func (sv *SparsityView) Cij(i, k int) Vector      { return sv.cij[i][k] }
func (sv *SparsityView) NormCij(i, k int) float64 { return sv.normCij[i][k] }
func (sv *SparsityView) Nij(i, k int) Vector      { return sv.nij[i][k] }

func (sv *SparsityView) LumpedMass(i int) float64 { return sv.mass[i] }

// ForEachBatch visits the portions of the batch list that intersect the
// node subrange [kMin, kMax), clipping batch boundaries to the range. The
// constrained nodes between batches are never visited.
func (sv *SparsityView) ForEachBatch(kMin, kMax int, visit func(b Batch)) {
	for _, b := range sv.batches {
		if b.End <= kMin || b.Start >= kMax {
			continue
		}
		clipped := b
		if clipped.Start < kMin {
			clipped.Start = kMin
		}
		if clipped.End > kMax {
			clipped.End = kMax
		}
		clipped.VecEnd = clipped.Start + ((clipped.End-clipped.Start)/SIMDWidth)*SIMDWidth
		visit(clipped)
	}
}

// AllocateEdgeScalars returns a row-structured scalar buffer matching the
// sparsity pattern (d_ij, l_ij storage).
func (sv *SparsityView) AllocateEdgeScalars() (m [][]float64) {
	m = make([][]float64, sv.n)
	for i := 0; i < sv.n; i++ {
		m[i] = make([]float64, len(sv.rows[i]))
	}
	return
}

// AllocateEdgeStates returns a row-structured State buffer matching the
// sparsity pattern (p_ij storage).
func (sv *SparsityView) AllocateEdgeStates() (m [][]State) {
	m = make([][]State, sv.n)
	for i := 0; i < sv.n; i++ {
		m[i] = make([]State, len(sv.rows[i]))
	}
	return
}

/*
	NewLineGraph builds the 1D line graph of n nodes with spacing h,
	embedded along the x axis: c_{i,i+1} = (+1/2, 0), lumped mass h. With
	periodic false the two end nodes carry one-sided stencils; boundary
	conditions on them are the caller's responsibility (the kernel only
	skips nodes whose row length is 1).

	Used by tests and the shock tube demo; production graphs come from the
	external discretization layer through NewSparsityView.
*/
func NewLineGraph(n int, h float64, periodic bool) (sv *SparsityView) {
	var (
		cx   = sparse.NewDOK(n, n)
		cy   = sparse.NewDOK(n, n)
		mass = utils.ConstArray(n, h)
	)
	link := func(i, j int) {
		cx.Set(i, j, 0.5)
		cx.Set(j, i, -0.5)
	}
	for i := 0; i+1 < n; i++ {
		link(i, i+1)
	}
	if periodic {
		link(n-1, 0)
	}
	var err error
	sv, err = NewSparsityView([SpaceDim]mat.Matrix{cx.ToCSR(), cy.ToCSR()}, mass)
	if err != nil {
		panic(err)
	}
	return
}
