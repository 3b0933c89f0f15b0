package hyperbolic

import "math"

const (
	// SpaceDim is the spatial dimension of the conserved system.
	SpaceDim = 2
	// ProblemDim is the number of conserved components:
	// density, SpaceDim momentum components and total energy.
	ProblemDim = SpaceDim + 2
)

// State is one conserved state [rho, m_x, m_y, E].
type State [ProblemDim]float64

// Vector is the normal/coefficient vector type used on edges.
type Vector [SpaceDim]float64

func (v Vector) Norm() (n float64) {
	var sum float64
	for d := 0; d < SpaceDim; d++ {
		sum += v[d] * v[d]
	}
	n = math.Sqrt(sum)
	return
}

func (v Vector) Dot(w Vector) (s float64) {
	for d := 0; d < SpaceDim; d++ {
		s += v[d] * w[d]
	}
	return
}

func (U State) Density() float64 {
	return U[0]
}

func (U State) Momentum() (m Vector) {
	for d := 0; d < SpaceDim; d++ {
		m[d] = U[1+d]
	}
	return
}

func (U State) TotalEnergy() float64 {
	return U[1+SpaceDim]
}

// InternalEnergy returns rho*e = E - 1/2 |m|^2 / rho.
func (U State) InternalEnergy() (rhoE float64) {
	var (
		oorho = 1. / U.Density()
		m     = U.Momentum()
	)
	rhoE = U.TotalEnergy() - 0.5*m.Dot(m)*oorho
	return
}

/*
	InternalEnergyDerivative returns the gradient of rho*e with respect to
	the conserved state:

		(rho e)' = (1/2 |u|^2, -u, 1)^T
*/
func (U State) InternalEnergyDerivative() (dU State) {
	var (
		oorho = 1. / U.Density()
		m     = U.Momentum()
	)
	dU[0] = 0.5 * m.Dot(m) * oorho * oorho
	for d := 0; d < SpaceDim; d++ {
		dU[1+d] = -m[d] * oorho
	}
	dU[1+SpaceDim] = 1.
	return
}

// Axpy returns U + s*P.
func (U State) Axpy(s float64, P State) (V State) {
	for n := 0; n < ProblemDim; n++ {
		V[n] = U[n] + s*P[n]
	}
	return
}

func (U State) Sub(V State) (W State) {
	for n := 0; n < ProblemDim; n++ {
		W[n] = U[n] - V[n]
	}
	return
}

// Flux computes the physical flux f(U), one State per space direction:
//
//	f(U) = (m, m (x) m / rho + p I, (E + p) m / rho)
func Flux(U State, p float64) (f [SpaceDim]State) {
	var (
		oorho = 1. / U.Density()
		m     = U.Momentum()
		E     = U.TotalEnergy()
	)
	for d := 0; d < SpaceDim; d++ {
		u := m[d] * oorho
		f[d][0] = m[d]
		for dd := 0; dd < SpaceDim; dd++ {
			f[d][1+dd] = m[dd] * u
		}
		f[d][1+d] += p
		f[d][1+SpaceDim] = (E + p) * u
	}
	return
}

// FluxDot contracts the physical flux with an edge coefficient vector,
// returning f(U) . c.
func FluxDot(U State, p float64, c Vector) (fc State) {
	f := Flux(U, p)
	for d := 0; d < SpaceDim; d++ {
		for n := 0; n < ProblemDim; n++ {
			fc[n] += f[d][n] * c[d]
		}
	}
	return
}
