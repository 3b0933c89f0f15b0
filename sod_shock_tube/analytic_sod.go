package sod_shock_tube

import (
	"math"

	"github.com/jordanhoffart/ryujin/utils"
)

// Solution holds the exact Sod shock tube solution at time t, sampled at
// the wave positions plus a small tolerance on either side so that a
// piecewise linear interpolation of (X, Rho, P, U) reproduces the
// discontinuities.
type Solution struct {
	T               float64
	X, Rho, P, U, E []float64
	PPost, VPost    float64
	RhoPost, VShock float64
	RhoMiddle       float64
}

func SOD_calc(t float64) (sol Solution) {
	var (
		x_min, x_max        = 0., 1.
		x0, rho_l, P_l, u_l = 0.5 * (x_max + x_min), 1., 1., 0.
		rho_r, P_r, u_r     = 0.125, 0.1, 0.
		gamma               = 1.4
		mu                  = math.Sqrt((gamma - 1) / (gamma + 1))
		c_l                 = math.Sqrt(gamma * P_l / rho_l)
		P_post              = fzero(sod_func, math.Pi)
		v_post              = 2 * (math.Sqrt(gamma) / (gamma - 1)) * (1 - math.Pow(P_post, (gamma-1)/(2*gamma)))
		rho_post            = rho_r * (((P_post / P_r) + mu*mu) / (1 + mu*mu*(P_post/P_r)))
		v_shock             = v_post * (rho_post / rho_r) / ((rho_post / rho_r) - 1.)
		rho_middle          = rho_l * math.Pow(P_post/P_l, 1./gamma)
		//Key Positions
		x1 = x0 - c_l*t
		x3 = x0 + v_post*t
		x4 = x0 + v_shock*t
		//determining x2
		c_2 = c_l - 0.5*(gamma-1.)*v_post
		x2  = x0 + t*(v_post-c_2)
	)
	sol.T = t
	sol.PPost, sol.VPost = P_post, v_post
	sol.RhoPost, sol.VShock = rho_post, v_shock
	sol.RhoMiddle = rho_middle
	tol := 0.00000001
	sol.X = []float64{
		x_min,
		x1 - tol, x1 + tol,
		x2 - tol, x2 + tol,
		x3 - tol, x3 + tol,
		x4 - tol, x4 + tol,
		x_max,
	}
	sol.Rho = make([]float64, len(sol.X))
	sol.P = make([]float64, len(sol.X))
	sol.U = make([]float64, len(sol.X))
	sol.E = make([]float64, len(sol.X))
	for i, x := range sol.X {
		switch {
		case x < x1:
			sol.Rho[i] = rho_l
			sol.P[i] = P_l
			sol.U[i] = u_l
		case x1 <= x && x <= x2:
			c := mu*mu*((x0-x)/t) + (1.-mu*mu)*c_l
			sol.Rho[i] = rho_l * math.Pow(c/c_l, 2/(gamma-1))
			sol.P[i] = P_l * math.Pow(sol.Rho[i]/rho_l, gamma)
			sol.U[i] = (1. - mu*mu) * ((-(x0 - x) / t) + c_l)
		case x2 <= x && x <= x3:
			sol.Rho[i] = rho_middle
			sol.P[i] = P_post
			sol.U[i] = v_post
		case x3 <= x && x <= x4:
			sol.Rho[i] = rho_post
			sol.P[i] = P_post
			sol.U[i] = v_post
		case x4 < x:
			sol.Rho[i] = rho_r
			sol.P[i] = P_r
			sol.U[i] = u_r
		}
		sol.E[i] = sol.P[i] / ((gamma - 1.) * sol.Rho[i])
	}
	return
}

// Sample interpolates the tabulated solution at location x.
func (sol Solution) Sample(x float64) (rho, p, u float64) {
	X := sol.X
	if x <= X[0] {
		return sol.Rho[0], sol.P[0], sol.U[0]
	}
	for i := 1; i < len(X); i++ {
		if x <= X[i] {
			w := (x - X[i-1]) / (X[i] - X[i-1])
			rho = sol.Rho[i-1] + w*(sol.Rho[i]-sol.Rho[i-1])
			p = sol.P[i-1] + w*(sol.P[i]-sol.P[i-1])
			u = sol.U[i-1] + w*(sol.U[i]-sol.U[i-1])
			return
		}
	}
	n := len(X) - 1
	return sol.Rho[n], sol.P[n], sol.U[n]
}

func fzero(f func(P float64) (y float64), start float64) float64 {
	var (
		tol = 0.0000001
		res float64
	)
	start_old := start / 2
	res = f(start_old)
	for math.Abs(res) > tol {
		resNew := f(start)
		deriv := (start - start_old) / (resNew - res)
		start_new := math.Abs(start - 0.01*f(start)/deriv)
		start_old = start
		start = start_new
		res = resNew
	}
	return start
}

func sod_func(P float64) (y float64) {
	var (
		rho_r, P_r = 0.125, 0.1
		gamma      = 1.4
		mu         = math.Sqrt((gamma - 1) / (gamma + 1))
		mu2        = mu * mu
	)
	y = (P-P_r)*math.Sqrt(utils.POW(1-mu2, 2)/(rho_r*(P+mu2*P_r))) - 2*(math.Sqrt(gamma)/(gamma-1))*(1-math.Pow(P, (gamma-1)/(2*gamma)))
	return
}
