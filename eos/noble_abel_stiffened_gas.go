package eos

import "math"

/*
	NobleAbelStiffenedGas implements the NASG equation of state

		p = (gamma - 1) * rho * (e - q) / (1 - b rho) - gamma * pinfty

	with covolume b, reference pressure pinfty and energy offset q. Setting
	b = pinfty = q = 0 recovers the polytropic gamma law.

	See "Compressible flow in a Noble-Abel Stiffened-Gas fluid",
	M. I. Radulescu, https://arxiv.org/pdf/2004.08750
*/
type NobleAbelStiffenedGas struct {
	Gamma  float64
	B      float64 // Covolume b
	Pinfty float64 // Reference pressure p_infty
	Q      float64 // Specific internal energy offset q
	Cv     float64
}

func NewNobleAbelStiffenedGas(Gamma, B, Pinfty, Q float64) (g *NobleAbelStiffenedGas) {
	g = &NobleAbelStiffenedGas{
		Gamma:  Gamma,
		B:      B,
		Pinfty: Pinfty,
		Q:      Q,
		Cv:     1. / (Gamma - 1.),
	}
	return
}

func (g *NobleAbelStiffenedGas) Pressure(rho, e float64) (p float64) {
	covolume := 1. - g.B*rho
	p = (g.Gamma-1.)*rho*(e-g.Q)/covolume - g.Gamma*g.Pinfty
	return
}

func (g *NobleAbelStiffenedGas) SpecificInternalEnergy(rho, p float64) (e float64) {
	covolume := 1. - g.B*rho
	e = (p+g.Gamma*g.Pinfty)*covolume/((g.Gamma-1.)*rho) + g.Q
	return
}

func (g *NobleAbelStiffenedGas) SpeedOfSound(rho, e float64) (a float64) {
	var (
		covolume = 1. - g.B*rho
		p        = g.Pressure(rho, e)
	)
	a = math.Sqrt(math.Abs(g.Gamma * (p + g.Pinfty) / (rho * covolume)))
	return
}

func (g *NobleAbelStiffenedGas) Temperature(rho, e float64) (T float64) {
	covolume := 1. - g.B*rho
	T = (e - g.Q - g.Pinfty*covolume/rho) / g.Cv
	return
}

func (g *NobleAbelStiffenedGas) PressureBatch(p, rho, e []float64) {
	for i := range p {
		p[i] = g.Pressure(rho[i], e[i])
	}
}

func (g *NobleAbelStiffenedGas) PreferVectorInterface() bool { return true }

func (g *NobleAbelStiffenedGas) Name() string { return "Noble-Abel stiffened gas" }
