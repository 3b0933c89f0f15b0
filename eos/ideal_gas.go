package eos

import "math"

// IdealGas is the polytropic gamma-law gas, p = (gamma-1) rho e.
type IdealGas struct {
	Gamma float64
	Cv    float64 // Specific heat at constant volume, used for temperature only
}

func NewIdealGas(Gamma float64) (g *IdealGas) {
	g = &IdealGas{
		Gamma: Gamma,
		Cv:    1. / (Gamma - 1.),
	}
	return
}

func (g *IdealGas) Pressure(rho, e float64) (p float64) {
	p = (g.Gamma - 1.) * rho * e
	return
}

func (g *IdealGas) SpecificInternalEnergy(rho, p float64) (e float64) {
	e = p / ((g.Gamma - 1.) * rho)
	return
}

func (g *IdealGas) SpeedOfSound(rho, e float64) (a float64) {
	a = math.Sqrt(math.Abs(g.Gamma * (g.Gamma - 1.) * e))
	return
}

func (g *IdealGas) Temperature(rho, e float64) (T float64) {
	T = e / g.Cv
	return
}

func (g *IdealGas) PressureBatch(p, rho, e []float64) {
	for i := range p {
		p[i] = (g.Gamma - 1.) * rho[i] * e[i]
	}
}

func (g *IdealGas) PreferVectorInterface() bool { return false }

func (g *IdealGas) Name() string { return "ideal gas" }
