package sod_shock_tube

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSOD(t *testing.T) {
	sol := SOD_calc(0.2)
	// Star region values for the standard Sod data, gamma = 1.4
	assert.True(t, math.Abs(sol.PPost-0.30313) < 0.001)
	assert.True(t, math.Abs(sol.VPost-0.92745) < 0.001)
	assert.True(t, math.Abs(sol.RhoPost-0.26557) < 0.001)
	assert.True(t, math.Abs(sol.RhoMiddle-0.42632) < 0.001)
	assert.True(t, math.Abs(sol.VShock-1.75216) < 0.001)
	// Shock position x4 = 0.5 + v_shock * t
	assert.True(t, math.Abs(sol.X[len(sol.X)-2]-0.8504) < 0.0001)
	x4Early := SOD_calc(0.1).X
	assert.True(t, math.Abs(x4Early[len(x4Early)-2]-0.6752) < 0.0001)

	// Sample positions are sorted and bracket the discontinuities
	for i := 1; i < len(sol.X); i++ {
		assert.True(t, sol.X[i] > sol.X[i-1])
	}
	// Undisturbed far field on both sides
	rho, p, u := sol.Sample(0.)
	assert.True(t, math.Abs(rho-1.) < 1.e-8 && math.Abs(p-1.) < 1.e-8 && u == 0.)
	rho, p, u = sol.Sample(1.)
	assert.True(t, math.Abs(rho-0.125) < 1.e-8 && math.Abs(p-0.1) < 1.e-8 && u == 0.)
	// Contact: density jumps, pressure and velocity stay continuous
	rhoL, pL, uL := sol.Sample(0.5 + sol.VPost*0.2 - 1.e-4)
	rhoR, pR, uR := sol.Sample(0.5 + sol.VPost*0.2 + 1.e-4)
	assert.True(t, rhoL > rhoR)
	assert.True(t, math.Abs(pL-pR) < 1.e-6)
	assert.True(t, math.Abs(uL-uR) < 1.e-6)
}
