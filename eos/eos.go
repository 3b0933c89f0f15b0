package eos

import (
	"fmt"
	"math"
)

/*
	The EquationOracle supplies all thermodynamic closure information used by
	the hyperbolic kernel. Implementations must be pure and stateless: the
	kernel calls into the oracle concurrently from many goroutines.

	All functions must be defined and continuous for admissible inputs
	(rho > 0, e >= 0). Returning a non-finite value for admissible input is
	a contract violation that the caller surfaces as a fatal error.
*/
type EquationOracle interface {
	Pressure(rho, e float64) (p float64)
	SpecificInternalEnergy(rho, p float64) (e float64)
	SpeedOfSound(rho, e float64) (a float64)
	Temperature(rho, e float64) (T float64)
	// PressureBatch evaluates p for the full rho/e vectors in one call.
	// Implementations that wrap an expensive external library amortize the
	// call overhead here; the kernel selects the batched path when
	// PreferVectorInterface returns true.
	PressureBatch(p, rho, e []float64)
	PreferVectorInterface() bool
	Name() string
}

// CheckFinite validates an oracle output value. A NaN or Inf for admissible
// input indicates a misconfigured equation of state, not a numerical issue
// in the kernel, so it is reported as a hard error.
func CheckFinite(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("equation of state returned non-finite %s: %v", name, val)
	}
	return nil
}
