/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/jordanhoffart/ryujin/InputParameters"
	"github.com/jordanhoffart/ryujin/eos"
	"github.com/jordanhoffart/ryujin/hyperbolic"
	"github.com/jordanhoffart/ryujin/sod_shock_tube"
)

// ShocktubeCmd represents the shocktube command
var ShocktubeCmd = &cobra.Command{
	Use:   "shocktube",
	Short: "Sod shock tube on a one dimensional node graph",
	Long: `
Runs the invariant domain preserving update on a line graph with the Sod
shock tube initial condition and reports the L1 density error against the
analytic solution,

ryujin shocktube `,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("shocktube called")
		ip := InputParameters.NewInputParameters()
		if icFile, _ := cmd.Flags().GetString("inputConditionsFile"); len(icFile) != 0 {
			var data []byte
			if data, err = os.ReadFile(icFile); err != nil {
				panic(err)
			}
			if err = ip.Parse(data); err != nil {
				panic(err)
			}
		}
		if cmd.Flags().Changed("k") {
			ip.K, _ = cmd.Flags().GetInt("k")
		}
		if cmd.Flags().Changed("CFL") {
			ip.CFL, _ = cmd.Flags().GetFloat64("CFL")
		}
		if cmd.Flags().Changed("finalTime") {
			ip.FinalTime, _ = cmd.Flags().GetFloat64("finalTime")
		}
		if prof, _ := cmd.Flags().GetBool("profile"); prof {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		ip.Print()
		RunShocktube(ip)
	},
}

func init() {
	rootCmd.AddCommand(ShocktubeCmd)
	ShocktubeCmd.Flags().IntP("k", "k", 400, "Number of nodes in the mesh")
	ShocktubeCmd.Flags().Float64("CFL", 0.9, "CFL - increase for speedup, decrease for stability")
	ShocktubeCmd.Flags().Float64("finalTime", 0.25, "FinalTime - the target end time for the sim")
	ShocktubeCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- CFL\n\t- EquationOfState")
	ShocktubeCmd.Flags().Bool("profile", false, "write a CPU profile to the working directory")
}

func buildOracle(ip *InputParameters.InputParameters) eos.EquationOracle {
	switch ip.EquationOfState {
	case "noble_abel_stiffened_gas":
		return eos.NewNobleAbelStiffenedGas(ip.Gamma, ip.Covolume, ip.ReferencePressure, ip.ReferenceSIE)
	default:
		return eos.NewIdealGas(ip.Gamma)
	}
}

func buildLimiter(ip *InputParameters.InputParameters, sv *hyperbolic.SystemView) *hyperbolic.Limiter {
	choice := hyperbolic.LimiterSpecificEntropy
	if ip.Limiter == "none" {
		choice = hyperbolic.LimiterNone
	}
	params := hyperbolic.DefaultLimiterParameters()
	params.Iterations = ip.LimiterIterations
	params.RelaxBounds = ip.RelaxBounds
	params.RelaxationOrder = ip.RelaxationOrder
	return hyperbolic.NewLimiter(sv, choice, params)
}

// SodInitialState returns the Sod initial condition at location x in
// conservative variables, using the oracle to convert pressure to
// internal energy.
func SodInitialState(x float64, oracle eos.EquationOracle) (U hyperbolic.State) {
	rho, p := 1., 1.
	if x >= 0.5 {
		rho, p = 0.125, 0.1
	}
	U[0] = rho
	U[hyperbolic.ProblemDim-1] = rho * oracle.SpecificInternalEnergy(rho, p)
	return
}

func RunShocktube(ip *InputParameters.InputParameters) {
	var (
		oracle   = buildOracle(ip)
		sv       = hyperbolic.NewSystemView(oracle, ip.Covolume, ip.ReferencePressure, ip.ReferenceSIE)
		riemann  = hyperbolic.NewRiemannSolver(sv, ip.Gamma, ip.NewtonMaxIter)
		limiter  = buildLimiter(ip, sv)
		strategy = hyperbolic.RaiseException
		n        = ip.K
		h        = 1. / float64(n-1)
	)
	if ip.ViolationStrategy == "warn" {
		strategy = hyperbolic.Warn
	}
	view := hyperbolic.NewLineGraph(n, h, false)
	mod := hyperbolic.NewHyperbolicModule(view, sv, riemann, limiter, strategy, 0)
	mod.SetCFL(ip.CFL)
	mod.Prepare()

	U := make([]hyperbolic.State, n)
	Unew := make([]hyperbolic.State, n)
	for i := 0; i < n; i++ {
		U[i] = SodInitialState(float64(i)*h, oracle)
	}
	left, right := U[0], U[n-1]

	var (
		t     float64
		steps int
		start = time.Now()
	)
	for t < ip.FinalTime && steps < ip.MaxIterations {
		if err := mod.PrepareStateVector(U); err != nil {
			panic(err)
		}
		tau, err := mod.StepWithRestart(U, nil, nil, Unew, ip.FinalTime-t, ip.MaxRestarts)
		if err != nil {
			panic(err)
		}
		// Dirichlet conditions at the tube ends
		Unew[0], Unew[n-1] = left, right
		U, Unew = Unew, U
		t += tau
		steps++
		if steps%100 == 0 {
			fmt.Printf("time = %8.5f, tau = %8.3e, steps = %d, restarts = %d\n",
				t, tau, steps, mod.NRestarts())
		}
	}
	elapsed := time.Since(start)

	sol := sod_shock_tube.SOD_calc(t)
	var errL1 float64
	for i := 0; i < n; i++ {
		rho, _, _ := sol.Sample(float64(i) * h)
		errL1 += h * math.Abs(U[i].Density()-rho)
	}
	fmt.Printf("simulation complete: t = %8.5f, steps = %d, elapsed = %v\n", t, steps, elapsed)
	fmt.Printf("restarts = %d, warnings = %d\n", mod.NRestarts(), mod.NWarnings())
	fmt.Printf("L1 density error vs analytic Sod = %8.5e\n", errL1)
}
