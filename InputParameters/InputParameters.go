package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title             string  `yaml:"Title"`
	CFL               float64 `yaml:"CFL"`
	FinalTime         float64 `yaml:"FinalTime"`
	K                 int     `yaml:"K"` // Number of nodes in the mesh
	MaxIterations     int     `yaml:"MaxIterations"`
	MaxRestarts       int     `yaml:"MaxRestarts"`
	EquationOfState   string  `yaml:"EquationOfState"` // One of ideal_gas, noble_abel_stiffened_gas
	Gamma             float64 `yaml:"Gamma"`
	Covolume          float64 `yaml:"Covolume"`
	ReferencePressure float64 `yaml:"ReferencePressure"`
	ReferenceSIE      float64 `yaml:"ReferenceSIE"`
	Limiter           string  `yaml:"Limiter"` // One of none, specific_entropy
	NewtonMaxIter     int     `yaml:"NewtonMaxIter"`
	LimiterIterations int     `yaml:"LimiterIterations"`
	RelaxBounds       bool    `yaml:"RelaxBounds"`
	RelaxationOrder   int     `yaml:"RelaxationOrder"`
	ViolationStrategy string  `yaml:"ViolationStrategy"` // One of warn, raise_exception
}

// NewInputParameters returns the parameter set with its defaults, before
// any YAML overrides are applied.
func NewInputParameters() *InputParameters {
	return &InputParameters{
		Title:             "shocktube",
		CFL:               0.9,
		FinalTime:         0.25,
		K:                 400,
		MaxIterations:     100000,
		MaxRestarts:       5,
		EquationOfState:   "ideal_gas",
		Gamma:             1.4,
		Limiter:           "specific_entropy",
		LimiterIterations: 2,
		RelaxBounds:       true,
		RelaxationOrder:   3,
		ViolationStrategy: "raise_exception",
	}
}

func (ip *InputParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	switch ip.EquationOfState {
	case "ideal_gas", "noble_abel_stiffened_gas":
	default:
		return fmt.Errorf("unknown equation of state [%s]", ip.EquationOfState)
	}
	switch ip.Limiter {
	case "none", "specific_entropy":
	default:
		return fmt.Errorf("unknown limiter [%s]", ip.Limiter)
	}
	switch ip.ViolationStrategy {
	case "warn", "raise_exception":
	default:
		return fmt.Errorf("unknown violation strategy [%s]", ip.ViolationStrategy)
	}
	return nil
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("%8.5f\t\t= CFL\n", ip.CFL)
	fmt.Printf("%8.5f\t\t= FinalTime\n", ip.FinalTime)
	fmt.Printf("[%d]\t\t\t= K, number of mesh nodes\n", ip.K)
	fmt.Printf("[%s]\t\t= Equation of State\n", ip.EquationOfState)
	fmt.Printf("%8.5f\t\t= Gamma\n", ip.Gamma)
	fmt.Printf("[%s]\t= Limiter\n", ip.Limiter)
	fmt.Printf("[%s]\t= Violation Strategy\n", ip.ViolationStrategy)
}
