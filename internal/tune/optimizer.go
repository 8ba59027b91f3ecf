package tune

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// Optimizer minimizes an objective over a box-bounded parameter space.
type Optimizer interface {
	// Run returns the best parameters and their cost. All dimensions share
	// the bounds lower[0]..upper[0].
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// MayflyAdapter wraps the Mayfly library to conform to Optimizer.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a Mayfly optimizer. mayfly v0.1.0 needs popSize >= 20.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	if popSize < MinPopulation {
		popSize = MinPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// MinPopulation is the smallest population mayfly accepts.
const MinPopulation = 20

func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	config := mayfly.NewDefaultConfig()

	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return make([]float64, dim), eval(make([]float64, dim))
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost
}
