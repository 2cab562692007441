//go:build native

package cli

import "math/rand"

// mathRand adapts math/rand.Rand to generate.RNG. The current sampler always
// returns the top-ranked candidate (see internal/generate/sampler.go's
// Open Question note) so this source is never actually drawn from today; it
// exists so a future stochastic sampling mode has a concrete RNG to plug in
// without changing any call site.
type mathRand struct{ r *rand.Rand }

func newRNG(seed int64) mathRand {
	return mathRand{r: rand.New(rand.NewSource(seed))}
}

func (m mathRand) Float64() float64 { return m.r.Float64() }
