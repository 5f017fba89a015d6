package cricket

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrInvalidDistribution is returned when outcome weights are negative or do not sum to 100.
var ErrInvalidDistribution = errors.New("outcome weights must be non-negative and sum to 100")

// RandSource yields uniform values in [0,1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Weights are the percentage chances of each ball outcome.
type Weights struct {
	Wicket int `mapstructure:"wicket"`
	Six    int `mapstructure:"six"`
	Four   int `mapstructure:"four"`
	Two    int `mapstructure:"two"`
	One    int `mapstructure:"one"`
	Dot    int `mapstructure:"dot"`
}

// DefaultWeights returns the standard ball outcome distribution.
func DefaultWeights() Weights {
	return Weights{Wicket: 10, Six: 15, Four: 20, Two: 20, One: 15, Dot: 20}
}

// Validate checks that the weights form a complete distribution.
func (w Weights) Validate() error {
	total := 0
	for _, b := range w.buckets() {
		if b.weight < 0 {
			return ErrInvalidDistribution
		}
		total += b.weight
	}
	if total != 100 {
		return ErrInvalidDistribution
	}
	return nil
}

type bucket struct {
	outcome Outcome
	weight  int
}

// buckets returns the outcomes in cumulative threshold order:
// wicket, six, four, two, one, dot.
func (w Weights) buckets() []bucket {
	return []bucket{
		{Out, w.Wicket},
		{Six, w.Six},
		{Four, w.Four},
		{Two, w.Two},
		{One, w.One},
		{Dot, w.Dot},
	}
}

// Generator draws ball outcomes from a categorical distribution.
// It is safe for concurrent use.
type Generator struct {
	mu         sync.Mutex
	src        RandSource
	thresholds []float64
	outcomes   []Outcome
}

// NewGenerator creates a generator over the given weights.
// A nil source falls back to a time-seeded math/rand source.
func NewGenerator(src RandSource, w Weights) (*Generator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	g := &Generator{src: src}
	cum := 0
	for _, b := range w.buckets() {
		if b.weight == 0 {
			continue
		}
		cum += b.weight
		g.thresholds = append(g.thresholds, float64(cum)/100)
		g.outcomes = append(g.outcomes, b.outcome)
	}
	return g, nil
}

// Draw returns one random ball outcome.
func (g *Generator) Draw() Outcome {
	g.mu.Lock()
	u := g.src.Float64()
	g.mu.Unlock()
	return g.pick(u)
}

// pick maps a uniform value onto its bucket.
func (g *Generator) pick(u float64) Outcome {
	for i, t := range g.thresholds {
		if u < t {
			return g.outcomes[i]
		}
	}
	return g.outcomes[len(g.outcomes)-1]
}

// index picks a uniform index in [0,n) from the shared source.
// Caller must hold g.mu.
func (g *Generator) index(n int) int {
	i := int(g.src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
