// Package planner builds the randomized measurement order for one round.
//
// Each slot of a plan is drawn independently and uniformly, with replacement. A round is
// therefore only balanced in expectation: a variant can appear more or fewer times than
// measurementsPerRound within a single round.
package planner

import (
	"math/rand"
	"sync"
	"time"
)

// Planner produces execution plans from an injected random source.
type Planner struct {
	random *rand.Rand
}

// New returns a Planner with a deterministic source, suitable for tests and reproducible runs.
func New(seed int64) *Planner {
	return &Planner{random: rand.New(rand.NewSource(seed))}
}

// NewFromRand returns a Planner drawing from the given generator.
func NewFromRand(random *rand.Rand) *Planner {
	return &Planner{random: random}
}

// Plan returns activeCount*perRoundPerVariant indices, each uniform over [0, activeCount).
func (p *Planner) Plan(activeCount int, perRoundPerVariant int) []int {
	if activeCount <= 0 || perRoundPerVariant <= 0 {
		return []int{}
	}
	plan := make([]int, activeCount*perRoundPerVariant)
	for i := range plan {
		plan[i] = p.random.Intn(activeCount)
	}
	return plan
}

// lockedSource is a random source that uses a mutex to ensure it is threadsafe.
type lockedSource struct {
	lk  sync.Mutex
	src rand.Source
}

func (r *lockedSource) Int63() (n int64) {
	r.lk.Lock()
	n = r.src.Int63()
	r.lk.Unlock()
	return
}

func (r *lockedSource) Seed(seed int64) {
	r.lk.Lock()
	r.src.Seed(seed)
	r.lk.Unlock()
}

// NewThreadsafeRand returns a *rand.Rand that is safe to share across target jobs.
func NewThreadsafeRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed)})
}

// NewSharedFactory returns a function handing out Planners that share one threadsafe source
// seeded from the wall clock.
func NewSharedFactory() func() *Planner {
	shared := NewThreadsafeRand(time.Now().UnixNano())
	return func() *Planner {
		return NewFromRand(shared)
	}
}
