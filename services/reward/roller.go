package reward

import (
	"math/rand/v2"
	"sync"

	"storefront-bot/services/catalog"
)

const (
	RollMin = 1
	RollMax = 100
)

// Roller draws from a weighted reward table using cumulative bands in table
// order.
type Roller struct {
	table []catalog.Reward

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRoller(table []catalog.Reward, seed uint64) *Roller {
	return &Roller{
		table: table,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Pick returns the index and entry whose band contains roll. A roll beyond
// the last band returns the first entry, so a paid-for roll always yields a
// reward.
func (r *Roller) Pick(roll int) (int, catalog.Reward) {
	cumulative := 0
	for i, entry := range r.table {
		cumulative += entry.Weight
		if roll >= RollMin && roll <= cumulative {
			return i, entry
		}
	}
	return 0, r.table[0]
}

// Roll draws a uniform number in [1,100].
func (r *Roller) Roll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RollMin + r.rng.IntN(RollMax-RollMin+1)
}
