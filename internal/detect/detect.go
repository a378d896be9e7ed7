// Package detect compares the current market snapshot against the
// previous one and flags markets whose price moved beyond a threshold.
package detect

import (
	"math"

	"github.com/predictionscope/agent/internal/domain"
)

// Movers returns every market present in both snapshots whose absolute
// price change strictly exceeds threshold. A nil previous snapshot (cold
// start) yields no movers; markets without a counterpart in the previous
// snapshot are ignored. Output order follows the current snapshot, but
// callers must not depend on it.
func Movers(current domain.Snapshot, previous *domain.Snapshot, threshold float64) []domain.Mover {
	if previous == nil {
		return nil
	}

	before := make(map[domain.MarketKey]domain.Market, len(previous.Markets))
	for _, m := range previous.Markets {
		before[m.Key()] = m
	}

	var movers []domain.Mover
	for _, m := range current.Markets {
		old, ok := before[m.Key()]
		if !ok {
			continue
		}

		delta := math.Abs(m.YesPrice - old.YesPrice)
		if delta > threshold {
			movers = append(movers, domain.Mover{
				Market:        m,
				PreviousPrice: old.YesPrice,
				Delta:         delta,
			})
		}
	}

	return movers
}
