// Package allocate deterministically selects a bounded subset of admitted
// opportunities honoring per-bucket proportional targets.
package allocate

import (
	"math"
	"sort"

	"github.com/predictionscope/agent/internal/domain"
)

// Bucket is one content bucket with its quota parameters. Slice order is
// the fixed priority order used during the per-bucket fill.
type Bucket struct {
	Name   string
	Weight float64
	Floor  int
}

// Target is the bucket's slot count for a run of maxTotal assignments:
// max(floor, round(maxTotal × weight)). Rounding is half-to-even; plain
// half-up rounding lets a high-weight bucket's target jump at odd
// maxTotal values and shrink the buckets behind it. Buckets with zero
// weight get no slots regardless of floor.
func (b Bucket) Target(maxTotal int) int {
	if b.Weight <= 0 {
		return 0
	}
	target := int(math.RoundToEven(float64(maxTotal) * b.Weight))
	if target < b.Floor {
		target = b.Floor
	}
	return target
}

// Plan selects up to maxTotal assignments from admitted in two phases:
// per-bucket fill in priority order, then spillover by score across all
// buckets. Sorting is stable, so score ties keep their input order. A
// slug appearing more than once in the batch is selected at most once;
// the score-descending order means the highest-scoring occurrence wins.
// Plan never errors: any input produces a (possibly empty) selection.
func Plan(admitted []domain.Opportunity, buckets []Bucket, maxTotal int) []domain.Assignment {
	if maxTotal <= 0 || len(admitted) == 0 {
		return nil
	}

	byScore := make([]int, len(admitted))
	for i := range admitted {
		byScore[i] = i
	}
	sort.SliceStable(byScore, func(a, b int) bool {
		return admitted[byScore[a]].Score > admitted[byScore[b]].Score
	})

	selected := make([]domain.Assignment, 0, maxTotal)
	taken := make(map[int]struct{}, maxTotal)
	seenSlug := make(map[string]struct{}, maxTotal)

	pick := func(i int) {
		taken[i] = struct{}{}
		seenSlug[admitted[i].Slug] = struct{}{}
		selected = append(selected, domain.Assignment{Opportunity: admitted[i]})
	}

	// Phase A: per-bucket fill in priority order.
	for _, bucket := range buckets {
		target := bucket.Target(maxTotal)
		count := 0
		for _, i := range byScore {
			if len(selected) >= maxTotal {
				return selected
			}
			if count >= target {
				break
			}
			if admitted[i].Bucket != bucket.Name {
				continue
			}
			if _, dup := seenSlug[admitted[i].Slug]; dup {
				continue
			}
			pick(i)
			count++
		}
	}

	// Phase B: spillover fill by score, regardless of bucket.
	for _, i := range byScore {
		if len(selected) >= maxTotal {
			break
		}
		if _, ok := taken[i]; ok {
			continue
		}
		if _, dup := seenSlug[admitted[i].Slug]; dup {
			continue
		}
		pick(i)
	}

	return selected
}
