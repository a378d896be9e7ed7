// Package admit filters strategist opportunities down to the ones
// eligible for allocation.
package admit

import "github.com/predictionscope/agent/internal/domain"

// Filter rejects opportunities scoring below minScore and opportunities
// whose slug already exists in the ledger. Slug comparison is exact and
// case-sensitive; differently cased duplicates are a documented
// limitation, not deduplicated here. Opportunities are not deduplicated
// against each other within the batch either — that policy lives in the
// allocator. Pure function, input order preserved.
func Filter(opps []domain.Opportunity, ledgerSlugs map[string]struct{}, minScore float64) []domain.Opportunity {
	admitted := make([]domain.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if opp.Score < minScore {
			continue
		}
		if _, done := ledgerSlugs[opp.Slug]; done {
			continue
		}
		admitted = append(admitted, opp)
	}
	return admitted
}
