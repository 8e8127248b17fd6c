package matcher

import (
	"sort"

	"receipt-reconciliation-service/internal/models"
)

// Engine scores and ranks match candidates for a target record. It is
// stateless apart from its validated policy: scoring is pure and safe to
// run concurrently across many target/candidate pairs.
type Engine struct {
	policy *MatchingPolicy
}

// MatchCandidate is the scored result for one candidate record. The
// per-attribute similarities and the combined confidence are all in [0,1].
type MatchCandidate struct {
	Record             *models.Record `json:"record"`
	AmountSimilarity   float64        `json:"amount_similarity"`
	DateSimilarity     float64        `json:"date_similarity"`
	MerchantSimilarity float64        `json:"merchant_similarity"`
	Confidence         float64        `json:"confidence"`
}

// NewEngine creates an engine with the given policy. A nil policy selects
// the defaults. An invalid policy is a configuration error surfaced
// immediately: the engine never runs with clamped or defaulted weights.
func NewEngine(policy *MatchingPolicy) (*Engine, error) {
	if policy == nil {
		policy = DefaultMatchingPolicy()
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &Engine{policy: policy.Clone()}, nil
}

// Policy returns a copy of the engine's policy.
func (e *Engine) Policy() *MatchingPolicy {
	return e.policy.Clone()
}

// ScoreCandidates filters the pool against the target, scores every
// surviving candidate and returns them ordered by confidence descending.
// Ties break by candidate id ascending, so identical inputs always
// produce identical output.
func (e *Engine) ScoreCandidates(target *models.Record, pool *CandidatePool, excluded map[string]bool) []*MatchCandidate {
	candidates := pool.Candidates(target, e.policy, excluded)

	results := make([]*MatchCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		results = append(results, e.Score(target, candidate))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Record.ID < results[j].Record.ID
	})

	return results
}

// Score computes the per-attribute similarities for one target/candidate
// pair and combines them into a confidence via the policy weights.
func (e *Engine) Score(target, candidate *models.Record) *MatchCandidate {
	amountSim := AmountSimilarity(target.Amount, candidate.Amount, e.policy.AmountToleranceFraction)
	dateSim := DateSimilarity(target.OccurredAt, candidate.OccurredAt, e.policy.DateToleranceDays)
	merchantSim := MerchantSimilarity(target.Merchant, candidate.Merchant, e.policy.MerchantMetric)

	weights := e.policy.Weights
	confidence := clamp01(amountSim*weights.Amount +
		dateSim*weights.Date +
		merchantSim*weights.Merchant)

	return &MatchCandidate{
		Record:             candidate,
		AmountSimilarity:   amountSim,
		DateSimilarity:     dateSim,
		MerchantSimilarity: merchantSim,
		Confidence:         confidence,
	}
}

// BestMatch returns the single top candidate at or above the policy's
// confidence floor, or nil when nothing qualifies. This is the mode used
// for unattended commitment.
func (e *Engine) BestMatch(target *models.Record, pool *CandidatePool, excluded map[string]bool) *MatchCandidate {
	scored := e.ScoreCandidates(target, pool, excluded)
	if len(scored) == 0 {
		return nil
	}

	best := scored[0]
	if best.Confidence < e.policy.MinConfidence {
		return nil
	}
	return best
}

// Proposals returns the top-N ranked candidates for human review. No
// confidence floor applies here: sub-threshold candidates are exactly
// what a review queue exists to surface. A non-positive limit falls back
// to the policy's ProposalLimit.
func (e *Engine) Proposals(target *models.Record, pool *CandidatePool, excluded map[string]bool, limit int) []*MatchCandidate {
	if limit <= 0 {
		limit = e.policy.ProposalLimit
	}

	scored := e.ScoreCandidates(target, pool, excluded)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
