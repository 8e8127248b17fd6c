// Package matcher implements the receipt-to-transaction matching engine.
//
// Matching runs in stages:
//  1. Candidate selection: a coarse amount/date envelope prunes the pool
//     before any fine-grained scoring (see CandidatePool).
//  2. Similarity scoring: pure per-attribute scorers for amount, date and
//     merchant text, each returning a value in [0,1].
//  3. Confidence combination: a weighted sum under an explicit, validated
//     MatchingPolicy.
//  4. Ranking: confidence-descending order with a deterministic id
//     tie-break, exposed as best-match (threshold applies) and proposal
//     (no threshold, top-N) operations.
//
// The engine performs no I/O and holds no mutable state; commitment
// bookkeeping lives in the reconciler package.
//
// Example usage:
//
//	policy := matcher.DefaultMatchingPolicy()
//	policy.DateToleranceDays = 5
//
//	engine, err := matcher.NewEngine(policy)
//	pool := matcher.NewCandidatePool(records)
//	best := engine.BestMatch(target, pool, nil)
package matcher

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	apperrors "receipt-reconciliation-service/pkg/errors"
)

// MerchantMetric selects the string-similarity metric used for merchant
// text comparison.
type MerchantMetric string

const (
	// MerchantMetricLevenshtein uses normalized edit distance:
	// 1 - distance/max(len). Good for typos and minor formatting noise.
	MerchantMetricLevenshtein MerchantMetric = "levenshtein"

	// MerchantMetricTokenSet uses Jaccard similarity over token sets.
	// Robust to word reordering and trailing store numbers.
	MerchantMetricTokenSet MerchantMetric = "token_set"

	// MerchantMetricBlended averages the two metrics.
	MerchantMetricBlended MerchantMetric = "blended"
)

// IsValid checks whether the metric is one of the supported metrics.
func (m MerchantMetric) IsValid() bool {
	switch m {
	case MerchantMetricLevenshtein, MerchantMetricTokenSet, MerchantMetricBlended:
		return true
	default:
		return false
	}
}

// Weights defines the relative importance of the per-attribute similarity
// scores when combining them into a confidence value.
type Weights struct {
	Amount   float64 `json:"amount"`
	Date     float64 `json:"date"`
	Merchant float64 `json:"merchant"`
}

// weightEpsilon is the tolerance when checking that weights sum to 1.
const weightEpsilon = 0.01

// Validate checks that each weight lies in [0,1] and that the weights sum
// to 1 within epsilon. Weights are never clamped or re-normalized; an
// invalid set is a caller bug surfaced as a configuration error.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"amount":   w.Amount,
		"date":     w.Date,
		"merchant": w.Merchant,
	} {
		if v < 0.0 || v > 1.0 {
			return apperrors.ConfigurationError(apperrors.CodeInvalidWeights,
				"weights."+name, v)
		}
	}

	total := w.Amount + w.Date + w.Merchant
	if math.Abs(total-1.0) > weightEpsilon {
		return apperrors.ConfigurationError(apperrors.CodeInvalidWeights,
			"weights", total)
	}

	return nil
}

// MatchingPolicy holds every tunable of the matching algorithm. It is
// plain data supplied by the caller; the engine hard-codes no tolerances.
// Different policies suit different scenarios: strict for automated
// commitment, relaxed for exploratory review queues.
type MatchingPolicy struct {
	// AmountToleranceFraction is the maximum relative amount deviation
	// still considered a candidate (0.05 = 5%). Zero requires exact
	// amounts.
	AmountToleranceFraction float64 `json:"amount_tolerance_fraction"`

	// DateToleranceDays is the maximum absolute calendar-day difference
	// still considered a candidate. Zero requires the same day.
	DateToleranceDays int `json:"date_tolerance_days"`

	// Weights combine the per-attribute similarities into a confidence.
	Weights Weights `json:"weights"`

	// MerchantMetric selects the merchant-text similarity metric.
	MerchantMetric MerchantMetric `json:"merchant_metric"`

	// MinConfidence is the floor below which best-match mode proposes
	// nothing. Proposal mode ignores it by design: sub-threshold
	// candidates are surfaced there for human review, and only there.
	MinConfidence float64 `json:"min_confidence"`

	// MaxCandidatesPerTarget caps how many filtered candidates are scored
	// per target. Zero means no cap.
	MaxCandidatesPerTarget int `json:"max_candidates_per_target"`

	// ProposalLimit is the default top-N size for proposal mode.
	ProposalLimit int `json:"proposal_limit"`
}

// DefaultMatchingPolicy returns the balanced defaults: 1% amount
// tolerance, 3-day date window, amount-heavy weights. These were embedded
// constants in earlier implementations and are deliberately surfaced as
// overridable values here.
func DefaultMatchingPolicy() *MatchingPolicy {
	return &MatchingPolicy{
		AmountToleranceFraction: 0.01,
		DateToleranceDays:       3,
		Weights: Weights{
			Amount:   0.5,
			Date:     0.3,
			Merchant: 0.2,
		},
		MerchantMetric:         MerchantMetricBlended,
		MinConfidence:          0.7,
		MaxCandidatesPerTarget: 20,
		ProposalLimit:          5,
	}
}

// StrictMatchingPolicy returns tight tolerances for unattended commitment.
func StrictMatchingPolicy() *MatchingPolicy {
	return &MatchingPolicy{
		AmountToleranceFraction: 0.0,
		DateToleranceDays:       1,
		Weights: Weights{
			Amount:   0.6,
			Date:     0.3,
			Merchant: 0.1,
		},
		MerchantMetric:         MerchantMetricLevenshtein,
		MinConfidence:          0.9,
		MaxCandidatesPerTarget: 10,
		ProposalLimit:          3,
	}
}

// RelaxedMatchingPolicy returns loose tolerances for exploratory matching
// and review queues: 5% amount, 3-day date, equal weights.
func RelaxedMatchingPolicy() *MatchingPolicy {
	return &MatchingPolicy{
		AmountToleranceFraction: 0.05,
		DateToleranceDays:       3,
		Weights: Weights{
			Amount:   1.0 / 3.0,
			Date:     1.0 / 3.0,
			Merchant: 1.0 / 3.0,
		},
		MerchantMetric:         MerchantMetricBlended,
		MinConfidence:          0.5,
		MaxCandidatesPerTarget: 50,
		ProposalLimit:          5,
	}
}

// Validate checks the policy. It fails fast with a configuration error;
// nothing is clamped or silently defaulted.
func (p *MatchingPolicy) Validate() error {
	if p.AmountToleranceFraction < 0.0 {
		return apperrors.ConfigurationError(apperrors.CodeNegativeTolerance,
			"amount_tolerance_fraction", p.AmountToleranceFraction)
	}

	if p.DateToleranceDays < 0 {
		return apperrors.ConfigurationError(apperrors.CodeNegativeTolerance,
			"date_tolerance_days", p.DateToleranceDays)
	}

	if err := p.Weights.Validate(); err != nil {
		return err
	}

	if !p.MerchantMetric.IsValid() {
		return apperrors.ConfigurationError(apperrors.CodeInvalidPolicy,
			"merchant_metric", string(p.MerchantMetric))
	}

	if p.MinConfidence < 0.0 || p.MinConfidence > 1.0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidPolicy,
			"min_confidence", p.MinConfidence)
	}

	if p.MaxCandidatesPerTarget < 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidPolicy,
			"max_candidates_per_target", p.MaxCandidatesPerTarget)
	}

	if p.ProposalLimit <= 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidPolicy,
			"proposal_limit", p.ProposalLimit)
	}

	return nil
}

// Clone creates a copy of the policy.
func (p *MatchingPolicy) Clone() *MatchingPolicy {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// AmountTolerance computes the absolute tolerance window for an amount:
// |amount| * AmountToleranceFraction.
func (p *MatchingPolicy) AmountTolerance(amount decimal.Decimal) decimal.Decimal {
	if p.AmountToleranceFraction == 0.0 {
		return decimal.Zero
	}
	return amount.Abs().Mul(decimal.NewFromFloat(p.AmountToleranceFraction))
}

// WithinAmountWindow checks the coarse amount envelope used by the
// candidate filter.
func (p *MatchingPolicy) WithinAmountWindow(target, candidate decimal.Decimal) bool {
	diff := target.Sub(candidate).Abs()
	return diff.LessThanOrEqual(p.AmountTolerance(target))
}

// String returns a human-readable description of the policy.
func (p *MatchingPolicy) String() string {
	return fmt.Sprintf("MatchingPolicy{AmountTolerance: %.2f%%, DateTolerance: %d days, Weights: %.2f/%.2f/%.2f, Metric: %s, MinConfidence: %.2f}",
		p.AmountToleranceFraction*100, p.DateToleranceDays,
		p.Weights.Amount, p.Weights.Date, p.Weights.Merchant,
		p.MerchantMetric, p.MinConfidence)
}
