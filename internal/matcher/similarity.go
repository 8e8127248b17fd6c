package matcher

import (
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// The similarity scorers are pure functions from attribute pairs to [0,1].
// Dissimilarity is a value near zero, never an error: bank data is often
// thin and a record with a missing merchant still has to participate in
// matching.

// AmountSimilarity scores how close two monetary amounts are under a
// relative tolerance: max(0, 1 - |a-b| / (|a| * toleranceFraction)),
// clamped to [0,1]. Equal amounts score 1; a deviation at or beyond the
// tolerance scores 0. A zero tolerance (or zero target amount) requires
// exact equality.
func AmountSimilarity(target, candidate decimal.Decimal, toleranceFraction float64) float64 {
	if target.Equal(candidate) {
		return 1.0
	}

	if toleranceFraction <= 0.0 || target.IsZero() {
		return 0.0
	}

	window := target.Abs().Mul(decimal.NewFromFloat(toleranceFraction))
	diff := target.Sub(candidate).Abs()
	ratio := diff.Div(window).InexactFloat64()

	return clamp01(1.0 - ratio)
}

// DateSimilarity scores calendar-day proximity: max(0, 1 - days/tolerance).
// Same day scores 1; a difference at or beyond the tolerance scores 0.
// Times are reduced to dates first, so "one day apart" means distinct
// calendar days regardless of time of day.
func DateSimilarity(a, b time.Time, toleranceDays int) float64 {
	days := DaysApart(a, b)
	if days == 0 {
		return 1.0
	}

	if toleranceDays <= 0 {
		return 0.0
	}

	return clamp01(1.0 - float64(days)/float64(toleranceDays))
}

// DaysApart returns the absolute calendar-day difference between two
// times, ignoring time-of-day and timezone offsets.
func DaysApart(a, b time.Time) int {
	da := dateOnly(a)
	db := dateOnly(b)

	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MerchantSimilarity scores two merchant labels after normalization,
// using the metric selected by the policy. If either label is empty or
// normalizes to nothing, the score is 0: merchant text is frequently
// missing from bank feeds and must not crash a batch.
func MerchantSimilarity(a, b string, metric MerchantMetric) float64 {
	na := NormalizeMerchant(a)
	nb := NormalizeMerchant(b)

	if na == "" || nb == "" {
		return 0.0
	}

	if na == nb {
		return 1.0
	}

	switch metric {
	case MerchantMetricLevenshtein:
		return levenshteinSimilarity(na, nb)
	case MerchantMetricTokenSet:
		return tokenSetSimilarity(na, nb)
	default:
		return (levenshteinSimilarity(na, nb) + tokenSetSimilarity(na, nb)) / 2.0
	}
}

// NormalizeMerchant lowercases, drops apostrophes, replaces every other
// non-alphanumeric rune with a space and collapses runs of whitespace, so
// "Trader Joe's" becomes "trader joes" and compares cleanly against
// "TRADER JOES #123".
func NormalizeMerchant(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			// Possessives collapse into the word: "joe's" -> "joes".
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshteinSimilarity converts edit distance into a [0,1] score:
// 1 - distance/max(len), measured in runes.
func levenshteinSimilarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return clamp01(1.0 - float64(distance)/float64(maxLen))
}

// tokenSetSimilarity computes Jaccard similarity over whitespace tokens.
func tokenSetSimilarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}

	union := len(tokensA) + len(tokensB) - intersection
	return clamp01(float64(intersection) / float64(union))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		set[token] = true
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
