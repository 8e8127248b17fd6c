package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAmountSimilarityBoundaries(t *testing.T) {
	target := decimal.NewFromInt(100)
	tolerance := 0.05

	// Exactly at tolerance: zero similarity.
	assert.Equal(t, 0.0, AmountSimilarity(target, decimal.NewFromFloat(105.00), tolerance))

	// Just inside tolerance: positive similarity.
	assert.Greater(t, AmountSimilarity(target, decimal.NewFromFloat(104.99), tolerance), 0.0)

	// Exact match: full similarity.
	assert.Equal(t, 1.0, AmountSimilarity(target, decimal.NewFromInt(100), tolerance))

	// Beyond tolerance: clamped to zero.
	assert.Equal(t, 0.0, AmountSimilarity(target, decimal.NewFromInt(120), tolerance))
}

func TestAmountSimilarityZeroTolerance(t *testing.T) {
	target := decimal.NewFromFloat(42.50)

	assert.Equal(t, 1.0, AmountSimilarity(target, decimal.NewFromFloat(42.50), 0.0))
	assert.Equal(t, 0.0, AmountSimilarity(target, decimal.NewFromFloat(42.51), 0.0))
}

func TestAmountSimilarityZeroTarget(t *testing.T) {
	zero := decimal.Zero

	assert.Equal(t, 1.0, AmountSimilarity(zero, decimal.Zero, 0.05))
	assert.Equal(t, 0.0, AmountSimilarity(zero, decimal.NewFromFloat(0.01), 0.05))
}

func TestAmountSimilarityNegativeAmounts(t *testing.T) {
	target := decimal.NewFromFloat(-42.50)

	assert.Equal(t, 1.0, AmountSimilarity(target, decimal.NewFromFloat(-42.50), 0.05))
	assert.Greater(t, AmountSimilarity(target, decimal.NewFromFloat(-42.00), 0.05), 0.0)
}

func TestDateSimilarityBoundaries(t *testing.T) {
	base := time.Date(2024, 4, 7, 12, 0, 0, 0, time.UTC)
	tolerance := 3

	// Exactly at tolerance: zero similarity.
	assert.Equal(t, 0.0, DateSimilarity(base, base.AddDate(0, 0, 3), tolerance))

	// Inside tolerance: positive similarity.
	assert.Greater(t, DateSimilarity(base, base.AddDate(0, 0, 2), tolerance), 0.0)

	// Same day: full similarity, regardless of time of day.
	sameDayEvening := time.Date(2024, 4, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 1.0, DateSimilarity(base, sameDayEvening, tolerance))

	// Symmetric in both directions.
	assert.Equal(t,
		DateSimilarity(base, base.AddDate(0, 0, 2), tolerance),
		DateSimilarity(base.AddDate(0, 0, 2), base, tolerance))
}

func TestDateSimilarityZeroTolerance(t *testing.T) {
	base := time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.0, DateSimilarity(base, base, 0))
	assert.Equal(t, 0.0, DateSimilarity(base, base.AddDate(0, 0, 1), 0))
}

func TestDaysApart(t *testing.T) {
	a := time.Date(2024, 4, 7, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 4, 8, 1, 0, 0, 0, time.UTC)

	// Two hours apart across midnight is still one calendar day.
	assert.Equal(t, 1, DaysApart(a, b))
	assert.Equal(t, 0, DaysApart(a, a))
	assert.Equal(t, 13, DaysApart(a, time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)))
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Trader Joe's", "trader joes"},
		{"TRADER JOES #123", "trader joes 123"},
		{"  AMZN*Mktp   US  ", "amzn mktp us"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMerchant(tt.input), "input %q", tt.input)
	}
}

func TestMerchantSimilarityEmptyInputs(t *testing.T) {
	for _, metric := range []MerchantMetric{MerchantMetricLevenshtein, MerchantMetricTokenSet, MerchantMetricBlended} {
		assert.Equal(t, 0.0, MerchantSimilarity("", "Walmart", metric))
		assert.Equal(t, 0.0, MerchantSimilarity("Walmart", "", metric))
		assert.Equal(t, 0.0, MerchantSimilarity("#!?", "Walmart", metric))
	}
}

func TestMerchantSimilarityIdentical(t *testing.T) {
	assert.Equal(t, 1.0, MerchantSimilarity("Trader Joe's", "TRADER JOES", MerchantMetricLevenshtein))
	assert.Equal(t, 1.0, MerchantSimilarity("walmart", "WALMART", MerchantMetricTokenSet))
}

func TestMerchantSimilarityMetrics(t *testing.T) {
	a := "Trader Joe's"
	b := "TRADER JOES #123"

	lev := MerchantSimilarity(a, b, MerchantMetricLevenshtein)
	jac := MerchantSimilarity(a, b, MerchantMetricTokenSet)
	blend := MerchantSimilarity(a, b, MerchantMetricBlended)

	assert.Greater(t, lev, 0.5)
	assert.Greater(t, jac, 0.5)
	assert.InDelta(t, (lev+jac)/2, blend, 1e-9)

	// Unrelated merchants score low under every metric.
	assert.Less(t, MerchantSimilarity(a, "Walmart", MerchantMetricBlended), 0.3)
}

func TestSimilarityRange(t *testing.T) {
	// All scorers stay in [0,1] for awkward inputs.
	values := []float64{
		AmountSimilarity(decimal.NewFromFloat(0.01), decimal.NewFromInt(1000000), 0.5),
		DateSimilarity(time.Now(), time.Now().AddDate(-10, 0, 0), 1),
		MerchantSimilarity("a", "completely different string of words", MerchantMetricBlended),
	}

	for i, v := range values {
		assert.GreaterOrEqual(t, v, 0.0, "value %d", i)
		assert.LessOrEqual(t, v, 1.0, "value %d", i)
	}
}
