package funding

import (
	"testing"

	"plura/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func credits(amounts map[string]float64) []domain.ProposalCredit {
	var cs []domain.ProposalCredit
	for user, amount := range amounts {
		cs = append(cs, domain.ProposalCredit{
			ProposalID: 1,
			UserID:     user,
			Amount:     decimal.NewFromFloat(amount),
		})
	}
	return cs
}

func TestScoreNoContributions(t *testing.T) {
	assert.Equal(t, 0.0, Score(nil))
	assert.Equal(t, 0.0, Score([]domain.ProposalCredit{}))
}

func TestScoreSingleContributor(t *testing.T) {
	// One user giving 30: score is (sqrt 30)^2 = 30, no diversity bonus
	score := Score(credits(map[string]float64{"alice": 30}))
	assert.InDelta(t, 30, score, 1e-9)
	assert.Equal(t, 0.0, Bonus(score, decimal.NewFromInt(30)))
}

func TestScoreBroadSupportBeatsConcentration(t *testing.T) {
	// Nine users giving 1 each score 81; one user giving 9 scores 9
	broad := make(map[string]float64)
	for _, u := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		broad[u] = 1
	}
	assert.InDelta(t, 81, Score(credits(broad)), 1e-9)
	assert.InDelta(t, 9, Score(credits(map[string]float64{"whale": 9})), 1e-9)
}

func TestScoreThreeEqualContributors(t *testing.T) {
	// Three users giving 4 each: (2+2+2)^2 = 36, raw 12, bonus 24
	cs := credits(map[string]float64{"a": 4, "b": 4, "c": 4})
	score := Score(cs)
	assert.InDelta(t, 36, score, 1e-9)
	assert.InDelta(t, 24, Bonus(score, RawTotal(cs)), 1e-9)
}

func TestSquareRootsClampNegative(t *testing.T) {
	cs := []domain.ProposalCredit{
		{UserID: "a", Amount: decimal.NewFromInt(-5)},
		{UserID: "b", Amount: decimal.Zero},
		{UserID: "c", Amount: decimal.NewFromInt(16)},
	}
	roots := SquareRoots(cs)
	assert.Equal(t, 0.0, roots["a"])
	assert.Equal(t, 0.0, roots["b"])
	assert.InDelta(t, 4, roots["c"], 1e-9)
}

func TestBonusNeverNegative(t *testing.T) {
	// A concentrated proposal: score well below raw
	cs := credits(map[string]float64{"whale": 100})
	assert.Equal(t, 0.0, Bonus(Score(cs), RawTotal(cs)))
	// And for a handful of skewed distributions
	for _, amounts := range []map[string]float64{
		{"a": 0.1},
		{"a": 50, "b": 0.0001},
		{"a": 2.5},
	} {
		cs := credits(amounts)
		assert.GreaterOrEqual(t, Bonus(Score(cs), RawTotal(cs)), 0.0)
	}
}

func TestBonusToleratesSqrtRounding(t *testing.T) {
	// A single fractional contributor: (sqrt a)^2 can land a hair under a.
	// The clamp must report exactly zero, not a negative or a phantom bonus.
	for _, a := range []float64{0.1, 0.3, 1.7, 3.3, 7.77, 123.456} {
		cs := credits(map[string]float64{"solo": a})
		assert.Equal(t, 0.0, Bonus(Score(cs), RawTotal(cs)), "amount %v", a)
	}
}

func TestScoreMonotonicInContributions(t *testing.T) {
	// Raising one contributor's amount, others fixed, never lowers the score
	prev := Score(credits(map[string]float64{"a": 3, "b": 7, "c": 0.5}))
	for _, bump := range []float64{0.6, 1, 2, 5, 50} {
		score := Score(credits(map[string]float64{"a": 3, "b": 7, "c": bump}))
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
}

func TestRawTotal(t *testing.T) {
	cs := credits(map[string]float64{"a": 1.5, "b": 2.5})
	assert.True(t, RawTotal(cs).Equal(decimal.NewFromInt(4)))
	assert.True(t, RawTotal(nil).Equal(decimal.Zero))
}
