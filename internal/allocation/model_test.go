package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTokens(t *testing.T, m *Model, tokens ...string) {
	t.Helper()
	for i, tok := range tokens {
		if i > 0 {
			require.True(t, m.AddSlot())
		}
		require.NoError(t, m.SetSlotToken(i, tok))
	}
}

func percentSum(m *Model) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range m.DerivedPercentages() {
		sum = sum.Add(p)
	}
	return sum
}

func TestModel_New(t *testing.T) {
	m := New()
	assert.Equal(t, ModeRatio, m.Mode())
	assert.Len(t, m.Slots(), 1)
	assert.Equal(t, 0, m.ActiveCount())
	assert.False(t, m.HasCustomWeights())

	// no active slots derive to all-zero
	for _, p := range m.DerivedPercentages() {
		assert.True(t, p.IsZero())
	}
}

func TestModel_EqualSplitFallback(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI", "WBTC")

	pcts := m.DerivedPercentages()
	require.Len(t, pcts, 3)
	for _, p := range pcts {
		assert.True(t, p.Sub(decimal.RequireFromString("33.33")).Abs().LessThan(decimal.RequireFromString("0.01")),
			"expected ~33.33, got %s", p)
	}
	assert.True(t, percentSum(m).Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(decimal.RequireFromString("0.01")))
}

func TestModel_EqualSplitIgnoresEmptySlots(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI")
	require.True(t, m.AddSlot()) // stays empty

	pcts := m.DerivedPercentages()
	require.Len(t, pcts, 3)
	assert.True(t, pcts[0].Equal(decimal.NewFromInt(50)))
	assert.True(t, pcts[1].Equal(decimal.NewFromInt(50)))
	assert.True(t, pcts[2].IsZero())
}

func TestModel_RatioWeightsReduce(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI", "WBTC")

	require.NoError(t, m.SetSlotWeight(0, "2"))
	require.NoError(t, m.SetSlotWeight(1, "4"))
	require.NoError(t, m.SetSlotWeight(2, "6"))

	slots := m.Slots()
	assert.True(t, slots[0].Weight.Equal(decimal.NewFromInt(1)))
	assert.True(t, slots[1].Weight.Equal(decimal.NewFromInt(2)))
	assert.True(t, slots[2].Weight.Equal(decimal.NewFromInt(3)))
	assert.True(t, m.HasCustomWeights())

	// 1:2:3 derives to 16.67/33.33/50 within rounding slack
	pcts := m.DerivedPercentages()
	assert.True(t, pcts[2].Sub(decimal.NewFromInt(50)).Abs().LessThan(decimal.RequireFromString("0.01")))
	assert.True(t, percentSum(m).Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(decimal.RequireFromString("0.01")))
}

func TestModel_SetModeRatioToPercentage(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI", "WBTC")
	require.NoError(t, m.SetSlotWeight(0, "1"))
	require.NoError(t, m.SetSlotWeight(1, "1"))
	require.NoError(t, m.SetSlotWeight(2, "1"))

	require.NoError(t, m.SetMode(ModePercentage))

	// 1:1:1 becomes 33.33/33.33/33.34: rounding error folds into the last slot
	slots := m.Slots()
	assert.True(t, slots[0].Weight.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, slots[1].Weight.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, slots[2].Weight.Equal(decimal.RequireFromString("33.34")))
	assert.True(t, percentSum(m).Equal(decimal.NewFromInt(100)))
}

func TestModel_SetModePercentageToRatio(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI")
	require.NoError(t, m.SetMode(ModePercentage))
	require.NoError(t, m.SetSlotWeight(0, "25"))
	require.NoError(t, m.SetSlotWeight(1, "75"))

	require.NoError(t, m.SetMode(ModeRatio))

	slots := m.Slots()
	assert.True(t, slots[0].Weight.Equal(decimal.NewFromInt(1)))
	assert.True(t, slots[1].Weight.Equal(decimal.NewFromInt(3)))
}

func TestModel_SetModeRoundTrip(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI")
	require.NoError(t, m.SetSlotWeight(0, "1"))
	require.NoError(t, m.SetSlotWeight(1, "1"))

	require.NoError(t, m.SetMode(ModePercentage))
	require.NoError(t, m.SetMode(ModeRatio))

	slots := m.Slots()
	assert.True(t, slots[0].Weight.Equal(decimal.NewFromInt(1)))
	assert.True(t, slots[1].Weight.Equal(decimal.NewFromInt(1)))
}

func TestModel_PercentOverflowRejected(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI")
	require.NoError(t, m.SetMode(ModePercentage))

	// conversion left 50/50; free up budget before raising slot 0
	require.NoError(t, m.SetSlotWeight(1, "0"))
	require.NoError(t, m.SetSlotWeight(0, "60"))

	err := m.SetSlotWeight(1, "50")
	require.ErrorIs(t, err, ErrPercentOverflow)

	// rejected edit leaves the model unchanged
	assert.True(t, m.Slots()[1].Weight.IsZero())

	require.NoError(t, m.SetSlotWeight(1, "40"))
	assert.True(t, percentSum(m).Equal(decimal.NewFromInt(100)))
}

func TestModel_TokenAssignmentRespectsBudget(t *testing.T) {
	m := New()
	require.NoError(t, m.SetMode(ModePercentage))
	require.True(t, m.AddSlot())

	// weights typed before any token is chosen
	require.NoError(t, m.SetSlotWeight(0, "70"))
	require.NoError(t, m.SetSlotWeight(1, "40"))

	// assigning the second token would take the defined sum to 110
	require.NoError(t, m.SetSlotToken(0, "USDC"))
	err := m.SetSlotToken(1, "DAI")
	require.ErrorIs(t, err, ErrPercentOverflow)
	assert.Equal(t, "", m.Slots()[1].Token)
}

func TestModel_NegativeAndMalformedWeights(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC")

	require.ErrorIs(t, m.SetSlotWeight(0, "-1"), ErrNegativeWeight)
	require.ErrorIs(t, m.SetSlotWeight(0, "abc"), ErrBadWeight)
	require.ErrorIs(t, m.SetSlotWeight(5, "1"), ErrSlotIndex)
	assert.False(t, m.HasCustomWeights())
}

func TestModel_DuplicateTokenRejected(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC")
	require.True(t, m.AddSlot())

	err := m.SetSlotToken(1, "USDC")
	require.ErrorIs(t, err, ErrDuplicateToken)
}

func TestModel_AddSlotLimit(t *testing.T) {
	m := New()
	assert.True(t, m.AddSlot())
	assert.True(t, m.AddSlot())
	assert.True(t, m.AddSlot())
	assert.False(t, m.AddSlot())
	assert.Len(t, m.Slots(), 4)
}

func TestModel_RemoveSlot(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI")

	require.NoError(t, m.RemoveSlot(0))
	slots := m.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, "DAI", slots[0].Token)

	// last slot clears instead of disappearing
	require.NoError(t, m.RemoveSlot(0))
	slots = m.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, "", slots[0].Token)
	assert.False(t, m.HasCustomWeights())

	require.ErrorIs(t, m.RemoveSlot(3), ErrSlotIndex)
}

func TestModel_ClearToken(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI")

	m.ClearToken("USDC")
	slots := m.Slots()
	assert.Equal(t, "", slots[0].Token)
	assert.Equal(t, "DAI", slots[1].Token)
}

func TestModel_Reset(t *testing.T) {
	m := New()
	setTokens(t, m, "USDC", "DAI")
	require.NoError(t, m.SetSlotWeight(0, "3"))

	m.Reset()
	assert.Len(t, m.Slots(), 1)
	assert.Equal(t, 0, m.ActiveCount())
	assert.False(t, m.HasCustomWeights())
	assert.Equal(t, ModeRatio, m.Mode())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("ratio")
	require.NoError(t, err)
	assert.Equal(t, ModeRatio, mode)

	mode, err = ParseMode("percentage")
	require.NoError(t, err)
	assert.Equal(t, ModePercentage, mode)

	_, err = ParseMode("split")
	require.ErrorIs(t, err, ErrBadMode)
}
