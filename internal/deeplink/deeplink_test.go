package deeplink

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiswap/internal/allocation"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	l := Link{
		SellToken:  "ETH",
		SellAmount: decimal.RequireFromString("1.5"),
		Mode:       allocation.ModeRatio,
		Tokens:     []string{"USDC", "DAI"},
		Weights:    []string{"1", "3"},
	}

	decoded, err := Decode(Encode(l))
	require.NoError(t, err)

	assert.Equal(t, l.SellToken, decoded.SellToken)
	assert.True(t, decoded.SellAmount.Equal(l.SellAmount))
	assert.Equal(t, l.Mode, decoded.Mode)
	assert.Equal(t, l.Tokens, decoded.Tokens)
	assert.Equal(t, l.Weights, decoded.Weights)
}

func TestDecode_LeadingQuestionMark(t *testing.T) {
	l := Link{
		SellToken: "ETH",
		Mode:      allocation.ModePercentage,
		Tokens:    []string{"USDC"},
		Weights:   []string{"100"},
	}

	decoded, err := Decode("?" + Encode(l))
	require.NoError(t, err)
	assert.Equal(t, "USDC", decoded.Tokens[0])
}

func TestDecode_PreservesEmptyPlaceholders(t *testing.T) {
	l := Link{
		SellToken: "ETH",
		Mode:      allocation.ModeRatio,
		Tokens:    []string{"USDC", "", "DAI"},
		Weights:   []string{"1", "1", "2"},
	}

	decoded, err := Decode(Encode(l))
	require.NoError(t, err)
	assert.Equal(t, []string{"USDC", "", "DAI"}, decoded.Tokens)
}

func TestDecode_Validation(t *testing.T) {
	valid := Encode(Link{
		SellToken: "ETH",
		Mode:      allocation.ModeRatio,
		Tokens:    []string{"USDC"},
		Weights:   []string{"1"},
	})

	cases := []struct {
		name string
		raw  string
	}{
		{"bad mode", "sell=ETH&mode=split&out=USDC&weights=1"},
		{"no slots", "sell=ETH&mode=ratio&out=&weights="},
		{"too many slots", "sell=ETH&mode=ratio&out=A,B,C,D,E&weights=1,1,1,1,1"},
		{"count mismatch", "sell=ETH&mode=ratio&out=USDC,DAI&weights=1"},
		{"negative amount", "sell=ETH&amount=-1&mode=ratio&out=USDC&weights=1"},
		{"malformed amount", "sell=ETH&amount=abc&mode=ratio&out=USDC&weights=1"},
		{"malformed query", "sell=%zz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.raw)
			assert.Error(t, err)
		})
	}

	_, err := Decode(valid)
	assert.NoError(t, err)
}

func TestFromModel_Apply_RoundTrip(t *testing.T) {
	m := allocation.New()
	require.NoError(t, m.SetSlotToken(0, "USDC"))
	require.True(t, m.AddSlot())
	require.NoError(t, m.SetSlotToken(1, "DAI"))
	require.NoError(t, m.SetSlotWeight(0, "2"))
	require.NoError(t, m.SetSlotWeight(1, "6"))

	l := FromModel("ETH", decimal.NewFromInt(2), m)
	encoded := Encode(l)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	restored := allocation.New()
	require.NoError(t, decoded.Apply(restored))

	// the replayed model derives the same percentages as the original
	want := m.DerivedPercentages()
	got := restored.DerivedPercentages()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, got[i].Equal(want[i]), "slot %d: want %s got %s", i, want[i], got[i])
	}
	assert.Equal(t, m.Mode(), restored.Mode())
}

func TestApply_ReplaysPercentageMode(t *testing.T) {
	m := allocation.New()
	require.NoError(t, m.SetMode(allocation.ModePercentage))
	require.NoError(t, m.SetSlotToken(0, "USDC"))
	require.True(t, m.AddSlot())
	require.NoError(t, m.SetSlotToken(1, "WBTC"))
	require.NoError(t, m.SetSlotWeight(1, "0"))
	require.NoError(t, m.SetSlotWeight(0, "60"))
	require.NoError(t, m.SetSlotWeight(1, "40"))

	decoded, err := Decode(Encode(FromModel("ETH", decimal.Zero, m)))
	require.NoError(t, err)

	restored := allocation.New()
	require.NoError(t, decoded.Apply(restored))

	slots := restored.Slots()
	assert.True(t, slots[0].Weight.Equal(decimal.NewFromInt(60)))
	assert.True(t, slots[1].Weight.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, allocation.ModePercentage, restored.Mode())
}
