package txparams

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiswap/internal/allocation"
	"multiswap/internal/registry"
	"multiswap/internal/simulate"
)

func testModel(t *testing.T, tokens ...string) *allocation.Model {
	t.Helper()
	m := allocation.New()
	for i, tok := range tokens {
		if i > 0 {
			require.True(t, m.AddSlot())
		}
		require.NoError(t, m.SetSlotToken(i, tok))
	}
	return m
}

func fixedBuilder(t *testing.T) (*Builder, time.Time) {
	t.Helper()
	b := NewBuilder(registry.Mainnet())
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return at }
	return b, at
}

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func TestBuilder_NativeShape(t *testing.T) {
	b, at := fixedBuilder(t)
	m := testModel(t, "USDC", "DAI")

	p, err := b.Build("ETH", decimal.NewFromInt(1), m, 0)
	require.NoError(t, err)

	assert.Equal(t, ShapeNative, p.Shape)

	oneEth := bigFromString(t, "1000000000000000000")
	halfEth := bigFromString(t, "500000000000000000")
	assert.Equal(t, 0, p.Value.Cmp(oneEth))

	// amounts vector leads with the total for native input
	require.Len(t, p.SellAmounts, 3)
	assert.Equal(t, 0, p.SellAmounts[0].Cmp(oneEth))
	assert.Equal(t, 0, p.SellAmounts[1].Cmp(halfEth))
	assert.Equal(t, 0, p.SellAmounts[2].Cmp(halfEth))

	// path routes through the wrapped native token
	reg := registry.Mainnet()
	require.Len(t, p.Path, 3)
	assert.Equal(t, reg.WrappedNative().Address, p.Path[0])

	assert.Nil(t, p.TotalSellAmount)
	assert.Equal(t, at.Add(20*time.Minute).Unix(), p.Deadline)
}

func TestBuilder_WrappedNativeShape(t *testing.T) {
	b, _ := fixedBuilder(t)
	m := testModel(t, "USDC")

	p, err := b.Build("WETH", decimal.RequireFromString("0.5"), m, 0)
	require.NoError(t, err)

	assert.Equal(t, ShapeWrappedNative, p.Shape)
	assert.Nil(t, p.Value)

	halfEth := bigFromString(t, "500000000000000000")
	require.Len(t, p.SellAmounts, 2)
	assert.Equal(t, 0, p.SellAmounts[0].Cmp(halfEth))
	assert.Equal(t, 0, p.SellAmounts[1].Cmp(halfEth))
}

func TestBuilder_ERC20Shape(t *testing.T) {
	b, _ := fixedBuilder(t)
	m := testModel(t, "WBTC", "DAI")

	p, err := b.Build("USDC", decimal.NewFromInt(100), m, 0)
	require.NoError(t, err)

	assert.Equal(t, ShapeERC20, p.Shape)
	assert.Nil(t, p.Value)

	reg := registry.Mainnet()
	usdc, err := reg.Get("USDC")
	require.NoError(t, err)
	assert.Equal(t, usdc.Address, p.TokenIn)
	assert.Equal(t, usdc.Address, p.Path[0])

	total := big.NewInt(100_000_000) // 100 USDC at 6 decimals
	assert.Equal(t, 0, p.TotalSellAmount.Cmp(total))

	// per-leg amounts only, no leading total
	require.Len(t, p.SellAmounts, 2)
	sum := new(big.Int).Add(p.SellAmounts[0], p.SellAmounts[1])
	assert.Equal(t, 0, sum.Cmp(total))
}

func TestBuilder_LegAmountsSumExactly(t *testing.T) {
	b, _ := fixedBuilder(t)
	m := testModel(t, "USDC", "DAI", "WBTC")

	// equal three-way split cannot divide evenly; last leg absorbs the rest
	p, err := b.Build("ETH", decimal.NewFromInt(1), m, 0)
	require.NoError(t, err)

	total := bigFromString(t, "1000000000000000000")
	sum := new(big.Int)
	for _, amt := range p.LegAmounts() {
		assert.Equal(t, 1, amt.Sign())
		sum.Add(sum, amt)
	}
	assert.Equal(t, 0, sum.Cmp(total))
}

func TestBuilder_EmptySlotsExcluded(t *testing.T) {
	b, _ := fixedBuilder(t)
	m := testModel(t, "USDC")
	require.True(t, m.AddSlot()) // left empty

	p, err := b.Build("ETH", decimal.NewFromInt(1), m, 0)
	require.NoError(t, err)

	require.Len(t, p.LegAmounts(), 1)
	require.Len(t, p.Path, 2)
	require.Len(t, p.MinAmounts, 1)
}

func TestBuilder_Validation(t *testing.T) {
	b, _ := fixedBuilder(t)

	_, err := b.Build("ETH", decimal.Zero, testModel(t, "USDC"), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = b.Build("ETH", decimal.NewFromInt(-1), testModel(t, "USDC"), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = b.Build("ETH", decimal.NewFromInt(1), allocation.New(), 0)
	assert.ErrorIs(t, err, ErrNoOutputs)

	_, err = b.Build("USDC", decimal.NewFromInt(1), testModel(t, "USDC"), 0)
	assert.ErrorIs(t, err, ErrSellTokenInOutputs)

	_, err = b.Build("DOGE", decimal.NewFromInt(1), testModel(t, "USDC"), 0)
	assert.ErrorIs(t, err, registry.ErrUnknownToken)
}

func TestBuilder_IncompleteAllocationRejected(t *testing.T) {
	b, _ := fixedBuilder(t)

	m := testModel(t, "USDC", "DAI")
	require.NoError(t, m.SetMode(allocation.ModePercentage))
	require.NoError(t, m.SetSlotWeight(1, "0"))
	require.NoError(t, m.SetSlotWeight(0, "70"))

	// 70 + 0 leaves 30% of the sell amount unassigned
	_, err := b.Build("ETH", decimal.NewFromInt(1), m, 0)
	assert.ErrorIs(t, err, ErrIncompleteAllocation)
}

func TestBuilder_DustAmountRejected(t *testing.T) {
	b, _ := fixedBuilder(t)
	m := testModel(t, "DAI")

	// below one base unit of USDC (6 decimals)
	_, err := b.Build("USDC", decimal.RequireFromString("0.0000001"), m, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBuilder_CustomDeadline(t *testing.T) {
	b, at := fixedBuilder(t)
	m := testModel(t, "USDC")

	p, err := b.Build("ETH", decimal.NewFromInt(1), m, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, at.Add(5*time.Minute).Unix(), p.Deadline)
}

func TestBuilder_ApplyMinimums(t *testing.T) {
	b, _ := fixedBuilder(t)
	m := testModel(t, "USDC", "DAI")

	p, err := b.Build("ETH", decimal.NewFromInt(1), m, 0)
	require.NoError(t, err)

	estimates := []simulate.Output{
		{SlotIndex: 0, Token: "USDC", Amount: decimal.NewFromInt(1000)},
		{SlotIndex: 1, Token: "DAI", Unpriced: true},
	}
	require.NoError(t, b.ApplyMinimums(p, estimates, 100)) // 1% slippage

	// 1000 USDC -> 990 USDC floor at 6 decimals
	assert.Equal(t, 0, p.MinAmounts[0].Cmp(big.NewInt(990_000_000)))
	// unpriced leg keeps the one-base-unit floor
	assert.Equal(t, 0, p.MinAmounts[1].Cmp(big.NewInt(1)))
}

func TestBuilder_ApplyMinimumsMismatch(t *testing.T) {
	b, _ := fixedBuilder(t)
	m := testModel(t, "USDC", "DAI")

	p, err := b.Build("ETH", decimal.NewFromInt(1), m, 0)
	require.NoError(t, err)

	err = b.ApplyMinimums(p, []simulate.Output{{Token: "USDC"}}, 100)
	assert.ErrorIs(t, err, ErrEstimateMismatch)
}

func TestToBaseUnits(t *testing.T) {
	assert.Equal(t, 0, ToBaseUnits(decimal.RequireFromString("1.5"), 6).Cmp(big.NewInt(1_500_000)))
	assert.Equal(t, 0, ToBaseUnits(decimal.RequireFromString("0.0000019"), 6).Cmp(big.NewInt(1)))
	assert.Equal(t, 0, ToBaseUnits(decimal.Zero, 18).Cmp(big.NewInt(0)))
}
