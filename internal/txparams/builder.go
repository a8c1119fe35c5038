package txparams

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"multiswap/internal/allocation"
	"multiswap/internal/constants"
	"multiswap/internal/registry"
	"multiswap/internal/simulate"
)

var (
	hundred   = decimal.NewFromInt(constants.PercentTotal)
	sumSlack  = decimal.RequireFromString("0.01")
	bpsDenom  = big.NewInt(10000)
	floorMin  = int64(1)
	zeroCheck = new(big.Int)
)

// Builder compiles the current sell side and allocation into chain call
// parameters. It reads the same derived percentages the simulator reads, so
// displayed estimates and submitted amounts cannot diverge.
type Builder struct {
	reg *registry.Registry
	now func() time.Time
}

func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{reg: reg, now: time.Now}
}

// Build produces a fresh Params for one submission attempt. deadline <= 0
// falls back to the standard 20 minute window.
func (b *Builder) Build(sellToken string, sellAmount decimal.Decimal, model *allocation.Model, deadline time.Duration) (*Params, error) {
	if !sellAmount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, sellAmount)
	}
	sellCfg, err := b.reg.Get(sellToken)
	if err != nil {
		return nil, err
	}

	slots := model.Slots()
	percents := model.DerivedPercentages()

	type leg struct {
		cfg     registry.TokenConfig
		percent decimal.Decimal
	}
	legs := make([]leg, 0, len(slots))
	pctSum := decimal.Zero
	for i, s := range slots {
		if s.Token == "" {
			continue
		}
		if s.Token == sellToken {
			return nil, fmt.Errorf("%w: %s", ErrSellTokenInOutputs, s.Token)
		}
		cfg, err := b.reg.Get(s.Token)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg{cfg: cfg, percent: percents[i]})
		pctSum = pctSum.Add(percents[i])
	}
	if len(legs) == 0 {
		return nil, ErrNoOutputs
	}
	if pctSum.Sub(hundred).Abs().GreaterThan(sumSlack) {
		return nil, fmt.Errorf("%w: got %s", ErrIncompleteAllocation, pctSum)
	}

	total := ToBaseUnits(sellAmount, sellCfg.Decimals)
	if total.Cmp(zeroCheck) <= 0 {
		return nil, fmt.Errorf("%w: %s is below one base unit", ErrInvalidAmount, sellAmount)
	}

	// Partition the total across legs at base-unit precision. Each leg
	// floors its share; the final leg absorbs the remainder so the vector
	// sums to the total exactly.
	totalDec := decimal.NewFromBigInt(total, 0)
	legAmounts := make([]*big.Int, len(legs))
	assigned := new(big.Int)
	for i, l := range legs {
		if i == len(legs)-1 {
			legAmounts[i] = new(big.Int).Sub(total, assigned)
			break
		}
		amt := totalDec.Mul(l.percent).Div(hundred).Floor().BigInt()
		legAmounts[i] = amt
		assigned.Add(assigned, amt)
	}

	path := make([]common.Address, 0, len(legs)+1)
	minAmounts := make([]*big.Int, len(legs))
	for i, l := range legs {
		path = append(path, l.cfg.Address)
		minAmounts[i] = big.NewInt(floorMin)
	}

	if deadline <= 0 {
		deadline = constants.SwapDeadline
	}

	p := &Params{
		MinAmounts: minAmounts,
		Deadline:   b.now().Add(deadline).Unix(),
	}

	switch {
	case b.reg.IsNative(sellToken):
		p.Shape = ShapeNative
		p.Value = new(big.Int).Set(total)
		p.SellAmounts = append([]*big.Int{new(big.Int).Set(total)}, legAmounts...)
		p.Path = append([]common.Address{b.reg.WrappedNative().Address}, path...)
	case b.reg.IsWrappedNative(sellToken):
		p.Shape = ShapeWrappedNative
		p.SellAmounts = append([]*big.Int{new(big.Int).Set(total)}, legAmounts...)
		p.Path = append([]common.Address{b.reg.WrappedNative().Address}, path...)
	default:
		p.Shape = ShapeERC20
		p.TokenIn = sellCfg.Address
		p.TotalSellAmount = new(big.Int).Set(total)
		p.SellAmounts = legAmounts
		p.Path = append([]common.Address{sellCfg.Address}, path...)
	}

	return p, nil
}

// ApplyMinimums upgrades the floor minimums to slippage-derived ones using
// the simulator's estimates. Unpriced legs keep the floor. estimates must be
// the per-leg outputs in path order.
func (b *Builder) ApplyMinimums(p *Params, estimates []simulate.Output, slippageBps uint16) error {
	if len(estimates) != len(p.MinAmounts) {
		return fmt.Errorf("%w: %d estimates for %d legs", ErrEstimateMismatch, len(estimates), len(p.MinAmounts))
	}
	if slippageBps >= 10000 {
		return nil
	}
	keep := big.NewInt(int64(10000 - slippageBps))

	for i, est := range estimates {
		if est.Unpriced || !est.Amount.IsPositive() {
			continue
		}
		cfg, err := b.reg.Get(est.Token)
		if err != nil {
			return err
		}
		raw := ToBaseUnits(est.Amount, cfg.Decimals)
		raw.Mul(raw, keep)
		raw.Div(raw, bpsDenom)
		if raw.Cmp(p.MinAmounts[i]) > 0 {
			p.MinAmounts[i] = raw
		}
	}
	return nil
}

// ToBaseUnits converts a human-unit amount to integer base units at the
// token's decimal precision, truncating extra precision.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Floor().BigInt()
}
