// Package simulate turns a sell amount and a derived allocation into
// estimated per-slot outputs. It is pure: no I/O, no clocks, no state.
package simulate

import (
	"github.com/shopspring/decimal"

	"multiswap/internal/constants"
)

// FeeFactor is the post-fee multiplier shared with the parameter builder.
var FeeFactor = decimal.RequireFromString(constants.FeeFactorString)

var hundred = decimal.NewFromInt(constants.PercentTotal)

// Leg is one active output slot with its derived percentage.
type Leg struct {
	SlotIndex int
	Token     string
	Percent   decimal.Decimal
}

// Output is the estimated receive amount for one slot. Unpriced marks a slot
// whose estimate degraded to zero because either the sell token or the
// slot's token has no usable price; it is informational, not an error.
type Output struct {
	SlotIndex int             `json:"slot_index"`
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	UsdValue  decimal.Decimal `json:"usd_value"`
	Unpriced  bool            `json:"unpriced"`
}

// PriceFn resolves a token symbol to its current USD price. ok is false when
// no usable record exists.
type PriceFn func(token string) (price decimal.Decimal, ok bool)

// Estimate computes post-fee receive amounts per leg.
//
// An unpriced sell token zeroes every leg; an unpriced output token zeroes
// only its own leg. Neither blocks the remaining legs.
func Estimate(sellToken string, sellAmount decimal.Decimal, legs []Leg, price PriceFn) []Output {
	out := make([]Output, len(legs))

	sellPrice, sellPriced := price(sellToken)
	inputValueUsd := decimal.Zero
	if sellPriced {
		inputValueUsd = sellAmount.Mul(sellPrice)
	}

	for i, leg := range legs {
		out[i] = Output{SlotIndex: leg.SlotIndex, Token: leg.Token}

		if !sellPriced {
			out[i].Unpriced = true
			continue
		}

		outPrice, ok := price(leg.Token)
		if !ok || outPrice.IsZero() {
			out[i].Unpriced = true
			continue
		}

		legValueUsd := inputValueUsd.Mul(leg.Percent).Div(hundred)
		out[i].Amount = legValueUsd.Div(outPrice).Mul(FeeFactor)
		out[i].UsdValue = legValueUsd.Mul(FeeFactor)
	}

	return out
}
