package txparams

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Shape tags which of the three mutually exclusive parameter layouts a
// Params value carries. Selection depends only on the sell token's identity.
type Shape string

const (
	// ShapeNative sells the chain's native asset; the total rides along as
	// attached value and the amounts vector leads with it.
	ShapeNative Shape = "native"
	// ShapeWrappedNative sells the wrapped native token via ERC-20 transfer;
	// same layout as native but without attached value.
	ShapeWrappedNative Shape = "wrapped"
	// ShapeERC20 sells an arbitrary token; the sell token address and total
	// are explicit and the amounts vector holds per-leg amounts only.
	ShapeERC20 Shape = "erc20"
)

// Params is one compiled call-parameter set. Values are constructed fresh
// per submission attempt and never mutated afterwards.
type Params struct {
	Shape Shape `json:"shape"`

	// Value is the attached native value. Set only for ShapeNative.
	Value *big.Int `json:"value,omitempty"`

	// TokenIn and TotalSellAmount are set only for ShapeERC20.
	TokenIn         common.Address `json:"token_in,omitempty"`
	TotalSellAmount *big.Int       `json:"total_sell_amount,omitempty"`

	// SellAmounts leads with the total for native and wrapped-native input;
	// for ERC-20 input it holds per-leg amounts only.
	SellAmounts []*big.Int `json:"sell_amounts"`

	// Path starts with the wrapped-native address (or the sell token address
	// for ERC-20 input) followed by one address per active output slot.
	// Empty slots never appear.
	Path []common.Address `json:"path"`

	// MinAmounts is the minimum received per leg.
	MinAmounts []*big.Int `json:"min_amounts"`

	// Deadline is an epoch-seconds timestamp.
	Deadline int64 `json:"deadline"`
}

// LegAmounts returns just the per-leg portion of SellAmounts, shape-aware.
func (p *Params) LegAmounts() []*big.Int {
	if p.Shape == ShapeERC20 {
		return p.SellAmounts
	}
	return p.SellAmounts[1:]
}
