package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"multiswap/internal/txparams"
)

// Receipt is the confirmation outcome of a submitted transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// Client is the narrow chain surface the orchestrator drives. The engine
// never talks to the node any other way.
type Client interface {
	// GetAllowance reads the current ERC-20 allowance owner has granted
	// spender on token.
	GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// Approve submits an allowance-setting transaction and returns its hash.
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)

	// SubmitSwap sends the compiled multi-output swap call to contract.
	SubmitSwap(ctx context.Context, contract common.Address, params *txparams.Params) (common.Hash, error)

	// AwaitConfirmation blocks until the transaction is mined or the
	// confirmation window elapses.
	AwaitConfirmation(ctx context.Context, tx common.Hash) (*Receipt, error)
}

// BalanceProvider reads a token balance in human units for the given owner.
type BalanceProvider interface {
	GetBalance(ctx context.Context, token string, owner common.Address) (decimal.Decimal, error)
}
