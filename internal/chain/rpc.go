package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"multiswap/internal/constants"
	"multiswap/internal/registry"
	"multiswap/internal/txparams"
)

const erc20ABI = `[
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const routerABI = `[
	{"name":"swapEthForTokens","type":"function","stateMutability":"payable","inputs":[{"name":"amounts","type":"uint256[]"},{"name":"path","type":"address[]"},{"name":"amountsOutMin","type":"uint256[]"},{"name":"deadline","type":"uint256"}],"outputs":[]},
	{"name":"swapWethForTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amounts","type":"uint256[]"},{"name":"path","type":"address[]"},{"name":"amountsOutMin","type":"uint256[]"},{"name":"deadline","type":"uint256"}],"outputs":[]},
	{"name":"swapTokenForTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"total","type":"uint256"},{"name":"amounts","type":"uint256[]"},{"name":"path","type":"address[]"},{"name":"amountsOutMin","type":"uint256[]"},{"name":"deadline","type":"uint256"}],"outputs":[]}
]`

// fallbackGasLimit is used when gas estimation itself fails; generous enough
// for a four-leg swap.
const fallbackGasLimit = 600_000

// RPCConfig configures the node-backed client.
type RPCConfig struct {
	URL        string
	PrivateKey string // hex, optional: read-only without it
	Timeout    time.Duration
	Logger     *logrus.Logger
}

// RPCClient implements Client and BalanceProvider against an Ethereum node.
type RPCClient struct {
	ec      *ethclient.Client
	reg     *registry.Registry
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	erc20   abi.ABI
	router  abi.ABI
	logger  *logrus.Logger
}

// DialRPC connects to the node, resolves the chain id and, when a private
// key is configured, derives the sending address.
func DialRPC(ctx context.Context, cfg RPCConfig, reg *registry.Registry) (*RPCClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ec, err := ethclient.DialContext(dialCtx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial node: %w", err)
	}

	chainID, err := ec.ChainID(dialCtx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}

	erc20Parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	routerParsed, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	c := &RPCClient{
		ec:      ec,
		reg:     reg,
		chainID: chainID,
		erc20:   erc20Parsed,
		router:  routerParsed,
		logger:  cfg.Logger,
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// From returns the signing address; zero when read-only.
func (c *RPCClient) From() common.Address { return c.from }

func (c *RPCClient) Close() { c.ec.Close() }

func (c *RPCClient) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := c.erc20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}

	res, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}

	vals, err := c.erc20.Unpack("allowance", res)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	out, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("allowance: unexpected return type %T", vals[0])
	}
	return out, nil
}

func (c *RPCClient) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := c.erc20.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	return c.sendTx(ctx, token, nil, data)
}

func (c *RPCClient) SubmitSwap(ctx context.Context, contract common.Address, params *txparams.Params) (common.Hash, error) {
	deadline := new(big.Int).SetInt64(params.Deadline)

	var (
		data  []byte
		value *big.Int
		err   error
	)
	switch params.Shape {
	case txparams.ShapeNative:
		data, err = c.router.Pack("swapEthForTokens", params.SellAmounts, params.Path, params.MinAmounts, deadline)
		value = params.Value
	case txparams.ShapeWrappedNative:
		data, err = c.router.Pack("swapWethForTokens", params.SellAmounts, params.Path, params.MinAmounts, deadline)
	case txparams.ShapeERC20:
		data, err = c.router.Pack("swapTokenForTokens", params.TokenIn, params.TotalSellAmount, params.SellAmounts, params.Path, params.MinAmounts, deadline)
	default:
		return common.Hash{}, fmt.Errorf("unknown params shape %q", params.Shape)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack swap call: %w", err)
	}

	return c.sendTx(ctx, contract, value, data)
}

func (c *RPCClient) AwaitConfirmation(ctx context.Context, tx common.Hash) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(constants.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.ec.TransactionReceipt(ctx, tx)
		if err == nil {
			out := &Receipt{
				TxHash:      tx,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
			}
			if !out.Success {
				return out, fmt.Errorf("%w: %s", ErrTxReverted, tx.Hex())
			}
			return out, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt lookup: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrConfirmTimeout, tx.Hex())
		case <-ticker.C:
		}
	}
}

// GetBalance implements BalanceProvider in human units.
func (c *RPCClient) GetBalance(ctx context.Context, token string, owner common.Address) (decimal.Decimal, error) {
	cfg, err := c.reg.Get(token)
	if err != nil {
		return decimal.Zero, err
	}

	var raw *big.Int
	if c.reg.IsNative(token) {
		raw, err = c.ec.BalanceAt(ctx, owner, nil)
		if err != nil {
			return decimal.Zero, fmt.Errorf("native balance: %w", err)
		}
	} else {
		data, err := c.erc20.Pack("balanceOf", owner)
		if err != nil {
			return decimal.Zero, fmt.Errorf("pack balanceOf: %w", err)
		}
		res, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &cfg.Address, Data: data}, nil)
		if err != nil {
			return decimal.Zero, fmt.Errorf("call balanceOf: %w", err)
		}
		vals, err := c.erc20.Unpack("balanceOf", res)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unpack balanceOf: %w", err)
		}
		var ok bool
		raw, ok = vals[0].(*big.Int)
		if !ok {
			return decimal.Zero, fmt.Errorf("balanceOf: unexpected return type %T", vals[0])
		}
	}

	return decimal.NewFromBigInt(raw, -int32(cfg.Decimals)), nil
}

func (c *RPCClient) sendTx(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}

	nonce, err := c.ec.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.ec.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}

	msg := ethereum.CallMsg{From: c.from, To: &to, Value: value, Data: data}
	gasLimit, err := c.ec.EstimateGas(ctx, msg)
	if err != nil {
		c.logger.WithError(err).Debug("gas estimation failed, using fallback limit")
		gasLimit = fallbackGasLimit
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := c.ec.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}

	return signed.Hash(), nil
}
