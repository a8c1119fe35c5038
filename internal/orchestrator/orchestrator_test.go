package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiswap/internal/allocation"
	"multiswap/internal/chain"
	"multiswap/internal/registry"
	"multiswap/internal/txparams"
)

// fakeChain scripts allowance, submission and confirmation outcomes. The
// started/release channel pairs, when set, park the call mid-flight so a test
// can act while a submission is in progress.
type fakeChain struct {
	allowance    *big.Int
	allowanceErr error
	approveErr   error
	submitErr    error
	confirmErr   error

	submitStarted  chan struct{}
	submitRelease  chan struct{}
	confirmStarted chan struct{}
	confirmRelease chan struct{}

	approveCalls int
	submitCalls  int
	lastParams   *txparams.Params
}

func (f *fakeChain) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if f.allowanceErr != nil {
		return nil, f.allowanceErr
	}
	if f.allowance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	f.approveCalls++
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	f.allowance = new(big.Int).Set(amount)
	return common.HexToHash("0xaa"), nil
}

func (f *fakeChain) SubmitSwap(ctx context.Context, contract common.Address, params *txparams.Params) (common.Hash, error) {
	f.submitCalls++
	f.lastParams = params
	if f.submitStarted != nil {
		f.submitStarted <- struct{}{}
		<-f.submitRelease
	}
	if f.submitErr != nil {
		return common.Hash{}, f.submitErr
	}
	return common.HexToHash("0xbb"), nil
}

func (f *fakeChain) AwaitConfirmation(ctx context.Context, tx common.Hash) (*chain.Receipt, error) {
	if f.confirmStarted != nil {
		f.confirmStarted <- struct{}{}
		<-f.confirmRelease
	}
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &chain.Receipt{TxHash: tx, BlockNumber: 123, GasUsed: 90_000, Success: true}, nil
}

// fakeBalances is a fixed balance table that records refresh calls.
type fakeBalances struct {
	table     map[string]decimal.Decimal
	refreshed [][]string
}

func (f *fakeBalances) Get(token string) (decimal.Decimal, bool) {
	b, ok := f.table[token]
	return b, ok
}

func (f *fakeBalances) Refresh(ctx context.Context, tokens []string) error {
	f.refreshed = append(f.refreshed, tokens)
	return nil
}

func testRequest(t *testing.T, sellToken string, amount string, outputs ...string) Request {
	t.Helper()
	m := allocation.New()
	for i, tok := range outputs {
		if i > 0 {
			require.True(t, m.AddSlot())
		}
		require.NoError(t, m.SetSlotToken(i, tok))
	}
	return Request{
		SellToken:  sellToken,
		SellAmount: decimal.RequireFromString(amount),
		Model:      m,
		Owner:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
	}
}

func newTestOrchestrator(fc *fakeChain, fb *fakeBalances) (*Orchestrator, *[]State) {
	reg := registry.Mainnet()
	var transitions []State
	o := New(Config{
		Chain:    fc,
		Registry: reg,
		Builder:  txparams.NewBuilder(reg),
		Balances: fb,
		Contract: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		OnState:  func(s State) { transitions = append(transitions, s) },
	})
	return o, &transitions
}

func TestSubmit_NativeSkipsApproval(t *testing.T) {
	fc := &fakeChain{}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(5)}}
	o, transitions := newTestOrchestrator(fc, fb)

	res, err := o.Submit(context.Background(), testRequest(t, "ETH", "1", "USDC", "DAI"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, common.HexToHash("0xbb"), res.TxHash)
	assert.Equal(t, uint64(123), res.Receipt.BlockNumber)

	assert.Equal(t, []State{StateSubmitting, StateAwaitingConfirmation, StateSucceeded, StateIdle}, *transitions)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, txparams.ShapeNative, fc.lastParams.Shape)

	// success refreshes sell token and every output
	require.Len(t, fb.refreshed, 1)
	assert.Equal(t, []string{"ETH", "USDC", "DAI"}, fb.refreshed[0])
}

func TestSubmit_ERC20NeedsApproval(t *testing.T) {
	fc := &fakeChain{} // zero allowance
	fb := &fakeBalances{table: map[string]decimal.Decimal{"USDC": decimal.NewFromInt(500)}}
	o, transitions := newTestOrchestrator(fc, fb)

	req := testRequest(t, "USDC", "100", "DAI")
	_, err := o.Submit(context.Background(), req)
	require.ErrorIs(t, err, ErrApprovalRequired)
	assert.Equal(t, StateNeedsApproval, o.State())
	assert.Equal(t, []State{StateCheckingApproval, StateNeedsApproval}, *transitions)
	assert.Zero(t, fc.submitCalls)

	// approval grants exactly the required amount and settles on idle
	require.NoError(t, o.Approve(context.Background(), req))
	assert.Equal(t, 1, fc.approveCalls)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, 0, fc.allowance.Cmp(big.NewInt(100_000_000)))

	// resubmission sails through
	res, err := o.Submit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, fc.submitCalls)
	assert.Equal(t, txparams.ShapeERC20, fc.lastParams.Shape)
}

func TestSubmit_SufficientAllowanceGoesStraightThrough(t *testing.T) {
	fc := &fakeChain{allowance: big.NewInt(1_000_000_000)}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"USDC": decimal.NewFromInt(500)}}
	o, _ := newTestOrchestrator(fc, fb)

	_, err := o.Submit(context.Background(), testRequest(t, "USDC", "100", "DAI"))
	require.NoError(t, err)
	assert.Zero(t, fc.approveCalls)
	assert.Equal(t, 1, fc.submitCalls)
}

func TestSubmit_GuardsRunBeforeNetwork(t *testing.T) {
	fc := &fakeChain{}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(1)}}
	o, transitions := newTestOrchestrator(fc, fb)

	_, err := o.Submit(context.Background(), testRequest(t, "ETH", "0", "USDC"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = o.Submit(context.Background(), testRequest(t, "ETH", "2", "USDC"))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// unknown balance counts as insufficient
	_, err = o.Submit(context.Background(), testRequest(t, "USDC", "1", "DAI"))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Empty(t, *transitions)
	assert.Zero(t, fc.submitCalls)
}

func TestSubmit_RejectedWhileInFlight(t *testing.T) {
	fc := &fakeChain{
		submitStarted:  make(chan struct{}),
		submitRelease:  make(chan struct{}),
		confirmStarted: make(chan struct{}),
		confirmRelease: make(chan struct{}),
	}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(5)}}
	o, _ := newTestOrchestrator(fc, fb)

	req := testRequest(t, "ETH", "1", "USDC")
	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), req)
		done <- err
	}()

	// first submission is parked inside SubmitSwap
	<-fc.submitStarted
	assert.Equal(t, StateSubmitting, o.State())
	_, err := o.Submit(context.Background(), req)
	require.ErrorIs(t, err, ErrBusy)

	// and again while it waits for confirmation
	close(fc.submitRelease)
	<-fc.confirmStarted
	assert.Equal(t, StateAwaitingConfirmation, o.State())
	_, err = o.Submit(context.Background(), req)
	require.ErrorIs(t, err, ErrBusy)

	close(fc.confirmRelease)
	require.NoError(t, <-done)

	// the rejected attempts never reached the chain
	assert.Equal(t, 1, fc.submitCalls)
	assert.Equal(t, StateIdle, o.State())
}

func TestSubmit_FailureBlipsThenIdle(t *testing.T) {
	fc := &fakeChain{submitErr: errors.New("nonce too low")}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(5)}}
	o, transitions := newTestOrchestrator(fc, fb)

	_, err := o.Submit(context.Background(), testRequest(t, "ETH", "1", "USDC"))
	require.Error(t, err)

	assert.Equal(t, []State{StateSubmitting, StateFailed, StateIdle}, *transitions)
	assert.Equal(t, StateIdle, o.State())
	assert.Contains(t, o.ErrMessage(), "nonce too low")

	// a failed attempt does not block the next one
	fc.submitErr = nil
	_, err = o.Submit(context.Background(), testRequest(t, "ETH", "1", "USDC"))
	require.NoError(t, err)
	assert.Empty(t, o.ErrMessage())
}

func TestSubmit_ConfirmationFailure(t *testing.T) {
	fc := &fakeChain{confirmErr: chain.ErrTxReverted}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(5)}}
	o, _ := newTestOrchestrator(fc, fb)

	_, err := o.Submit(context.Background(), testRequest(t, "ETH", "1", "USDC"))
	require.ErrorIs(t, err, chain.ErrTxReverted)
	assert.Equal(t, StateIdle, o.State())
	assert.Empty(t, fb.refreshed)
}

func TestApprove_OnlyFromNeedsApproval(t *testing.T) {
	fc := &fakeChain{}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"USDC": decimal.NewFromInt(500)}}
	o, _ := newTestOrchestrator(fc, fb)

	err := o.Approve(context.Background(), testRequest(t, "USDC", "100", "DAI"))
	require.ErrorIs(t, err, ErrNotAwaitingApproval)
	assert.Zero(t, fc.approveCalls)
}

func TestApprove_FailureStaysInNeedsApproval(t *testing.T) {
	fc := &fakeChain{approveErr: errors.New("rejected in wallet")}
	fb := &fakeBalances{table: map[string]decimal.Decimal{"USDC": decimal.NewFromInt(500)}}
	o, _ := newTestOrchestrator(fc, fb)

	req := testRequest(t, "USDC", "100", "DAI")
	_, err := o.Submit(context.Background(), req)
	require.ErrorIs(t, err, ErrApprovalRequired)

	err = o.Approve(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, StateNeedsApproval, o.State())

	// second attempt succeeds once the wallet cooperates
	fc.approveErr = nil
	require.NoError(t, o.Approve(context.Background(), req))
	assert.Equal(t, StateIdle, o.State())
}

func TestCheckApproval_Native(t *testing.T) {
	fc := &fakeChain{}
	fb := &fakeBalances{table: map[string]decimal.Decimal{}}
	o, _ := newTestOrchestrator(fc, fb)

	approval, err := o.CheckApproval(context.Background(), testRequest(t, "ETH", "1", "USDC"))
	require.NoError(t, err)
	assert.True(t, approval.IsSufficient)
}
