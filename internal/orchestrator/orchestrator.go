// Package orchestrator sequences check allowance -> approve -> submit ->
// await confirmation -> refresh balances for one session.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"multiswap/internal/allocation"
	"multiswap/internal/chain"
	"multiswap/internal/history"
	"multiswap/internal/registry"
	"multiswap/internal/simulate"
	"multiswap/internal/txparams"
)

// State is the orchestrator's current phase, surfaced to the UI.
type State string

const (
	StateIdle                 State = "idle"
	StateCheckingApproval     State = "checking_approval"
	StateNeedsApproval        State = "needs_approval"
	StateApproving            State = "approving"
	StateSubmitting           State = "submitting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
)

// inFlight reports whether s blocks a new submission.
func (s State) inFlight() bool {
	switch s {
	case StateCheckingApproval, StateApproving, StateSubmitting, StateAwaitingConfirmation:
		return true
	}
	return false
}

// Balances is the locally tracked balance view the pre-submission guard and
// the post-success refresh run against.
type Balances interface {
	Get(token string) (decimal.Decimal, bool)
	Refresh(ctx context.Context, tokens []string) error
}

// ApprovalState describes the allowance precondition for the current sell
// side. Recomputed whenever sell token, sell amount or allowance changes.
type ApprovalState struct {
	Token          string
	Spender        common.Address
	RequiredAmount *big.Int
	IsSufficient   bool
}

// Request is everything a submission attempt needs, captured at submit time
// so parameters always reflect the latest allocation.
type Request struct {
	SellToken  string
	SellAmount decimal.Decimal
	Model      *allocation.Model
	Owner      common.Address
	// Estimates, when present together with SlippageBps on the
	// orchestrator, upgrade the builder's floor minimums.
	Estimates []simulate.Output
}

// Result is the outcome of a confirmed submission.
type Result struct {
	TxHash  common.Hash
	Receipt *chain.Receipt
}

// Config wires an orchestrator.
type Config struct {
	Chain       chain.Client
	Registry    *registry.Registry
	Builder     *txparams.Builder
	Balances    Balances
	Contract    common.Address
	History     *history.Store // optional
	SlippageBps uint16         // 0 keeps the floor minimums
	Logger      *logrus.Logger
	// OnState, when set, observes every transition including the terminal
	// Succeeded/Failed blips before the return to Idle.
	OnState func(State)
}

// Orchestrator is a small state machine; one per session. Handlers call in
// from separate server goroutines, so the mutex makes the in-flight check and
// the transition into an in-flight state a single step. The mutex is never
// held across a network call: snapshots reading State and ErrMessage stay
// responsive while a submission is confirming.
type Orchestrator struct {
	cfg Config

	mu      sync.Mutex
	state   State
	errMsg  string
	lastTx  common.Hash
	pending *ApprovalState
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Orchestrator{cfg: cfg, state: StateIdle}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) ErrMessage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMsg
}

func (o *Orchestrator) LastTx() common.Hash {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastTx
}

// setState records a transition inside an already claimed sequence. The
// observer fires outside the lock.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	if o.cfg.OnState != nil {
		o.cfg.OnState(s)
	}
}

// begin claims the single submission slot by moving from a settled state into
// s. A caller that finds another sequence in flight gets ErrBusy and has
// touched nothing.
func (o *Orchestrator) begin(s State) error {
	o.mu.Lock()
	if o.state.inFlight() {
		o.mu.Unlock()
		return ErrBusy
	}
	o.errMsg = ""
	o.state = s
	o.mu.Unlock()
	if o.cfg.OnState != nil {
		o.cfg.OnState(s)
	}
	return nil
}

// fail records the error, blips Failed and settles back on Idle. Nothing is
// retried automatically.
func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	o.errMsg = err.Error()
	o.mu.Unlock()
	o.setState(StateFailed)
	o.setState(StateIdle)
}

// stall records the error and falls back to NeedsApproval so the approval can
// be retried.
func (o *Orchestrator) stall(err error) {
	o.mu.Lock()
	o.errMsg = err.Error()
	o.mu.Unlock()
	o.setState(StateNeedsApproval)
}

// CheckApproval computes the current approval precondition without changing
// state. Native-asset input never needs approval.
func (o *Orchestrator) CheckApproval(ctx context.Context, req Request) (*ApprovalState, error) {
	if o.cfg.Registry.IsNative(req.SellToken) {
		return &ApprovalState{Token: req.SellToken, Spender: o.cfg.Contract, RequiredAmount: new(big.Int), IsSufficient: true}, nil
	}

	cfg, err := o.cfg.Registry.Get(req.SellToken)
	if err != nil {
		return nil, err
	}
	required := txparams.ToBaseUnits(req.SellAmount, cfg.Decimals)

	allowance, err := o.cfg.Chain.GetAllowance(ctx, cfg.Address, req.Owner, o.cfg.Contract)
	if err != nil {
		return nil, fmt.Errorf("allowance check: %w", err)
	}

	return &ApprovalState{
		Token:          req.SellToken,
		Spender:        o.cfg.Contract,
		RequiredAmount: required,
		IsSufficient:   allowance.Cmp(required) >= 0,
	}, nil
}

// Submit runs the full execution sequence. It returns ErrApprovalRequired
// (state NeedsApproval) when the allowance is short; the caller then drives
// Approve and submits again.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	if o.cfg.Chain == nil {
		return nil, ErrNoChainClient
	}

	if req.SellAmount.IsNegative() || req.SellAmount.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.SellAmount)
	}
	bal, ok := o.cfg.Balances.Get(req.SellToken)
	if !ok || bal.LessThan(req.SellAmount) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, req.SellAmount)
	}

	// allowance has no meaning for the native asset
	if !o.cfg.Registry.IsNative(req.SellToken) {
		if err := o.begin(StateCheckingApproval); err != nil {
			return nil, err
		}
		approval, err := o.CheckApproval(ctx, req)
		if err != nil {
			o.fail(err)
			return nil, err
		}
		if !approval.IsSufficient {
			o.mu.Lock()
			o.pending = approval
			o.mu.Unlock()
			o.setState(StateNeedsApproval)
			return nil, ErrApprovalRequired
		}
		o.setState(StateSubmitting)
	} else if err := o.begin(StateSubmitting); err != nil {
		return nil, err
	}

	// built immediately before sending so the parameters reflect the
	// latest allocation and balances
	params, err := o.cfg.Builder.Build(req.SellToken, req.SellAmount, req.Model, 0)
	if err != nil {
		o.fail(err)
		return nil, err
	}
	if o.cfg.SlippageBps > 0 && len(req.Estimates) == len(params.MinAmounts) {
		if err := o.cfg.Builder.ApplyMinimums(params, req.Estimates, o.cfg.SlippageBps); err != nil {
			o.fail(err)
			return nil, err
		}
	}

	hash, err := o.cfg.Chain.SubmitSwap(ctx, o.cfg.Contract, params)
	if err != nil {
		o.fail(err)
		return nil, err
	}
	o.mu.Lock()
	o.lastTx = hash
	o.mu.Unlock()

	o.setState(StateAwaitingConfirmation)
	receipt, err := o.cfg.Chain.AwaitConfirmation(ctx, hash)
	if err != nil {
		o.fail(err)
		return nil, err
	}

	o.setState(StateSucceeded)
	o.afterSuccess(ctx, req, params, hash)
	o.setState(StateIdle)

	return &Result{TxHash: hash, Receipt: receipt}, nil
}

// Approve issues the allowance-setting transaction recorded by the last
// NeedsApproval stop and re-checks the allowance afterwards.
func (o *Orchestrator) Approve(ctx context.Context, req Request) error {
	cfg, err := o.cfg.Registry.Get(req.SellToken)
	if err != nil {
		return err
	}

	// claim NeedsApproval -> Approving in one step so two approvals for the
	// same stop cannot both reach the wallet
	o.mu.Lock()
	if o.state != StateNeedsApproval || o.pending == nil {
		o.mu.Unlock()
		return ErrNotAwaitingApproval
	}
	required := o.pending.RequiredAmount
	o.state = StateApproving
	o.mu.Unlock()
	if o.cfg.OnState != nil {
		o.cfg.OnState(StateApproving)
	}

	hash, err := o.cfg.Chain.Approve(ctx, cfg.Address, o.cfg.Contract, required)
	if err != nil {
		o.stall(err)
		return fmt.Errorf("approval failed: %w", err)
	}
	if _, err := o.cfg.Chain.AwaitConfirmation(ctx, hash); err != nil {
		o.stall(err)
		return fmt.Errorf("approval failed: %w", err)
	}

	o.setState(StateCheckingApproval)
	approval, err := o.CheckApproval(ctx, req)
	if err != nil {
		o.stall(err)
		return err
	}
	if !approval.IsSufficient {
		o.mu.Lock()
		o.pending = approval
		o.mu.Unlock()
		o.setState(StateNeedsApproval)
		return ErrApprovalRequired
	}

	o.mu.Lock()
	o.pending = nil
	o.errMsg = ""
	o.mu.Unlock()
	o.setState(StateIdle)
	return nil
}

// afterSuccess refreshes tracked balances and appends the swap to the
// history sink. Both are best-effort.
func (o *Orchestrator) afterSuccess(ctx context.Context, req Request, params *txparams.Params, hash common.Hash) {
	tokens := []string{req.SellToken}
	var legs []history.Leg
	legIdx := 0
	legAmounts := params.LegAmounts()

	for _, s := range req.Model.Slots() {
		if s.Token == "" {
			continue
		}
		tokens = append(tokens, s.Token)
		leg := history.Leg{OutToken: s.Token, LegAmount: legAmounts[legIdx].String()}
		if legIdx < len(req.Estimates) {
			leg.EstimatedOut = req.Estimates[legIdx].Amount.String()
		}
		legs = append(legs, leg)
		legIdx++
	}

	if err := o.cfg.Balances.Refresh(ctx, tokens); err != nil {
		o.cfg.Logger.WithError(err).Warn("post-swap balance refresh failed")
	}

	if o.cfg.History != nil {
		ev := &history.SwapEvent{
			TxHash:     hash.Hex(),
			Wallet:     req.Owner.Hex(),
			SellToken:  req.SellToken,
			SellAmount: req.SellAmount.String(),
			Shape:      string(params.Shape),
			At:         time.Now().UTC(),
			Legs:       legs,
		}
		if err := o.cfg.History.InsertSwap(ctx, ev); err != nil {
			o.cfg.Logger.WithError(err).Warn("history insert failed")
		}
	}
}
