package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"multiswap/internal/allocation"
	"multiswap/internal/deeplink"
	"multiswap/internal/orchestrator"
	"multiswap/internal/pricecache"
	"multiswap/internal/registry"
	"multiswap/internal/simulate"
	"multiswap/internal/txparams"
)

// Session owns one UI session's mutable state: the allocation model, the
// sell side, the price cache and the orchestrator. Handlers run on server
// goroutines, so the session serializes edits with one mutex, standing in
// for the browser's event loop. Submission state lives in the orchestrator,
// which guards itself; the session lock covers only the request capture.
type Session struct {
	ID string

	mu sync.Mutex

	log     *logrus.Logger
	reg     *registry.Registry
	prices  *pricecache.Cache
	model   *allocation.Model
	builder *txparams.Builder
	orch    *orchestrator.Orchestrator
	tracker *balanceTracker

	sellToken  string
	sellAmount decimal.Decimal
	owner      *common.Address
	warning    string
}

// Snapshot is the render-ready view of a session.
type Snapshot struct {
	ID            string            `json:"id"`
	SellToken     string            `json:"sell_token"`
	SellAmount    decimal.Decimal   `json:"sell_amount"`
	Mode          allocation.Mode   `json:"mode"`
	Slots         []SlotView        `json:"slots"`
	Percentages   []decimal.Decimal `json:"percentages"`
	Outputs       []simulate.Output `json:"outputs"`
	Connected     bool              `json:"connected"`
	Owner         string            `json:"owner,omitempty"`
	State         string            `json:"state"`
	Error         string            `json:"error,omitempty"`
	Warning       string            `json:"warning,omitempty"`
	PricesDelayed bool              `json:"prices_delayed"`
}

type SlotView struct {
	Token  string          `json:"token"`
	Weight decimal.Decimal `json:"weight"`
}

// SetSellToken changes the sell side. An output slot holding the same token
// is cleared: a token cannot be both input and output.
func (s *Session) SetSellToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.reg.Get(token); err != nil {
		return err
	}
	s.sellToken = token
	s.model.ClearToken(token)
	return nil
}

// SetSellAmount parses and stores the declared sell amount. Negative input
// is rejected and the previous value kept.
func (s *Session) SetSellAmount(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrNegativeAmount, value)
	}
	if d.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, value)
	}
	s.sellAmount = d
	return nil
}

func (s *Session) SetMode(mode allocation.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.SetMode(mode)
}

// SetSlotToken assigns an output token. Choosing the current sell token is a
// validation error, not a silent reset.
func (s *Session) SetSlotToken(index int, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != "" {
		if _, err := s.reg.Get(token); err != nil {
			return err
		}
		if token == s.sellToken {
			return fmt.Errorf("%w: %s is the sell token", allocation.ErrDuplicateToken, token)
		}
	}
	return s.model.SetSlotToken(index, token)
}

func (s *Session) SetSlotWeight(index int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.SetSlotWeight(index, value)
}

// AddSlot appends a slot; at the limit it records a user-visible warning
// instead of failing.
func (s *Session) AddSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.model.AddSlot() {
		s.warning = ErrSlotLimit.Error()
		return
	}
	s.warning = ""
}

func (s *Session) RemoveSlot(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.RemoveSlot(index)
}

// Connect attaches a wallet address and warms the balance view for the sell
// token and every active output.
func (s *Session) Connect(ctx context.Context, owner common.Address) error {
	s.mu.Lock()
	s.owner = &owner
	s.tracker.setOwner(owner)
	tokens := s.activeTokensLocked()
	s.mu.Unlock()

	return s.tracker.Refresh(ctx, tokens)
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = nil
	s.tracker.setOwner(common.Address{})
}

// Simulate recomputes estimated outputs for the current inputs. It never
// fails: unpriced tokens degrade to zero estimates with the unpriced flag.
func (s *Session) Simulate() []simulate.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulateLocked()
}

func (s *Session) simulateLocked() []simulate.Output {
	percents := s.model.DerivedPercentages()
	var legs []simulate.Leg
	for i, slot := range s.model.Slots() {
		if slot.Token == "" {
			continue
		}
		legs = append(legs, simulate.Leg{SlotIndex: i, Token: slot.Token, Percent: percents[i]})
	}

	return simulate.Estimate(s.sellToken, s.sellAmount, legs, s.priceLookup)
}

// priceLookup adapts registry + price cache into the simulator's PriceFn.
// Stale records still price a slot; only absence leaves it unpriced.
func (s *Session) priceLookup(token string) (decimal.Decimal, bool) {
	cfg, err := s.reg.Get(token)
	if err != nil || cfg.PriceFeedID == "" {
		return decimal.Zero, false
	}
	rec, ok := s.prices.Get(cfg.PriceFeedID)
	if !ok || rec.PriceUsd <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(rec.PriceUsd), true
}

// Price exposes the session's cached quote for one feed id. The cache guards
// its own state, so no session lock is taken.
func (s *Session) Price(feedID string) (pricecache.Record, bool) {
	return s.prices.Get(feedID)
}

// BuildParams compiles the current state into transaction parameters without
// submitting, for preview and the CLI.
func (s *Session) BuildParams() (*txparams.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.Build(s.sellToken, s.sellAmount, s.model, 0)
}

// Submit drives the orchestrator through the full execution sequence.
func (s *Session) Submit(ctx context.Context) (*orchestrator.Result, error) {
	s.mu.Lock()
	if s.owner == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	req := orchestrator.Request{
		SellToken:  s.sellToken,
		SellAmount: s.sellAmount,
		Model:      s.model,
		Owner:      *s.owner,
		Estimates:  s.simulateLocked(),
	}
	s.mu.Unlock()

	return s.orch.Submit(ctx, req)
}

// Approve resolves a NeedsApproval stop from an earlier Submit.
func (s *Session) Approve(ctx context.Context) error {
	s.mu.Lock()
	if s.owner == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	req := orchestrator.Request{
		SellToken:  s.sellToken,
		SellAmount: s.sellAmount,
		Model:      s.model,
		Owner:      *s.owner,
	}
	s.mu.Unlock()

	return s.orch.Approve(ctx, req)
}

// DeepLink renders the current allocation as a shareable query string.
func (s *Session) DeepLink() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deeplink.Encode(deeplink.FromModel(s.sellToken, s.sellAmount, s.model))
}

// ApplyDeepLink replays an encoded allocation onto this session.
func (s *Session) ApplyDeepLink(raw string) error {
	l, err := deeplink.Decode(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l.SellToken != "" {
		if _, err := s.reg.Get(l.SellToken); err != nil {
			return err
		}
	}
	for _, tok := range l.Tokens {
		if tok == "" {
			continue
		}
		if _, err := s.reg.Get(tok); err != nil {
			return err
		}
		if tok == l.SellToken {
			return fmt.Errorf("%w: %s is the sell token", allocation.ErrDuplicateToken, tok)
		}
	}

	if err := l.Apply(s.model); err != nil {
		return err
	}
	s.sellToken = l.SellToken
	s.sellAmount = l.SellAmount
	return nil
}

// Snapshot renders the session for the UI.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := s.model.Slots()
	views := make([]SlotView, len(slots))
	for i, sl := range slots {
		views[i] = SlotView{Token: sl.Token, Weight: sl.Weight}
	}

	snap := Snapshot{
		ID:            s.ID,
		SellToken:     s.sellToken,
		SellAmount:    s.sellAmount,
		Mode:          s.model.Mode(),
		Slots:         views,
		Percentages:   s.model.DerivedPercentages(),
		Outputs:       s.simulateLocked(),
		Connected:     s.owner != nil,
		State:         string(s.orch.State()),
		Error:         s.orch.ErrMessage(),
		Warning:       s.warning,
		PricesDelayed: s.prices.Delayed(),
	}
	if s.owner != nil {
		snap.Owner = s.owner.Hex()
	}
	return snap
}

// Close tears down the session's refresh timers.
func (s *Session) Close() {
	s.prices.Close()
}

func (s *Session) activeTokensLocked() []string {
	tokens := []string{}
	if s.sellToken != "" {
		tokens = append(tokens, s.sellToken)
	}
	for _, sl := range s.model.Slots() {
		if sl.Token != "" {
			tokens = append(tokens, sl.Token)
		}
	}
	return tokens
}
