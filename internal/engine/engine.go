// Package engine assembles per-session state on top of the shared token
// registry, price feed and chain client.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"multiswap/internal/allocation"
	"multiswap/internal/chain"
	"multiswap/internal/history"
	"multiswap/internal/orchestrator"
	"multiswap/internal/pricecache"
	"multiswap/internal/registry"
	"multiswap/internal/txparams"
)

// Deps are the shared collaborators every session draws on. Registry is
// required; the rest degrade gracefully (no chain client means simulation
// only, no store means cold price caches, no history means no audit trail).
type Deps struct {
	Registry    *registry.Registry
	Fetcher     pricecache.Fetcher
	PriceStore  pricecache.Store
	Chain       chain.Client
	Balances    chain.BalanceProvider
	History     *history.Store
	Contract    common.Address
	SlippageBps uint16

	// Zero values fall back to the cache defaults.
	RetryInterval   time.Duration
	RefreshInterval time.Duration

	Logger *logrus.Logger
}

// Engine creates and tracks sessions. The registry and chain client are
// shared; each session owns its allocation model, price cache and
// orchestrator.
type Engine struct {
	deps Deps

	// ctx outlives any single request; session price caches run on it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(deps Deps) (*Engine, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("engine: registry is required")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("engine: price fetcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{deps: deps, ctx: ctx, cancel: cancel, sessions: make(map[string]*Session)}, nil
}

// CreateSession builds a fresh session: empty allocation, native sell token,
// its own price cache started immediately.
func (e *Engine) CreateSession() (*Session, error) {
	prices, err := pricecache.New(pricecache.Config{
		Fetcher:         e.deps.Fetcher,
		FeedIDs:         e.deps.Registry.FeedIDs(),
		RetryInterval:   e.deps.RetryInterval,
		RefreshInterval: e.deps.RefreshInterval,
		Store:           e.deps.PriceStore,
		Logger:          e.deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         uuid.NewString(),
		log:        e.deps.Logger,
		reg:        e.deps.Registry,
		prices:     prices,
		model:      allocation.New(),
		builder:    txparams.NewBuilder(e.deps.Registry),
		tracker:    newBalanceTracker(e.deps.Balances, e.deps.Logger),
		sellToken:  e.deps.Registry.NativeSymbol(),
		sellAmount: decimal.Zero,
	}

	s.orch = orchestrator.New(orchestrator.Config{
		Chain:       e.deps.Chain,
		Registry:    e.deps.Registry,
		Builder:     s.builder,
		Balances:    s.tracker,
		Contract:    e.deps.Contract,
		History:     e.deps.History,
		SlippageBps: e.deps.SlippageBps,
		Logger:      e.deps.Logger,
	})

	prices.Start(e.ctx)

	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()

	e.deps.Logger.WithField("session", s.ID).Info("session created")
	return s, nil
}

// Session looks up a live session by id.
func (e *Engine) Session(id string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionGone, id)
	}
	return s, nil
}

// CloseSession tears the session down, canceling its refresh timers.
func (e *Engine) CloseSession(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionGone, id)
	}
	s.Close()
	e.deps.Logger.WithField("session", id).Info("session closed")
	return nil
}

// Close tears down every live session and stops their refresh timers.
func (e *Engine) Close() {
	e.cancel()

	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.sessions = make(map[string]*Session)
	e.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
