package engine

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"multiswap/internal/chain"
)

// balanceTracker is the session's local view of on-chain balances, refreshed
// on connect and after every confirmed swap.
type balanceTracker struct {
	provider chain.BalanceProvider
	logger   *logrus.Logger

	mu       sync.Mutex
	owner    common.Address
	balances map[string]decimal.Decimal
}

func newBalanceTracker(provider chain.BalanceProvider, logger *logrus.Logger) *balanceTracker {
	return &balanceTracker{
		provider: provider,
		logger:   logger,
		balances: make(map[string]decimal.Decimal),
	}
}

func (t *balanceTracker) setOwner(owner common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owner = owner
	t.balances = make(map[string]decimal.Decimal)
}

func (t *balanceTracker) Get(token string) (decimal.Decimal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[token]
	return bal, ok
}

// Refresh re-reads the given tokens. Individual failures are logged and the
// stale value is kept; only a nil provider or empty owner makes it a no-op.
func (t *balanceTracker) Refresh(ctx context.Context, tokens []string) error {
	t.mu.Lock()
	owner := t.owner
	t.mu.Unlock()

	if t.provider == nil || owner == (common.Address{}) {
		return nil
	}

	var lastErr error
	for _, tok := range tokens {
		bal, err := t.provider.GetBalance(ctx, tok, owner)
		if err != nil {
			t.logger.WithError(err).WithField("token", tok).Warn("balance refresh failed")
			lastErr = err
			continue
		}
		t.mu.Lock()
		t.balances[tok] = bal
		t.mu.Unlock()
	}
	return lastErr
}
