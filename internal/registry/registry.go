package registry

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig describes one listed token. Configs are immutable once loaded;
// the registry hands out copies only.
type TokenConfig struct {
	Symbol        string
	Address       common.Address
	Decimals      uint8
	DisplaySymbol string
	LogoRef       string
	// PriceFeedID is the external feed identifier used for USD price and
	// market cap lookups. Empty when no feed exists for the token.
	PriceFeedID string
}

// Registry is a read-only symbol -> TokenConfig table. It is safe to share
// across sessions without locking.
type Registry struct {
	tokens  map[string]TokenConfig
	native  string
	wrapped string
}

// New builds a registry from the given configs. The native asset symbol and
// its wrapped counterpart must both be present in the table.
func New(native, wrapped string, configs []TokenConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("registry: no tokens configured")
	}

	tokens := make(map[string]TokenConfig, len(configs))
	for _, tc := range configs {
		if tc.Symbol == "" {
			return nil, fmt.Errorf("registry: token with empty symbol")
		}
		if _, dup := tokens[tc.Symbol]; dup {
			return nil, fmt.Errorf("registry: duplicate symbol %s", tc.Symbol)
		}
		if tc.DisplaySymbol == "" {
			tc.DisplaySymbol = tc.Symbol
		}
		tokens[tc.Symbol] = tc
	}

	if _, ok := tokens[native]; !ok {
		return nil, fmt.Errorf("registry: native asset %s not in table", native)
	}
	if _, ok := tokens[wrapped]; !ok {
		return nil, fmt.Errorf("registry: wrapped native %s not in table", wrapped)
	}

	return &Registry{tokens: tokens, native: native, wrapped: wrapped}, nil
}

// Get returns the config for symbol, or ErrUnknownToken.
func (r *Registry) Get(symbol string) (TokenConfig, error) {
	tc, ok := r.tokens[symbol]
	if !ok {
		return TokenConfig{}, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
	}
	return tc, nil
}

// Has reports whether symbol is listed.
func (r *Registry) Has(symbol string) bool {
	_, ok := r.tokens[symbol]
	return ok
}

// IsNative reports whether symbol is the chain's native asset.
func (r *Registry) IsNative(symbol string) bool { return symbol == r.native }

// IsWrappedNative reports whether symbol is the wrapped native asset.
func (r *Registry) IsWrappedNative(symbol string) bool { return symbol == r.wrapped }

// NativeSymbol returns the native asset symbol.
func (r *Registry) NativeSymbol() string { return r.native }

// WrappedNative returns the wrapped native token config.
func (r *Registry) WrappedNative() TokenConfig { return r.tokens[r.wrapped] }

// Symbols returns all listed symbols in lexical order.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.tokens))
	for sym := range r.tokens {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// FeedIDs returns the distinct, non-empty price feed ids of all listed tokens.
func (r *Registry) FeedIDs() []string {
	seen := make(map[string]struct{}, len(r.tokens))
	out := make([]string, 0, len(r.tokens))
	for _, tc := range r.tokens {
		if tc.PriceFeedID == "" {
			continue
		}
		if _, dup := seen[tc.PriceFeedID]; dup {
			continue
		}
		seen[tc.PriceFeedID] = struct{}{}
		out = append(out, tc.PriceFeedID)
	}
	sort.Strings(out)
	return out
}
