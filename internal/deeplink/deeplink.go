// Package deeplink encodes a pre-filled allocation as a shareable URL query
// string and back. Decoding a link it produced yields an equivalent
// allocation state.
package deeplink

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"multiswap/internal/allocation"
	"multiswap/internal/constants"
)

// Link is the query-string payload.
type Link struct {
	SellToken  string
	SellAmount decimal.Decimal
	Mode       allocation.Mode
	Tokens     []string // per slot, "" for empty placeholders
	Weights    []string // per slot, decimal strings
}

const (
	paramSell    = "sell"
	paramAmount  = "amount"
	paramMode    = "mode"
	paramTokens  = "out"
	paramWeights = "weights"
)

// Encode renders the link as a canonical query string (no leading '?').
func Encode(l Link) string {
	q := url.Values{}
	q.Set(paramSell, l.SellToken)
	if !l.SellAmount.IsZero() {
		q.Set(paramAmount, l.SellAmount.String())
	}
	q.Set(paramMode, string(l.Mode))
	q.Set(paramTokens, strings.Join(l.Tokens, ","))
	q.Set(paramWeights, strings.Join(l.Weights, ","))
	return q.Encode()
}

// Decode parses a query string produced by Encode (a leading '?' is
// tolerated) and validates shape: known mode, matching token/weight counts,
// slot count within limits, non-negative amount.
func Decode(raw string) (Link, error) {
	raw = strings.TrimPrefix(raw, "?")
	q, err := url.ParseQuery(raw)
	if err != nil {
		return Link{}, fmt.Errorf("parse deep link: %w", err)
	}

	l := Link{SellToken: q.Get(paramSell)}

	mode, err := allocation.ParseMode(q.Get(paramMode))
	if err != nil {
		return Link{}, err
	}
	l.Mode = mode

	if amt := q.Get(paramAmount); amt != "" {
		d, err := decimal.NewFromString(amt)
		if err != nil {
			return Link{}, fmt.Errorf("deep link amount %q: %w", amt, err)
		}
		if d.IsNegative() {
			return Link{}, fmt.Errorf("deep link amount %q is negative", amt)
		}
		l.SellAmount = d
	}

	l.Tokens = splitList(q.Get(paramTokens))
	l.Weights = splitList(q.Get(paramWeights))

	if len(l.Tokens) == 0 || len(l.Tokens) > constants.MaxOutputSlots {
		return Link{}, fmt.Errorf("deep link has %d slots, want 1..%d", len(l.Tokens), constants.MaxOutputSlots)
	}
	if len(l.Weights) != len(l.Tokens) {
		return Link{}, fmt.Errorf("deep link has %d weights for %d slots", len(l.Weights), len(l.Tokens))
	}

	return l, nil
}

// FromModel snapshots the current allocation into a Link.
func FromModel(sellToken string, sellAmount decimal.Decimal, m *allocation.Model) Link {
	slots := m.Slots()
	l := Link{
		SellToken:  sellToken,
		SellAmount: sellAmount,
		Mode:       m.Mode(),
		Tokens:     make([]string, len(slots)),
		Weights:    make([]string, len(slots)),
	}
	for i, s := range slots {
		l.Tokens[i] = s.Token
		l.Weights[i] = s.Weight.String()
	}
	return l
}

// Apply replays the link onto a fresh model: mode first so weights are
// interpreted in the right units, then slots, tokens and weights in order.
func (l Link) Apply(m *allocation.Model) error {
	m.Reset()
	if err := m.SetMode(l.Mode); err != nil {
		return err
	}
	for i := range l.Tokens {
		if i > 0 && !m.AddSlot() {
			return fmt.Errorf("deep link exceeds slot limit")
		}
	}
	for i, tok := range l.Tokens {
		if tok == "" {
			continue
		}
		if err := m.SetSlotToken(i, tok); err != nil {
			return err
		}
	}
	for i, w := range l.Weights {
		if err := m.SetSlotWeight(i, w); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
