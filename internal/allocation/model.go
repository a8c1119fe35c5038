package allocation

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"multiswap/internal/constants"
)

// Mode governs how slot weights are interpreted.
type Mode string

const (
	ModeRatio      Mode = "ratio"
	ModePercentage Mode = "percentage"
)

// ParseMode converts a wire string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRatio, ModePercentage:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadMode, s)
}

// Slot is one output-token position. An empty Token is a valid placeholder;
// its weight is retained for later assignment.
type Slot struct {
	Token  string
	Weight decimal.Decimal
}

var (
	percentTotal = decimal.NewFromInt(constants.PercentTotal)
	one          = decimal.NewFromInt(1)
)

// Model holds the ordered output slots and their weights for one session.
// It is not goroutine-safe; all edits arrive through the session event loop.
type Model struct {
	mode  Mode
	slots []Slot
	// custom flips once the user edits any weight. Until then derived
	// percentages fall back to an equal split across active slots.
	custom bool
}

// New returns a model with a single empty slot in ratio mode.
func New() *Model {
	return &Model{
		mode:  ModeRatio,
		slots: []Slot{{Weight: one}},
	}
}

func (m *Model) Mode() Mode { return m.mode }

// Slots returns a copy of the slot list.
func (m *Model) Slots() []Slot {
	return append([]Slot(nil), m.slots...)
}

// ActiveCount is the number of slots with a token assigned.
func (m *Model) ActiveCount() int {
	return lo.CountBy(m.slots, func(s Slot) bool { return s.Token != "" })
}

// HasCustomWeights reports whether the user has edited any weight.
func (m *Model) HasCustomWeights() bool { return m.custom }

// SetMode switches interpretation, converting existing weights rather than
// resetting them.
//
// Ratio -> Percentage divides each weight by the sum and scales to 100,
// rounded to 2 decimals, with the rounding error folded into the last
// non-zero slot so the total is exactly 100.00.
//
// Percentage -> Ratio takes the smallest positive weight as the unit and
// expresses every weight as round(weight/unit); an all-zero input maps to a
// uniform ratio of ones. The result is reduced to lowest terms.
func (m *Model) SetMode(mode Mode) error {
	if mode != ModeRatio && mode != ModePercentage {
		return fmt.Errorf("%w: %q", ErrBadMode, mode)
	}
	if mode == m.mode {
		return nil
	}

	switch mode {
	case ModePercentage:
		m.toPercentages()
	case ModeRatio:
		m.toRatio()
	}
	m.mode = mode
	return nil
}

func (m *Model) toPercentages() {
	sum := weightSum(m.slots)
	n := len(m.slots)

	if sum.IsZero() {
		// nothing to scale: spread evenly
		each := percentTotal.DivRound(decimal.NewFromInt(int64(n)), 2)
		for i := range m.slots {
			m.slots[i].Weight = each
		}
		m.foldRoundingError()
		return
	}

	for i := range m.slots {
		m.slots[i].Weight = m.slots[i].Weight.Div(sum).Mul(percentTotal).Round(2)
	}
	m.foldRoundingError()
}

// foldRoundingError pushes the difference to exactly 100.00 into the last
// slot carrying a non-zero weight.
func (m *Model) foldRoundingError() {
	diff := percentTotal.Sub(weightSum(m.slots))
	if diff.IsZero() {
		return
	}
	for i := len(m.slots) - 1; i >= 0; i-- {
		if !m.slots[i].Weight.IsZero() {
			m.slots[i].Weight = m.slots[i].Weight.Add(diff)
			return
		}
	}
	// all-zero weights cannot absorb anything
}

func (m *Model) toRatio() {
	var unit decimal.Decimal
	for _, s := range m.slots {
		if s.Weight.IsPositive() && (unit.IsZero() || s.Weight.LessThan(unit)) {
			unit = s.Weight
		}
	}

	if unit.IsZero() {
		for i := range m.slots {
			m.slots[i].Weight = one
		}
		return
	}

	for i := range m.slots {
		m.slots[i].Weight = m.slots[i].Weight.DivRound(unit, 0)
	}
	m.reduce()
}

// SetSlotToken assigns a token to a slot, or clears it when token is empty.
// No two non-empty slots may reference the same token, and an assignment
// that would push defined percentage weights over 100 is rejected.
func (m *Model) SetSlotToken(index int, token string) error {
	if index < 0 || index >= len(m.slots) {
		return fmt.Errorf("%w: %d", ErrSlotIndex, index)
	}
	if token != "" {
		for i, s := range m.slots {
			if i != index && s.Token == token {
				return fmt.Errorf("%w: %s", ErrDuplicateToken, token)
			}
		}
		if m.mode == ModePercentage && m.custom {
			sum := definedSum(m.slots, index, m.slots[index].Weight)
			if sum.GreaterThan(percentTotal) {
				return fmt.Errorf("%w: %s would take defined sum to %s", ErrPercentOverflow, token, sum)
			}
		}
	}
	m.slots[index].Token = token
	return nil
}

// SetSlotWeight applies a user-typed weight. Invalid input leaves the model
// unchanged: negative values and, in percentage mode, values pushing the
// defined sum over 100 are rejected rather than clamped.
func (m *Model) SetSlotWeight(index int, value string) error {
	if index < 0 || index >= len(m.slots) {
		return fmt.Errorf("%w: %d", ErrSlotIndex, index)
	}

	w, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadWeight, value)
	}
	if w.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeWeight, value)
	}

	if m.mode == ModePercentage {
		if sum := definedSum(m.slots, index, w); sum.GreaterThan(percentTotal) {
			return fmt.Errorf("%w: sum would be %s", ErrPercentOverflow, sum)
		}
	}

	m.slots[index].Weight = w
	m.custom = true

	if m.mode == ModeRatio {
		m.reduce()
	}
	return nil
}

// AddSlot appends an empty slot. It reports false, without modifying the
// model, once the slot limit is reached; the caller surfaces that as a
// warning rather than an error.
func (m *Model) AddSlot() bool {
	if len(m.slots) >= constants.MaxOutputSlots {
		return false
	}
	w := decimal.Zero
	if m.mode == ModeRatio {
		w = one
	}
	m.slots = append(m.slots, Slot{Weight: w})
	return true
}

// RemoveSlot deletes a slot. The list never shrinks below length one: the
// last remaining slot is cleared back to an empty placeholder with the
// mode's default weight instead, preserving index stability for the UI.
func (m *Model) RemoveSlot(index int) error {
	if index < 0 || index >= len(m.slots) {
		return fmt.Errorf("%w: %d", ErrSlotIndex, index)
	}
	if len(m.slots) == 1 {
		m.slots[0] = Slot{Weight: m.defaultWeight()}
		m.custom = false
		return nil
	}
	m.slots = append(m.slots[:index], m.slots[index+1:]...)
	return nil
}

func (m *Model) defaultWeight() decimal.Decimal {
	if m.mode == ModePercentage {
		return percentTotal
	}
	return one
}

// ClearToken empties every slot currently referencing token. Used when the
// sell-side selection collides with an output slot.
func (m *Model) ClearToken(token string) {
	for i := range m.slots {
		if m.slots[i].Token == token {
			m.slots[i].Token = ""
		}
	}
}

// Reset returns the model to its initial single-empty-slot state, keeping
// the current mode.
func (m *Model) Reset() {
	m.slots = []Slot{{Weight: m.defaultWeight()}}
	m.custom = false
}

// DerivedPercentages is the single percentage-per-slot view every consumer
// reads. Slots without a token derive to zero. Until the user enters a
// custom weight, active slots fall back to an equal split.
func (m *Model) DerivedPercentages() []decimal.Decimal {
	out := make([]decimal.Decimal, len(m.slots))

	active := m.ActiveCount()
	if active == 0 {
		return out
	}

	if !m.custom {
		each := percentTotal.Div(decimal.NewFromInt(int64(active)))
		for i, s := range m.slots {
			if s.Token != "" {
				out[i] = each
			}
		}
		return out
	}

	if m.mode == ModePercentage {
		for i, s := range m.slots {
			if s.Token != "" {
				out[i] = s.Weight
			}
		}
		return out
	}

	sum := lo.Reduce(m.slots, func(acc decimal.Decimal, s Slot, _ int) decimal.Decimal {
		if s.Token == "" {
			return acc
		}
		return acc.Add(s.Weight)
	}, decimal.Zero)
	if sum.IsZero() {
		return out
	}

	for i, s := range m.slots {
		if s.Token != "" {
			out[i] = s.Weight.Div(sum).Mul(percentTotal)
		}
	}
	return out
}

// reduce brings integer ratio weights to lowest terms with an iterative GCD.
// Non-integer weights are left alone; a GCD of zero is treated as one.
func (m *Model) reduce() {
	g := int64(0)
	for _, s := range m.slots {
		if !s.Weight.IsInteger() {
			return
		}
		g = gcd(g, s.Weight.IntPart())
	}
	if g <= 1 {
		return
	}
	d := decimal.NewFromInt(g)
	for i := range m.slots {
		m.slots[i].Weight = m.slots[i].Weight.Div(d)
	}
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// weightSum adds up every slot weight, defined or not.
func weightSum(slots []Slot) decimal.Decimal {
	return lo.Reduce(slots, func(acc decimal.Decimal, s Slot, _ int) decimal.Decimal {
		return acc.Add(s.Weight)
	}, decimal.Zero)
}

// definedSum totals the weights of token-bearing slots, substituting
// candidate for the slot at index. The edited slot always counts, token or
// not, so a weight typed before a token is chosen cannot overflow later.
func definedSum(slots []Slot, index int, candidate decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for i, s := range slots {
		switch {
		case i == index:
			sum = sum.Add(candidate)
		case s.Token != "":
			sum = sum.Add(s.Weight)
		}
	}
	return sum
}
