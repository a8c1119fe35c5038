package constants

import "time"

// Swap fee
const (
	// SwapFee is the protocol fee taken on every leg (30 bps).
	SwapFee = 0.003
	// FeeFactorString is the multiplier applied to raw outputs after the fee.
	// The simulator and the parameter builder must both read this constant so
	// displayed estimates stay >= on-chain minimums.
	FeeFactorString = "0.997"
)

// Allocation limits
const (
	MaxOutputSlots = 4
	PercentTotal   = 100
)

// Deadlines and refresh cadence
const (
	// SwapDeadline is how far in the future a submitted transaction stays valid.
	SwapDeadline = 20 * time.Minute
	// PriceRetryInterval re-fetches only the feeds that failed last cycle.
	PriceRetryInterval = 10 * time.Second
	// PriceRefreshInterval re-fetches every known feed unconditionally.
	PriceRefreshInterval = 10 * time.Minute
)

// Redis keys
const (
	RedisKeyPricePrefix = "price:"
	PriceRecordTTL      = 30 * time.Minute
)

// Confirmation polling
const (
	ConfirmPollInterval = 2 * time.Second
	ConfirmTimeout      = 90 * time.Second
)
