package engine

import "errors"

var (
	ErrNotConnected   = errors.New("wallet not connected")
	ErrNegativeAmount = errors.New("sell amount must be non-negative")
	ErrSlotLimit      = errors.New("maximum of 4 output slots reached")
	ErrSessionGone    = errors.New("session not found")
)
