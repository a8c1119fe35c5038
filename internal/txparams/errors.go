package txparams

import "errors"

var (
	ErrInvalidAmount        = errors.New("sell amount must be a positive number")
	ErrNoOutputs            = errors.New("no active output slots")
	ErrSellTokenInOutputs   = errors.New("sell token cannot be an output")
	ErrIncompleteAllocation = errors.New("derived percentages do not sum to 100")
	ErrEstimateMismatch     = errors.New("estimate count does not match legs")
)
