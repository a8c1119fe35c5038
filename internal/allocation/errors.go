package allocation

import "errors"

var (
	ErrSlotIndex       = errors.New("slot index out of range")
	ErrDuplicateToken  = errors.New("token already assigned to another slot")
	ErrBadWeight       = errors.New("weight is not a valid number")
	ErrNegativeWeight  = errors.New("weight must be non-negative")
	ErrPercentOverflow = errors.New("percentage weights exceed 100")
	ErrBadMode         = errors.New("unknown allocation mode")
)
