package chain

import "errors"

var (
	ErrConfirmTimeout = errors.New("confirmation window elapsed")
	ErrTxReverted     = errors.New("transaction reverted")
	ErrNoSigner       = errors.New("no signing key configured")
)
