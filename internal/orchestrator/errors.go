package orchestrator

import "errors"

var (
	// ErrBusy rejects a submission while another one is in flight. The
	// check happens before any network call.
	ErrBusy = errors.New("a submission is already in progress")

	ErrInvalidAmount       = errors.New("sell amount is not a valid positive number")
	ErrInsufficientBalance = errors.New("balance is below the declared sell amount")

	// ErrApprovalRequired is not a failure: the submission stopped at
	// NeedsApproval and the caller should request an approval.
	ErrApprovalRequired = errors.New("token approval required before swapping")

	ErrNotAwaitingApproval = errors.New("no approval is pending")

	ErrNoChainClient = errors.New("no chain client configured")
)
