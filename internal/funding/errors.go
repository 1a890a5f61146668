package funding

import "errors"

// Errors returned by the ledger and the funding engine. Callers match them
// with errors.Is; anything else coming out of an operation is a storage
// failure whose commit was rolled back in full.
var (
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrInvalidUser         = errors.New("user id must not be empty")
	ErrInvalidKind         = errors.New("unknown transaction kind")
	ErrInsufficientCredits = errors.New("not enough credits available")
	ErrProposalClosed      = errors.New("cannot allocate credits to a closed proposal")
	ErrNotFound            = errors.New("not found")
)
