package etf

import (
	"cosmossdk.io/errors"
)

// Ledger error codes
var (
	ErrInvalidAmount = errors.Register("etf", 1, "amount must be positive")
	ErrInsufficient  = errors.Register("etf", 2, "insufficient positions")
)
