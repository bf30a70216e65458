package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrLockHeld           = errors.New("lock already held")

	ErrUnknownLeague = errors.New("unknown league")
	ErrUnknownRoom   = errors.New("unknown room")
	ErrUnknownRole   = errors.New("unknown role")
	ErrInvalidDate   = errors.New("invalid date")

	ErrGameNotEligible    = errors.New("game start time is not in the future")
	ErrGameNotFinished    = errors.New("game is not finished")
	ErrMissingScore       = errors.New("game has no final score")
	ErrDrawNotOffered     = errors.New("draw on a market without a draw option")
	ErrInvalidOptions     = errors.New("market must have 2 or 3 options")
	ErrAlreadyResolved    = errors.New("market already resolved")
	ErrMarketEventMissing = errors.New("MarketCreated event not found in receipt")
	ErrTxReverted         = errors.New("transaction reverted")
)
