package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrMarketData    = errors.New("market data unavailable")

	// ErrIneligible is returned by providers that answer with an account
	// eligibility denial. It is not a malfunction and is logged quietly.
	ErrIneligible = errors.New("provider access not eligible")
)
