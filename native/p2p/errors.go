package p2p

import "errors"

// Every failure mode surfaced by the engine is a distinct sentinel so callers
// can match with errors.Is and map each kind onto a transport-level code.
// Validators detect all of them before any state mutation or custody transfer
// is attempted, so a returned error always means the operation was a no-op.
var (
	ErrInvalidAmount       = errors.New("p2p: amount must be greater than zero")
	ErrInvalidExchangeRate = errors.New("p2p: exchange rate must be greater than zero")
	ErrInvalidDuration     = errors.New("p2p: invalid order duration")
	ErrInvalidFillAmount   = errors.New("p2p: fill amount exceeds remaining amount")
	ErrInvalidTimeout      = errors.New("p2p: invalid timeout configuration")

	ErrOrderNotFound        = errors.New("p2p: order not found")
	ErrConfigNotInitialized = errors.New("p2p: module not initialized")

	ErrInvalidOrderStatus = errors.New("p2p: invalid order status")
	ErrAlreadyInitialized = errors.New("p2p: module already initialized")
	ErrPaused             = errors.New("p2p: module paused")
	ErrAlreadyPaused      = errors.New("p2p: module already paused")
	ErrAlreadyUnpaused    = errors.New("p2p: module already unpaused")
	ErrMissingFiller      = errors.New("p2p: order filler is missing")

	ErrUnauthorized = errors.New("p2p: unauthorized operation")

	ErrOrderExpired           = errors.New("p2p: order has expired")
	ErrFiatTransferNotExpired = errors.New("p2p: fiat transfer deadline has not expired")

	ErrOverflow  = errors.New("p2p: amount overflow")
	ErrUnderflow = errors.New("p2p: amount underflow")
)
