package p2p

import "math/big"

// The validators are pure predicates: they read an order or config, return a
// specific error kind on violation and never mutate anything. Every engine
// operation runs its validators to completion before the first custody
// transfer or state write.

func validateInitializeInputs(maxDurationSecs, fiatTimeoutSecs uint64) error {
	if maxDurationSecs == 0 || fiatTimeoutSecs == 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func validateCreateOrder(amount, exchangeRate *big.Int, durationSecs uint64, cfg *Config) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if amount.Cmp(maxAmount) > 0 {
		return ErrOverflow
	}
	if exchangeRate == nil || exchangeRate.Sign() <= 0 {
		return ErrInvalidExchangeRate
	}
	if durationSecs > cfg.MaxDurationSecs {
		return ErrInvalidDuration
	}
	return nil
}

func validateFillAmount(order *Order, fillAmount *big.Int) error {
	if fillAmount == nil || fillAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if fillAmount.Cmp(order.RemainingAmount) > 0 {
		return ErrInvalidFillAmount
	}
	return nil
}

func ensureStatus(order *Order, expected OrderStatus) error {
	if order.Status != expected {
		return ErrInvalidOrderStatus
	}
	return nil
}

func ensureCreator(order *Order, caller [20]byte) error {
	if caller != order.Creator {
		return ErrUnauthorized
	}
	return nil
}

func ensureNotCreator(order *Order, caller [20]byte) error {
	if caller == order.Creator {
		return ErrUnauthorized
	}
	return nil
}

func ensureFiller(order *Order, caller [20]byte) error {
	if order.Filler == nil {
		return ErrMissingFiller
	}
	if *order.Filler != caller {
		return ErrUnauthorized
	}
	return nil
}

func ensureNotExpired(order *Order, now int64) error {
	if order.Deadline <= now {
		return ErrOrderExpired
	}
	return nil
}

// ensureFiatTimeoutExpired requires the fiat deadline to exist and to lie
// strictly in the past.
func ensureFiatTimeoutExpired(order *Order, now int64) error {
	if order.FiatDeadline == nil {
		return ErrInvalidOrderStatus
	}
	if *order.FiatDeadline >= now {
		return ErrFiatTransferNotExpired
	}
	return nil
}

func ensureActiveFill(order *Order) (*big.Int, error) {
	if order.ActiveFillAmount == nil {
		return nil, ErrInvalidOrderStatus
	}
	return new(big.Int).Set(order.ActiveFillAmount), nil
}

func ensureDisputable(order *Order) error {
	return ensureStatus(order, StatusAwaitingConfirmation)
}

func ensureDisputed(order *Order) error {
	return ensureStatus(order, StatusDisputed)
}

func ensurePauser(cfg *Config, caller [20]byte) error {
	if caller != cfg.Pauser {
		return ErrUnauthorized
	}
	return nil
}

func ensureArbiter(cfg *Config, caller [20]byte) error {
	if caller != cfg.Arbiter {
		return ErrUnauthorized
	}
	return nil
}

func ensureNotPaused(cfg *Config) error {
	if cfg.Paused {
		return ErrPaused
	}
	return nil
}
