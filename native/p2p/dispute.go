package p2p

import nativecommon "github.com/PeerlyPay/peerlypay/native/common"

// The dispute flow is a narrow extension of the order state machine: it is
// reachable only from AwaitingConfirmation and terminates back into the
// lifecycle through the same two settlement paths confirm and timeout use.

// DisputeFiatPayment lets the fiat recipient contest the payer's attestation.
// The authorization mirrors ConfirmFiatPayment: the party who would have
// confirmed is the one entitled to dispute. The active fill stays locked in
// custody until the arbiter rules.
func (e *Engine) DisputeFiatPayment(caller [20]byte, id uint64) (*Order, error) {
	if _, err := e.authorizedConfig(caller); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if err := ensureDisputable(order); err != nil {
		return nil, err
	}
	if order.AssetInitiated {
		if err := ensureCreator(order, caller); err != nil {
			return nil, err
		}
	} else {
		if err := ensureFiller(order, caller); err != nil {
			return nil, err
		}
	}
	order.Status = StatusDisputed
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewFiatPaymentDisputedEvent(order, caller))
	return order.Clone(), nil
}

// ResolveDispute is the arbiter's final, unilateral ruling. Siding with the
// submitter (fiatTransferConfirmed) produces exactly the settlement an
// uncontested confirmation would have; siding with the disputer produces
// exactly the unwind a fiat timeout would have.
func (e *Engine) ResolveDispute(caller [20]byte, id uint64, fiatTransferConfirmed bool) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireAuth(caller); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := ensureArbiter(cfg, caller); err != nil {
		return nil, err
	}
	if err := ensureNotPaused(cfg); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if err := ensureDisputed(order); err != nil {
		return nil, err
	}
	if fiatTransferConfirmed {
		if err := e.settleActiveFill(cfg, order); err != nil {
			return nil, err
		}
	} else {
		if _, err := e.unwindActiveFill(cfg, order); err != nil {
			return nil, err
		}
	}
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewDisputeResolvedEvent(order, caller, fiatTransferConfirmed))
	return order.Clone(), nil
}
