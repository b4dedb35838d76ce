package p2p

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/PeerlyPay/peerlypay/core/types"
)

const (
	EventTypeInitialized          = "p2p.initialized"
	EventTypePaused               = "p2p.paused"
	EventTypeUnpaused             = "p2p.unpaused"
	EventTypeOrderCreated         = "p2p.order.created"
	EventTypeOrderCancelled       = "p2p.order.cancelled"
	EventTypeOrderTaken           = "p2p.order.taken"
	EventTypeFiatPaymentSubmitted = "p2p.fiat.submitted"
	EventTypeFiatPaymentConfirmed = "p2p.fiat.confirmed"
	EventTypeFiatTransferTimeout  = "p2p.fiat.timeout"
	EventTypeFiatPaymentDisputed  = "p2p.fiat.disputed"
	EventTypeDisputeResolved      = "p2p.dispute.resolved"
)

// NewInitializedEvent returns the canonical payload emitted when the module
// configuration is written at genesis.
func NewInitializedEvent(cfg *Config) *types.Event {
	attrs := make(map[string]string)
	if cfg != nil {
		attrs["admin"] = hex.EncodeToString(cfg.Admin[:])
		attrs["arbiter"] = hex.EncodeToString(cfg.Arbiter[:])
		attrs["pauser"] = hex.EncodeToString(cfg.Pauser[:])
		attrs["token"] = cfg.Token
		attrs["maxDurationSecs"] = strconv.FormatUint(cfg.MaxDurationSecs, 10)
		attrs["fiatTimeoutSecs"] = strconv.FormatUint(cfg.FiatTimeoutSecs, 10)
	}
	return &types.Event{Type: EventTypeInitialized, Attributes: attrs}
}

// NewPausedEvent records who flipped the pause switch.
func NewPausedEvent(by [20]byte) *types.Event {
	return &types.Event{Type: EventTypePaused, Attributes: map[string]string{
		"by": hex.EncodeToString(by[:]),
	}}
}

// NewUnpausedEvent records who lifted the pause switch.
func NewUnpausedEvent(by [20]byte) *types.Event {
	return &types.Event{Type: EventTypeUnpaused, Attributes: map[string]string{
		"by": hex.EncodeToString(by[:]),
	}}
}

// NewOrderCreatedEvent returns the canonical payload for a freshly minted
// order.
func NewOrderCreatedEvent(order *Order) *types.Event {
	return newOrderEvent(EventTypeOrderCreated, order, nil)
}

// NewOrderCancelledEvent returns the payload emitted when the creator
// withdraws an unfilled order.
func NewOrderCancelledEvent(order *Order, by [20]byte) *types.Event {
	return newOrderEvent(EventTypeOrderCancelled, order, map[string]string{
		"cancelledBy": hex.EncodeToString(by[:]),
	})
}

// NewOrderTakenEvent returns the payload emitted when a fill is locked.
func NewOrderTakenEvent(order *Order) *types.Event {
	extra := map[string]string{}
	if order != nil && order.Filler != nil {
		extra["filler"] = hex.EncodeToString(order.Filler[:])
	}
	if order != nil && order.ActiveFillAmount != nil {
		extra["fillAmount"] = order.ActiveFillAmount.String()
	}
	return newOrderEvent(EventTypeOrderTaken, order, extra)
}

// NewFiatPaymentSubmittedEvent returns the payload for the payer's
// attestation.
func NewFiatPaymentSubmittedEvent(order *Order, by [20]byte) *types.Event {
	return newOrderEvent(EventTypeFiatPaymentSubmitted, order, map[string]string{
		"submittedBy": hex.EncodeToString(by[:]),
	})
}

// NewFiatPaymentConfirmedEvent returns the payload emitted when an active
// fill settles.
func NewFiatPaymentConfirmedEvent(order *Order, by [20]byte) *types.Event {
	return newOrderEvent(EventTypeFiatPaymentConfirmed, order, map[string]string{
		"confirmedBy": hex.EncodeToString(by[:]),
	})
}

// NewFiatTransferTimeoutEvent returns the payload emitted when an expired
// fill is unwound, including the deposit refunded to the filler (zero for
// asset-initiated orders, whose escrow never left custody).
func NewFiatTransferTimeoutEvent(order *Order, by [20]byte, refunded *big.Int) *types.Event {
	extra := map[string]string{
		"executedBy": hex.EncodeToString(by[:]),
	}
	if refunded != nil {
		extra["refundedAmount"] = refunded.String()
	}
	return newOrderEvent(EventTypeFiatTransferTimeout, order, extra)
}

// NewFiatPaymentDisputedEvent returns the payload emitted when the recipient
// contests the attestation.
func NewFiatPaymentDisputedEvent(order *Order, by [20]byte) *types.Event {
	return newOrderEvent(EventTypeFiatPaymentDisputed, order, map[string]string{
		"disputedBy": hex.EncodeToString(by[:]),
	})
}

// NewDisputeResolvedEvent returns the payload for the arbiter's ruling.
func NewDisputeResolvedEvent(order *Order, by [20]byte, fiatTransferConfirmed bool) *types.Event {
	return newOrderEvent(EventTypeDisputeResolved, order, map[string]string{
		"resolvedBy":            hex.EncodeToString(by[:]),
		"fiatTransferConfirmed": strconv.FormatBool(fiatTransferConfirmed),
	})
}

func newOrderEvent(eventType string, order *Order, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if order != nil {
		attrs["orderId"] = strconv.FormatUint(order.ID, 10)
		attrs["creator"] = hex.EncodeToString(order.Creator[:])
		attrs["token"] = order.Token
		attrs["amount"] = cloneBigInt(order.Amount).String()
		attrs["remainingAmount"] = cloneBigInt(order.RemainingAmount).String()
		attrs["filledAmount"] = cloneBigInt(order.FilledAmount).String()
		attrs["assetInitiated"] = strconv.FormatBool(order.AssetInitiated)
		attrs["fiatCurrency"] = order.FiatCurrency.String()
		attrs["paymentMethod"] = order.PaymentMethod.String()
		attrs["status"] = order.Status.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
