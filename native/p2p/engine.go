package p2p

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/PeerlyPay/peerlypay/core/events"
	"github.com/PeerlyPay/peerlypay/core/types"
	nativecommon "github.com/PeerlyPay/peerlypay/native/common"
)

var errNilState = errors.New("p2p engine: state not configured")

const moduleName = "p2p"

// engineState is the narrow view of durable state the engine depends on. All
// writes performed during one engine operation are expected to commit
// atomically together; the engine itself never leaves an operation half
// applied because validators and checked arithmetic run before the first
// write.
type engineState interface {
	ConfigPut(*Config) error
	ConfigGet() (*Config, bool)
	OrderCountPut(uint64) error
	OrderCountGet() (uint64, bool)
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool)
	CustodyAddress() [20]byte
	TokenTransfer(token string, from, to [20]byte, amount *big.Int) error
}

// Authorizer verifies that the actual caller of an operation is entitled to
// act as the claimed principal. The engine invokes it once per mutating
// operation; transports that authenticate callers before dispatch can leave
// the default allow-all hook in place.
type Authorizer interface {
	RequireAuth(principal [20]byte) error
}

type allowAllAuthorizer struct{}

func (allowAllAuthorizer) RequireAuth([20]byte) error { return nil }

type p2pEvent struct {
	evt *types.Event
}

func (e p2pEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e p2pEvent) Event() *types.Event { return e.evt }

// Engine owns the order lifecycle state machine and the custody movements it
// implies. It wires the module business logic with external state, event
// emitters, and the caller authorization hook.
type Engine struct {
	state   engineState
	emitter events.Emitter
	authz   Authorizer
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine creates an engine with a no-op emitter and an allow-all
// authorizer. Callers override both via SetEmitter and SetAuthorizer.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		authz:   allowAllAuthorizer{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetAuthorizer configures the caller authorization hook. Passing nil resets
// the hook to allow-all.
func (e *Engine) SetAuthorizer(authz Authorizer) {
	if authz == nil {
		e.authz = allowAllAuthorizer{}
		return
	}
	e.authz = authz
}

// SetPauses configures the operational pause overlay consulted in addition to
// the module's own paused flag.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(p2pEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireAuth(principal [20]byte) error {
	if e == nil || e.authz == nil {
		return nil
	}
	return e.authz.RequireAuth(principal)
}

func (e *Engine) loadConfig() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok := e.state.ConfigGet()
	if !ok {
		return nil, ErrConfigNotInitialized
	}
	return cfg, nil
}

// authorizedConfig runs the common prelude of every mutating operation:
// caller authorization, the operational pause overlay, and the module's own
// pause flag.
func (e *Engine) authorizedConfig(caller [20]byte) (*Config, error) {
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
	if err := ensureNotPaused(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *Engine) loadOrder(id uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok := e.state.OrderGet(id)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return SanitizeOrder(order)
}

func (e *Engine) storeOrder(order *Order) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.OrderPut(order)
}

// clearActiveFill drops the fill-in-flight fields. The caller is responsible
// for setting the follow-up status in the same mutation.
func clearActiveFill(order *Order) {
	order.Filler = nil
	order.ActiveFillAmount = nil
	order.FiatDeadline = nil
}

// settleActiveFill releases the locked fill to the party owed the asset leg
// and books it as filled, completing the order or reopening it for the
// residual amount. Shared by payment confirmation and a dispute resolved in
// the submitter's favour. The checked accounting runs before the custody
// transfer so an arithmetic failure leaves no funds moved.
func (e *Engine) settleActiveFill(cfg *Config, order *Order) error {
	active, err := ensureActiveFill(order)
	if err != nil {
		return err
	}
	var recipient [20]byte
	if order.AssetInitiated {
		if order.Filler == nil {
			return ErrMissingFiller
		}
		recipient = *order.Filler
	} else {
		recipient = order.Creator
	}
	filled, err := checkedAdd(order.FilledAmount, active)
	if err != nil {
		return err
	}
	remaining, err := checkedSub(order.RemainingAmount, active)
	if err != nil {
		return err
	}
	if err := e.state.TokenTransfer(cfg.Token, e.state.CustodyAddress(), recipient, active); err != nil {
		return err
	}
	order.FilledAmount = filled
	order.RemainingAmount = remaining
	clearActiveFill(order)
	if remaining.Sign() == 0 {
		order.Status = StatusCompleted
	} else {
		order.Status = StatusAwaitingFiller
	}
	return nil
}

// unwindActiveFill reverses the fill lock without touching the filled
// accounting. When the filler was the depositor their deposit is refunded in
// full; for asset-initiated orders the escrowed amount simply stays in
// custody for the next filler. Shared by the fiat timeout and a dispute
// resolved in the disputer's favour.
func (e *Engine) unwindActiveFill(cfg *Config, order *Order) (*big.Int, error) {
	active, err := ensureActiveFill(order)
	if err != nil {
		return nil, err
	}
	refunded := big.NewInt(0)
	if !order.AssetInitiated {
		if order.Filler == nil {
			return nil, ErrMissingFiller
		}
		if err := e.state.TokenTransfer(cfg.Token, e.state.CustodyAddress(), *order.Filler, active); err != nil {
			return nil, err
		}
		refunded = active
	}
	clearActiveFill(order)
	order.Status = StatusAwaitingFiller
	return refunded, nil
}

// CreateOrder mints a new order from the persistent counter. Asset-initiated
// orders escrow the full amount from the creator immediately; fiat-initiated
// orders collect the deposit from the filler at take time instead.
func (e *Engine) CreateOrder(caller [20]byte, fiatCurrency FiatCurrency, paymentMethod PaymentMethod, assetInitiated bool, amount, exchangeRate *big.Int, durationSecs uint64) (*Order, error) {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return nil, err
	}
	if err := validateCreateOrder(amount, exchangeRate, durationSecs, cfg); err != nil {
		return nil, err
	}
	if !fiatCurrency.Valid() {
		return nil, fmt.Errorf("p2p: invalid fiat currency tag")
	}
	if !paymentMethod.Valid() {
		return nil, fmt.Errorf("p2p: invalid payment method tag")
	}
	count, ok := e.state.OrderCountGet()
	if !ok {
		count = 0
	}
	now := e.now()
	order := &Order{
		ID:              count,
		Creator:         caller,
		Token:           cfg.Token,
		Amount:          cloneBigInt(amount),
		RemainingAmount: cloneBigInt(amount),
		FilledAmount:    big.NewInt(0),
		ExchangeRate:    cloneBigInt(exchangeRate),
		AssetInitiated:  assetInitiated,
		FiatCurrency:    fiatCurrency,
		PaymentMethod:   paymentMethod,
		Status:          StatusCreated,
		CreatedAt:       now,
		Deadline:        now + int64(durationSecs),
	}
	if assetInitiated {
		if err := e.state.TokenTransfer(cfg.Token, caller, e.state.CustodyAddress(), order.Amount); err != nil {
			return nil, err
		}
	}
	order.Status = StatusAwaitingFiller
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	if err := e.state.OrderCountPut(count + 1); err != nil {
		return nil, err
	}
	e.emit(NewOrderCreatedEvent(order))
	return order.Clone(), nil
}

// CancelOrder withdraws an order that no filler has committed to. Once a fill
// is in flight the order can only be timed out or disputed.
func (e *Engine) CancelOrder(caller [20]byte, id uint64) (*Order, error) {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if err := ensureStatus(order, StatusAwaitingFiller); err != nil {
		return nil, err
	}
	if err := ensureCreator(order, caller); err != nil {
		return nil, err
	}
	if order.AssetInitiated && order.RemainingAmount.Sign() > 0 {
		if err := e.state.TokenTransfer(cfg.Token, e.state.CustodyAddress(), order.Creator, order.RemainingAmount); err != nil {
			return nil, err
		}
	}
	order.Status = StatusCancelled
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderCancelledEvent(order, caller))
	return order.Clone(), nil
}

// TakeOrder fills the entire remaining amount of the order.
func (e *Engine) TakeOrder(caller [20]byte, id uint64) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	return e.TakeOrderWithAmount(caller, id, order.RemainingAmount)
}

// TakeOrderWithAmount locks a fill against the order. Fiat-initiated orders
// collect the matching deposit from the filler; asset-initiated orders are
// already funded by the creator.
func (e *Engine) TakeOrderWithAmount(caller [20]byte, id uint64, fillAmount *big.Int) (*Order, error) {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if err := ensureStatus(order, StatusAwaitingFiller); err != nil {
		return nil, err
	}
	if err := ensureNotCreator(order, caller); err != nil {
		return nil, err
	}
	now := e.now()
	if err := ensureNotExpired(order, now); err != nil {
		return nil, err
	}
	if err := validateFillAmount(order, fillAmount); err != nil {
		return nil, err
	}
	if !order.AssetInitiated {
		if err := e.state.TokenTransfer(cfg.Token, caller, e.state.CustodyAddress(), fillAmount); err != nil {
			return nil, err
		}
	}
	filler := caller
	order.Filler = &filler
	order.ActiveFillAmount = cloneBigInt(fillAmount)
	order.Status = StatusAwaitingPayment
	deadline := now + int64(cfg.FiatTimeoutSecs)
	order.FiatDeadline = &deadline
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderTakenEvent(order))
	return order.Clone(), nil
}

// SubmitFiatPayment records the fiat-leg payer's attestation that the
// off-chain payment went out. No funds move.
func (e *Engine) SubmitFiatPayment(caller [20]byte, id uint64) (*Order, error) {
	if _, err := e.authorizedConfig(caller); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if err := ensureStatus(order, StatusAwaitingPayment); err != nil {
		return nil, err
	}
	// The fiat leg is owed by the filler on asset-initiated orders and by
	// the creator on fiat-initiated ones.
	if order.AssetInitiated {
		if err := ensureFiller(order, caller); err != nil {
			return nil, err
		}
	} else {
		if err := ensureCreator(order, caller); err != nil {
			return nil, err
		}
	}
	order.Status = StatusAwaitingConfirmation
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewFiatPaymentSubmittedEvent(order, caller))
	return order.Clone(), nil
}

// ConfirmFiatPayment is invoked by the fiat recipient once the off-chain
// payment arrived. It settles the active fill and either completes the order
// or reopens it for the residual amount.
func (e *Engine) ConfirmFiatPayment(caller [20]byte, id uint64) (*Order, error) {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if err := ensureStatus(order, StatusAwaitingConfirmation); err != nil {
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
	if err := e.settleActiveFill(cfg, order); err != nil {
		return nil, err
	}
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewFiatPaymentConfirmedEvent(order, caller))
	return order.Clone(), nil
}

// ExecuteFiatTransferTimeout unwinds a fill whose fiat leg never arrived. It
// may only be executed by the party who was waiting on the attestation, and
// only after the fiat deadline passed. The remaining amount is untouched so
// the order can be re-taken.
func (e *Engine) ExecuteFiatTransferTimeout(caller [20]byte, id uint64) (*Order, error) {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if err := ensureStatus(order, StatusAwaitingPayment); err != nil {
		return nil, err
	}
	if err := ensureFiatTimeoutExpired(order, e.now()); err != nil {
		return nil, err
	}
	// The delinquent party is the fiat payer; only the counter-party may
	// execute the unwind.
	if order.AssetInitiated {
		if err := ensureCreator(order, caller); err != nil {
			return nil, err
		}
	} else {
		if err := ensureFiller(order, caller); err != nil {
			return nil, err
		}
	}
	refunded, err := e.unwindActiveFill(cfg, order)
	if err != nil {
		return nil, err
	}
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewFiatTransferTimeoutEvent(order, caller, refunded))
	return order.Clone(), nil
}

// Order returns a copy of the stored order.
func (e *Engine) Order(id uint64) (*Order, error) {
	return e.loadOrder(id)
}
