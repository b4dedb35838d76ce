package p2p

import (
	"errors"
	"math/big"
	"testing"
)

// openDisputedFill drives an order into Disputed with a 400 fill locked.
func openDisputedFill(t *testing.T, engine *Engine, state *mockState, clock *testClock, assetInitiated bool) *Order {
	t.Helper()
	order := mustCreate(t, engine, state, alice, assetInitiated, 1_000)
	if !assetInitiated {
		state.mint(testToken, bob, 400)
	}
	clock.now = 10
	if _, err := engine.TakeOrderWithAmount(bob, order.ID, big.NewInt(400)); err != nil {
		t.Fatalf("take: %v", err)
	}
	payer, recipient := bob, alice
	if !assetInitiated {
		payer, recipient = alice, bob
	}
	if _, err := engine.SubmitFiatPayment(payer, order.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	disputed, err := engine.DisputeFiatPayment(recipient, order.ID)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if disputed.Status != StatusDisputed {
		t.Fatalf("status = %s, want disputed", disputed.Status)
	}
	return disputed
}

func TestDisputeAuthorizationMirrorsConfirm(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	order := mustCreate(t, engine, state, alice, true, 1_000)
	clock.now = 10
	if _, err := engine.TakeOrderWithAmount(bob, order.ID, big.NewInt(400)); err != nil {
		t.Fatalf("take: %v", err)
	}

	// Disputable only once the payer has attested.
	if _, err := engine.DisputeFiatPayment(alice, order.ID); !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("dispute before submit = %v, want ErrInvalidOrderStatus", err)
	}
	if _, err := engine.SubmitFiatPayment(bob, order.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// The attesting filler is not entitled to dispute their own attestation.
	if _, err := engine.DisputeFiatPayment(bob, order.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("dispute by payer = %v, want ErrUnauthorized", err)
	}
	if _, err := engine.DisputeFiatPayment(alice, order.ID); err != nil {
		t.Fatalf("dispute by recipient: %v", err)
	}
}

func TestDisputeKeepsFillLocked(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	disputed := openDisputedFill(t, engine, state, clock, true)

	if disputed.Filler == nil || disputed.ActiveFillAmount == nil || disputed.FiatDeadline == nil {
		t.Fatalf("dispute must keep the fill fields")
	}
	requireBalance(t, state, state.custody, 1_000)

	// No lifecycle operation may touch a disputed order.
	if _, err := engine.ConfirmFiatPayment(alice, disputed.ID); !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("confirm on disputed = %v, want ErrInvalidOrderStatus", err)
	}
	clock.now = 10_000
	if _, err := engine.ExecuteFiatTransferTimeout(alice, disputed.ID); !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("timeout on disputed = %v, want ErrInvalidOrderStatus", err)
	}
	if _, err := engine.TakeOrder(carol, disputed.ID); !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("take on disputed = %v, want ErrInvalidOrderStatus", err)
	}
}

func TestResolveDisputeConfirmedMatchesSettlement(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	disputed := openDisputedFill(t, engine, state, clock, true)

	resolved, err := engine.ResolveDispute(arbiter, disputed.ID, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusAwaitingFiller {
		t.Fatalf("status = %s, want awaiting_filler", resolved.Status)
	}
	if resolved.FilledAmount.Cmp(big.NewInt(400)) != 0 || resolved.RemainingAmount.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("filled/remaining = %s/%s, want 400/600", resolved.FilledAmount, resolved.RemainingAmount)
	}
	requireBalance(t, state, bob, 400)
	requireBalance(t, state, state.custody, 600)
}

func TestResolveDisputeRejectedMatchesTimeoutUnwind(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	disputed := openDisputedFill(t, engine, state, clock, true)

	resolved, err := engine.ResolveDispute(arbiter, disputed.ID, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusAwaitingFiller {
		t.Fatalf("status = %s, want awaiting_filler", resolved.Status)
	}
	if resolved.FilledAmount.Sign() != 0 || resolved.RemainingAmount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("rejected resolution must not book the fill")
	}
	// The escrow never left custody, so nothing is paid out.
	requireBalance(t, state, bob, 0)
	requireBalance(t, state, state.custody, 1_000)
}

func TestResolveDisputeRejectedRefundsFillerDeposit(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	disputed := openDisputedFill(t, engine, state, clock, false)

	if _, err := engine.ResolveDispute(arbiter, disputed.ID, false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	requireBalance(t, state, bob, 400)
	requireBalance(t, state, state.custody, 0)
}

func TestResolveDisputeConfirmedPaysCreatorOnFiatInitiated(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	disputed := openDisputedFill(t, engine, state, clock, false)

	if _, err := engine.ResolveDispute(arbiter, disputed.ID, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	requireBalance(t, state, alice, 400)
	requireBalance(t, state, bob, 0)
	requireBalance(t, state, state.custody, 0)
}

func TestResolveDisputeAuthorization(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	disputed := openDisputedFill(t, engine, state, clock, true)

	if _, err := engine.ResolveDispute(alice, disputed.ID, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("resolve by creator = %v, want ErrUnauthorized", err)
	}
	if _, err := engine.ResolveDispute(admin, disputed.ID, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("resolve by admin = %v, want ErrUnauthorized", err)
	}
	if _, err := engine.ResolveDispute(arbiter, disputed.ID, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// A second ruling has nothing left to resolve.
	if _, err := engine.ResolveDispute(arbiter, disputed.ID, true); !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("double resolve = %v, want ErrInvalidOrderStatus", err)
	}
}

func TestResolveDisputeRequiresDisputedStatus(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	order := mustCreate(t, engine, state, alice, true, 1_000)
	clock.now = 10
	if _, err := engine.TakeOrder(bob, order.ID); err != nil {
		t.Fatalf("take: %v", err)
	}
	if _, err := engine.ResolveDispute(arbiter, order.ID, true); !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("resolve on awaiting_payment = %v, want ErrInvalidOrderStatus", err)
	}
}

func TestResolveDisputeGatedByPause(t *testing.T) {
	engine, state, clock := newTestEngine(t)
	disputed := openDisputedFill(t, engine, state, clock, true)

	if err := engine.Pause(pauser); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := engine.ResolveDispute(arbiter, disputed.ID, true); !errors.Is(err, ErrPaused) {
		t.Fatalf("resolve while paused = %v, want ErrPaused", err)
	}
	if err := engine.Unpause(pauser); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := engine.ResolveDispute(arbiter, disputed.ID, true); err != nil {
		t.Fatalf("resolve after unpause: %v", err)
	}
}
