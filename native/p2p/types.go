package p2p

import (
	"fmt"
	"math/big"
	"strings"
)

// OrderStatus represents the lifecycle states of a peer-to-peer order.
type OrderStatus uint8

const (
	// StatusCreated is transient: an order is promoted to AwaitingFiller in
	// the same operation that mints it.
	StatusCreated OrderStatus = iota
	StatusAwaitingFiller
	StatusAwaitingPayment
	StatusAwaitingConfirmation
	StatusCompleted
	StatusDisputed
	StatusRefunded
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusAwaitingFiller, StatusAwaitingPayment,
		StatusAwaitingConfirmation, StatusCompleted, StatusDisputed,
		StatusRefunded, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusAwaitingFiller:
		return "awaiting_filler"
	case StatusAwaitingPayment:
		return "awaiting_payment"
	case StatusAwaitingConfirmation:
		return "awaiting_confirmation"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusRefunded:
		return "refunded"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// FiatCurrencyCode enumerates the fiat currencies the module knows by name.
// CurrencyOther carries an opaque numeric code for anything else, so new
// currencies round-trip without a schema change.
type FiatCurrencyCode uint8

const (
	CurrencyUSD FiatCurrencyCode = iota
	CurrencyEUR
	CurrencyARS
	CurrencyCOP
	CurrencyGBP
	CurrencyOther
)

// FiatCurrency is a tagged value: Custom is meaningful only when Code is
// CurrencyOther and must be zero otherwise.
type FiatCurrency struct {
	Code   FiatCurrencyCode
	Custom uint32
}

// OtherCurrency wraps a numeric code the module has no name for.
func OtherCurrency(code uint32) FiatCurrency {
	return FiatCurrency{Code: CurrencyOther, Custom: code}
}

// Valid reports whether the currency tag is well formed.
func (c FiatCurrency) Valid() bool {
	if c.Code > CurrencyOther {
		return false
	}
	if c.Code != CurrencyOther && c.Custom != 0 {
		return false
	}
	return true
}

func (c FiatCurrency) String() string {
	switch c.Code {
	case CurrencyUSD:
		return "USD"
	case CurrencyEUR:
		return "EUR"
	case CurrencyARS:
		return "ARS"
	case CurrencyCOP:
		return "COP"
	case CurrencyGBP:
		return "GBP"
	case CurrencyOther:
		return fmt.Sprintf("other(%d)", c.Custom)
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c.Code))
	}
}

// ParseFiatCurrency converts the canonical string form back into a tag. The
// "other(n)" escape form preserves the exact numeric code.
func ParseFiatCurrency(s string) (FiatCurrency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USD":
		return FiatCurrency{Code: CurrencyUSD}, nil
	case "EUR":
		return FiatCurrency{Code: CurrencyEUR}, nil
	case "ARS":
		return FiatCurrency{Code: CurrencyARS}, nil
	case "COP":
		return FiatCurrency{Code: CurrencyCOP}, nil
	case "GBP":
		return FiatCurrency{Code: CurrencyGBP}, nil
	}
	var code uint32
	if _, err := fmt.Sscanf(strings.ToLower(strings.TrimSpace(s)), "other(%d)", &code); err == nil {
		return OtherCurrency(code), nil
	}
	return FiatCurrency{}, fmt.Errorf("p2p: unsupported fiat currency %q", s)
}

// PaymentMethodCode enumerates the known settlement rails for the fiat leg.
type PaymentMethodCode uint8

const (
	MethodBankTransfer PaymentMethodCode = iota
	MethodMobileWallet
	MethodCash
	MethodOther
)

// PaymentMethod mirrors FiatCurrency: Custom is meaningful only for
// MethodOther.
type PaymentMethod struct {
	Code   PaymentMethodCode
	Custom uint32
}

// OtherMethod wraps a numeric payment-method code outside the named set.
func OtherMethod(code uint32) PaymentMethod {
	return PaymentMethod{Code: MethodOther, Custom: code}
}

// Valid reports whether the payment method tag is well formed.
func (m PaymentMethod) Valid() bool {
	if m.Code > MethodOther {
		return false
	}
	if m.Code != MethodOther && m.Custom != 0 {
		return false
	}
	return true
}

func (m PaymentMethod) String() string {
	switch m.Code {
	case MethodBankTransfer:
		return "bank_transfer"
	case MethodMobileWallet:
		return "mobile_wallet"
	case MethodCash:
		return "cash"
	case MethodOther:
		return fmt.Sprintf("other(%d)", m.Custom)
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m.Code))
	}
}

// ParsePaymentMethod converts the canonical string form back into a tag.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bank_transfer":
		return PaymentMethod{Code: MethodBankTransfer}, nil
	case "mobile_wallet":
		return PaymentMethod{Code: MethodMobileWallet}, nil
	case "cash":
		return PaymentMethod{Code: MethodCash}, nil
	}
	var code uint32
	if _, err := fmt.Sscanf(strings.ToLower(strings.TrimSpace(s)), "other(%d)", &code); err == nil {
		return OtherMethod(code), nil
	}
	return PaymentMethod{}, fmt.Errorf("p2p: unsupported payment method %q", s)
}

// Config holds the singleton module configuration written at initialization
// and mutated only by the pause switch.
type Config struct {
	Admin           [20]byte
	Arbiter         [20]byte
	Pauser          [20]byte
	Token           string
	MaxDurationSecs uint64
	FiatTimeoutSecs uint64
	Paused          bool
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Order captures the full state of a single peer-to-peer order. Terminal
// orders are retained, never deleted. AssetInitiated marks the direction:
// true when the creator escrows the custody asset at creation and is owed
// fiat, false when the creator expects the asset and the filler deposits it
// on take.
type Order struct {
	ID               uint64
	Creator          [20]byte
	Filler           *[20]byte
	Token            string
	Amount           *big.Int
	RemainingAmount  *big.Int
	FilledAmount     *big.Int
	ActiveFillAmount *big.Int
	ExchangeRate     *big.Int
	AssetInitiated   bool
	FiatCurrency     FiatCurrency
	PaymentMethod    PaymentMethod
	Status           OrderStatus
	CreatedAt        int64
	Deadline         int64
	FiatDeadline     *int64
}

// Clone returns a deep copy of the order so callers can safely mutate the
// copy without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Filler != nil {
		filler := *o.Filler
		clone.Filler = &filler
	}
	clone.Amount = cloneBigInt(o.Amount)
	clone.RemainingAmount = cloneBigInt(o.RemainingAmount)
	clone.FilledAmount = cloneBigInt(o.FilledAmount)
	if o.ActiveFillAmount != nil {
		clone.ActiveFillAmount = new(big.Int).Set(o.ActiveFillAmount)
	}
	clone.ExchangeRate = cloneBigInt(o.ExchangeRate)
	if o.FiatDeadline != nil {
		deadline := *o.FiatDeadline
		clone.FiatDeadline = &deadline
	}
	return &clone
}

// FillInFlight reports whether a fill is currently locked against the order.
func (o *Order) FillInFlight() bool {
	switch o.Status {
	case StatusAwaitingPayment, StatusAwaitingConfirmation, StatusDisputed:
		return true
	default:
		return false
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// maxAmount bounds all order amounts to the signed 128-bit range. The bound
// keeps the checked accounting arithmetic meaningful: inside it, sums of two
// legal amounts stay representable and an overflow signals corrupted state.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(cloneBigInt(a), cloneBigInt(b))
	if sum.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(cloneBigInt(a), cloneBigInt(b))
	if diff.Sign() < 0 {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// NormalizeToken canonicalises a custody token symbol. Any non-empty symbol
// is accepted; the ledger decides whether it is actually backed.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("p2p: empty token symbol")
	}
	return trimmed, nil
}

// SanitizeOrder validates and normalises the supplied order, returning a
// cloned instance with canonical token casing and non-nil amount fields. The
// accounting identity filled + remaining == amount and the fill-in-flight
// field pairings are enforced here so a corrupted record cannot re-enter the
// engine unnoticed.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("p2p: nil order")
	}
	clone := o.Clone()
	token, err := NormalizeToken(clone.Token)
	if err != nil {
		return nil, err
	}
	clone.Token = token
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("p2p: invalid order status %d", clone.Status)
	}
	if !clone.FiatCurrency.Valid() {
		return nil, fmt.Errorf("p2p: invalid fiat currency tag")
	}
	if !clone.PaymentMethod.Valid() {
		return nil, fmt.Errorf("p2p: invalid payment method tag")
	}
	if clone.Amount.Sign() <= 0 || clone.Amount.Cmp(maxAmount) > 0 {
		return nil, fmt.Errorf("p2p: order amount out of range")
	}
	if clone.RemainingAmount.Sign() < 0 || clone.RemainingAmount.Cmp(clone.Amount) > 0 {
		return nil, fmt.Errorf("p2p: remaining amount out of range")
	}
	sum := new(big.Int).Add(clone.RemainingAmount, clone.FilledAmount)
	if sum.Cmp(clone.Amount) != 0 {
		return nil, fmt.Errorf("p2p: filled and remaining amounts do not add up")
	}
	inFlight := clone.FillInFlight()
	if inFlight != (clone.Filler != nil) {
		return nil, fmt.Errorf("p2p: filler presence does not match status %s", clone.Status)
	}
	if inFlight != (clone.ActiveFillAmount != nil) {
		return nil, fmt.Errorf("p2p: active fill presence does not match status %s", clone.Status)
	}
	if inFlight != (clone.FiatDeadline != nil) {
		return nil, fmt.Errorf("p2p: fiat deadline presence does not match status %s", clone.Status)
	}
	if clone.ActiveFillAmount != nil {
		if clone.ActiveFillAmount.Sign() <= 0 || clone.ActiveFillAmount.Cmp(clone.RemainingAmount) > 0 {
			return nil, fmt.Errorf("p2p: active fill amount out of range")
		}
	}
	return clone, nil
}
