package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/PeerlyPay/peerlypay/native/p2p"
	"github.com/PeerlyPay/peerlypay/storage"
)

// Manager provides durable reads and writes for the native p2p module: the
// configuration singleton, the order counter, orders by id, and the token
// ledger the custody transfers settle against. Keys are keccak-hashed and
// values RLP-encoded.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	configKey     = ethcrypto.Keccak256([]byte("p2p-config"))
	orderCountKey = ethcrypto.Keccak256([]byte("p2p-order-count"))
	orderPrefix   = []byte("p2p-order:")
	balancePrefix = []byte("balance:")
	custodyVault  = deriveCustodyAddress()
)

func deriveCustodyAddress() [20]byte {
	hash := ethcrypto.Keccak256([]byte("p2p-custody-vault"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

func orderKey(id uint64) []byte {
	buf := make([]byte, len(orderPrefix)+8)
	copy(buf, orderPrefix)
	binary.BigEndian.PutUint64(buf[len(orderPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr [20]byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr[:])
	return ethcrypto.Keccak256(buf)
}

// storedConfig is the RLP shape of the module configuration.
type storedConfig struct {
	Admin           [20]byte
	Arbiter         [20]byte
	Pauser          [20]byte
	Token           string
	MaxDurationSecs uint64
	FiatTimeoutSecs uint64
	Paused          bool
}

// storedOrder flattens the optional order fields into presence flags so the
// record survives RLP, which has no encoding for nil scalars or signed
// integers.
type storedOrder struct {
	ID               uint64
	Creator          [20]byte
	HasFiller        bool
	Filler           [20]byte
	Token            string
	Amount           *big.Int
	RemainingAmount  *big.Int
	FilledAmount     *big.Int
	HasActiveFill    bool
	ActiveFillAmount *big.Int
	ExchangeRate     *big.Int
	AssetInitiated   bool
	CurrencyCode     uint8
	CurrencyCustom   uint32
	MethodCode       uint8
	MethodCustom     uint32
	Status           uint8
	CreatedAt        uint64
	Deadline         uint64
	HasFiatDeadline  bool
	FiatDeadline     uint64
}

func encodeOrder(order *p2p.Order) *storedOrder {
	stored := &storedOrder{
		ID:              order.ID,
		Creator:         order.Creator,
		Token:           order.Token,
		Amount:          order.Amount,
		RemainingAmount: order.RemainingAmount,
		FilledAmount:    order.FilledAmount,
		ExchangeRate:    order.ExchangeRate,
		AssetInitiated:  order.AssetInitiated,
		CurrencyCode:    uint8(order.FiatCurrency.Code),
		CurrencyCustom:  order.FiatCurrency.Custom,
		MethodCode:      uint8(order.PaymentMethod.Code),
		MethodCustom:    order.PaymentMethod.Custom,
		Status:          uint8(order.Status),
		CreatedAt:       uint64(order.CreatedAt),
		Deadline:        uint64(order.Deadline),
	}
	if order.Filler != nil {
		stored.HasFiller = true
		stored.Filler = *order.Filler
	}
	if order.ActiveFillAmount != nil {
		stored.HasActiveFill = true
		stored.ActiveFillAmount = order.ActiveFillAmount
	} else {
		stored.ActiveFillAmount = big.NewInt(0)
	}
	if order.FiatDeadline != nil {
		stored.HasFiatDeadline = true
		stored.FiatDeadline = uint64(*order.FiatDeadline)
	}
	return stored
}

func decodeOrder(stored *storedOrder) *p2p.Order {
	order := &p2p.Order{
		ID:              stored.ID,
		Creator:         stored.Creator,
		Token:           stored.Token,
		Amount:          stored.Amount,
		RemainingAmount: stored.RemainingAmount,
		FilledAmount:    stored.FilledAmount,
		ExchangeRate:    stored.ExchangeRate,
		AssetInitiated:  stored.AssetInitiated,
		FiatCurrency:    p2p.FiatCurrency{Code: p2p.FiatCurrencyCode(stored.CurrencyCode), Custom: stored.CurrencyCustom},
		PaymentMethod:   p2p.PaymentMethod{Code: p2p.PaymentMethodCode(stored.MethodCode), Custom: stored.MethodCustom},
		Status:          p2p.OrderStatus(stored.Status),
		CreatedAt:       int64(stored.CreatedAt),
		Deadline:        int64(stored.Deadline),
	}
	if stored.HasFiller {
		filler := stored.Filler
		order.Filler = &filler
	}
	if stored.HasActiveFill {
		order.ActiveFillAmount = new(big.Int).Set(stored.ActiveFillAmount)
	}
	if stored.HasFiatDeadline {
		deadline := int64(stored.FiatDeadline)
		order.FiatDeadline = &deadline
	}
	return order
}

// ConfigPut persists the module configuration singleton.
func (m *Manager) ConfigPut(cfg *p2p.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil config")
	}
	stored := &storedConfig{
		Admin:           cfg.Admin,
		Arbiter:         cfg.Arbiter,
		Pauser:          cfg.Pauser,
		Token:           cfg.Token,
		MaxDurationSecs: cfg.MaxDurationSecs,
		FiatTimeoutSecs: cfg.FiatTimeoutSecs,
		Paused:          cfg.Paused,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.db.Put(configKey, encoded)
}

// ConfigGet loads the module configuration, reporting false when the module
// has not been initialized.
func (m *Manager) ConfigGet() (*p2p.Config, bool) {
	ok, err := m.db.Has(configKey)
	if err != nil || !ok {
		return nil, false
	}
	data, err := m.db.Get(configKey)
	if err != nil {
		return nil, false
	}
	stored := new(storedConfig)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &p2p.Config{
		Admin:           stored.Admin,
		Arbiter:         stored.Arbiter,
		Pauser:          stored.Pauser,
		Token:           stored.Token,
		MaxDurationSecs: stored.MaxDurationSecs,
		FiatTimeoutSecs: stored.FiatTimeoutSecs,
		Paused:          stored.Paused,
	}, true
}

// OrderCountPut persists the order counter.
func (m *Manager) OrderCountPut(count uint64) error {
	encoded, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	return m.db.Put(orderCountKey, encoded)
}

// OrderCountGet loads the order counter.
func (m *Manager) OrderCountGet() (uint64, bool) {
	ok, err := m.db.Has(orderCountKey)
	if err != nil || !ok {
		return 0, false
	}
	data, err := m.db.Get(orderCountKey)
	if err != nil {
		return 0, false
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, false
	}
	return count, true
}

// OrderPut validates and persists an order snapshot.
func (m *Manager) OrderPut(order *p2p.Order) error {
	sanitized, err := p2p.SanitizeOrder(order)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(encodeOrder(sanitized))
	if err != nil {
		return err
	}
	return m.db.Put(orderKey(sanitized.ID), encoded)
}

// OrderGet loads an order by id.
func (m *Manager) OrderGet(id uint64) (*p2p.Order, bool) {
	key := orderKey(id)
	ok, err := m.db.Has(key)
	if err != nil || !ok {
		return nil, false
	}
	data, err := m.db.Get(key)
	if err != nil {
		return nil, false
	}
	stored := new(storedOrder)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return decodeOrder(stored), true
}

// CustodyAddress returns the module vault address funds are escrowed under.
func (m *Manager) CustodyAddress() [20]byte {
	return custodyVault
}

// Balance returns the ledger balance of addr for the given token symbol.
func (m *Manager) Balance(token string, addr [20]byte) (*big.Int, error) {
	key := balanceKey(addr, token)
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (m *Manager) setBalance(token string, addr [20]byte, balance *big.Int) error {
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance")
	}
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return m.db.Put(balanceKey(addr, token), encoded)
}

// TokenTransfer debits from and credits to atomically with respect to the
// enclosing operation. The transfer fails without effect when the source
// balance is insufficient.
func (m *Manager) TokenTransfer(token string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBalance, err := m.Balance(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("state: insufficient balance")
	}
	toBalance, err := m.Balance(token, to)
	if err != nil {
		return err
	}
	if err := m.setBalance(token, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return m.setBalance(token, to, new(big.Int).Add(toBalance, amount))
}

// Mint credits freshly issued tokens to addr. Used at genesis and by
// operator tooling; the lifecycle engine itself only ever transfers.
func (m *Manager) Mint(token string, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	balance, err := m.Balance(token, addr)
	if err != nil {
		return err
	}
	return m.setBalance(token, addr, new(big.Int).Add(balance, amount))
}
