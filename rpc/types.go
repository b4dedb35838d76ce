package rpc

import (
	"errors"
	"math/big"
	"strings"

	"github.com/PeerlyPay/peerlypay/crypto"
	"github.com/PeerlyPay/peerlypay/native/p2p"
)

type orderJSON struct {
	ID               uint64 `json:"id"`
	Creator          string `json:"creator"`
	Filler           string `json:"filler,omitempty"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	RemainingAmount  string `json:"remainingAmount"`
	FilledAmount     string `json:"filledAmount"`
	ActiveFillAmount string `json:"activeFillAmount,omitempty"`
	ExchangeRate     string `json:"exchangeRate"`
	AssetInitiated   bool   `json:"assetInitiated"`
	FiatCurrency     string `json:"fiatCurrency"`
	PaymentMethod    string `json:"paymentMethod"`
	Status           string `json:"status"`
	CreatedAt        int64  `json:"createdAt"`
	Deadline         int64  `json:"deadline"`
	FiatDeadline     int64  `json:"fiatDeadline,omitempty"`
}

type configJSON struct {
	Admin           string `json:"admin"`
	Arbiter         string `json:"arbiter"`
	Pauser          string `json:"pauser"`
	Token           string `json:"token"`
	MaxDurationSecs uint64 `json:"maxDurationSecs"`
	FiatTimeoutSecs uint64 `json:"fiatTimeoutSecs"`
	Paused          bool   `json:"paused"`
}

func encodeAddress(raw [20]byte) string {
	return crypto.NewAddress(crypto.PayPrefix, raw[:]).String()
}

func orderToJSON(order *p2p.Order) orderJSON {
	out := orderJSON{
		ID:              order.ID,
		Creator:         encodeAddress(order.Creator),
		Token:           order.Token,
		Amount:          bigString(order.Amount),
		RemainingAmount: bigString(order.RemainingAmount),
		FilledAmount:    bigString(order.FilledAmount),
		ExchangeRate:    bigString(order.ExchangeRate),
		AssetInitiated:  order.AssetInitiated,
		FiatCurrency:    order.FiatCurrency.String(),
		PaymentMethod:   order.PaymentMethod.String(),
		Status:          order.Status.String(),
		CreatedAt:       order.CreatedAt,
		Deadline:        order.Deadline,
	}
	if order.Filler != nil {
		out.Filler = encodeAddress(*order.Filler)
	}
	if order.ActiveFillAmount != nil {
		out.ActiveFillAmount = order.ActiveFillAmount.String()
	}
	if order.FiatDeadline != nil {
		out.FiatDeadline = *order.FiatDeadline
	}
	return out
}

func configToJSON(cfg *p2p.Config) configJSON {
	return configJSON{
		Admin:           encodeAddress(cfg.Admin),
		Arbiter:         encodeAddress(cfg.Arbiter),
		Pauser:          encodeAddress(cfg.Pauser),
		Token:           cfg.Token,
		MaxDurationSecs: cfg.MaxDurationSecs,
		FiatTimeoutSecs: cfg.FiatTimeoutSecs,
		Paused:          cfg.Paused,
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBech32(raw string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	return addr.Array(), nil
}

func parsePositiveBigInt(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount must not be empty")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer")
	}
	if value.Sign() <= 0 {
		return nil, errors.New("amount must be positive")
	}
	return value, nil
}
