package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "github.com/PeerlyPay/peerlypay/native/common"
	"github.com/PeerlyPay/peerlypay/native/p2p"
)

type createOrderParams struct {
	Caller         string `json:"caller"`
	FiatCurrency   string `json:"fiatCurrency"`
	PaymentMethod  string `json:"paymentMethod"`
	AssetInitiated bool   `json:"assetInitiated"`
	Amount         string `json:"amount"`
	ExchangeRate   string `json:"exchangeRate"`
	DurationSecs   uint64 `json:"durationSecs"`
}

type orderActionParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

type takeOrderParams struct {
	Caller     string `json:"caller"`
	ID         uint64 `json:"id"`
	FillAmount string `json:"fillAmount,omitempty"`
}

type resolveDisputeParams struct {
	Caller                string `json:"caller"`
	ID                    uint64 `json:"id"`
	FiatTransferConfirmed bool   `json:"fiatTransferConfirmed"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type getOrderParams struct {
	ID uint64 `json:"id"`
}

type getBalanceParams struct {
	Address string `json:"address"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("params must contain exactly one object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, req *RPCRequest) {
	var params createOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	rate, err := parsePositiveBigInt(params.ExchangeRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	currency, err := p2p.ParseFiatCurrency(params.FiatCurrency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	method, err := p2p.ParsePaymentMethod(params.PaymentMethod)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	order, err := s.engine.CreateOrder(caller, currency, method, params.AssetInitiated, amount, rate, params.DurationSecs)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderToJSON(order))
}

func (s *Server) orderAction(w http.ResponseWriter, req *RPCRequest, fn func(caller [20]byte, id uint64) (*p2p.Order, error)) {
	var params orderActionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	order, err := fn(caller, params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderToJSON(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, req *RPCRequest) {
	s.orderAction(w, req, s.engine.CancelOrder)
}

func (s *Server) handleTakeOrder(w http.ResponseWriter, req *RPCRequest) {
	var params takeOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	var order *p2p.Order
	if params.FillAmount == "" {
		order, err = s.engine.TakeOrder(caller, params.ID)
	} else {
		amount, parseErr := parsePositiveBigInt(params.FillAmount)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", parseErr.Error())
			return
		}
		order, err = s.engine.TakeOrderWithAmount(caller, params.ID, amount)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderToJSON(order))
}

func (s *Server) handleSubmitFiatPayment(w http.ResponseWriter, req *RPCRequest) {
	s.orderAction(w, req, s.engine.SubmitFiatPayment)
}

func (s *Server) handleConfirmFiatPayment(w http.ResponseWriter, req *RPCRequest) {
	s.orderAction(w, req, s.engine.ConfirmFiatPayment)
}

func (s *Server) handleExecuteFiatTransferTimeout(w http.ResponseWriter, req *RPCRequest) {
	s.orderAction(w, req, s.engine.ExecuteFiatTransferTimeout)
}

func (s *Server) handleDisputeFiatPayment(w http.ResponseWriter, req *RPCRequest) {
	s.orderAction(w, req, s.engine.DisputeFiatPayment)
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, req *RPCRequest) {
	var params resolveDisputeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	order, err := s.engine.ResolveDispute(caller, params.ID, params.FiatTransferConfirmed)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderToJSON(order))
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": false})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, req *RPCRequest) {
	var params getOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	order, err := s.engine.Order(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderToJSON(order))
}

func (s *Server) handleGetOrderCount(w http.ResponseWriter, req *RPCRequest) {
	count, err := s.engine.OrderCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"count": count})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, req *RPCRequest) {
	cfg, err := s.engine.Config()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, configToJSON(cfg))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params getBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeP2PInvalidParams, "invalid_params", err.Error())
		return
	}
	cfg, err := s.engine.Config()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	balance, err := s.ledger.Balance(cfg.Token, addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeP2PInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"token": cfg.Token, "balance": bigString(balance)})
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusConflict
	code := codeP2PConflict
	message := "conflict"
	switch {
	case errors.Is(err, p2p.ErrInvalidAmount),
		errors.Is(err, p2p.ErrInvalidExchangeRate),
		errors.Is(err, p2p.ErrInvalidDuration),
		errors.Is(err, p2p.ErrInvalidFillAmount),
		errors.Is(err, p2p.ErrInvalidTimeout):
		status = http.StatusBadRequest
		code = codeP2PInvalidParams
		message = "invalid_params"
	case errors.Is(err, p2p.ErrOrderNotFound),
		errors.Is(err, p2p.ErrConfigNotInitialized):
		status = http.StatusNotFound
		code = codeP2PNotFound
		message = "not_found"
	case errors.Is(err, p2p.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeP2PForbidden
		message = "forbidden"
	case errors.Is(err, p2p.ErrInvalidOrderStatus),
		errors.Is(err, p2p.ErrMissingFiller),
		errors.Is(err, p2p.ErrOrderExpired),
		errors.Is(err, p2p.ErrFiatTransferNotExpired),
		errors.Is(err, p2p.ErrPaused),
		errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, p2p.ErrAlreadyPaused),
		errors.Is(err, p2p.ErrAlreadyUnpaused),
		errors.Is(err, p2p.ErrAlreadyInitialized):
		status = http.StatusConflict
		code = codeP2PConflict
		message = "conflict"
	case errors.Is(err, p2p.ErrOverflow),
		errors.Is(err, p2p.ErrUnderflow):
		status = http.StatusConflict
		code = codeP2PConflict
		message = "conflict"
	default:
		status = http.StatusInternalServerError
		code = codeP2PInternal
		message = "internal_error"
	}
	writeError(w, status, id, code, message, err.Error())
}
