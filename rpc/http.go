package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	nativecommon "github.com/PeerlyPay/peerlypay/native/common"
	"github.com/PeerlyPay/peerlypay/native/p2p"
	"github.com/PeerlyPay/peerlypay/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "PEERLYPAY_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
	codeRateLimited    = -32020

	codeP2PInvalidParams = -32021
	codeP2PNotFound      = -32022
	codeP2PForbidden     = -32023
	codeP2PConflict      = -32024
	codeP2PInternal      = -32025
)

// Ledger exposes the balance reads served by the query surface.
type Ledger interface {
	Balance(token string, addr [20]byte) (*big.Int, error)
}

// Server dispatches the p2p JSON-RPC surface. Mutating methods require the
// operator bearer token; read methods are open.
type Server struct {
	engine *p2p.Engine
	ledger Ledger

	mu        sync.Mutex
	quotas    map[string]nativecommon.QuotaNow
	quota     nativecommon.Quota
	authToken string
	nowFn     func() time.Time
	metrics   *observability.ModuleMetricsRegistry
}

// NewServer builds a server around the engine and ledger. The bearer token is
// read from PEERLYPAY_RPC_TOKEN; when empty, mutating methods are rejected.
func NewServer(engine *p2p.Engine, ledger Ledger) *Server {
	return &Server{
		engine:    engine,
		ledger:    ledger,
		quotas:    make(map[string]nativecommon.QuotaNow),
		quota:     nativecommon.Quota{MaxRequestsPerMin: 120},
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		nowFn:     time.Now,
		metrics:   observability.ModuleMetrics(),
	}
}

// SetQuota overrides the per-source request quota.
func (s *Server) SetQuota(q nativecommon.Quota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = q
}

// Handler returns the HTTP handler serving the RPC endpoint and metrics.
func (s *Server) Handler(metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	if metricsPath != "" {
		mux.Handle(metricsPath, promhttp.Handler())
	}
	return mux
}

// Start serves the RPC endpoint until the listener fails.
func (s *Server) Start(addr, metricsPath string) error {
	return http.ListenAndServe(addr, s.Handler(metricsPath))
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

func (s *Server) allowSource(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	epoch := uint64(s.nowFn().Unix() / 60)
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := nativecommon.CheckQuota(s.quota, epoch, s.quotas[host], 1, 0)
	if err != nil {
		return false
	}
	s.quotas[host] = next
	return true
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "invalid_request", "POST required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")

	start := time.Now()
	outcome := "ok"
	defer func() {
		s.metrics.ObserveRequest("p2p", req.Method, outcome, time.Since(start))
	}()

	if mutating(req.Method) {
		if authErr := s.requireAuth(r); authErr != nil {
			outcome = "unauthorized"
			s.metrics.ObserveError("p2p", req.Method, fmt.Sprintf("%d", authErr.Code))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		if !s.allowSource(r) {
			outcome = "throttled"
			s.metrics.ObserveError("p2p", req.Method, fmt.Sprintf("%d", codeRateLimited))
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate_limited", "request quota exceeded")
			return
		}
	}

	switch req.Method {
	case "p2p_createOrder":
		s.handleCreateOrder(w, &req)
	case "p2p_cancelOrder":
		s.handleCancelOrder(w, &req)
	case "p2p_takeOrder":
		s.handleTakeOrder(w, &req)
	case "p2p_submitFiatPayment":
		s.handleSubmitFiatPayment(w, &req)
	case "p2p_confirmFiatPayment":
		s.handleConfirmFiatPayment(w, &req)
	case "p2p_executeFiatTransferTimeout":
		s.handleExecuteFiatTransferTimeout(w, &req)
	case "p2p_disputeFiatPayment":
		s.handleDisputeFiatPayment(w, &req)
	case "p2p_resolveDispute":
		s.handleResolveDispute(w, &req)
	case "p2p_pause":
		s.handlePause(w, &req)
	case "p2p_unpause":
		s.handleUnpause(w, &req)
	case "p2p_getOrder":
		s.handleGetOrder(w, &req)
	case "p2p_getOrderCount":
		s.handleGetOrderCount(w, &req)
	case "p2p_getConfig":
		s.handleGetConfig(w, &req)
	case "p2p_getBalance":
		s.handleGetBalance(w, &req)
	default:
		outcome = "unknown_method"
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
	}
}

func mutating(method string) bool {
	switch method {
	case "p2p_getOrder", "p2p_getOrderCount", "p2p_getConfig", "p2p_getBalance":
		return false
	default:
		return true
	}
}
