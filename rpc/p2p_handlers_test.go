package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PeerlyPay/peerlypay/core/state"
	"github.com/PeerlyPay/peerlypay/crypto"
	nativecommon "github.com/PeerlyPay/peerlypay/native/common"
	"github.com/PeerlyPay/peerlypay/native/p2p"
	"github.com/PeerlyPay/peerlypay/storage"
)

const testBearerToken = "test-operator-token"

func testAddr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func bech(raw [20]byte) string {
	return crypto.NewAddress(crypto.PayPrefix, raw[:]).String()
}

type rpcFixture struct {
	server  *Server
	manager *state.Manager
	clock   int64
}

func newFixture(t *testing.T) *rpcFixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := p2p.NewEngine()
	engine.SetState(manager)

	fx := &rpcFixture{manager: manager}
	engine.SetNowFunc(func() int64 { return fx.clock })

	_, err := engine.Initialize(testAddr(1), testAddr(2), testAddr(3), "PPUSD", 2_592_000, 1_800)
	require.NoError(t, err)

	fx.server = NewServer(engine, manager)
	fx.server.authToken = testBearerToken
	fx.server.nowFn = func() time.Time { return time.Unix(1_000, 0) }
	return fx
}

func (fx *rpcFixture) call(t *testing.T, method string, params interface{}, token string) (*RPCResponse, int) {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  []json.RawMessage{raw},
		ID:      1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.1:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.server.handle(rec, req)

	resp := new(RPCResponse)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(resp))
	return resp, rec.Code
}

func (fx *rpcFixture) createOrder(t *testing.T, creator [20]byte, assetInitiated bool, amount int64) orderJSON {
	t.Helper()
	if assetInitiated {
		require.NoError(t, fx.manager.Mint("PPUSD", creator, big.NewInt(amount)))
	}
	resp, status := fx.call(t, "p2p_createOrder", createOrderParams{
		Caller:         bech(creator),
		FiatCurrency:   "USD",
		PaymentMethod:  "bank_transfer",
		AssetInitiated: assetInitiated,
		Amount:         fmt.Sprintf("%d", amount),
		ExchangeRate:   "100",
		DurationSecs:   600,
	}, testBearerToken)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	return decodeOrderResult(t, resp)
}

func decodeOrderResult(t *testing.T, resp *RPCResponse) orderJSON {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var order orderJSON
	require.NoError(t, json.Unmarshal(raw, &order))
	return order
}

func TestCreateOrderEndToEnd(t *testing.T) {
	fx := newFixture(t)
	creator := testAddr(0xA)

	order := fx.createOrder(t, creator, true, 1_000)
	require.EqualValues(t, 0, order.ID)
	require.Equal(t, "awaiting_filler", order.Status)
	require.Equal(t, "1000", order.Amount)
	require.Equal(t, bech(creator), order.Creator)

	balance, err := fx.manager.Balance("PPUSD", creator)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
}

func TestFullLifecycleOverRPC(t *testing.T) {
	fx := newFixture(t)
	creator := testAddr(0xA)
	filler := testAddr(0xB)

	order := fx.createOrder(t, creator, true, 1_000)

	fx.clock = 10
	resp, _ := fx.call(t, "p2p_takeOrder", takeOrderParams{
		Caller:     bech(filler),
		ID:         order.ID,
		FillAmount: "200",
	}, testBearerToken)
	require.Nil(t, resp.Error)
	taken := decodeOrderResult(t, resp)
	require.Equal(t, "awaiting_payment", taken.Status)
	require.Equal(t, "200", taken.ActiveFillAmount)
	require.EqualValues(t, 1_810, taken.FiatDeadline)

	resp, _ = fx.call(t, "p2p_submitFiatPayment", orderActionParams{Caller: bech(filler), ID: order.ID}, testBearerToken)
	require.Nil(t, resp.Error)

	resp, _ = fx.call(t, "p2p_confirmFiatPayment", orderActionParams{Caller: bech(creator), ID: order.ID}, testBearerToken)
	require.Nil(t, resp.Error)
	settled := decodeOrderResult(t, resp)
	require.Equal(t, "awaiting_filler", settled.Status)
	require.Equal(t, "800", settled.RemainingAmount)
	require.Equal(t, "200", settled.FilledAmount)

	resp, _ = fx.call(t, "p2p_getBalance", getBalanceParams{Address: bech(filler)}, "")
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var balance map[string]string
	require.NoError(t, json.Unmarshal(raw, &balance))
	require.Equal(t, "200", balance["balance"])
	require.Equal(t, "PPUSD", balance["token"])
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	fx := newFixture(t)
	resp, status := fx.call(t, "p2p_createOrder", createOrderParams{Caller: bech(testAddr(0xA))}, "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp, status = fx.call(t, "p2p_createOrder", createOrderParams{Caller: bech(testAddr(0xA))}, "wrong-token")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestReadMethodsAreOpen(t *testing.T) {
	fx := newFixture(t)
	resp, status := fx.call(t, "p2p_getConfig", struct{}{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var cfg configJSON
	require.NoError(t, json.Unmarshal(raw, &cfg))
	require.Equal(t, "PPUSD", cfg.Token)
	require.Equal(t, bech(testAddr(2)), cfg.Arbiter)
	require.False(t, cfg.Paused)
}

func TestGetOrderNotFound(t *testing.T) {
	fx := newFixture(t)
	resp, status := fx.call(t, "p2p_getOrder", getOrderParams{ID: 99}, "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeP2PNotFound, resp.Error.Code)
}

func TestInvalidAddressRejected(t *testing.T) {
	fx := newFixture(t)
	resp, status := fx.call(t, "p2p_getBalance", getBalanceParams{Address: "not-an-address"}, "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeP2PInvalidParams, resp.Error.Code)
}

func TestDomainErrorsMapToRPCCodes(t *testing.T) {
	fx := newFixture(t)
	creator := testAddr(0xA)
	order := fx.createOrder(t, creator, true, 1_000)

	// A stranger cancelling is forbidden, not a conflict.
	resp, status := fx.call(t, "p2p_cancelOrder", orderActionParams{Caller: bech(testAddr(0xB)), ID: order.ID}, testBearerToken)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeP2PForbidden, resp.Error.Code)

	// Confirming before any fill is a state conflict.
	resp, status = fx.call(t, "p2p_confirmFiatPayment", orderActionParams{Caller: bech(creator), ID: order.ID}, testBearerToken)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeP2PConflict, resp.Error.Code)
}

func TestPauseOverRPC(t *testing.T) {
	fx := newFixture(t)
	resp, _ := fx.call(t, "p2p_pause", callerParams{Caller: bech(testAddr(3))}, testBearerToken)
	require.Nil(t, resp.Error)

	require.NoError(t, fx.manager.Mint("PPUSD", testAddr(0xA), big.NewInt(100)))
	resp, status := fx.call(t, "p2p_createOrder", createOrderParams{
		Caller:        bech(testAddr(0xA)),
		FiatCurrency:  "USD",
		PaymentMethod: "bank_transfer",
		Amount:        "100",
		ExchangeRate:  "100",
		DurationSecs:  600,
	}, testBearerToken)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeP2PConflict, resp.Error.Code)

	resp, _ = fx.call(t, "p2p_unpause", callerParams{Caller: bech(testAddr(3))}, testBearerToken)
	require.Nil(t, resp.Error)
}

func TestRequestQuota(t *testing.T) {
	fx := newFixture(t)
	fx.server.SetQuota(nativecommon.Quota{MaxRequestsPerMin: 1})

	creator := testAddr(0xA)
	fx.createOrder(t, creator, false, 100)

	resp, status := fx.call(t, "p2p_cancelOrder", orderActionParams{Caller: bech(creator), ID: 0}, testBearerToken)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	// Reads are never throttled.
	resp, _ = fx.call(t, "p2p_getOrderCount", struct{}{}, "")
	require.Nil(t, resp.Error)
}

func TestMethodNotFound(t *testing.T) {
	fx := newFixture(t)
	resp, status := fx.call(t, "p2p_unknown", struct{}{}, testBearerToken)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}
