package server

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paygate "github.com/x402lab/paygate"
	"github.com/x402lab/paygate/config"
)

const (
	testTxHash    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testToken     = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	testRecipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testSender    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// countingReader is a chain.Reader that serves one canned receipt and
// counts RPC round trips.
type countingReader struct {
	receipt *gethtypes.Receipt
	calls   int
}

func (r *countingReader) TransactionReceipt(_ context.Context, _ common.Hash) (*gethtypes.Receipt, error) {
	r.calls++
	if r.receipt == nil {
		return nil, ethereum.NotFound
	}
	return r.receipt, nil
}

func (r *countingReader) TransactionByHash(_ context.Context, _ common.Hash) (*gethtypes.Transaction, bool, error) {
	r.calls++
	return gethtypes.NewTx(&gethtypes.LegacyTx{}), false, nil
}

func paidReceipt(value *big.Int) *gethtypes.Receipt {
	topic := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	return &gethtypes.Receipt{
		Status: gethtypes.ReceiptStatusSuccessful,
		Logs: []*gethtypes.Log{{
			Address: common.HexToAddress(testToken),
			Topics: []common.Hash{
				topic,
				common.BytesToHash(common.LeftPadBytes(common.HexToAddress(testSender).Bytes(), 32)),
				common.BytesToHash(common.LeftPadBytes(common.HexToAddress(testRecipient).Bytes(), 32)),
			},
			Data: common.LeftPadBytes(value.Bytes(), 32),
		}},
	}
}

type testEnv struct {
	router       *gin.Engine
	reader       *countingReader
	upstreamHits *int
}

func newEnv(t *testing.T, mutate func(*config.Config), reader *countingReader) *testEnv {
	t.Helper()

	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if strings.HasSuffix(r.URL.Path, "/models") {
			w.Write([]byte(`{"data":[{"id":"openai/gpt-4o-mini"}]}`))
			return
		}
		w.Write([]byte(`{"id":"gen-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"total_tokens":2}}`))
	}))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		ListenAddr:           ":0",
		UpstreamURL:          upstream.URL,
		UpstreamKey:          "test-key",
		RequirePayment:       true,
		ValidateTransactions: true,
		ChainRPCURL:          "http://unused",
		PaymentRecipient:     testRecipient,
		TokenAddress:         testToken,
		TokenSymbol:          "PYUSD",
		TokenDecimals:        6,
		Network:              "base-sepolia",
		MinAmount:            big.NewInt(50000),
	}
	if mutate != nil {
		mutate(cfg)
	}

	opts := []paygate.Option{paygate.WithHTTPClient(upstream.Client())}
	if reader != nil {
		opts = append(opts, paygate.WithReader(reader))
	}

	gw, err := paygate.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	return &testEnv{
		router:       NewRouter(gw),
		reader:       reader,
		upstreamHits: &hits,
	}
}

func (e *testEnv) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	env := newEnv(t, nil, &countingReader{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.Contains(t, rr.Body.String(), `"timestamp"`)
}

func TestChat_MissingMessages(t *testing.T) {
	env := newEnv(t, nil, &countingReader{})

	rr := env.post(`{"model":"openai/gpt-4o-mini"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Messages array is required")
	assert.Zero(t, *env.upstreamHits)
}

func TestChat_MessagesNotAList(t *testing.T) {
	env := newEnv(t, nil, &countingReader{})

	rr := env.post(`{"model":"openai/gpt-4o-mini","messages":"hi"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChat_MissingModel(t *testing.T) {
	env := newEnv(t, nil, &countingReader{})

	rr := env.post(`{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Model is required")
}

func TestChat_NoProofYields402Challenge(t *testing.T) {
	reader := &countingReader{}
	env := newEnv(t, nil, reader)

	rr := env.post(`{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"scheme":"exact"`)
	assert.Contains(t, body, `"network":"base-sepolia"`)
	assert.Contains(t, body, `"maxAmountRequired":"50000"`)
	assert.Contains(t, body, `"payTo":"`+testRecipient+`"`)
	assert.Contains(t, body, `"token":"PYUSD"`)
	assert.Contains(t, body, `"x402Version":1`)

	assert.Zero(t, *env.upstreamHits, "no upstream call on challenge")
	assert.Zero(t, reader.calls, "policy short-circuits before any chain RPC")
}

func TestChat_ValidPaymentForwardsOnce(t *testing.T) {
	reader := &countingReader{receipt: paidReceipt(big.NewInt(50000))}
	env := newEnv(t, nil, reader)

	rr := env.post(`{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"hi"}],"tx_hash":"` + testTxHash + `"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"chat.completion"`)
	assert.Equal(t, 1, *env.upstreamHits, "exactly one upstream call")
}

func TestChat_FailedTransactionNever200(t *testing.T) {
	receipt := &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed}
	reader := &countingReader{receipt: receipt}
	env := newEnv(t, nil, reader)

	rr := env.post(`{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"hi"}],"tx_hash":"` + testTxHash + `"}`)

	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid payment transaction")
	assert.Contains(t, rr.Body.String(), `"accepts"`)
	assert.Zero(t, *env.upstreamHits)
}

func TestChat_InsufficientPaymentRejected(t *testing.T) {
	reader := &countingReader{receipt: paidReceipt(big.NewInt(49999))}
	env := newEnv(t, nil, reader)

	rr := env.post(`{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"hi"}],"tx_hash":"` + testTxHash + `"}`)

	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	assert.Contains(t, rr.Body.String(), `"details"`)
	assert.Zero(t, *env.upstreamHits)
}

func TestChat_EnforcementDisabledSkipsChain(t *testing.T) {
	reader := &countingReader{}
	env := newEnv(t, func(cfg *config.Config) {
		cfg.RequirePayment = false
	}, reader)

	rr := env.post(`{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, *env.upstreamHits)
	assert.Zero(t, reader.calls, "no chain RPC when enforcement is off")
}

func TestChat_StreamingPassthrough(t *testing.T) {
	chunks := "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(chunks))
	}))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		ListenAddr:     ":0",
		UpstreamURL:    upstream.URL,
		UpstreamKey:    "test-key",
		RequirePayment: false,
		ChainRPCURL:    "http://unused",
		TokenSymbol:    "PYUSD",
		Network:        "base-sepolia",
		MinAmount:      big.NewInt(50000),
	}
	gw, err := paygate.New(cfg, paygate.WithHTTPClient(upstream.Client()))
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	router := NewRouter(gw)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"openai/gpt-4o-mini","messages":[{"role":"user","content":"hi"}],"stream":true}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, chunks, rr.Body.String())
}

func TestModels_NoPaymentGating(t *testing.T) {
	reader := &countingReader{}
	env := newEnv(t, nil, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "openai/gpt-4o-mini")
	assert.Zero(t, reader.calls)
}
