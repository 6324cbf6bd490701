package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-orchestrator/circle"
	"github.com/strangelove-ventures/cctp-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-orchestrator/store"
	testutil "github.com/strangelove-ventures/cctp-orchestrator/test_util"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

const (
	testSender    = "0x00000000000000000000000000000000000000a1"
	testRecipient = "0x00000000000000000000000000000000000000b2"
)

type pendingPoller struct{}

func (pendingPoller) AwaitAttestation(ctx context.Context, _ circle.Query, _ int, _ time.Duration) (*types.AttestationRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type apiHarness struct {
	router   http.Handler
	srcChain *testutil.FakeChain
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	cfg, registry := testutil.ConfigSetup(t)
	cfg.EnabledRoutes = map[types.Domain][]types.Domain{0: {3}}

	logger := log.NewNopLogger()
	srcChain, dstChain := testutil.NewFakeChain(), testutil.NewFakeChain()
	filterRegistry, err := initializeFilters(context.Background(), cfg, registry, logger)
	require.NoError(t, err)

	o := relayer.NewOrchestrator(
		orchestratorConfig(cfg),
		registry,
		relayer.Readers{testutil.Sepolia: srcChain, testutil.ArbitrumSepolia: dstChain},
		pendingPoller{},
		store.NewMemoryStore(),
		logger,
	).WithFilters(filterRegistry)
	p := relayer.NewProcessor(o, 16, 1, time.Millisecond, logger)

	router, err := newAPI(o, p, registry, logger).Router(nil)
	require.NoError(t, err)
	return &apiHarness{router: router, srcChain: srcChain}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func transferBody(id, dest, amount string) map[string]string {
	return map[string]string{
		"id":                id,
		"source_chain":      testutil.Sepolia,
		"destination_chain": dest,
		"amount":            amount,
		"recipient":         testRecipient,
		"sender":            testSender,
	}
}

func TestAPIStartAndSubmit(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, "/transfers", transferBody("t1", testutil.ArbitrumSepolia, "2.5"))
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "t1", body["id"])
	require.Equal(t, string(types.StageApprove), body["stage"])
	require.Equal(t, "2.5", body["amount_usdc"])
	require.NotNil(t, body["pending_call"])

	code, body = h.do(t, http.MethodPost, "/transfers/t1/submit", map[string]string{
		"expected_stage": "approve",
		"tx_hash":        common.HexToHash("0x01").Hex(),
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, common.HexToHash("0x01").Hex(), body["approve_tx_hash"])

	code, body = h.do(t, http.MethodPost, "/transfers/t1/submit", map[string]string{
		"expected_stage": "burn",
		"tx_hash":        common.HexToHash("0x02").Hex(),
	})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, string(types.CodeStaleState), body["code"])

	code, body = h.do(t, http.MethodGet, "/transfers/t1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(types.StageApprove), body["stage"])
}

func TestAPIGeneratesCorrelationID(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, "/transfers", transferBody("", testutil.ArbitrumSepolia, "1"))
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, body["id"])
}

func TestAPIErrorStatuses(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, "/transfers", transferBody("t1", "solana", "1"))
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, string(types.CodeUnsupportedChain), body["code"])

	code, body = h.do(t, http.MethodPost, "/transfers", transferBody("t1", testutil.ArbitrumSepolia, "0.0000001"))
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, string(types.CodeValidation), body["code"])

	// optimism is configured but not an enabled route
	code, body = h.do(t, http.MethodPost, "/transfers", transferBody("t1", testutil.OptimismSepolia, "1"))
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body["message"], "route disabled")

	code, _ = h.do(t, http.MethodGet, "/transfers/missing", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodPost, "/transfers", transferBody("t1", testutil.ArbitrumSepolia, "1"))
	require.Equal(t, http.StatusCreated, code)
	code, body = h.do(t, http.MethodPost, "/transfers", transferBody("t1", testutil.ArbitrumSepolia, "1"))
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, string(types.CodeTransferExists), body["code"])

	code, _ = h.do(t, http.MethodPost, "/transfers/t1/advance", map[string]string{"expected_stage": "nonsense"})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = h.do(t, http.MethodPost, "/transfers/t1/resume", map[string]string{"expected_stage": "approve"})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, string(types.CodeInvalidTransition), body["code"])
}

func TestAPIRejectAndAbandon(t *testing.T) {
	h := newAPIHarness(t)
	h.srcChain.SetAllowance(common.HexToAddress(testSender), big.NewInt(5_000_000))

	code, body := h.do(t, http.MethodPost, "/transfers", transferBody("t1", testutil.ArbitrumSepolia, "1"))
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, string(types.StageBurn), body["stage"])

	code, body = h.do(t, http.MethodPost, "/transfers/t1/reject", map[string]string{
		"expected_stage": "burn",
		"reason":         "user rejected the request",
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(types.StageFailed), body["stage"])
	require.Equal(t, string(types.StageBurn), body["failed_stage"])

	code, body = h.do(t, http.MethodPost, "/transfers/t1/resume", map[string]string{"expected_stage": "failed"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(types.StageBurn), body["stage"])

	code, body = h.do(t, http.MethodDelete, "/transfers/t1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(types.StageFailed), body["stage"])
	lastErr, ok := body["last_error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, string(types.CodeAbandoned), lastErr["code"])

	req := httptest.NewRequest(http.MethodGet, "/transfers", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
}

func TestAPIListChains(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/chains", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var chains []types.ChainDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chains))
	require.Len(t, chains, 4)
	require.Equal(t, types.Domain(0), chains[0].Domain)
	require.Equal(t, types.Domain(11), chains[3].Domain)
}
