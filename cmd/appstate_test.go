package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

func setRPCEnv(t *testing.T) {
	for _, key := range []string{"SEPOLIA_RPC", "OPTIMISM_SEPOLIA_RPC", "ARBITRUM_SEPOLIA_RPC", "LINEA_SEPOLIA_RPC"} {
		t.Setenv(key, "http://localhost:8545")
	}
}

func TestParseSampleConfig(t *testing.T) {
	setRPCEnv(t)

	cfg, err := ParseConfig("../config/sample-config.yaml")
	require.NoError(t, err)

	registry, err := cfg.Registry()
	require.NoError(t, err)
	linea, err := registry.Describe("lineaSepolia")
	require.NoError(t, err)
	require.Equal(t, types.Domain(11), linea.Domain)
	require.Equal(t, uint64(59141), linea.ChainID)
	require.Equal(t, "http://localhost:8545", linea.RPC)
	require.Equal(t, uint64(100000), linea.MinAmount)

	require.Equal(t, 60, cfg.Circle.FetchRetries)
	require.Equal(t, 5*time.Second, cfg.Circle.PollInterval())
	require.Equal(t, 3*time.Second, cfg.Transfer.ReceiptPollInterval)
	require.Equal(t, 3*time.Second, cfg.Transfer.StepRetryInterval)
	require.Equal(t, 72*time.Hour, cfg.Transfer.Retention)
	require.Equal(t, []types.Domain{2, 3, 11}, cfg.EnabledRoutes[0])
	require.Equal(t, types.StoreMemory, cfg.Store.Driver)
	require.Len(t, cfg.Filters, 1)
	require.False(t, cfg.Filters[0].Enabled)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	setRPCEnv(t)

	missingDomain := []byte(`
chains:
  sepolia:
    chain-id: 11155111
    token-messenger: "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5"
    message-transmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd"
    usdc: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
    rpc: ${SEPOLIA_RPC}
circle:
  attestation-base-url: "https://iris-api-sandbox.circle.com"
  fetch-retries: 3
  fetch-retry-interval: 1
`)
	_, err := ParseConfigBytes(missingDomain)
	require.ErrorContains(t, err, "domain must be configured")

	duplicateDomain := []byte(`
chains:
  a:
    domain: 0
    token-messenger: "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5"
    message-transmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd"
    usdc: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
    rpc: ${SEPOLIA_RPC}
  b:
    domain: 0
    token-messenger: "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5"
    message-transmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd"
    usdc: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
    rpc: ${SEPOLIA_RPC}
circle:
  attestation-base-url: "https://iris-api-sandbox.circle.com"
  fetch-retries: 3
  fetch-retry-interval: 1
`)
	_, err = ParseConfigBytes(duplicateDomain)
	require.Error(t, err)

	badStore := []byte(`
chains:
  sepolia:
    domain: 0
    token-messenger: "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5"
    message-transmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd"
    usdc: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
    rpc: ${SEPOLIA_RPC}
circle:
  attestation-base-url: "https://iris-api-sandbox.circle.com"
  fetch-retries: 3
  fetch-retry-interval: 1
store:
  driver: postgres
`)
	_, err = ParseConfigBytes(badStore)
	require.ErrorContains(t, err, "url is required")
}

func TestParseConfigStepRetryIntervalDefaultsToReceiptInterval(t *testing.T) {
	setRPCEnv(t)

	raw := []byte(`
chains:
  sepolia:
    domain: 0
    token-messenger: "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5"
    message-transmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd"
    usdc: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
    rpc: ${SEPOLIA_RPC}
circle:
  attestation-base-url: "https://iris-api-sandbox.circle.com"
  fetch-retries: 3
  fetch-retry-interval: 30
transfer:
  receipt-poll-interval: 2s
`)
	cfg, err := ParseConfigBytes(raw)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.Transfer.StepRetryInterval)
	require.Equal(t, 30*time.Second, cfg.Circle.PollInterval())
}
