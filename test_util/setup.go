package testutil

import (
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// Testnet chain names and CCTP domains used across tests.
const (
	Sepolia         = "sepolia"
	OptimismSepolia = "optimismSepolia"
	ArbitrumSepolia = "arbitrumSepolia"
	LineaSepolia    = "lineaSepolia"
)

// GetEnvOrDefault returns the environment variable value or a default if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func init() {
	// Try to load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("../.env")
	}
}

func domain(d types.Domain) *types.Domain {
	return &d
}

// ConfigSetup returns a validated configuration for the four supported testnets backed by the memory store.
func ConfigSetup(t *testing.T) (*types.Config, *types.ChainRegistry) {
	t.Helper()

	var testConfig = types.Config{
		Chains: map[string]types.ChainConfig{
			Sepolia: {
				ChainID:            11155111,
				Domain:             domain(0),
				TokenMessenger:     "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5",
				MessageTransmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd",
				USDC:               "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
				RPC:                GetEnvOrDefault("SEPOLIA_RPC", "https://ethereum-sepolia-rpc.publicnode.com"),
			},
			OptimismSepolia: {
				ChainID:            11155420,
				Domain:             domain(2),
				TokenMessenger:     "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5",
				MessageTransmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd",
				USDC:               "0x5fd84259d66Cd46123540766Be93DFE6D43130D7",
				RPC:                GetEnvOrDefault("OPTIMISM_SEPOLIA_RPC", "https://sepolia.optimism.io"),
			},
			ArbitrumSepolia: {
				ChainID:            421614,
				Domain:             domain(3),
				TokenMessenger:     "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5",
				MessageTransmitter: "0xacf1ceef35caac005e15888ddb8a3515c41b4872",
				USDC:               "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d",
				RPC:                GetEnvOrDefault("ARBITRUM_SEPOLIA_RPC", "https://sepolia-rollup.arbitrum.io/rpc"),
			},
			LineaSepolia: {
				ChainID:            59141,
				Domain:             domain(11),
				TokenMessenger:     "0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5",
				MessageTransmitter: "0x7865fafc2db2093669d92c0f33aeef291086befd",
				USDC:               "0x176211869cA2b568f2A7D4EE941E073a821EE1ff",
				RPC:                GetEnvOrDefault("LINEA_SEPOLIA_RPC", "https://rpc.sepolia.linea.build"),
			},
		},
		Circle: types.CircleSettings{
			AttestationBaseURL: "https://iris-api-sandbox.circle.com",
			APIVersion:         "v1",
			FetchRetries:       3,
			FetchRetryInterval: 1,
		},
		Store: types.StoreSettings{Driver: types.StoreMemory},
	}

	require.NoError(t, testConfig.Validate())
	registry, err := testConfig.Registry()
	require.NoError(t, err)

	return &testConfig, registry
}
