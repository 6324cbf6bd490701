package ethereum_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	testutil "github.com/strangelove-ventures/cctp-orchestrator/test_util"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

func messageSentLog(t *testing.T, from common.Address, msg []byte) *ethtypes.Log {
	t.Helper()
	data, err := ethereum.PackMessageSentData(msg)
	require.NoError(t, err)
	return &ethtypes.Log{
		Address: from,
		Topics:  []common.Hash{ethereum.MessageSentTopic()},
		Data:    data,
	}
}

func TestMessageSentTopic(t *testing.T) {
	require.Equal(t, crypto.Keccak256Hash([]byte("MessageSent(bytes)")), ethereum.MessageSentTopic())
}

func TestExtractBurnMessage(t *testing.T) {
	msg := testutil.BurnMessage(0, 3, 42, big.NewInt(1000000), common.HexToAddress("0x01"), usdc, common.HexToAddress("0x02"))
	other := &ethtypes.Log{Address: usdc, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))}}

	tests := []struct {
		name    string
		logs    []*ethtypes.Log
		wantErr bool
	}{
		{"single event", []*ethtypes.Log{other, messageSentLog(t, transmitter, msg)}, false},
		{"no event", []*ethtypes.Log{other}, true},
		{"event from another contract", []*ethtypes.Log{messageSentLog(t, usdc, msg)}, true},
		{"two events", []*ethtypes.Log{messageSentLog(t, transmitter, msg), messageSentLog(t, transmitter, msg)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt := &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, Logs: tt.logs}
			got, err := ethereum.ExtractBurnMessage(receipt, transmitter)
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrMessageEventNotFound)
				return
			}
			require.NoError(t, err)
			require.Equal(t, msg, got)
		})
	}

	_, err := ethereum.ExtractBurnMessage(nil, transmitter)
	require.ErrorIs(t, err, types.ErrMessageEventNotFound)
}

func TestHashMessage(t *testing.T) {
	msg := []byte("cctp")
	require.Equal(t, crypto.Keccak256Hash(msg), ethereum.HashMessage(msg))
	require.NotEqual(t, ethereum.HashMessage([]byte("a")), ethereum.HashMessage([]byte("b")))
}

func TestParseBurnMessage(t *testing.T) {
	recipient := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")
	msg := testutil.BurnMessage(2, 11, 612, big.NewInt(2500000), recipient, usdc, common.HexToAddress("0x02"))

	parsed, err := ethereum.ParseBurnMessage(msg)
	require.NoError(t, err)
	require.Equal(t, types.Domain(2), parsed.SourceDomain)
	require.Equal(t, types.Domain(11), parsed.DestinationDomain)
	require.Equal(t, uint64(612), parsed.Nonce)
	require.Equal(t, ethereum.AddressToBytes32(recipient), parsed.MintRecipient)
	require.Equal(t, int64(2500000), parsed.Body.Amount.Int64())

	_, err = ethereum.ParseBurnMessage(msg[:100])
	require.Error(t, err)
}

func TestUsedNonceKey(t *testing.T) {
	packed := append(common.LeftPadBytes([]byte{4}, 4), common.LeftPadBytes(big.NewInt(612).Bytes(), 8)...)
	require.Equal(t, [32]byte(crypto.Keccak256Hash(packed)), ethereum.UsedNonceKey(4, 612))
	require.NotEqual(t, ethereum.UsedNonceKey(4, 612), ethereum.UsedNonceKey(0, 612))
}
