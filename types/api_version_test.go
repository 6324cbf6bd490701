package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

func TestAPIVersionAttestationURL(t *testing.T) {
	v1, err := types.ParseAPIVersion("")
	require.NoError(t, err)
	require.Equal(t, "https://iris/attestations/0xabc", v1.AttestationURL("https://iris", 0, "0xabc", "0xdef"))

	v2, err := types.ParseAPIVersion(" V2 ")
	require.NoError(t, err)
	require.Equal(t, "v2", v2.String())
	require.Equal(t, "https://iris/v2/messages/3?transactionHash=0xdef", v2.AttestationURL("https://iris", 3, "0xabc", "0xdef"))

	_, err = types.ParseAPIVersion("v3")
	require.ErrorIs(t, err, types.ErrValidation)
}
