package circle_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/circle"
	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

var (
	testMessage   = []byte("burn message bytes")
	testHash      = ethereum.HashMessage(testMessage).Hex()
	testSignature = hexutil.Encode([]byte{0xaa, 0xbb, 0xcc})
)

func newClient(t *testing.T, url, version string) *circle.Client {
	t.Helper()
	c, err := circle.NewClient(types.CircleSettings{
		AttestationBaseURL: url,
		APIVersion:         version,
		FetchRetries:       3,
		FetchRetryInterval: 1,
		RequestsPerSecond:  1000,
	}, log.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestFetchAttestationV1(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus types.AttestationStatus
		wantErr    bool
	}{
		{"not found is pending", http.StatusNotFound, `{"error":"Message hash not found"}`, types.AttestationPending, false},
		{"pending confirmations", http.StatusOK, `{"status":"pending_confirmations","attestation":null}`, types.AttestationPending, false},
		{"complete", http.StatusOK, fmt.Sprintf(`{"status":"complete","attestation":%q,"message":%q}`, testSignature, hexutil.Encode(testMessage)), types.AttestationComplete, false},
		{"complete without message", http.StatusOK, fmt.Sprintf(`{"status":"complete","attestation":%q}`, testSignature), types.AttestationComplete, false},
		{"complete with other message", http.StatusOK, fmt.Sprintf(`{"status":"complete","attestation":%q,"message":"0x01"}`, testSignature), "", true},
		{"server error", http.StatusInternalServerError, `oops`, "", true},
		{"rate limited", http.StatusTooManyRequests, ``, "", true},
		{"malformed body", http.StatusOK, `{`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/attestations/"+testHash, r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			record, err := newClient(t, srv.URL+"/", "v1").FetchAttestation(context.Background(), circle.Query{
				MessageHash: strings.TrimPrefix(testHash, "0x"),
				Message:     testMessage,
			})
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrOracle)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, record.Status)
			if tt.wantStatus == types.AttestationComplete {
				require.Equal(t, testMessage, record.Message)
				require.Equal(t, []byte{0xaa, 0xbb, 0xcc}, record.Signature)
				require.True(t, record.Complete())
			}
		})
	}
}

func TestFetchAttestationV2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/messages/3", r.URL.Path)
		assert.Equal(t, "0xabc", r.URL.Query().Get("transactionHash"))
		fmt.Fprintf(w, `{"messages":[{"message":"0x01","attestation":"0x02","status":"complete"},{"message":%q,"attestation":%q,"status":"complete"}]}`,
			hexutil.Encode(testMessage), testSignature)
	}))
	defer srv.Close()

	record, err := newClient(t, srv.URL+"/attestations", "v2").FetchAttestation(context.Background(), circle.Query{
		MessageHash:  testHash,
		SourceDomain: 3,
		TxHash:       "abc",
	})
	require.NoError(t, err)
	require.True(t, record.Complete())
	require.Equal(t, testMessage, record.Message)
}

func TestPollerWithIrisStub(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusNotFound)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		case 3:
			_, _ = w.Write([]byte(`{"status":"pending_confirmations"}`))
		default:
			fmt.Fprintf(w, `{"status":"complete","attestation":%q}`, testSignature)
		}
	}))
	defer srv.Close()

	poller := circle.NewPoller(newClient(t, srv.URL, "v1"), log.NewNopLogger())
	record, err := poller.AwaitAttestation(context.Background(), circle.Query{MessageHash: testHash, Message: testMessage}, 5, time.Millisecond)
	require.NoError(t, err)
	require.True(t, record.Complete())
	require.Equal(t, int32(4), calls.Load())
}

func TestNewClientRejectsBadSettings(t *testing.T) {
	_, err := circle.NewClient(types.CircleSettings{AttestationBaseURL: circle.IrisSandboxURL, APIVersion: "v9"}, log.NewNopLogger())
	require.Error(t, err)
	_, err = circle.NewClient(types.CircleSettings{}, log.NewNopLogger())
	require.Error(t, err)
}
