package circle_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/circle"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// stubOracle reports pending until call completeOn, then complete. completeOn == 0 never completes.
type stubOracle struct {
	calls      atomic.Int32
	completeOn int32
	errOn      map[int32]error
}

func (o *stubOracle) FetchAttestation(_ context.Context, _ circle.Query) (*types.AttestationRecord, error) {
	n := o.calls.Add(1)
	if err, ok := o.errOn[n]; ok {
		return nil, err
	}
	if o.completeOn != 0 && n >= o.completeOn {
		return &types.AttestationRecord{Status: types.AttestationComplete, Message: []byte{1}, Signature: []byte{2}}, nil
	}
	return &types.AttestationRecord{Status: types.AttestationPending}, nil
}

func TestAwaitAttestationCompletesAfterExactlyN(t *testing.T) {
	for _, n := range []int32{1, 3, 10} {
		oracle := &stubOracle{completeOn: n}
		poller := circle.NewPoller(oracle, log.NewNopLogger())

		record, err := poller.AwaitAttestation(context.Background(), circle.Query{MessageHash: "0x01"}, 10, time.Millisecond)
		require.NoError(t, err)
		require.True(t, record.Complete())
		require.Equal(t, n, oracle.calls.Load())
	}
}

func TestAwaitAttestationTimeout(t *testing.T) {
	oracle := &stubOracle{}
	var outcomes []string
	poller := circle.NewPoller(oracle, log.NewNopLogger())
	poller.OnAttempt = func(o string) { outcomes = append(outcomes, o) }

	_, err := poller.AwaitAttestation(context.Background(), circle.Query{MessageHash: "0x01"}, 5, time.Millisecond)
	require.ErrorIs(t, err, types.ErrAttestationTimeout)
	require.Equal(t, int32(5), oracle.calls.Load())
	require.Len(t, outcomes, 5)
}

func TestAwaitAttestationOracleErrorsConsumeBudget(t *testing.T) {
	oracleErr := types.NewTransferError(types.CodeOracle, "status 500")
	oracle := &stubOracle{completeOn: 4, errOn: map[int32]error{1: oracleErr, 2: oracleErr}}
	poller := circle.NewPoller(oracle, log.NewNopLogger())

	record, err := poller.AwaitAttestation(context.Background(), circle.Query{MessageHash: "0x01"}, 4, time.Millisecond)
	require.NoError(t, err)
	require.True(t, record.Complete())
	require.Equal(t, int32(4), oracle.calls.Load())

	oracle = &stubOracle{errOn: map[int32]error{1: oracleErr, 2: oracleErr, 3: oracleErr}}
	poller = circle.NewPoller(oracle, log.NewNopLogger())
	_, err = poller.AwaitAttestation(context.Background(), circle.Query{MessageHash: "0x01"}, 3, time.Millisecond)
	require.ErrorIs(t, err, types.ErrAttestationTimeout)
	require.ErrorContains(t, err, "status 500")
}

func TestAwaitAttestationNonOracleErrorStops(t *testing.T) {
	boom := errors.New("boom")
	oracle := &stubOracle{errOn: map[int32]error{1: boom}}
	poller := circle.NewPoller(oracle, log.NewNopLogger())

	_, err := poller.AwaitAttestation(context.Background(), circle.Query{}, 5, time.Millisecond)
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(1), oracle.calls.Load())
}

func TestAwaitAttestationCancelled(t *testing.T) {
	oracle := &stubOracle{}
	poller := circle.NewPoller(oracle, log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := poller.AwaitAttestation(ctx, circle.Query{}, 1000, 5*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	calls := oracle.calls.Load()
	require.Less(t, calls, int32(1000))

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, calls, oracle.calls.Load())
}

func TestAwaitAttestationRejectsZeroBudget(t *testing.T) {
	poller := circle.NewPoller(&stubOracle{}, log.NewNopLogger())
	_, err := poller.AwaitAttestation(context.Background(), circle.Query{}, 0, time.Millisecond)
	require.ErrorIs(t, err, types.ErrValidation)
}
