package relayer

import (
	"context"
	"time"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// Store persists TransferState records keyed by correlation id.
// Load returns ErrTransferNotFound for unknown ids and Create returns ErrTransferExists for known ones.
type Store interface {
	Create(ctx context.Context, st *types.TransferState) error
	Load(ctx context.Context, id string) (*types.TransferState, error)
	Save(ctx context.Context, st *types.TransferState) error
	List(ctx context.Context) ([]*types.TransferState, error)
	// DeleteTerminal removes done and failed records last updated before cutoff and returns their ids.
	DeleteTerminal(ctx context.Context, cutoff time.Time) ([]string, error)
	Close() error
}
