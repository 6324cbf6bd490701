package types

import (
	"context"
	"sync"

	"cosmossdk.io/log"
)

// TransferFilter is a policy plugin consulted before a transfer is created.
// Filter reports reject=true with a human readable reason to refuse the transfer.
type TransferFilter interface {
	Name() string
	Filter(ctx context.Context, transfer *TransferState) (reject bool, reason string, err error)
	Initialize(ctx context.Context, config map[string]interface{}, logger log.Logger) error
	Close() error
}

// FilterRegistry runs registered filters in order against new transfers.
type FilterRegistry struct {
	filters []TransferFilter
	logger  log.Logger

	mu       sync.Mutex
	rejected map[string]uint64
}

func NewFilterRegistry(logger log.Logger) *FilterRegistry {
	return &FilterRegistry{
		logger:   logger,
		rejected: make(map[string]uint64),
	}
}

func (r *FilterRegistry) Register(filter TransferFilter) {
	r.filters = append(r.filters, filter)
	r.logger.Debug("Registered filter", "name", filter.Name())
}

// Names lists registered filters in evaluation order.
func (r *FilterRegistry) Names() []string {
	names := make([]string, len(r.filters))
	for i, f := range r.filters {
		names[i] = f.Name()
	}
	return names
}

// Admit returns nil when every filter accepts the transfer, otherwise a ValidationError
// carrying the first rejecting filter's reason. A filter that errors rejects (fail closed).
func (r *FilterRegistry) Admit(ctx context.Context, transfer *TransferState) error {
	for _, filter := range r.filters {
		reject, reason, err := filter.Filter(ctx, transfer)
		if err != nil {
			r.logger.Error("Filter error", "filter", filter.Name(), "id", transfer.ID, "error", err)
			r.count(filter.Name())
			return NewTransferError(CodeValidation, "filter %s unavailable", filter.Name())
		}
		if reject {
			r.logger.Info("Transfer filtered", "filter", filter.Name(), "id", transfer.ID, "reason", reason)
			r.count(filter.Name())
			return NewTransferError(CodeValidation, "%s", reason)
		}
	}
	return nil
}

// Rejected reports how many transfers the named filter has refused.
func (r *FilterRegistry) Rejected(name string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected[name]
}

func (r *FilterRegistry) count(name string) {
	r.mu.Lock()
	r.rejected[name]++
	r.mu.Unlock()
}

func (r *FilterRegistry) Close() error {
	for _, filter := range r.filters {
		if err := filter.Close(); err != nil {
			r.logger.Error("Error closing filter", "filter", filter.Name(), "error", err)
		}
	}
	return nil
}
