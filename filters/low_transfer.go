package filters

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	"cosmossdk.io/math"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// LowTransferFilter rejects transfers below the destination chain's configured minimum
type LowTransferFilter struct {
	registry *types.ChainRegistry
	logger   log.Logger
}

func NewLowTransferFilter() *LowTransferFilter {
	return &LowTransferFilter{}
}

func (f *LowTransferFilter) Name() string {
	return "low-transfer"
}

func (f *LowTransferFilter) Initialize(_ context.Context, config map[string]interface{}, logger log.Logger) error {
	f.logger = logger
	registry, ok := config["registry"].(*types.ChainRegistry)
	if !ok || registry == nil {
		return fmt.Errorf("low-transfer filter requires 'registry' in config")
	}
	f.registry = registry
	logger.Info("Low transfer filter initialized", "chain_count", len(registry.Chains()))
	return nil
}

func (f *LowTransferFilter) Filter(_ context.Context, transfer *types.TransferState) (bool, string, error) {
	dest, err := f.registry.ByDomain(transfer.DestDomain)
	if err != nil {
		return false, "", err
	}
	if dest.MinAmount == 0 || transfer.Amount == nil {
		return false, "", nil
	}

	if transfer.Amount.BitLen() > math.MaxBitLen {
		return false, "", fmt.Errorf("transfer amount %s exceeds %d bits", transfer.Amount, math.MaxBitLen)
	}
	amount := math.NewIntFromBigInt(transfer.Amount)
	if amount.LT(math.NewIntFromUint64(dest.MinAmount)) {
		reason := fmt.Sprintf("transfer amount too low: amount=%s USDC min_amount=%s USDC dest=%s",
			types.FormatUSDCUnits(transfer.Amount), types.FormatUSDCUnits(math.NewIntFromUint64(dest.MinAmount).BigInt()), dest.Name)
		return true, reason, nil
	}
	return false, "", nil
}

func (f *LowTransferFilter) Close() error {
	return nil
}
