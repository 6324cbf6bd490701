package filters

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

const DefaultWhitelistRefreshInterval = 300 // 5 minutes

// SenderWhitelistFilter only admits transfers whose sender is on a list.
// The list is either inline ('addresses') or fetched from a provider and refreshed periodically.
type SenderWhitelistFilter struct {
	mu              sync.RWMutex
	whitelist       map[string]bool
	provider        types.ListProvider
	kvKey           string
	refreshInterval time.Duration
	logger          log.Logger
	stopOnce        sync.Once
	stopCh          chan struct{}
}

func NewSenderWhitelistFilter() *SenderWhitelistFilter {
	return &SenderWhitelistFilter{
		whitelist: make(map[string]bool),
		stopCh:    make(chan struct{}),
	}
}

func (f *SenderWhitelistFilter) Name() string {
	return "sender-whitelist"
}

func (f *SenderWhitelistFilter) Initialize(ctx context.Context, config map[string]interface{}, logger log.Logger) error {
	f.logger = logger

	providerName, providerConfig, err := providerSettings(config)
	if err != nil {
		return err
	}
	provider, err := types.NewListProvider(providerName)
	if err != nil {
		return err
	}
	if err := provider.Initialize(providerConfig); err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}
	f.provider = provider

	f.kvKey, _ = config["kv_key"].(string)
	if f.kvKey == "" && providerName != "static" {
		return fmt.Errorf("sender-whitelist filter requires 'kv_key' in config")
	}

	if err := f.refresh(ctx); err != nil {
		f.logger.Error("Failed to fetch initial whitelist", "error", err)
		return err
	}

	// static lists never change
	if providerName == "static" {
		f.logger.Info("Sender whitelist filter initialized", "provider", providerName, "count", f.Count())
		return nil
	}

	refreshInterval := DefaultWhitelistRefreshInterval
	if val, ok := config["refresh_interval"].(int); ok && val > 0 {
		refreshInterval = val
	}
	f.refreshInterval = time.Duration(refreshInterval) * time.Second

	f.logger.Info("Sender whitelist filter initialized",
		"provider", providerName,
		"kv_key", f.kvKey,
		"refresh_interval", f.refreshInterval,
		"initial_count", f.Count())

	go f.startRefresh(ctx)
	return nil
}

// providerSettings maps inline 'addresses' onto the static provider.
func providerSettings(config map[string]interface{}) (string, map[string]interface{}, error) {
	if addresses, ok := config["addresses"]; ok {
		return "static", map[string]interface{}{"items": addresses}, nil
	}
	name, ok := config["provider"].(string)
	if !ok {
		return "", nil, fmt.Errorf("sender-whitelist filter requires 'addresses' or 'provider' in config")
	}
	providerConfig, ok := config["provider_config"].(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("sender-whitelist filter requires 'provider_config' in config")
	}
	return name, providerConfig, nil
}

func (f *SenderWhitelistFilter) Filter(_ context.Context, transfer *types.TransferState) (shouldFilter bool, reason string, err error) {
	if !f.isWhitelisted(transfer.Request.Sender) {
		reason := fmt.Sprintf("non-whitelisted sender: %s (%s -> %s)",
			transfer.Request.Sender, transfer.Request.SourceChain, transfer.Request.DestinationChain)
		return true, reason, nil
	}
	return false, "", nil
}

// Close stops the background refresh and cleans up resources
func (f *SenderWhitelistFilter) Close() error {
	f.stopOnce.Do(func() { close(f.stopCh) })
	if f.provider != nil {
		return f.provider.Close()
	}
	return nil
}

func (f *SenderWhitelistFilter) startRefresh(ctx context.Context) {
	ticker := time.NewTicker(f.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Sender whitelist filter stopping")
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			if err := f.refresh(ctx); err != nil {
				f.logger.Error("Failed to refresh whitelist", "error", err)
			} else {
				f.logger.Debug("Whitelist refreshed", "count", f.Count())
			}
		}
	}
}

func (f *SenderWhitelistFilter) refresh(ctx context.Context) error {
	addresses, err := f.provider.FetchList(ctx, f.kvKey)
	if err != nil {
		return err
	}
	f.replace(addresses)
	if f.Count() == 0 {
		f.logger.Info("Whitelist is empty after refresh")
	}
	return nil
}

func (f *SenderWhitelistFilter) replace(addresses []string) {
	next := make(map[string]bool, len(addresses))
	for _, addr := range addresses {
		if normalized := normalizeAddress(addr); normalized != "" {
			next[normalized] = true
		}
	}
	f.mu.Lock()
	f.whitelist = next
	f.mu.Unlock()
}

func (f *SenderWhitelistFilter) isWhitelisted(address string) bool {
	normalized := normalizeAddress(address)
	if normalized == "" {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.whitelist[normalized]
}

func (f *SenderWhitelistFilter) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.whitelist)
}

func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(address).Hex())
}
