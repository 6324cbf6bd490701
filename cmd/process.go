package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-orchestrator/circle"
	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-orchestrator/filters"
	"github.com/strangelove-ventures/cctp-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-orchestrator/store"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

func Start(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start orchestrating CCTP transfers",

		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.Logger
			cfg := a.Config

			port, err := cmd.Flags().GetInt16(flagMetricsPort)
			if err != nil {
				return fmt.Errorf("invalid port error=%w", err)
			}
			address, err := cmd.Flags().GetString(flagMetricsAddress)
			if err != nil {
				return fmt.Errorf("invalid address error=%w", err)
			}
			queueSize, err := cmd.Flags().GetInt(flagQueueSize)
			if err != nil {
				return fmt.Errorf("invalid queue size error=%w", err)
			}

			metrics := relayer.InitPromMetrics(address, port, logger)

			registry, err := cfg.Registry()
			if err != nil {
				return fmt.Errorf("error building chain registry error=%w", err)
			}

			readers := make(relayer.Readers)
			var dialed []*ethereum.Reader
			defer func() {
				for _, r := range dialed {
					r.Close()
				}
			}()
			for _, chain := range registry.Chains() {
				r, err := ethereum.Dial(ctx, chain, logger)
				if err != nil {
					return fmt.Errorf("error initializing client for %s error=%w", chain.Name, err)
				}
				dialed = append(dialed, r)
				readers[chain.Name] = r
			}

			client, err := circle.NewClient(cfg.Circle, logger)
			if err != nil {
				return fmt.Errorf("error creating attestation client error=%w", err)
			}
			poller := circle.NewPoller(client, logger)
			poller.OnAttempt = metrics.IncAttestationPoll

			transferStore, err := newStore(ctx, cfg.Store, logger)
			if err != nil {
				return err
			}
			defer transferStore.Close()

			filterRegistry, err := initializeFilters(ctx, cfg, registry, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize filters: %w", err)
			}
			defer filterRegistry.Close()

			orchestrator := relayer.NewOrchestrator(
				orchestratorConfig(cfg),
				registry,
				readers,
				poller,
				transferStore,
				logger,
			).WithFilters(filterRegistry).WithMetrics(metrics)

			// spin up Processor worker pool
			processor := relayer.NewProcessor(orchestrator, queueSize, cfg.Transfer.StepRetries, cfg.Transfer.StepRetryInterval, logger)
			processor.Start(ctx, int(cfg.ProcessorWorkerCount))
			if err := processor.Recover(ctx); err != nil {
				return fmt.Errorf("failed to recover pending transfers: %w", err)
			}

			sweeper := relayer.NewSweeper(orchestrator, cfg.Transfer.Retention, logger)
			if err := sweeper.Start(ctx, cfg.Transfer.RetentionSchedule); err != nil {
				return fmt.Errorf("invalid retention-schedule: %w", err)
			}
			defer sweeper.Stop()

			go startAPI(a, newAPI(orchestrator, processor, registry, logger))

			// wait for context to be done
			<-ctx.Done()
			logger.Info("Shutting down")
			return nil
		},
	}

	return cmd
}

func orchestratorConfig(cfg *types.Config) relayer.OrchestratorConfig {
	return relayer.OrchestratorConfig{
		AttestationMaxAttempts: cfg.Circle.FetchRetries,
		AttestationInterval:    cfg.Circle.PollInterval(),
		ReceiptPollInterval:    cfg.Transfer.ReceiptPollInterval,
		ReceiptMaxPolls:        cfg.Transfer.ReceiptMaxPolls,
	}
}

func newStore(ctx context.Context, settings types.StoreSettings, logger log.Logger) (relayer.Store, error) {
	switch settings.Driver {
	case types.StorePostgres:
		s, err := store.NewPostgresStore(ctx, settings.URL)
		if err != nil {
			return nil, fmt.Errorf("error opening postgres store error=%w", err)
		}
		logger.Info("Using postgres transfer store")
		return s, nil
	case types.StoreRedis:
		s, err := store.NewRedisStore(ctx, settings.URL)
		if err != nil {
			return nil, fmt.Errorf("error opening redis store error=%w", err)
		}
		logger.Info("Using redis transfer store")
		return s, nil
	default:
		logger.Info("Using in-memory transfer store, transfers will not survive a restart")
		return store.NewMemoryStore(), nil
	}
}

// initializeFilters creates and initializes the filter registry with configured filters
func initializeFilters(ctx context.Context, cfg *types.Config, registry *types.ChainRegistry, logger log.Logger) (*types.FilterRegistry, error) {
	filterRegistry := types.NewFilterRegistry(logger)

	// Register base filters as plugins
	if len(cfg.EnabledRoutes) > 0 {
		routeFilter := filters.NewRouteFilter()
		if err := routeFilter.Initialize(ctx, map[string]interface{}{
			"enabled_routes": cfg.EnabledRoutes,
		}, logger); err != nil {
			return nil, fmt.Errorf("failed to initialize route filter: %w", err)
		}
		filterRegistry.Register(routeFilter)
	}

	lowTransferFilter := filters.NewLowTransferFilter()
	if err := lowTransferFilter.Initialize(ctx, map[string]interface{}{
		"registry": registry,
	}, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize low-transfer filter: %w", err)
	}
	filterRegistry.Register(lowTransferFilter)

	// Register user-configured filters from config
	for _, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			logger.Debug("Skipping disabled filter", "name", filterCfg.Name)
			continue
		}

		var filter types.TransferFilter
		switch filterCfg.Name {
		case "sender-whitelist":
			filter = filters.NewSenderWhitelistFilter()
		default:
			logger.Info("Unknown filter type, skipping", "name", filterCfg.Name)
			continue
		}

		if err := filter.Initialize(ctx, filterCfg.Config, logger); err != nil {
			return nil, fmt.Errorf("failed to initialize filter %s: %w", filterCfg.Name, err)
		}

		filterRegistry.Register(filter)
		logger.Info("Registered custom filter", "name", filterCfg.Name)
	}

	logger.Info("Filters ready", "filters", strings.Join(filterRegistry.Names(), ","))
	return filterRegistry, nil
}
