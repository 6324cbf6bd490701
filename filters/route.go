package filters

import (
	"context"
	"fmt"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

type route struct {
	src, dst types.Domain
}

// RouteFilter admits only source -> destination domain pairs listed in enabled-routes.
type RouteFilter struct {
	routes  map[route]struct{}
	sources map[types.Domain]int
	logger  log.Logger
}

func NewRouteFilter() *RouteFilter {
	return &RouteFilter{}
}

func (f *RouteFilter) Name() string {
	return "route"
}

func (f *RouteFilter) Initialize(_ context.Context, config map[string]interface{}, logger log.Logger) error {
	f.logger = logger
	raw, ok := config["enabled_routes"]
	if !ok {
		return fmt.Errorf("route filter requires 'enabled_routes' in config")
	}
	enabled, ok := raw.(map[types.Domain][]types.Domain)
	if !ok {
		return fmt.Errorf("enabled_routes has invalid type %T", raw)
	}

	f.routes = make(map[route]struct{})
	f.sources = make(map[types.Domain]int, len(enabled))
	for src, dsts := range enabled {
		for _, dst := range dsts {
			if dst == src {
				return fmt.Errorf("enabled_routes: domain %d routes to itself", src)
			}
			f.routes[route{src, dst}] = struct{}{}
		}
		f.sources[src] = len(dsts)
	}
	logger.Info("Route filter initialized", "sources", len(f.sources), "routes", len(f.routes))
	return nil
}

func (f *RouteFilter) Filter(_ context.Context, transfer *types.TransferState) (bool, string, error) {
	if _, ok := f.routes[route{transfer.SourceDomain, transfer.DestDomain}]; ok {
		return false, "", nil
	}
	req := transfer.Request
	if _, ok := f.sources[transfer.SourceDomain]; !ok {
		return true, fmt.Sprintf("route disabled: %s (domain %d) is not an enabled source", req.SourceChain, transfer.SourceDomain), nil
	}
	return true, fmt.Sprintf("route disabled: %s -> %s (domains %d -> %d)",
		req.SourceChain, req.DestinationChain, transfer.SourceDomain, transfer.DestDomain), nil
}

func (f *RouteFilter) Close() error {
	return nil
}
