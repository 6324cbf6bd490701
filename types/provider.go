package types

import (
	"context"
	"fmt"
)

// ListProvider is a source of string lists (addresses) consulted by filters.
type ListProvider interface {
	Name() string
	FetchList(ctx context.Context, key string) ([]string, error)
	Initialize(config map[string]interface{}) error
	Close() error
}

// NewListProvider returns an uninitialized provider by name.
func NewListProvider(name string) (ListProvider, error) {
	switch name {
	case "quicknode-kv":
		return NewQuickNodeKVProvider(), nil
	case "static":
		return &StaticListProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown list provider %q", name)
	}
}

// StaticListProvider serves the 'items' given in its config for every key.
type StaticListProvider struct {
	items []string
}

var _ ListProvider = (*StaticListProvider)(nil)

func (p *StaticListProvider) Name() string { return "static" }

func (p *StaticListProvider) Initialize(config map[string]interface{}) error {
	raw, ok := config["items"]
	if !ok {
		return fmt.Errorf("static provider requires 'items' in config")
	}
	switch list := raw.(type) {
	case []string:
		p.items = append([]string(nil), list...)
	case []interface{}:
		p.items = make([]string, 0, len(list))
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("static provider item %v is not a string", v)
			}
			p.items = append(p.items, s)
		}
	default:
		return fmt.Errorf("static provider 'items' must be a list")
	}
	return nil
}

func (p *StaticListProvider) FetchList(_ context.Context, _ string) ([]string, error) {
	return append([]string(nil), p.items...), nil
}

func (p *StaticListProvider) Close() error { return nil }
