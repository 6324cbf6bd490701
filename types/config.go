package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	Chains        map[string]ChainConfig `yaml:"chains"`
	EnabledRoutes map[Domain][]Domain    `yaml:"enabled-routes"`
	Circle        CircleSettings         `yaml:"circle"`
	Transfer      TransferSettings       `yaml:"transfer"`
	Store         StoreSettings          `yaml:"store"`
	Filters       []FilterConfig         `yaml:"filters"`

	ProcessorWorkerCount uint32 `yaml:"processor-worker-count"`
	API                  struct {
		Address        string   `yaml:"address"`
		TrustedProxies []string `yaml:"trusted-proxies"`
	} `yaml:"api"`
}

// ChainConfig is one entry of the chains section. The domain must always be configured explicitly.
type ChainConfig struct {
	ChainID            uint64  `yaml:"chain-id"`
	Domain             *Domain `yaml:"domain"`
	TokenMessenger     string  `yaml:"token-messenger"`
	MessageTransmitter string  `yaml:"message-transmitter"`
	USDC               string  `yaml:"usdc"`
	RPC                string  `yaml:"rpc"`
	MinAmount          uint64  `yaml:"min-amount"`
}

// Descriptor converts the config entry into a ChainDescriptor.
func (c ChainConfig) Descriptor(name string) (ChainDescriptor, error) {
	if c.Domain == nil {
		return ChainDescriptor{}, fmt.Errorf("chain %s: domain must be configured", name)
	}
	if c.RPC == "" {
		return ChainDescriptor{}, fmt.Errorf("chain %s: rpc must be configured", name)
	}
	addrs := map[string]string{
		"token-messenger":     c.TokenMessenger,
		"message-transmitter": c.MessageTransmitter,
		"usdc":                c.USDC,
	}
	for key, v := range addrs {
		if !common.IsHexAddress(v) {
			return ChainDescriptor{}, fmt.Errorf("chain %s: %s %q is not a hex address", name, key, v)
		}
	}
	return ChainDescriptor{
		Name:               name,
		ChainID:            c.ChainID,
		Domain:             *c.Domain,
		TokenMessenger:     common.HexToAddress(c.TokenMessenger),
		MessageTransmitter: common.HexToAddress(c.MessageTransmitter),
		USDC:               common.HexToAddress(c.USDC),
		RPC:                c.RPC,
		MinAmount:          c.MinAmount,
	}, nil
}

type CircleSettings struct {
	AttestationBaseURL string  `yaml:"attestation-base-url"`
	APIVersion         string  `yaml:"api-version"`
	FetchRetries       int     `yaml:"fetch-retries"`
	FetchRetryInterval int     `yaml:"fetch-retry-interval"`
	RequestTimeout     int     `yaml:"request-timeout"`
	RequestsPerSecond  float64 `yaml:"requests-per-second"`
}

// GetAPIVersion returns the parsed API version
func (c *CircleSettings) GetAPIVersion() (APIVersion, error) {
	return ParseAPIVersion(c.APIVersion)
}

func (c *CircleSettings) Validate() error {
	if _, err := c.GetAPIVersion(); err != nil {
		return fmt.Errorf("invalid api-version: %w", err)
	}
	if c.AttestationBaseURL == "" {
		return fmt.Errorf("attestation-base-url must be set")
	}
	if c.FetchRetries <= 0 {
		return fmt.Errorf("fetch-retries must be positive")
	}
	if c.FetchRetryInterval <= 0 {
		return fmt.Errorf("fetch-retry-interval must be positive")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request-timeout cannot be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests-per-second cannot be negative")
	}
	return nil
}

// PollInterval is the delay between attestation polls.
func (c *CircleSettings) PollInterval() time.Duration {
	return time.Duration(c.FetchRetryInterval) * time.Second
}

type TransferSettings struct {
	ReceiptPollInterval time.Duration `yaml:"receipt-poll-interval"`
	ReceiptMaxPolls     int           `yaml:"receipt-max-polls"`
	StepRetries         int           `yaml:"step-retries"`
	StepRetryInterval   time.Duration `yaml:"step-retry-interval"`
	Retention           time.Duration `yaml:"retention"`
	RetentionSchedule   string        `yaml:"retention-schedule"`
}

// WithDefaults fills unset fields.
func (t TransferSettings) WithDefaults() TransferSettings {
	if t.ReceiptPollInterval <= 0 {
		t.ReceiptPollInterval = 3 * time.Second
	}
	if t.ReceiptMaxPolls <= 0 {
		t.ReceiptMaxPolls = 200
	}
	if t.StepRetries <= 0 {
		t.StepRetries = 5
	}
	if t.StepRetryInterval <= 0 {
		t.StepRetryInterval = t.ReceiptPollInterval
	}
	if t.Retention <= 0 {
		t.Retention = 72 * time.Hour
	}
	if t.RetentionSchedule == "" {
		t.RetentionSchedule = "@every 10m"
	}
	return t
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type StoreSettings struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type FilterConfig struct {
	Name    string         `yaml:"name"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

// Registry builds the chain registry from the chains section.
func (c *Config) Registry() (*ChainRegistry, error) {
	descs := make([]ChainDescriptor, 0, len(c.Chains))
	for name, cc := range c.Chains {
		d, err := cc.Descriptor(name)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return NewChainRegistry(descs...)
}

// Validate checks the whole configuration before any client is created.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	registry, err := c.Registry()
	if err != nil {
		return err
	}
	if err := c.Circle.Validate(); err != nil {
		return fmt.Errorf("circle: %w", err)
	}
	for src, dests := range c.EnabledRoutes {
		if _, err := registry.ByDomain(src); err != nil {
			return fmt.Errorf("enabled-routes: %w", err)
		}
		for _, dst := range dests {
			if _, err := registry.ByDomain(dst); err != nil {
				return fmt.Errorf("enabled-routes: %w", err)
			}
		}
	}
	switch c.Store.Driver {
	case "", StoreMemory:
	case StorePostgres, StoreRedis:
		if c.Store.URL == "" {
			return fmt.Errorf("store: url is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	return nil
}
