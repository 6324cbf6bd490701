package types

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

type Domain uint32

// ChainDescriptor identifies one supported network and its CCTP contracts.
type ChainDescriptor struct {
	Name               string         `json:"name"`
	ChainID            uint64         `json:"chain_id"`
	Domain             Domain         `json:"domain"`
	TokenMessenger     common.Address `json:"token_messenger"`
	MessageTransmitter common.Address `json:"message_transmitter"`
	USDC               common.Address `json:"usdc"`
	RPC                string         `json:"-"`

	// MinAmount is the smallest transfer accepted into this chain, in smallest units. Zero disables the check.
	MinAmount uint64 `json:"min_amount,omitempty"`
}

// ChainRegistry is the immutable set of supported chains, keyed by name.
type ChainRegistry struct {
	chains   map[string]ChainDescriptor
	byDomain map[Domain]string
}

// NewChainRegistry rejects duplicate names, duplicate domains and unset contract addresses.
func NewChainRegistry(chains ...ChainDescriptor) (*ChainRegistry, error) {
	r := &ChainRegistry{
		chains:   make(map[string]ChainDescriptor, len(chains)),
		byDomain: make(map[Domain]string, len(chains)),
	}
	for _, c := range chains {
		if c.Name == "" {
			return nil, fmt.Errorf("chain name cannot be empty")
		}
		if _, ok := r.chains[c.Name]; ok {
			return nil, fmt.Errorf("duplicate chain name=%s", c.Name)
		}
		if other, ok := r.byDomain[c.Domain]; ok {
			return nil, fmt.Errorf("duplicate domain found domain=%d name=%s other=%s", c.Domain, c.Name, other)
		}
		zero := common.Address{}
		switch {
		case c.TokenMessenger == zero:
			return nil, fmt.Errorf("chain %s: token-messenger is not set", c.Name)
		case c.MessageTransmitter == zero:
			return nil, fmt.Errorf("chain %s: message-transmitter is not set", c.Name)
		case c.USDC == zero:
			return nil, fmt.Errorf("chain %s: usdc is not set", c.Name)
		}
		r.chains[c.Name] = c
		r.byDomain[c.Domain] = c.Name
	}
	return r, nil
}

// Describe returns the descriptor for name or an UnsupportedChain error.
func (r *ChainRegistry) Describe(name string) (ChainDescriptor, error) {
	c, ok := r.chains[name]
	if !ok {
		return ChainDescriptor{}, NewTransferError(CodeUnsupportedChain, "chain %q is not configured", name)
	}
	return c, nil
}

func (r *ChainRegistry) DomainOf(name string) (Domain, error) {
	c, err := r.Describe(name)
	if err != nil {
		return 0, err
	}
	return c.Domain, nil
}

// ByDomain returns the chain registered for a CCTP domain.
func (r *ChainRegistry) ByDomain(domain Domain) (ChainDescriptor, error) {
	name, ok := r.byDomain[domain]
	if !ok {
		return ChainDescriptor{}, NewTransferError(CodeUnsupportedChain, "no chain configured for domain %d", domain)
	}
	return r.chains[name], nil
}

// Chains returns all descriptors ordered by domain.
func (r *ChainRegistry) Chains() []ChainDescriptor {
	out := make([]ChainDescriptor, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}
