package chain

import (
	"errors"
	"sort"
	"strings"
)

// ErrNetworkNotFound is returned when a network is not in the registry.
var ErrNetworkNotFound = errors.New("network not found")

// Network holds the connection metadata for one EVM network.
type Network struct {
	Name           string   `json:"name" yaml:"name"`
	DisplayName    string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	ChainID        int64    `json:"chain_id" yaml:"chain_id"`
	NativeCurrency string   `json:"native_currency,omitempty" yaml:"native_currency,omitempty"`
	RPCs           []string `json:"rpcs" yaml:"rpcs"`
	Explorer       string   `json:"explorer,omitempty" yaml:"explorer,omitempty"`
	Testnet        bool     `json:"testnet,omitempty" yaml:"testnet,omitempty"`
}

// Registry indexes networks by name and chain id.
type Registry struct {
	networks []Network
	byName   map[string]*Network
	byID     map[int64]*Network
}

// NewRegistry returns a registry of the built-in networks.
func NewRegistry() *Registry {
	return NewRegistryOf(builtinNetworks())
}

// NewRegistryOf builds a registry from nets. A later entry with the same
// name replaces an earlier one.
func NewRegistryOf(nets []Network) *Registry {
	r := &Registry{
		byName: make(map[string]*Network, len(nets)),
		byID:   make(map[int64]*Network, len(nets)),
	}
	at := make(map[string]int, len(nets))
	for _, n := range nets {
		key := strings.ToLower(n.Name)
		if i, ok := at[key]; ok {
			r.networks[i] = n
			continue
		}
		at[key] = len(r.networks)
		r.networks = append(r.networks, n)
	}
	for i := range r.networks {
		n := &r.networks[i]
		r.byName[strings.ToLower(n.Name)] = n
		if _, taken := r.byID[n.ChainID]; n.ChainID != 0 && !taken {
			r.byID[n.ChainID] = n
		}
	}
	return r
}

// All returns every network sorted by name.
func (r *Registry) All() []Network {
	out := append([]Network(nil), r.networks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetByName finds a network by its slug name (e.g. "base", "sepolia").
func (r *Registry) GetByName(name string) (*Network, error) {
	n, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// GetByChainID finds a network by its numeric chain id.
func (r *Registry) GetByChainID(id int64) (*Network, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// --- network data ---

func builtinNetworks() []Network {
	return []Network{
		{
			Name: "ethereum", DisplayName: "Ethereum", ChainID: 1, NativeCurrency: "ETH",
			RPCs:     []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			Explorer: "https://etherscan.io",
		},
		{
			Name: "sepolia", DisplayName: "Sepolia", ChainID: 11155111, NativeCurrency: "ETH", Testnet: true,
			RPCs:     []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co"},
			Explorer: "https://sepolia.etherscan.io",
		},
		{
			Name: "base", DisplayName: "Base", ChainID: 8453, NativeCurrency: "ETH",
			RPCs:     []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			Explorer: "https://basescan.org",
		},
		{
			Name: "base-sepolia", DisplayName: "Base Sepolia", ChainID: 84532, NativeCurrency: "ETH", Testnet: true,
			RPCs:     []string{"https://sepolia.base.org"},
			Explorer: "https://sepolia.basescan.org",
		},
		{
			Name: "polygon", DisplayName: "Polygon", ChainID: 137, NativeCurrency: "POL",
			RPCs:     []string{"https://polygon-bor-rpc.publicnode.com", "https://polygon-pokt.nodies.app"},
			Explorer: "https://polygonscan.com",
		},
		{
			Name: "arbitrum", DisplayName: "Arbitrum", ChainID: 42161, NativeCurrency: "ETH",
			RPCs:     []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"},
			Explorer: "https://arbiscan.io",
		},
		{
			Name: "optimism", DisplayName: "Optimism", ChainID: 10, NativeCurrency: "ETH",
			RPCs:     []string{"https://mainnet.optimism.io", "https://optimism.llamarpc.com"},
			Explorer: "https://optimistic.etherscan.io",
		},
		{
			Name: "bnb", DisplayName: "BNB Chain", ChainID: 56, NativeCurrency: "BNB",
			RPCs:     []string{"https://bsc-dataseed.binance.org", "https://bsc-rpc.publicnode.com"},
			Explorer: "https://bscscan.com",
		},
		{
			Name: "avalanche", DisplayName: "Avalanche", ChainID: 43114, NativeCurrency: "AVAX",
			RPCs:     []string{"https://api.avax.network/ext/bc/C/rpc", "https://avalanche-c-chain-rpc.publicnode.com"},
			Explorer: "https://snowtrace.io",
		},
		{
			Name: "local", DisplayName: "Local node", ChainID: 31337, NativeCurrency: "ETH", Testnet: true,
			RPCs: []string{"http://127.0.0.1:8545"},
		},
	}
}
