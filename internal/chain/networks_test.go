package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/chain"
)

func TestRegistryGetByName(t *testing.T) {
	registry := chain.NewRegistry()

	tests := []struct {
		name    string
		chainID int64
	}{
		{"ethereum", 1},
		{"sepolia", 11155111},
		{"base", 8453},
		{"polygon", 137},
		{"arbitrum", 42161},
		{"optimism", 10},
		{"bnb", 56},
		{"avalanche", 43114},
		{"local", 31337},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := registry.GetByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.chainID, n.ChainID)

			byID, err := registry.GetByChainID(tt.chainID)
			require.NoError(t, err)
			assert.Equal(t, tt.name, byID.Name)
		})
	}
}

func TestRegistryIsCaseInsensitive(t *testing.T) {
	n, err := chain.NewRegistry().GetByName("Ethereum")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", n.Name)
}

func TestRegistryGetUnknownNetwork(t *testing.T) {
	registry := chain.NewRegistry()
	_, err := registry.GetByName("unknownchain")
	assert.ErrorIs(t, err, chain.ErrNetworkNotFound)
	_, err = registry.GetByChainID(999999)
	assert.ErrorIs(t, err, chain.ErrNetworkNotFound)
}

func TestAllNetworksHaveRPC(t *testing.T) {
	for _, n := range chain.NewRegistry().All() {
		t.Run(n.Name, func(t *testing.T) {
			assert.NotEmpty(t, n.RPCs, "network %s has no RPCs", n.Name)
			assert.NotZero(t, n.ChainID)
		})
	}
}

func TestRegistryOfOverrides(t *testing.T) {
	r := chain.NewRegistryOf([]chain.Network{
		{Name: "dev", ChainID: 1337, RPCs: []string{"http://a"}},
		{Name: "DEV", ChainID: 1337, RPCs: []string{"http://b"}},
	})
	require.Len(t, r.All(), 1)
	n, err := r.GetByChainID(1337)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://b"}, n.RPCs)
}
