// Package config loads and saves the w3kit configuration directory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/client"
	"github.com/Mohsinsiddi/w3kit/internal/rpc"
)

const (
	defaultNetwork   = "ethereum"
	defaultAlgorithm = "fastest"

	formatJSON = "json"
	formatYAML = "yaml"

	walletsFile = "wallets.json"
)

// configFiles are tried in order; the first one present wins and Save
// writes back to it.
var configFiles = []struct {
	name   string
	format string
}{
	{"config.json", formatJSON},
	{"config.yaml", formatYAML},
	{"config.yml", formatYAML},
}

// Load reads the config in dir over the defaults. dir defaults to ~/.w3kit
// and is created when missing.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3kit")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)
	for _, f := range configFiles {
		path := filepath.Join(dir, f.name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if f.format == formatYAML {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.file = f.name
		break
	}
	if cfg.Networks == nil {
		cfg.Networks = make(map[string]NetworkConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	if _, err := rpc.ParseAlgorithm(c.RPCAlgorithm); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxDelay.Duration < c.Retry.BaseDelay.Duration {
		return fmt.Errorf("retry.max_delay %s is below retry.base_delay %s", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	for _, code := range c.Retry.RetryableCodes {
		if slices.Contains(c.Retry.FatalCodes, code) {
			return fmt.Errorf("code %d is both retryable and fatal", code)
		}
	}
	return nil
}

// Save writes the config back to the file it was loaded from, or to
// config.json.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	name := c.file
	if name == "" {
		name = configFiles[0].name
	}
	var (
		data []byte
		err  error
	)
	if filepath.Ext(name) == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, name), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// AddRPC appends a URL to a network's endpoint list.
func (c *Config) AddRPC(network, url string) error {
	network = strings.ToLower(network)
	nc := c.Networks[network]
	if slices.Contains(nc.RPCs, url) {
		return fmt.Errorf("RPC %s already exists for network %s", url, network)
	}
	nc.RPCs = append(nc.RPCs, url)
	c.Networks[network] = nc
	return nil
}

// RemoveRPC removes a URL from a network's endpoint list.
func (c *Config) RemoveRPC(network, url string) error {
	network = strings.ToLower(network)
	nc := c.Networks[network]
	idx := slices.Index(nc.RPCs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for network %s", url, network)
	}
	nc.RPCs = slices.Delete(nc.RPCs, idx, idx+1)
	c.Networks[network] = nc
	return nil
}

// Network returns name from the builtin registry with this config's
// overrides applied. A network missing from the registry must configure
// both a chain id and at least one RPC.
func (c *Config) Network(name string) (chain.Network, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	key := strings.ToLower(name)
	override, hasOverride := c.Networks[key]

	var net chain.Network
	builtin, err := chain.NewRegistry().GetByName(key)
	if err == nil {
		net = *builtin
		net.RPCs = slices.Clone(builtin.RPCs)
	} else {
		if !hasOverride {
			return chain.Network{}, fmt.Errorf("network %q: %w", name, err)
		}
		if override.ChainID == 0 || len(override.RPCs) == 0 {
			return chain.Network{}, fmt.Errorf("custom network %q needs chain_id and rpcs", name)
		}
		net = chain.Network{Name: key, DisplayName: name, NativeCurrency: "ETH"}
	}
	if len(override.RPCs) > 0 {
		net.RPCs = slices.Clone(override.RPCs)
	}
	if override.ChainID != 0 {
		net.ChainID = override.ChainID
	}
	return net, nil
}

// ClientOptions converts the config into client options. Headers come from
// the named network's overrides.
func (c *Config) ClientOptions(network string) client.Options {
	opts := client.Options{
		RequestTimeout:   c.RequestTimeout.Duration,
		Middleware:       slices.Clone(c.Middleware),
		MaxAttempts:      c.Retry.MaxAttempts,
		BaseDelay:        c.Retry.BaseDelay.Duration,
		MaxDelay:         c.Retry.MaxDelay.Duration,
		RetryableCodes:   slices.Clone(c.Retry.RetryableCodes),
		FatalCodes:       slices.Clone(c.Retry.FatalCodes),
		CacheMethods:     slices.Clone(c.CacheMethods),
		CacheMaxMB:       c.CacheMaxMB,
		AsyncConcurrency: c.AsyncConcurrency,
	}
	if network == "" {
		network = c.DefaultNetwork
	}
	if nc, ok := c.Networks[strings.ToLower(network)]; ok && len(nc.Headers) > 0 {
		opts.Headers = nc.Headers
	}
	if net, err := c.Network(network); err == nil && net.ChainID != 0 {
		opts.ChainID = big.NewInt(net.ChainID)
	}
	return opts
}

// LoadWallets reads wallets.json.
func (c *Config) LoadWallets() (*WalletsFile, error) {
	return loadJSON[WalletsFile](filepath.Join(c.configDir, walletsFile))
}

// SaveWallets writes wallets.json.
func (c *Config) SaveWallets(wf *WalletsFile) error {
	return saveJSON(filepath.Join(c.configDir, walletsFile), wf)
}

// --- helpers ---

func defaults(dir string) *Config {
	d := client.DefaultOptions()
	return &Config{
		DefaultNetwork: defaultNetwork,
		RPCAlgorithm:   defaultAlgorithm,
		Networks:       make(map[string]NetworkConfig),
		RequestTimeout: Duration{d.RequestTimeout},
		Retry: RetryConfig{
			MaxAttempts: d.MaxAttempts,
			BaseDelay:   Duration{d.BaseDelay},
			MaxDelay:    Duration{d.MaxDelay},
		},
		AsyncConcurrency: d.AsyncConcurrency,
		LogLevel:         logger.InfoLevel.String(),
		LogFormat:        "text",
		configDir:        dir,
	}
}

func loadJSON[T any](path string) (*T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &zero, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
