package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all w3kit configuration.
type Config struct {
	DefaultNetwork string                   `json:"default_network" yaml:"default_network"`
	DefaultWallet  string                   `json:"default_wallet,omitempty" yaml:"default_wallet,omitempty"`
	Networks       map[string]NetworkConfig `json:"networks,omitempty" yaml:"networks,omitempty"`
	RPCAlgorithm   string                   `json:"rpc_algorithm" yaml:"rpc_algorithm"` // "fastest" | "round-robin" | "failover"

	RequestTimeout   Duration    `json:"request_timeout" yaml:"request_timeout"`
	Retry            RetryConfig `json:"retry" yaml:"retry"`
	Middleware       []string    `json:"middleware,omitempty" yaml:"middleware,omitempty"` // outermost first
	CacheMethods     []string    `json:"cache_methods,omitempty" yaml:"cache_methods,omitempty"`
	CacheMaxMB       int         `json:"cache_max_mb,omitempty" yaml:"cache_max_mb,omitempty"`
	AsyncConcurrency int64       `json:"async_concurrency" yaml:"async_concurrency"`

	LogLevel    string `json:"log_level" yaml:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format"` // "text" | "json"
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	// internal: where Save() writes
	configDir string
	file      string
}

// NetworkConfig overrides or adds a network. For a builtin network an
// empty field keeps the builtin value.
type NetworkConfig struct {
	RPCs    []string          `json:"rpcs,omitempty" yaml:"rpcs,omitempty"`
	ChainID int64             `json:"chain_id,omitempty" yaml:"chain_id,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// RetryConfig tunes the retry stage and its code table.
type RetryConfig struct {
	MaxAttempts    int      `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay      Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay       Duration `json:"max_delay" yaml:"max_delay"`
	RetryableCodes []int    `json:"retryable_codes,omitempty" yaml:"retryable_codes,omitempty"`
	FatalCodes     []int    `json:"fatal_codes,omitempty" yaml:"fatal_codes,omitempty"`
}

// Duration is a time.Duration written as "250ms" / "30s" in config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// Wallet is a stored account. The private key lives in the OS keyring
// under KeyRef; the file only holds metadata.
type Wallet struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	KeyRef    string `json:"key_ref,omitempty"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

// WalletsFile is the structure of wallets.json.
type WalletsFile struct {
	Wallets []Wallet `json:"wallets"`
}
