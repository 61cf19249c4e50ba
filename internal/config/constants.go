package config

import "time"

// Timeouts used by the CLI.
const (
	RPCSelectTimeout = 10 * time.Second // per-endpoint probe when picking the fastest RPC
	TxConfirmTimeout = 3 * time.Minute  // waiting for a sent transaction's receipt
)
