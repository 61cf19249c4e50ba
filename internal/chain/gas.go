package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// GasInfo holds current gas pricing data for a chain.
type GasInfo struct {
	GasPrice    *big.Int // legacy eth_gasPrice (wei)
	BaseFee     *big.Int // EIP-1559 base fee (wei), nil on legacy chains
	PriorityFee *big.Int // suggested tip (wei), nil when unsupported
	BlockNumber uint64
}

// EIP1559 reports whether the latest block carried a base fee.
func (g *GasInfo) EIP1559() bool { return g.BaseFee != nil }

// MaxFee returns the default dynamic fee cap, tip + 2*baseFee. It falls
// back to the legacy gas price on chains without a base fee.
func (g *GasInfo) MaxFee() *big.Int {
	if g.BaseFee == nil {
		return g.GasPrice
	}
	fee := new(big.Int).Lsh(g.BaseFee, 1)
	if g.PriorityFee != nil {
		fee.Add(fee, g.PriorityFee)
	}
	return fee
}

// GasPriceDisplay returns the best gas price for display (Gwei) and whether
// the chain supports EIP-1559.
func (g *GasInfo) GasPriceDisplay() (gwei float64, isEIP1559 bool) {
	if g.EIP1559() {
		return WeiToGwei(g.BaseFee), true
	}
	return WeiToGwei(g.GasPrice), false
}

// GetGasInfo fetches the gas price and the base fee of the latest block.
// The tip is only queried on EIP-1559 chains and is left nil when the node
// does not implement eth_maxPriorityFeePerGas.
func (c *EVMClient) GetGasInfo(ctx context.Context) (*GasInfo, error) {
	gp, err := c.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	info := &GasInfo{GasPrice: gp}

	head, err := c.GetBlockByNumber(ctx, "latest", false)
	if err != nil {
		return nil, fmt.Errorf("fetching latest block: %w", err)
	}
	info.BlockNumber = head.Number
	info.BaseFee = head.BaseFee

	if info.EIP1559() {
		if tip, err := c.MaxPriorityFeePerGas(ctx); err == nil {
			info.PriorityFee = tip
		}
	}
	return info, nil
}

// Age returns a human-readable relative age string.
func (blk *Block) Age() string {
	if blk.Timestamp == 0 {
		return "unknown"
	}
	now := uint64(time.Now().Unix())
	if blk.Timestamp > now {
		return "0s ago"
	}
	diff := now - blk.Timestamp
	switch {
	case diff < 60:
		return fmt.Sprintf("%ds ago", diff)
	case diff < 3600:
		return fmt.Sprintf("%dm ago", diff/60)
	default:
		return fmt.Sprintf("%dh ago", diff/3600)
	}
}

// GasUsedPct returns gas utilisation as a percentage string.
func (blk *Block) GasUsedPct() string {
	if blk.GasLimit == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(blk.GasUsed)/float64(blk.GasLimit)*100)
}

// WeiToGwei converts a Wei value to Gwei as float64.
func WeiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		new(big.Float).SetFloat64(1e9),
	).Float64()
	return f
}
