package chain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Transaction is a transaction as returned by eth_getTransactionByHash or
// inside a full block.
type Transaction struct {
	Hash                 common.Hash
	From                 common.Address
	To                   *common.Address // nil for contract creation
	Nonce                uint64
	Value                *big.Int
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int // nil on legacy transactions
	MaxPriorityFeePerGas *big.Int
	Input                []byte
	Type                 uint64
	ChainID              *big.Int
	BlockHash            *common.Hash // nil while pending
	BlockNumber          *uint64
	TransactionIndex     *uint64
}

type rpcTransaction struct {
	Hash                 common.Hash     `json:"hash"`
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Value                *hexutil.Big    `json:"value"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Input                hexutil.Bytes   `json:"input"`
	Type                 *hexutil.Uint64 `json:"type"`
	ChainID              *hexutil.Big    `json:"chainId"`
	BlockHash            *common.Hash    `json:"blockHash"`
	BlockNumber          *hexutil.Uint64 `json:"blockNumber"`
	TransactionIndex     *hexutil.Uint64 `json:"transactionIndex"`
}

// UnmarshalJSON decodes the JSON-RPC transaction object.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var raw rpcTransaction
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = Transaction{
		Hash:                 raw.Hash,
		From:                 raw.From,
		To:                   raw.To,
		Nonce:                uint64(raw.Nonce),
		Value:                bigOrZero(raw.Value),
		Gas:                  uint64(raw.Gas),
		GasPrice:             bigOrNil(raw.GasPrice),
		MaxFeePerGas:         bigOrNil(raw.MaxFeePerGas),
		MaxPriorityFeePerGas: bigOrNil(raw.MaxPriorityFeePerGas),
		Input:                raw.Input,
		ChainID:              bigOrNil(raw.ChainID),
		BlockHash:            raw.BlockHash,
		BlockNumber:          (*uint64)(raw.BlockNumber),
		TransactionIndex:     (*uint64)(raw.TransactionIndex),
	}
	if raw.Type != nil {
		t.Type = uint64(*raw.Type)
	}
	return nil
}

// Pending reports whether the transaction has not been mined yet.
func (t *Transaction) Pending() bool { return t.BlockNumber == nil }

// Selector returns the first four bytes of the input, or nil for plain
// transfers.
func (t *Transaction) Selector() []byte {
	if len(t.Input) < 4 {
		return nil
	}
	return t.Input[:4]
}

// Receipt is a transaction receipt.
type Receipt struct {
	TxHash            common.Hash
	BlockHash         common.Hash
	BlockNumber       uint64
	TransactionIndex  uint64
	From              common.Address
	To                *common.Address
	ContractAddress   *common.Address // set for contract creation
	Status            uint64          // 1 success, 0 failure
	GasUsed           uint64
	CumulativeGasUsed uint64
	EffectiveGasPrice *big.Int
	Type              uint64
	Logs              []Log
}

type rpcReceipt struct {
	TxHash            common.Hash     `json:"transactionHash"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	TransactionIndex  hexutil.Uint64  `json:"transactionIndex"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	ContractAddress   *common.Address `json:"contractAddress"`
	Status            *hexutil.Uint64 `json:"status"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Type              *hexutil.Uint64 `json:"type"`
	Logs              []Log           `json:"logs"`
}

// UnmarshalJSON decodes the JSON-RPC receipt object. Pre-Byzantium
// receipts carry no status and are treated as successful.
func (r *Receipt) UnmarshalJSON(b []byte) error {
	var raw rpcReceipt
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Receipt{
		TxHash:            raw.TxHash,
		BlockHash:         raw.BlockHash,
		BlockNumber:       uint64(raw.BlockNumber),
		TransactionIndex:  uint64(raw.TransactionIndex),
		From:              raw.From,
		To:                raw.To,
		ContractAddress:   raw.ContractAddress,
		Status:            1,
		GasUsed:           uint64(raw.GasUsed),
		CumulativeGasUsed: uint64(raw.CumulativeGasUsed),
		EffectiveGasPrice: bigOrNil(raw.EffectiveGasPrice),
		Logs:              raw.Logs,
	}
	if raw.Status != nil {
		r.Status = uint64(*raw.Status)
	}
	if raw.Type != nil {
		r.Type = uint64(*raw.Type)
	}
	return nil
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool { return r.Status == 1 }

// Fee returns gasUsed * effectiveGasPrice, or nil when the node omits the
// price.
func (r *Receipt) Fee() *big.Int {
	if r.EffectiveGasPrice == nil {
		return nil
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}

// Log is an event log entry.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	BlockHash   common.Hash
	TxHash      common.Hash
	TxIndex     uint64
	Index       uint64
	Removed     bool
}

type rpcLog struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	BlockHash   common.Hash    `json:"blockHash"`
	TxHash      common.Hash    `json:"transactionHash"`
	TxIndex     hexutil.Uint64 `json:"transactionIndex"`
	Index       hexutil.Uint64 `json:"logIndex"`
	Removed     bool           `json:"removed"`
}

// UnmarshalJSON decodes the JSON-RPC log object.
func (l *Log) UnmarshalJSON(b []byte) error {
	var raw rpcLog
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = Log{
		Address:     raw.Address,
		Topics:      raw.Topics,
		Data:        raw.Data,
		BlockNumber: uint64(raw.BlockNumber),
		BlockHash:   raw.BlockHash,
		TxHash:      raw.TxHash,
		TxIndex:     uint64(raw.TxIndex),
		Index:       uint64(raw.Index),
		Removed:     raw.Removed,
	}
	return nil
}

// MarshalJSON encodes the log in JSON-RPC form, so logs can be replayed
// from a file.
func (l Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(rpcLog{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: hexutil.Uint64(l.BlockNumber),
		BlockHash:   l.BlockHash,
		TxHash:      l.TxHash,
		TxIndex:     hexutil.Uint64(l.TxIndex),
		Index:       hexutil.Uint64(l.Index),
		Removed:     l.Removed,
	})
}

// Block is a block header plus its transactions. Transactions is set only
// when the block was fetched with full transaction objects.
type Block struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Timestamp    uint64
	Miner        common.Address
	GasUsed      uint64
	GasLimit     uint64
	BaseFee      *big.Int // nil on pre-EIP-1559 chains
	TxHashes     []common.Hash
	Transactions []*Transaction
}

type rpcBlock struct {
	Number       hexutil.Uint64    `json:"number"`
	Hash         common.Hash       `json:"hash"`
	ParentHash   common.Hash       `json:"parentHash"`
	Timestamp    hexutil.Uint64    `json:"timestamp"`
	Miner        common.Address    `json:"miner"`
	GasUsed      hexutil.Uint64    `json:"gasUsed"`
	GasLimit     hexutil.Uint64    `json:"gasLimit"`
	BaseFee      *hexutil.Big      `json:"baseFeePerGas"`
	Transactions []json.RawMessage `json:"transactions"`
}

// UnmarshalJSON decodes the JSON-RPC block object. The transactions array
// holds either hashes or full objects.
func (blk *Block) UnmarshalJSON(b []byte) error {
	var raw rpcBlock
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*blk = Block{
		Number:     uint64(raw.Number),
		Hash:       raw.Hash,
		ParentHash: raw.ParentHash,
		Timestamp:  uint64(raw.Timestamp),
		Miner:      raw.Miner,
		GasUsed:    uint64(raw.GasUsed),
		GasLimit:   uint64(raw.GasLimit),
		BaseFee:    bigOrNil(raw.BaseFee),
		TxHashes:   make([]common.Hash, 0, len(raw.Transactions)),
	}
	for i, item := range raw.Transactions {
		if len(item) > 0 && item[0] == '"' {
			var h common.Hash
			if err := json.Unmarshal(item, &h); err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
			blk.TxHashes = append(blk.TxHashes, h)
			continue
		}
		tx := new(Transaction)
		if err := json.Unmarshal(item, tx); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		blk.TxHashes = append(blk.TxHashes, tx.Hash)
		blk.Transactions = append(blk.Transactions, tx)
	}
	return nil
}

// TxCount returns the number of transactions in the block.
func (blk *Block) TxCount() int { return len(blk.TxHashes) }

func bigOrNil(b *hexutil.Big) *big.Int {
	if b == nil {
		return nil
	}
	return b.ToInt()
}

func bigOrZero(b *hexutil.Big) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b.ToInt()
}
