package contract_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
)

const eventsABI = `[
  {"type":"event","name":"Named","anonymous":false,"inputs":[
    {"name":"tag","type":"string","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"Ping","anonymous":true,"inputs":[
    {"name":"from","type":"address","indexed":true}]}
]`

var (
	alice = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	bob   = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	namedTopic    = common.HexToHash("0x1fc1ee74e64a4613da0ebad7aa1e41655ed6a50b1e27ec21849a5cd4db9381dd")
	helloHash     = common.HexToHash("0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8")
)

func addrTopic(a common.Address) common.Hash { return common.BytesToHash(a.Bytes()) }

func TestEventDecodeTransfer(t *testing.T) {
	erc20, _ := contract.GetBuiltin("erc20")
	ev, err := erc20.Registry().Event("Transfer(address,address,uint256)")
	require.NoError(t, err)

	data := common.LeftPadBytes(big.NewInt(1000).Bytes(), 32)
	args, err := ev.Decode([]common.Hash{transferTopic, addrTopic(alice), addrTopic(bob)}, data)
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, alice, args[0].Data)
	assert.Equal(t, bob, args[1].Data)
	assert.Equal(t, big.NewInt(1000), args[2].Data)
}

func TestEventDecodeIndexedDynamicIsHash(t *testing.T) {
	reg := mustRegistry(t, eventsABI)
	ev, err := reg.Event("Named(string,uint256)")
	require.NoError(t, err)
	assert.Equal(t, namedTopic, ev.Topic)

	args, err := ev.Decode([]common.Hash{namedTopic, helloHash}, common.LeftPadBytes([]byte{7}, 32))
	require.NoError(t, err)
	assert.Equal(t, abi.FixedBytesType(32), args[0].Type)
	assert.Equal(t, helloHash.Bytes(), args[0].Data)
	assert.Equal(t, "7", args[1].String())
}

func TestEventDecodeErrors(t *testing.T) {
	erc20, _ := contract.GetBuiltin("erc20")
	ev, _ := erc20.Registry().Event("Transfer(address,address,uint256)")
	data := common.LeftPadBytes([]byte{1}, 32)

	tests := []struct {
		name   string
		topics []common.Hash
		data   []byte
	}{
		{"no topics", nil, data},
		{"wrong signature topic", []common.Hash{namedTopic, addrTopic(alice), addrTopic(bob)}, data},
		{"missing indexed topic", []common.Hash{transferTopic, addrTopic(alice)}, data},
		{"short data", []common.Hash{transferTopic, addrTopic(alice), addrTopic(bob)}, data[:31]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Decode(tt.topics, tt.data)
			assert.Error(t, err)
		})
	}
}

func TestAnonymousEvent(t *testing.T) {
	reg := mustRegistry(t, eventsABI)
	c := contract.New(bob, reg, nil)

	log := chain.Log{Address: bob, Topics: []common.Hash{addrTopic(alice)}}
	_, err := c.DecodeLog(log)
	assert.ErrorIs(t, err, contract.ErrNotInABI)

	d, err := c.DecodeLogAs("Ping(address)", log)
	require.NoError(t, err)
	assert.Equal(t, alice, d.Named()["from"].Data)
}

func TestEventTopics(t *testing.T) {
	reg := mustRegistry(t, eventsABI)
	named, _ := reg.Event("Named(string,uint256)")

	topics, err := named.Topics("hello")
	require.NoError(t, err)
	assert.Equal(t, [][]common.Hash{{namedTopic}, {helloHash}}, topics)

	topics, err = named.Topics(nil)
	require.NoError(t, err)
	assert.Equal(t, [][]common.Hash{{namedTopic}, nil}, topics)

	_, err = named.Topics("a", "b")
	assert.Error(t, err)

	erc20, _ := contract.GetBuiltin("erc20")
	transfer, _ := erc20.Registry().Event("Transfer(address,address,uint256)")
	topics, err = transfer.Topics(nil, bob.Hex())
	require.NoError(t, err)
	assert.Equal(t, [][]common.Hash{{transferTopic}, nil, {addrTopic(bob)}}, topics)

	ping, _ := reg.Event("Ping(address)")
	topics, err = ping.Topics(alice)
	require.NoError(t, err)
	assert.Equal(t, [][]common.Hash{{addrTopic(alice)}}, topics)
}

func TestDecodeCall(t *testing.T) {
	erc20, _ := contract.GetBuiltin("erc20")
	c := contract.New(bob, erc20.Registry(), nil)

	data, err := c.EncodeCall("transfer", alice.Hex(), "1000")
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(data[:4]))
	assert.Len(t, data, 4+64)

	fn, args, err := c.DecodeCall(data)
	require.NoError(t, err)
	assert.Equal(t, "transfer(address,uint256)", fn.Signature)
	assert.Equal(t, []string{alice.Hex(), "1000"}, abi.Values(args).Strings())

	_, _, err = c.DecodeCall([]byte{1, 2})
	assert.Error(t, err)
	_, _, err = c.DecodeCall([]byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, contract.ErrNotInABI)
}
