package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/contract"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", "42"},
		{"0xdeadbeef", "0xdeadbeef"},
		{"true", "true"},
		{"hello world", "hello world"},
		{"", ""},
		{"[1,2,3]", []any{json.Number("1"), json.Number("2"), json.Number("3")}},
		{`{"to":"0xabc","amount":"5"}`, map[string]any{"to": "0xabc", "amount": "5"}},
		{`  [ "a" ]`, []any{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseArg(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"[1,2", `{"a":}`, "[1] [2]"} {
		_, err := parseArg(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRPCParam(t *testing.T) {
	assert.Equal(t, "latest", parseRPCParam("latest"))
	assert.Equal(t, "0xabc", parseRPCParam("0xabc"))
	assert.Equal(t, false, parseRPCParam("false"))
	assert.Equal(t, json.Number("12"), parseRPCParam("12"))
	assert.Equal(t, "abc", parseRPCParam(`"abc"`))
	assert.Equal(t, map[string]any{"to": "0x1"}, parseRPCParam(`{"to":"0x1"}`))
	assert.Equal(t, "1 2", parseRPCParam("1 2"))
}

func TestSignatureEntry(t *testing.T) {
	tests := []struct {
		sig     string
		name    string
		inputs  []contract.ABIParam
		outputs []contract.ABIParam
	}{
		{
			sig:    "transfer(address to, uint256 amount)",
			name:   "transfer",
			inputs: []contract.ABIParam{{Name: "to", Type: "address"}, {Name: "amount", Type: "uint256"}},
		},
		{
			sig:     "balanceOf(address)(uint256)",
			name:    "balanceOf",
			inputs:  []contract.ABIParam{{Type: "address"}},
			outputs: []contract.ABIParam{{Type: "uint256"}},
		},
		{
			sig:     " name() returns (string) ",
			name:    "name",
			outputs: []contract.ABIParam{{Type: "string"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			e, err := signatureEntry(tt.sig, "view")
			require.NoError(t, err)
			assert.Equal(t, "function", e.Type)
			assert.Equal(t, tt.name, e.Name)
			assert.Equal(t, "view", e.StateMutability)
			assert.Equal(t, len(tt.inputs), len(e.Inputs))
			for i, in := range tt.inputs {
				assert.Equal(t, in.Name, e.Inputs[i].Name)
				assert.Equal(t, in.Type, e.Inputs[i].Type)
			}
			assert.Equal(t, len(tt.outputs), len(e.Outputs))
			for i, out := range tt.outputs {
				assert.Equal(t, out.Type, e.Outputs[i].Type)
			}
		})
	}

	for _, bad := range []string{"transfer", "(uint256)", "f(uint256", "f(uint7)"} {
		_, err := signatureEntry(bad, "")
		assert.Error(t, err, bad)
	}
}

func TestEventEntry(t *testing.T) {
	e, err := eventEntry("Transfer(address indexed from, address indexed to, uint256 value)", false)
	require.NoError(t, err)
	assert.Equal(t, "event", e.Type)
	assert.Equal(t, "Transfer", e.Name)
	require.Len(t, e.Inputs, 3)
	assert.True(t, e.Inputs[0].Indexed)
	assert.True(t, e.Inputs[1].Indexed)
	assert.False(t, e.Inputs[2].Indexed)
	assert.Equal(t, "from", e.Inputs[0].Name)
	assert.Equal(t, "uint256", e.Inputs[2].Type)

	reg, err := contract.NewRegistry([]contract.ABIEntry{e})
	require.NoError(t, err)
	assert.Equal(t, transferSig, reg.Events()[0].Topic.Hex())

	e, err = eventEntry("Ping()", true)
	require.NoError(t, err)
	assert.True(t, e.Anonymous)
	assert.Empty(t, e.Inputs)

	_, err = eventEntry("Transfer(address", false)
	assert.Error(t, err)
}

func TestSplitTopLevel(t *testing.T) {
	assert.Nil(t, splitTopLevel("  "))
	assert.Equal(t, []string{"uint256"}, splitTopLevel("uint256"))
	assert.Equal(t, []string{"address a", " (uint256,bool) b", " string"}, splitTopLevel("address a, (uint256,bool) b, string"))
}

func TestTypeList(t *testing.T) {
	types, err := typeList("(uint256,bool,(address,string)[])")
	require.NoError(t, err)
	require.Len(t, types, 3)
	assert.Equal(t, "uint256", types[0].String())
	assert.Equal(t, "(address,string)[]", types[2].String())

	_, err = typeList("uint256")
	assert.Error(t, err)
}

func TestTrimZeros(t *testing.T) {
	tests := map[string]string{
		"1.000000000000000000": "1",
		"0.050000":             "0.05",
		"0.000000":             "0",
		"12":                   "12",
		"100":                  "100",
	}
	for in, want := range tests {
		assert.Equal(t, want, trimZeros(in), in)
	}
}
