package contract

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
)

// ABIEntry is one entry of a JSON contract interface description.
type ABIEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	Inputs          []ABIParam `json:"inputs,omitempty"`
	Outputs         []ABIParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Anonymous       bool       `json:"anonymous,omitempty"`

	// Legacy flags from solc < 0.5, used when StateMutability is absent.
	Constant bool `json:"constant,omitempty"`
	Payable  bool `json:"payable,omitempty"`
}

// ABIParam is a parameter in an ABI entry. Tuple parameters carry their
// fields in Components.
type ABIParam struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	InternalType string     `json:"internalType,omitempty"`
	Indexed      bool       `json:"indexed,omitempty"`
	Components   []ABIParam `json:"components,omitempty"`
}

// Mutability returns the entry's state mutability, mapping the legacy
// constant/payable flags for old compilers.
func (e ABIEntry) Mutability() string {
	switch {
	case e.StateMutability != "":
		return e.StateMutability
	case e.Payable:
		return "payable"
	case e.Constant:
		return "view"
	}
	return "nonpayable"
}

// IsReadFunction returns true if the function is read-only (view/pure).
func (e ABIEntry) IsReadFunction() bool {
	m := e.Mutability()
	return e.Type == "function" && (m == "view" || m == "pure")
}

// IsWriteFunction returns true if the function modifies state.
func (e ABIEntry) IsWriteFunction() bool {
	return e.Type == "function" && !e.IsReadFunction()
}

// ABIType resolves the parameter's type, building tuples from components.
func (p ABIParam) ABIType() (abi.Type, error) {
	if !strings.HasPrefix(p.Type, "tuple") {
		return abi.ParseType(p.Type)
	}
	fields := make([]abi.Field, len(p.Components))
	for i, c := range p.Components {
		t, err := c.ABIType()
		if err != nil {
			return abi.Type{}, fmt.Errorf("component %q: %w", c.Name, err)
		}
		fields[i] = abi.Field{Name: c.Name, Type: t}
	}
	return abi.WithArraySuffix(abi.TupleType(fields...), strings.TrimPrefix(p.Type, "tuple"))
}

// ParseABI reads a JSON ABI: either a bare array of entries or a
// Hardhat/Foundry artifact object with an "abi" key. Entries without a type
// are functions.
func ParseABI(data []byte) ([]ABIEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("ABI is empty")
	}
	if data[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(data, &artifact); err != nil {
			return nil, fmt.Errorf("invalid artifact JSON: %w", err)
		}
		if len(artifact.ABI) < 2 || artifact.ABI[0] != '[' {
			return nil, fmt.Errorf("JSON object has no \"abi\" array")
		}
		data = artifact.ABI
	}

	var entries []ABIEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid ABI JSON: expected an array of entries: %w", err)
	}
	for i := range entries {
		if entries[i].Type == "" {
			entries[i].Type = "function"
		}
		switch entries[i].Type {
		case "function", "event", "error", "constructor", "fallback", "receive":
		default:
			return nil, fmt.Errorf("entry %d: unknown type %q", i, entries[i].Type)
		}
	}
	return entries, nil
}

// LoadFromFile reads an ABI or artifact file.
func LoadFromFile(path string) ([]ABIEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ABI file %s: %w", path, err)
	}
	entries, err := ParseABI(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// LoadBytecode returns the deployment bytecode of a Hardhat ("bytecode":
// "0x...") or Foundry ("bytecode": {"object": "0x..."}) artifact.
func LoadBytecode(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read artifact file: %w", err)
	}
	var raw struct {
		Bytecode json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid artifact JSON: %w", err)
	}
	if len(raw.Bytecode) == 0 {
		return nil, fmt.Errorf("artifact has no bytecode: %s", path)
	}

	var code string
	if err := json.Unmarshal(raw.Bytecode, &code); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw.Bytecode, &obj); err != nil || obj.Object == "" {
			return nil, fmt.Errorf("bytecode field is neither a hex string nor a {\"object\":\"0x...\"} object")
		}
		code = obj.Object
	}
	code = strings.TrimPrefix(strings.TrimSpace(code), "0x")
	if code == "" {
		return nil, fmt.Errorf("artifact bytecode is empty, cannot deploy an interface or abstract contract: %s", path)
	}
	b, err := hex.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode hex in artifact: %w", err)
	}
	return b, nil
}
