package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/contract"
)

// parseArg turns a command-line argument into something abi.Coerce
// accepts. JSON arrays and objects are decoded with exact numbers; every
// other argument stays a string, which covers decimal integers, 0x data,
// addresses, booleans and text.
func parseArg(s string) (any, error) {
	t := strings.TrimSpace(s)
	if t == "" || (t[0] != '[' && t[0] != '{') {
		return s, nil
	}
	dec := json.NewDecoder(strings.NewReader(t))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("argument %q: invalid JSON: %w", s, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("argument %q: trailing data after JSON value", s)
	}
	return v, nil
}

func parseArgs(ss []string) ([]any, error) {
	out := make([]any, len(ss))
	for i, s := range ss {
		v, err := parseArg(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseRPCParam decodes a raw RPC param: valid JSON is used as-is, anything
// else is a bare string, so `latest` and `0xabc` need no quoting.
func parseRPCParam(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

// abiFlags select where a contract command gets its ABI from.
type abiFlags struct {
	file    string
	builtin string
}

func (f *abiFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "abi", "", "JSON ABI or Hardhat/Foundry artifact file")
	cmd.Flags().StringVar(&f.builtin, "builtin", "", "built-in ABI id (see `w3kit selector --builtins`)")
}

// registry returns the ABI for function and the name to resolve in it.
// Without --abi or --builtin, function must be a signature such as
// "balanceOf(address)(uint256)"; a bare name falls back to the ERC-20 ABI.
func (f *abiFlags) registry(function, mutability string) (*contract.Registry, string, error) {
	switch {
	case f.file != "" && f.builtin != "":
		return nil, "", fmt.Errorf("--abi and --builtin are mutually exclusive")
	case f.file != "":
		entries, err := contract.LoadFromFile(f.file)
		if err != nil {
			return nil, "", err
		}
		reg, err := contract.NewRegistry(entries)
		return reg, function, err
	case f.builtin != "":
		b, ok := contract.GetBuiltin(f.builtin)
		if !ok {
			return nil, "", fmt.Errorf("unknown built-in ABI %q", f.builtin)
		}
		return b.Registry(), function, nil
	case strings.Contains(function, "("):
		entry, err := signatureEntry(function, mutability)
		if err != nil {
			return nil, "", err
		}
		reg, err := contract.NewRegistry([]contract.ABIEntry{entry})
		if err != nil {
			return nil, "", err
		}
		return reg, reg.Functions()[0].Signature, nil
	}
	b, _ := contract.GetBuiltin("erc20")
	return b.Registry(), function, nil
}

// signatureEntry builds a function entry from "name(inputs)(outputs)". The
// output list is optional and may be introduced by "returns".
func signatureEntry(sig, mutability string) (contract.ABIEntry, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 {
		return contract.ABIEntry{}, fmt.Errorf("signature %q must look like name(type,...)", sig)
	}
	end := closingParen(sig, open)
	if end < 0 {
		return contract.ABIEntry{}, fmt.Errorf("signature %q: unbalanced parentheses", sig)
	}
	inputs, err := paramList(sig[open : end+1])
	if err != nil {
		return contract.ABIEntry{}, fmt.Errorf("signature %q: %w", sig, err)
	}
	entry := contract.ABIEntry{
		Type:            "function",
		Name:            strings.TrimSpace(sig[:open]),
		Inputs:          inputs,
		StateMutability: mutability,
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sig[end+1:]), "returns"))
	if rest != "" {
		if entry.Outputs, err = paramList(rest); err != nil {
			return contract.ABIEntry{}, fmt.Errorf("signature %q outputs: %w", sig, err)
		}
	}
	return entry, nil
}

// eventEntry builds an event entry from a signature whose parameters may
// be marked indexed: "Transfer(address indexed from, address indexed to, uint256)".
func eventEntry(sig string, anonymous bool) (contract.ABIEntry, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 || closingParen(sig, open) != len(sig)-1 {
		return contract.ABIEntry{}, fmt.Errorf("event signature %q must look like Name(type [indexed] [name],...)", sig)
	}
	parts := splitTopLevel(sig[open+1 : len(sig)-1])
	indexed := make([]bool, len(parts))
	for i, p := range parts {
		words := strings.Fields(p)
		kept := words[:0]
		for _, w := range words {
			if w == "indexed" {
				indexed[i] = true
				continue
			}
			kept = append(kept, w)
		}
		parts[i] = strings.Join(kept, " ")
	}
	params, err := paramList("(" + strings.Join(parts, ",") + ")")
	if err != nil {
		return contract.ABIEntry{}, fmt.Errorf("event signature %q: %w", sig, err)
	}
	for i := range params {
		params[i].Indexed = indexed[i]
	}
	return contract.ABIEntry{
		Type:      "event",
		Name:      strings.TrimSpace(sig[:open]),
		Inputs:    params,
		Anonymous: anonymous,
	}, nil
}

// paramList parses "(type name, ...)" into ABI params.
func paramList(s string) ([]contract.ABIParam, error) {
	t, err := abi.ParseType(s)
	if err != nil {
		return nil, err
	}
	if t.Kind != abi.KindTuple {
		return nil, fmt.Errorf("want a parenthesised type list, got %s", t)
	}
	params := make([]contract.ABIParam, len(t.Fields))
	for i, f := range t.Fields {
		params[i] = contract.ABIParam{Name: f.Name, Type: f.Type.String()}
	}
	return params, nil
}

// closingParen returns the index of the parenthesis matching s[open].
func closingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s at commas outside parentheses. An empty s has no
// parts.
func splitTopLevel(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
