package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Selector returns the 4-byte function selector for a canonical signature
// such as "transfer(address,uint256)".
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], Keccak256([]byte(signature)))
	return sel
}

// Topic returns the event topic hash for a canonical signature.
func Topic(signature string) common.Hash {
	return common.BytesToHash(Keccak256([]byte(signature)))
}

// Signature builds the canonical "name(type,...)" string.
func Signature(name string, inputs []Type) string {
	parts := make([]string, len(inputs))
	for i, t := range inputs {
		parts[i] = t.String()
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// ParseSignature splits a human-readable signature like
// "transfer(address to, uint256)" into its name and parsed input types.
func ParseSignature(sig string) (string, []Type, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return "", nil, &TypeSyntaxError{Input: sig, Reason: "signature must look like name(type,...)"}
	}
	name := strings.TrimSpace(sig[:open])
	t, err := ParseType(sig[open:])
	if err != nil {
		return "", nil, err
	}
	if t.Kind != KindTuple {
		return "", nil, &TypeSyntaxError{Input: sig, Reason: "arguments must not carry array suffix"}
	}
	return name, fieldTypes(t), nil
}
