package contract

import (
	"sort"
	"sync"
)

// Builtin is a well-known contract interface embedded in the binary. Each
// one registers itself from init() in its own <name>_abi.go file.
type Builtin struct {
	ID          string     // machine key, e.g. "erc20"
	Name        string     // human label
	Description string     // one-line summary shown by `selector --builtins`
	ABI         []ABIEntry // full ABI

	once sync.Once
	reg  *Registry
}

// Registry returns the builtin's indexed ABI, built on first use.
func (b *Builtin) Registry() *Registry {
	b.once.Do(func() { b.reg = MustRegistry(b.ABI) })
	return b.reg
}

var builtins = map[string]*Builtin{}

// RegisterBuiltin adds a builtin ABI. Registering an ID twice replaces the
// earlier entry.
func RegisterBuiltin(b *Builtin) {
	builtins[b.ID] = b
}

// GetBuiltin returns a builtin by ID.
func GetBuiltin(id string) (*Builtin, bool) {
	b, ok := builtins[id]
	return b, ok
}

// AllBuiltins returns every builtin sorted by ID.
func AllBuiltins() []*Builtin {
	out := make([]*Builtin, 0, len(builtins))
	for _, b := range builtins {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mustParseABI is ParseABI for ABIs embedded as string constants.
func mustParseABI(js string) []ABIEntry {
	entries, err := ParseABI([]byte(js))
	if err != nil {
		panic(err)
	}
	return entries
}
