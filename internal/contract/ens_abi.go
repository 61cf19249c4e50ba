package contract

func init() {
	RegisterBuiltin(&Builtin{
		ID:          "ens-registry",
		Name:        "ENS Registry",
		Description: "ENS registry: owner, resolver and TTL of a namehash",
		ABI:         mustParseABI(ensRegistryJSON),
	})
	RegisterBuiltin(&Builtin{
		ID:          "ens-resolver",
		Name:        "ENS Public Resolver",
		Description: "ENS resolver records: addr, name, text and contenthash",
		ABI:         mustParseABI(ensResolverJSON),
	})
}

const ensRegistryJSON = `[
  {"type":"function","name":"owner","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"resolver","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"ttl","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"uint64"}],"stateMutability":"view"},
  {"type":"function","name":"recordExists","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
  {"type":"event","name":"NewResolver","anonymous":false,"inputs":[{"name":"node","type":"bytes32","indexed":true},{"name":"resolver","type":"address","indexed":false}]},
  {"type":"event","name":"NewOwner","anonymous":false,"inputs":[{"name":"node","type":"bytes32","indexed":true},{"name":"label","type":"bytes32","indexed":true},{"name":"owner","type":"address","indexed":false}]}
]`

const ensResolverJSON = `[
  {"type":"function","name":"addr","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"addr","inputs":[{"name":"node","type":"bytes32"},{"name":"coinType","type":"uint256"}],"outputs":[{"name":"","type":"bytes"}],"stateMutability":"view"},
  {"type":"function","name":"name","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
  {"type":"function","name":"text","inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"}],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
  {"type":"function","name":"contenthash","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"bytes"}],"stateMutability":"view"},
  {"type":"function","name":"supportsInterface","inputs":[{"name":"interfaceID","type":"bytes4"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"pure"},
  {"type":"event","name":"AddrChanged","anonymous":false,"inputs":[{"name":"node","type":"bytes32","indexed":true},{"name":"a","type":"address","indexed":false}]}
]`
