package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

func tracer(name string, mu *sync.Mutex, trace *[]string) Middleware {
	return Func(name, func(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
		mu.Lock()
		*trace = append(*trace, name)
		mu.Unlock()
		resp, err := next(ctx, req)
		mu.Lock()
		*trace = append(*trace, name)
		mu.Unlock()
		return resp, err
	})
}

func TestChainOrdering(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	terminal := func(_ context.Context, req *transport.Request) (*transport.Response, error) {
		mu.Lock()
		trace = append(trace, "T")
		mu.Unlock()
		return ok(req, "0x1")
	}

	chain := NewChain(tracer("A", &mu, &trace), tracer("B", &mu, &trace), tracer("C", &mu, &trace))
	h := chain.Then(terminal)

	_, err := h(context.Background(), transport.NewRequest(1, "eth_chainId"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "T", "C", "B", "A"}, trace)
	assert.Equal(t, []string{"A", "B", "C"}, chain.Names())
}

func TestChainIsImmutable(t *testing.T) {
	stages := []Middleware{NewValidation(), NewFormatting()}
	chain := NewChain(stages...)
	stages[0] = NewFormatting()

	longer := chain.Append(NewLogging(nil))
	assert.Equal(t, []string{NameValidation, NameFormatting}, chain.Names())
	assert.Equal(t, []string{NameValidation, NameFormatting, NameLogging}, longer.Names())
	assert.Equal(t, 3, longer.Len())
}

func TestEmptyChainCallsTerminal(t *testing.T) {
	n := newNode(func(req *transport.Request) (*transport.Response, error) { return ok(req, "0x1") })
	resp, err := NewChain().Then(n.handle)(context.Background(), transport.NewRequest(4, "eth_chainId"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), resp.ID)
	assert.Equal(t, 1, n.count("eth_chainId"))
}

func TestSelect(t *testing.T) {
	available := map[string]Middleware{
		NameValidation: NewValidation(),
		NameFormatting: NewFormatting(),
		NameRetry:      NewRetry(),
	}

	chain, err := Select([]string{NameRetry, NameValidation}, available)
	require.NoError(t, err)
	assert.Equal(t, []string{NameRetry, NameValidation}, chain.Names())

	_, err = Select([]string{"bogus"}, available)
	assert.ErrorContains(t, err, `unknown middleware "bogus"`)

	_, err = Select([]string{NameRetry, NameRetry}, available)
	assert.ErrorContains(t, err, "listed twice")
}

func TestNestedCallRunsFullChain(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	n := newNode(func(req *transport.Request) (*transport.Response, error) { return ok(req, "0x2a") })

	outer := Func("outer", func(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
		if req.Method == "eth_sendTransaction" {
			if _, err := Call(ctx, "eth_blockNumber"); err != nil {
				return nil, err
			}
		}
		return next(ctx, req)
	})
	h, ctx := rooted(NewChain(tracer("A", &mu, &trace), outer), n.handle)

	_, err := h(ctx, transport.NewRequest(1, "eth_sendTransaction", map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A", "A", "A"}, trace, "the nested call passes the outermost stage too")
	assert.Equal(t, 1, n.count("eth_blockNumber"))
	assert.Greater(t, n.last("eth_blockNumber").ID, uint64(1000))
}

func TestCallWithoutRoot(t *testing.T) {
	_, err := Call(context.Background(), "eth_chainId")
	assert.ErrorContains(t, err, "no root chain")
}

func TestResult(t *testing.T) {
	_, err := Result(&transport.Response{Error: &transport.RPCError{Code: -32000, Message: "boom"}})
	var rpcErr *transport.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)

	raw, err := Result(&transport.Response{Result: []byte(`"0x1"`)})
	require.NoError(t, err)
	assert.Equal(t, `"0x1"`, string(raw))
}
