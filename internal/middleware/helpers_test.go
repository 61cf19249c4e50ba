package middleware

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// node is a scripted terminal handler that records every request it sees.
type node struct {
	mu    sync.Mutex
	calls []*transport.Request
	reply func(req *transport.Request) (*transport.Response, error)
}

func newNode(reply func(req *transport.Request) (*transport.Response, error)) *node {
	return &node{reply: reply}
}

func (n *node) handle(_ context.Context, req *transport.Request) (*transport.Response, error) {
	n.mu.Lock()
	n.calls = append(n.calls, req)
	n.mu.Unlock()
	return n.reply(req)
}

func (n *node) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, r := range n.calls {
		if r.Method == method {
			c++
		}
	}
	return c
}

func (n *node) last(method string) *transport.Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.calls) - 1; i >= 0; i-- {
		if n.calls[i].Method == method {
			return n.calls[i]
		}
	}
	return nil
}

func ok(req *transport.Request, v any) (*transport.Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &transport.Response{JSONRPC: transport.Version, ID: req.ID, Result: raw}, nil
}

func fail(req *transport.Request, code int, msg string) (*transport.Response, error) {
	return &transport.Response{
		JSONRPC: transport.Version,
		ID:      req.ID,
		Error:   &transport.RPCError{Code: code, Message: msg},
	}, nil
}

// rooted composes chain over terminal and returns a context carrying the
// composed handler for nested calls.
func rooted(chain Chain, terminal Handler) (Handler, context.Context) {
	var ids atomic.Uint64
	ids.Store(1000)
	h := chain.Then(terminal)
	return h, WithRoot(context.Background(), h, func() uint64 { return ids.Add(1) })
}
