// Package middleware wraps the transport in an ordered onion of request and
// response interceptors.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// Stage names used by configuration to order the chain.
const (
	NameValidation = "validation"
	NameGasNonce   = "gas_nonce"
	NameCache      = "cache"
	NameRetry      = "retry"
	NameFormatting = "formatting"
	NameSigning    = "signing"
	NameMetrics    = "metrics"
	NameLogging    = "logging"
	NameFixture    = "fixture"
)

// DefaultOrder is the outermost-first stage order used when none is configured.
var DefaultOrder = []string{NameValidation, NameGasNonce, NameCache, NameRetry, NameFormatting}

// Handler performs one round trip through the rest of the chain.
type Handler func(ctx context.Context, req *transport.Request) (*transport.Response, error)

// Middleware is one stage of the chain. Process may transform req, must call
// next at most once per attempt, and may transform the response it returns.
type Middleware interface {
	Name() string
	Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error)
}

type funcMiddleware struct {
	name string
	fn   func(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error)
}

func (f funcMiddleware) Name() string { return f.name }

func (f funcMiddleware) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	return f.fn(ctx, req, next)
}

// Func adapts a plain function into a named Middleware.
func Func(name string, fn func(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error)) Middleware {
	return funcMiddleware{name: name, fn: fn}
}

// Chain is an immutable, outermost-first list of stages.
type Chain struct {
	stages []Middleware
}

// NewChain copies stages into a new chain.
func NewChain(stages ...Middleware) Chain {
	return Chain{stages: append([]Middleware(nil), stages...)}
}

// Append returns a new chain with stages added innermost.
func (c Chain) Append(stages ...Middleware) Chain {
	out := make([]Middleware, 0, len(c.stages)+len(stages))
	out = append(out, c.stages...)
	return Chain{stages: append(out, stages...)}
}

// Names lists the stage names outermost first.
func (c Chain) Names() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of stages.
func (c Chain) Len() int { return len(c.stages) }

// Then composes the chain around terminal, which sits innermost. The
// returned handler is safe for concurrent use.
func (c Chain) Then(terminal Handler) Handler {
	h := terminal
	for i := len(c.stages) - 1; i >= 0; i-- {
		stage, next := c.stages[i], h
		h = func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			return stage.Process(ctx, req, next)
		}
	}
	return h
}

// Terminal adapts a transport into the innermost handler.
func Terminal(t transport.Transport) Handler {
	return t.Send
}

// Select builds a chain from names using the given stage set. Unknown
// names are an error; stages absent from names are left out.
func Select(names []string, available map[string]Middleware) (Chain, error) {
	stages := make([]Middleware, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return Chain{}, fmt.Errorf("middleware %q listed twice", name)
		}
		seen[name] = true
		m, ok := available[name]
		if !ok {
			return Chain{}, fmt.Errorf("unknown middleware %q", name)
		}
		stages = append(stages, m)
	}
	return NewChain(stages...), nil
}

// ---------------------------------------------------------------------------
// nested calls
// ---------------------------------------------------------------------------

type rootKey struct{}

type root struct {
	handler Handler
	nextID  func() uint64
}

// WithRoot records the fully composed chain in ctx so stages can issue
// nested calls that pass through every stage, not only the inner ones.
func WithRoot(ctx context.Context, h Handler, nextID func() uint64) context.Context {
	return context.WithValue(ctx, rootKey{}, root{handler: h, nextID: nextID})
}

// Call performs a nested request through the root chain recorded in ctx
// and returns its result, turning an error envelope into a Go error.
func Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	r, ok := ctx.Value(rootKey{}).(root)
	if !ok {
		return nil, fmt.Errorf("nested call %s: no root chain in context", method)
	}
	resp, err := r.handler(ctx, transport.NewRequest(r.nextID(), method, params...))
	if err != nil {
		return nil, err
	}
	return Result(resp)
}

// Result extracts the result of a response, surfacing an error envelope as
// a *transport.RPCError.
func Result(resp *transport.Response) (json.RawMessage, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// cloneRequest copies req with fresh params so a stage can rewrite them
// without touching the caller's request.
func cloneRequest(req *transport.Request, params []any) *transport.Request {
	out := *req
	out.Params = params
	return &out
}
