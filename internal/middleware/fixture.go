package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

type fixture struct {
	results map[string]json.RawMessage
	errors  map[string]*transport.RPCError
}

// Fixture answers the listed methods with canned results or error
// envelopes without calling the rest of the chain. Results are marshaled
// once, up front; other methods pass through.
func Fixture(results map[string]any, errors map[string]*transport.RPCError) (Middleware, error) {
	f := &fixture{
		results: make(map[string]json.RawMessage, len(results)),
		errors:  errors,
	}
	for method, v := range results {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", method, err)
		}
		f.results[method] = raw
	}
	return f, nil
}

func (f *fixture) Name() string { return NameFixture }

func (f *fixture) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	if rpcErr, ok := f.errors[req.Method]; ok {
		e := *rpcErr
		return &transport.Response{JSONRPC: transport.Version, ID: req.ID, Error: &e}, nil
	}
	if raw, ok := f.results[req.Method]; ok {
		return &transport.Response{JSONRPC: transport.Version, ID: req.ID, Result: raw}, nil
	}
	return next(ctx, req)
}
