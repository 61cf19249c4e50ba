// Package client owns a transport and the middleware chain built around it,
// and runs requests through them on the caller's goroutine or a bounded
// pool.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	logger "github.com/sirupsen/logrus"

	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// ErrNotStreaming is returned by Subscribe on transports without push support.
var ErrNotStreaming = errors.New("transport does not support subscriptions")

// Executor runs one JSON-RPC call and returns its result.
type Executor interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Client is one connection to a node plus its immutable middleware chain.
// It is safe for concurrent use.
type Client struct {
	mu        sync.RWMutex
	transport transport.Transport
	endpoint  string

	chain   middleware.Chain
	handler middleware.Handler
	cache   *middleware.Cache
	ids     atomic.Uint64
	opts    Options
	log     logger.FieldLogger
}

// Dial connects to endpoint and builds the client around the new transport.
func Dial(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	t, err := transport.Dial(ctx, endpoint, opts.transportOptions()...)
	if err != nil {
		return nil, err
	}
	c, err := New(t, opts)
	if err != nil {
		t.Close()
		return nil, err
	}
	c.endpoint = endpoint
	return c, nil
}

// New builds a client around an existing transport.
func New(t transport.Transport, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	c := &Client{transport: t, opts: opts, log: opts.Logger}

	stages, err := c.buildStages()
	if err != nil {
		return nil, err
	}
	c.chain, err = middleware.Select(c.stageOrder(), stages)
	if err != nil {
		return nil, err
	}
	c.handler = c.chain.Then(c.send)
	return c, nil
}

// stageOrder returns the configured names with a signing stage inserted
// after gas/nonce when signers are present.
func (c *Client) stageOrder() []string {
	names := slices.Clone(c.opts.Middleware)
	if len(c.opts.Signers) == 0 || slices.Contains(names, middleware.NameSigning) {
		return names
	}
	at := slices.Index(names, middleware.NameGasNonce) + 1
	return slices.Insert(names, at, middleware.NameSigning)
}

func (c *Client) buildStages() (map[string]middleware.Middleware, error) {
	o := c.opts
	stages := make(map[string]middleware.Middleware)
	for name, m := range o.Stages {
		stages[name] = m
	}

	wanted := make(map[string]bool)
	for _, name := range c.stageOrder() {
		wanted[name] = true
	}
	add := func(name string, build func() (middleware.Middleware, error)) error {
		if !wanted[name] || stages[name] != nil {
			return nil
		}
		m, err := build()
		if err != nil {
			return fmt.Errorf("building %s stage: %w", name, err)
		}
		stages[name] = m
		return nil
	}

	builders := []struct {
		name  string
		build func() (middleware.Middleware, error)
	}{
		{middleware.NameValidation, func() (middleware.Middleware, error) { return middleware.NewValidation(), nil }},
		{middleware.NameFormatting, func() (middleware.Middleware, error) { return middleware.NewFormatting(), nil }},
		{middleware.NameGasNonce, func() (middleware.Middleware, error) {
			var gopts []middleware.GasNonceOption
			if o.GasPriceStrategy != nil {
				gopts = append(gopts, middleware.WithGasPriceStrategy(o.GasPriceStrategy))
			}
			return middleware.NewGasNonce(gopts...), nil
		}},
		{middleware.NameCache, func() (middleware.Middleware, error) {
			cache, err := middleware.NewCache(
				middleware.WithCacheMethods(o.CacheMethods...),
				middleware.WithCacheMaxMB(o.CacheMaxMB),
				middleware.WithCacheLogger(o.Logger),
			)
			if err != nil {
				return nil, err
			}
			c.cache = cache
			return cache, nil
		}},
		{middleware.NameRetry, func() (middleware.Middleware, error) {
			return middleware.NewRetry(
				middleware.WithMaxAttempts(o.MaxAttempts),
				middleware.WithBackoff(o.BaseDelay, o.MaxDelay),
				middleware.WithCodeTable(o.codeTable()),
				middleware.WithRetryLogger(o.Logger),
			), nil
		}},
		{middleware.NameLogging, func() (middleware.Middleware, error) { return middleware.NewLogging(o.Logger), nil }},
		{middleware.NameMetrics, func() (middleware.Middleware, error) { return middleware.NewMetrics(o.Registerer) }},
		{middleware.NameSigning, func() (middleware.Middleware, error) {
			if len(o.Signers) == 0 || o.ChainID == nil {
				return nil, errors.New("signing needs at least one signer and a chain id")
			}
			return middleware.NewSigning(o.ChainID, o.Signers...), nil
		}},
		{middleware.NameFixture, func() (middleware.Middleware, error) {
			return middleware.Fixture(o.Fixtures, o.FixtureErrors)
		}},
	}
	for _, b := range builders {
		if err := add(b.name, b.build); err != nil {
			return nil, err
		}
	}
	return stages, nil
}

// send is the innermost handler: whatever transport is current.
func (c *Client) send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return c.Transport().Send(ctx, req)
}

// Transport returns the current transport.
func (c *Client) Transport() transport.Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

// Endpoint returns the URL the client dialed, if it dialed one.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Middleware lists the chain's stage names outermost first.
func (c *Client) Middleware() []string { return c.chain.Names() }

// Cache returns the response cache, or nil when no cache stage is configured.
func (c *Client) Cache() *middleware.Cache { return c.cache }

// NextID returns a request id unique for this client.
func (c *Client) NextID() uint64 { return c.ids.Add(1) }

// Do sends req through the chain. Error envelopes are returned as-is.
func (c *Client) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	ctx = middleware.WithRoot(ctx, c.handler, c.NextID)
	return c.handler(ctx, req)
}

// Call sends method through the chain and returns its result. An error
// envelope becomes a Go error even when no formatting stage is present.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	resp, err := c.Do(ctx, transport.NewRequest(c.NextID(), method, params...))
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, middleware.FormatRPCError(resp.Error)
	}
	return resp.Result, nil
}

// Subscribe opens a <namespace>_subscribe stream. Notifications bypass the
// middleware chain.
func (c *Client) Subscribe(ctx context.Context, namespace string, ch chan<- json.RawMessage, args ...any) (*transport.Subscription, error) {
	s, ok := c.Transport().(transport.Streamer)
	if !ok {
		return nil, ErrNotStreaming
	}
	return s.Subscribe(ctx, transport.NewRequest(c.NextID(), namespace+"_subscribe", args...), ch)
}

// Reconnect dials endpoint, swaps it in for the current transport and
// clears the response cache, since the new node may serve another chain.
func (c *Client) Reconnect(ctx context.Context, endpoint string) error {
	t, err := transport.Dial(ctx, endpoint, c.opts.transportOptions()...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.transport
	c.transport, c.endpoint = t, endpoint
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Clear(); err != nil {
			c.log.WithError(err).Warn("clearing response cache")
		}
	}
	c.log.WithField("endpoint", endpoint).Debug("reconnected")
	return old.Close()
}

// Close closes the transport and releases the cache.
func (c *Client) Close() error {
	err := c.Transport().Close()
	if c.cache != nil {
		err = errors.Join(err, c.cache.Close())
	}
	return err
}
