package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// noExpiry is long enough that cached entries never age out.
const noExpiry = 100 * 365 * 24 * time.Hour

// cacheRule decides from a request and its result whether the result may be
// kept forever.
type cacheRule func(params []any, result json.RawMessage) bool

// DefaultCacheMethods are the methods whose results never change once known.
var DefaultCacheMethods = []string{
	"eth_chainId",
	"net_version",
	"web3_clientVersion",
	"eth_getCode",
	"eth_getBlockByHash",
	"eth_getTransactionByHash",
	"eth_getTransactionReceipt",
}

var cacheRules = map[string]cacheRule{
	"eth_getCode":               atNumberedBlock(1),
	"eth_getBlockByHash":        nonNull,
	"eth_getTransactionReceipt": nonNull,
	"eth_getTransactionByHash":  mined,
}

// Cache memoizes successful results of immutable methods, keyed by method
// and params.
type Cache struct {
	store   *bigcache.BigCache
	group   singleflight.Group
	methods map[string]bool
	log     logger.FieldLogger
}

// CacheOption configures NewCache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	methods []string
	maxMB   int
	log     logger.FieldLogger
}

// WithCacheMethods replaces DefaultCacheMethods.
func WithCacheMethods(methods ...string) CacheOption {
	return func(c *cacheConfig) { c.methods = methods }
}

// WithCacheMaxMB bounds the memory held by the cache. Zero means unbounded.
func WithCacheMaxMB(mb int) CacheOption {
	return func(c *cacheConfig) { c.maxMB = mb }
}

// WithCacheLogger sets where failed cache writes are reported.
func WithCacheLogger(l logger.FieldLogger) CacheOption {
	return func(c *cacheConfig) { c.log = l }
}

// NewCache creates an empty response cache.
func NewCache(opts ...CacheOption) (*Cache, error) {
	cfg := cacheConfig{methods: DefaultCacheMethods, log: logger.StandardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	bc := bigcache.DefaultConfig(noExpiry)
	bc.Shards = 64
	bc.CleanWindow = 0
	bc.MaxEntriesInWindow = 1024
	bc.MaxEntrySize = 512
	bc.HardMaxCacheSize = cfg.maxMB
	bc.Verbose = false
	store, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}

	methods := make(map[string]bool, len(cfg.methods))
	for _, m := range cfg.methods {
		methods[m] = true
	}
	return &Cache{store: store, methods: methods, log: cfg.log}, nil
}

func (c *Cache) Name() string { return NameCache }

func (c *Cache) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	if !c.methods[req.Method] {
		return next(ctx, req)
	}
	key, err := cacheKey(req)
	if err != nil {
		return next(ctx, req)
	}

	if result, err := c.store.Get(key); err == nil {
		return &transport.Response{JSONRPC: transport.Version, ID: req.ID, Result: result}, nil
	}

	// The shared fill ignores the first caller's cancellation; each caller
	// stops waiting on its own context instead.
	fill := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		resp, err := next(fill, req)
		if err != nil {
			return nil, err
		}
		if resp.Error == nil && c.cacheable(req, resp.Result) {
			// Concurrent fills write identical bytes.
			if err := c.store.Set(key, resp.Result); err != nil {
				c.log.WithError(err).WithFields(logger.Fields{
					"method": req.Method,
					"size":   len(resp.Result),
				}).Debug("response not cached")
			}
		}
		return resp, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	resp := *res.Val.(*transport.Response)
	resp.ID = req.ID
	return &resp, nil
}

func (c *Cache) cacheable(req *transport.Request, result json.RawMessage) bool {
	if len(result) == 0 {
		return false
	}
	if rule, ok := cacheRules[req.Method]; ok {
		return rule(req.Params, result)
	}
	return true
}

// Clear drops every cached entry. Call it after reconnecting, possibly to a
// different chain.
func (c *Cache) Clear() error {
	return c.store.Reset()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.store.Len() }

// Close releases the cache's resources.
func (c *Cache) Close() error { return c.store.Close() }

// Lookup returns the cached result for method and params, if any.
func (c *Cache) Lookup(method string, params ...any) (json.RawMessage, bool) {
	key, err := cacheKey(transport.NewRequest(0, method, params...))
	if err != nil {
		return nil, false
	}
	b, err := c.store.Get(key)
	if err != nil {
		return nil, false
	}
	return b, true
}

func cacheKey(req *transport.Request) (string, error) {
	params, err := json.Marshal(req.Params)
	if err != nil {
		return "", err
	}
	return req.Method + string(params), nil
}

// atNumberedBlock allows caching only when the block param at index i is
// an explicit number rather than a tag.
func atNumberedBlock(i int) cacheRule {
	return func(params []any, _ json.RawMessage) bool {
		if len(params) <= i || params[i] == nil {
			return false
		}
		if s, ok := params[i].(string); ok && BlockTags[s] {
			return false
		}
		_, err := BlockParam(params[i])
		return err == nil
	}
}

func nonNull(_ []any, result json.RawMessage) bool {
	return string(result) != "null"
}

func mined(_ []any, result json.RawMessage) bool {
	var tx struct {
		BlockHash *string `json:"blockHash"`
	}
	if json.Unmarshal(result, &tx) != nil {
		return false
	}
	return tx.BlockHash != nil
}
