package client

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"

	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// Options configures a Client. The zero value is usable; DefaultOptions
// spells out the defaults.
type Options struct {
	// RequestTimeout bounds each transport round trip. Zero leaves it to ctx.
	RequestTimeout time.Duration
	// Headers are sent with HTTP requests and the WebSocket handshake.
	Headers map[string]string

	// Middleware lists stage names outermost first. Empty means
	// middleware.DefaultOrder.
	Middleware []string
	// Stages supplies extra named stages that Middleware may reference.
	Stages map[string]middleware.Middleware

	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RetryableCodes []int
	FatalCodes     []int

	CacheMethods []string
	CacheMaxMB   int

	// AsyncConcurrency bounds the requests an Async executor runs at once.
	AsyncConcurrency int64

	GasPriceStrategy middleware.GasPriceStrategy

	// Signers are local accounts; when set a signing stage is placed right
	// inside gas/nonce unless Middleware already lists it.
	Signers []middleware.TxSigner
	ChainID *big.Int

	// Fixtures answer methods locally when a fixture stage is listed.
	Fixtures      map[string]any
	FixtureErrors map[string]*transport.RPCError

	// Registerer receives the metrics stage collectors.
	Registerer prometheus.Registerer
	Logger     logger.FieldLogger
}

// DefaultOptions returns the defaults applied to zero fields.
func DefaultOptions() Options {
	return Options{
		RequestTimeout:   30 * time.Second,
		Middleware:       append([]string(nil), middleware.DefaultOrder...),
		MaxAttempts:      3,
		BaseDelay:        250 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		CacheMethods:     append([]string(nil), middleware.DefaultCacheMethods...),
		AsyncConcurrency: 16,
		Logger:           logger.StandardLogger(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Middleware) == 0 {
		o.Middleware = d.Middleware
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if len(o.CacheMethods) == 0 {
		o.CacheMethods = d.CacheMethods
	}
	if o.AsyncConcurrency <= 0 {
		o.AsyncConcurrency = d.AsyncConcurrency
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

func (o Options) transportOptions() []transport.Option {
	opts := []transport.Option{transport.WithLogger(o.Logger)}
	if o.RequestTimeout > 0 {
		opts = append(opts, transport.WithRequestTimeout(o.RequestTimeout))
	}
	for k, v := range o.Headers {
		opts = append(opts, transport.WithHeader(k, v))
	}
	return opts
}

func (o Options) codeTable() *middleware.CodeTable {
	table := middleware.DefaultCodeTable()
	for _, c := range o.RetryableCodes {
		table.Set(c, true)
	}
	for _, c := range o.FatalCodes {
		table.Set(c, false)
	}
	return table
}
