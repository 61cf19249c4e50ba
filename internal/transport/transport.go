// Package transport moves JSON-RPC envelopes between the client and a node
// over HTTP, WebSocket or a local IPC socket.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Version is the JSON-RPC protocol version sent on every request.
const Version = "2.0"

var (
	// ErrConnection matches every transport-level send or receive failure.
	ErrConnection = errors.New("connection error")
	// ErrTimeout matches requests that did not complete within their deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrClosed is returned once a transport has been closed.
	ErrClosed = errors.New("transport closed")
	// ErrDuplicateID is returned when a request id is already in flight.
	ErrDuplicateID = errors.New("duplicate request id")
)

// Request is a JSON-RPC request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// NewRequest builds a request with an empty, non-nil params list when none are given.
func NewRequest(id uint64, method string, params ...any) *Request {
	if params == nil {
		params = []any{}
	}
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// Response is a JSON-RPC response envelope. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object carried inside a response envelope.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// ConnectionError wraps a failure to write to or read from the node.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// TimeoutError reports a request that got no response in time. The
// connection itself stays open.
type TimeoutError struct {
	Method string
	ID     uint64
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s (id %d) timed out after %s", e.Method, e.ID, e.After)
	}
	return fmt.Sprintf("%s (id %d) timed out", e.Method, e.ID)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// StatusError is a non-JSON HTTP reply that is not worth retrying.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Transport sends one request and waits for its response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
	IsConnected() bool
	Close() error
}

// Streamer is a Transport that also delivers subscription notifications.
type Streamer interface {
	Transport
	Subscribe(ctx context.Context, req *Request, ch chan<- json.RawMessage) (*Subscription, error)
}

type options struct {
	requestTimeout   time.Duration
	handshakeTimeout time.Duration
	httpClient       *http.Client
	headers          http.Header
	log              logger.FieldLogger
}

// Option configures a transport.
type Option func(*options)

// WithRequestTimeout bounds every Send. Zero means the caller's context alone decides.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithHandshakeTimeout bounds WebSocket and IPC dialing.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) { o.handshakeTimeout = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithHeader adds a header to HTTP requests and the WebSocket handshake.
func WithHeader(key, value string) Option {
	return func(o *options) { o.headers.Add(key, value) }
}

// WithLogger sets the logger used for transport diagnostics.
func WithLogger(l logger.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{
		handshakeTimeout: 10 * time.Second,
		headers:          make(http.Header),
		log:              logger.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dial opens a transport chosen by the endpoint's scheme: http(s) for HTTP,
// ws(s) for WebSocket, and ipc:// or a bare filesystem path for IPC.
func Dial(ctx context.Context, endpoint string, opts ...Option) (Transport, error) {
	switch {
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		return NewHTTP(endpoint, opts...), nil
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return DialWebSocket(ctx, endpoint, opts...)
	case strings.HasPrefix(endpoint, "ipc://"):
		return DialIPC(ctx, strings.TrimPrefix(endpoint, "ipc://"), opts...)
	case strings.HasPrefix(endpoint, "/"), strings.HasSuffix(endpoint, ".ipc"):
		return DialIPC(ctx, endpoint, opts...)
	}
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	return nil, fmt.Errorf("unsupported endpoint %q", endpoint)
}
