package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const maxErrorBody = 512

// HTTP sends each request as its own POST. It keeps no correlation table.
type HTTP struct {
	url     string
	client  *http.Client
	headers http.Header
	timeout time.Duration
	closed  atomic.Bool
}

var _ Transport = (*HTTP)(nil)

// NewHTTP creates an HTTP transport for url.
func NewHTTP(url string, opts ...Option) *HTTP {
	o := buildOptions(opts)
	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{
		url:     url,
		client:  client,
		headers: o.headers,
		timeout: o.requestTimeout,
	}
}

// URL returns the endpoint this transport posts to.
func (h *HTTP) URL() string { return h.url }

// Send posts req and decodes the reply.
func (h *HTTP) Send(ctx context.Context, req *Request) (*Response, error) {
	if h.closed.Load() {
		return nil, &ConnectionError{Op: "send", Err: ErrClosed}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	callCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range h.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, h.classify(ctx, callCtx, req, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, h.classify(ctx, callCtx, req, err)
	}

	var rpcResp Response
	if jsonErr := json.Unmarshal(raw, &rpcResp); jsonErr == nil && (rpcResp.Result != nil || rpcResp.Error != nil) {
		if rpcResp.ID != req.ID {
			return nil, &ConnectionError{Op: "read", Err: fmt.Errorf("response id %d does not match request id %d", rpcResp.ID, req.ID)}
		}
		return &rpcResp, nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &ConnectionError{Op: "read", Err: statusErr}
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusErr
	}
	return nil, fmt.Errorf("parsing response: %w", errors.New(statusErr.Body))
}

// classify separates our own timeout, caller cancellation and network failure.
func (h *HTTP) classify(parent, callCtx context.Context, req *Request, err error) error {
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Method: req.Method, ID: req.ID}
		}
		return parent.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Method: req.Method, ID: req.ID, After: h.timeout}
	}
	return &ConnectionError{Op: "post", Err: err}
}

// IsConnected reports false only after Close. HTTP has no persistent session.
func (h *HTTP) IsConnected() bool { return !h.closed.Load() }

// Close releases idle keep-alive connections.
func (h *HTTP) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.client.CloseIdleConnections()
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
