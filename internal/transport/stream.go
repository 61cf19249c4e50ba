package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"
)

// internalIDBase keeps ids the transport generates for its own requests
// (unsubscribe) away from ids chosen by callers.
const internalIDBase = 1 << 62

// codec reads and writes whole JSON messages on a stream connection.
// writeJSON is never called concurrently.
type codec interface {
	writeJSON(v any) error
	readJSON(v any) error
	close() error
}

// message is any inbound frame: a response or a subscription notification.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type notification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// multiplexer runs many concurrent requests over one stream connection,
// correlating responses by id and routing notifications by subscription id.
type multiplexer struct {
	kind    string
	c       codec
	log     logger.FieldLogger
	timeout time.Duration

	pending *pendingTable
	writeMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[string]*Subscription

	internalID atomic.Uint64
	connected  atomic.Bool
	closed     chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

func newMultiplexer(kind string, c codec, o options) *multiplexer {
	m := &multiplexer{
		kind:    kind,
		c:       c,
		log:     o.log.WithField("transport", kind),
		timeout: o.requestTimeout,
		pending: newPendingTable(),
		subs:    make(map[string]*Subscription),
		closed:  make(chan struct{}),
	}
	m.internalID.Store(internalIDBase)
	m.connected.Store(true)
	go m.readLoop()
	return m
}

// IsConnected reports whether the read loop is still running.
func (m *multiplexer) IsConnected() bool {
	return m.connected.Load()
}

// Send writes req and waits for the response with the same id.
func (m *multiplexer) Send(ctx context.Context, req *Request) (*Response, error) {
	return m.roundTrip(ctx, req, nil)
}

func (m *multiplexer) roundTrip(ctx context.Context, req *Request, sub *Subscription) (*Response, error) {
	if !m.IsConnected() {
		return nil, &ConnectionError{Op: "send", Err: m.terminalErr()}
	}
	if req.ID == 0 {
		cp := *req
		cp.ID = m.internalID.Add(1)
		req = &cp
	}
	call, err := m.pending.add(req.ID, sub)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, &ConnectionError{Op: "send", Err: m.terminalErr()}
		}
		return nil, err
	}

	m.writeMu.Lock()
	err = m.c.writeJSON(req)
	m.writeMu.Unlock()
	if err != nil {
		m.pending.remove(req.ID)
		return nil, &ConnectionError{Op: "write", Err: err}
	}

	var timeout <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp, ok := <-call.ch:
		if !ok {
			return nil, &ConnectionError{Op: "read", Err: m.terminalErr()}
		}
		return resp, nil
	case <-timeout:
		m.pending.remove(req.ID)
		return nil, &TimeoutError{Method: req.Method, ID: req.ID, After: m.timeout}
	case <-ctx.Done():
		m.pending.remove(req.ID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Method: req.Method, ID: req.ID}
		}
		return nil, ctx.Err()
	}
}

// Subscribe sends a *_subscribe request and routes its notifications to ch
// until the subscription is cancelled or the transport closes.
func (m *multiplexer) Subscribe(ctx context.Context, req *Request, ch chan<- json.RawMessage) (*Subscription, error) {
	namespace, _, ok := strings.Cut(req.Method, "_")
	if !ok {
		return nil, errors.New("subscription method must be namespaced, e.g. eth_subscribe")
	}
	sub := newSubscription(m, namespace, ch)

	resp, err := m.roundTrip(ctx, req, sub)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	// The read loop registered the subscription before reading the next
	// frame, so no notification can be missed.
	if sub.ID == "" {
		return nil, errors.New("node returned an invalid subscription id")
	}
	go sub.forward()
	return sub, nil
}

func (m *multiplexer) readLoop() {
	for {
		var msg message
		if err := m.c.readJSON(&msg); err != nil {
			m.shutdown(err)
			return
		}
		if strings.HasSuffix(msg.Method, "_subscription") {
			m.dispatchNotification(&msg)
			continue
		}
		m.dispatchResponse(&msg)
	}
}

func (m *multiplexer) dispatchResponse(msg *message) {
	id, err := parseID(msg.ID)
	if err != nil {
		m.log.WithField("id", string(msg.ID)).Debug("dropping frame with unusable id")
		return
	}
	call, ok := m.pending.take(id)
	if !ok {
		m.log.WithField("id", id).Debug("dropping response for unknown or expired request")
		return
	}
	resp := &Response{JSONRPC: msg.JSONRPC, ID: id, Result: msg.Result, Error: msg.Error}
	if call.sub != nil && resp.Error == nil {
		var subID string
		if err := json.Unmarshal(resp.Result, &subID); err == nil && subID != "" {
			call.sub.ID = subID
			m.subsMu.Lock()
			m.subs[subID] = call.sub
			m.subsMu.Unlock()
		}
	}
	call.ch <- resp
}

func (m *multiplexer) dispatchNotification(msg *message) {
	var n notification
	if err := json.Unmarshal(msg.Params, &n); err != nil {
		m.log.WithError(err).Debug("malformed subscription notification")
		return
	}
	m.subsMu.RLock()
	sub, ok := m.subs[n.Subscription]
	m.subsMu.RUnlock()
	if !ok {
		return
	}
	sub.deliver(n.Result)
}

func (m *multiplexer) unregister(id string) {
	m.subsMu.Lock()
	delete(m.subs, id)
	m.subsMu.Unlock()
}

// Close shuts the connection down, failing pending calls and subscriptions.
func (m *multiplexer) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closeErr = ErrClosed
		m.connected.Store(false)
		close(m.closed)
		err = m.c.close()
		m.pending.closeAll()
		m.dropSubscriptions(ErrClosed)
	})
	return err
}

// shutdown is Close triggered by a read failure.
func (m *multiplexer) shutdown(cause error) {
	m.closeOnce.Do(func() {
		m.log.WithError(cause).Warn("connection lost")
		m.closeErr = cause
		m.connected.Store(false)
		close(m.closed)
		_ = m.c.close()
		m.pending.closeAll()
		m.dropSubscriptions(cause)
	})
}

func (m *multiplexer) terminalErr() error {
	select {
	case <-m.closed:
		return m.closeErr
	default:
		return ErrClosed
	}
}

func (m *multiplexer) dropSubscriptions(cause error) {
	m.subsMu.Lock()
	subs := m.subs
	m.subs = make(map[string]*Subscription)
	m.subsMu.Unlock()
	for _, sub := range subs {
		sub.fail(cause)
	}
}

func parseID(raw json.RawMessage) (uint64, error) {
	s := strings.Trim(string(raw), `"`)
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
