package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// wsServer upgrades every connection and hands it to serve.
func wsServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url string, opts ...Option) *WebSocket {
	t.Helper()
	ws, err := DialWebSocket(context.Background(), url, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func reply(id uint64, result any) map[string]any {
	return map[string]any{"jsonrpc": "2.0", "id": id, "result": result}
}

// echoServe answers every request with its method name, except "slow"
// requests which are never answered.
func echoServe(conn *websocket.Conn) {
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Method == "slow" {
			continue
		}
		if err := conn.WriteJSON(reply(req.ID, req.Method)); err != nil {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// WebSocket
// ---------------------------------------------------------------------------

func TestWebSocketSend(t *testing.T) {
	ws := dialWS(t, wsServer(t, echoServe))
	assert.True(t, ws.IsConnected())

	resp, err := ws.Send(context.Background(), NewRequest(1, "eth_chainId"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.ID)
	assert.JSONEq(t, `"eth_chainId"`, string(resp.Result))
	assert.Equal(t, 0, ws.pending.len())
}

func TestWebSocketAssignsIDWithoutMutatingRequest(t *testing.T) {
	ws := dialWS(t, wsServer(t, echoServe))

	req := NewRequest(0, "eth_chainId")
	first, err := ws.Send(context.Background(), req)
	require.NoError(t, err)
	second, err := ws.Send(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), req.ID, "caller's request keeps its id")
	assert.GreaterOrEqual(t, first.ID, uint64(internalIDBase))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestWebSocketOutOfOrderResponses(t *testing.T) {
	// The server collects both requests before answering them in reverse.
	url := wsServer(t, func(conn *websocket.Conn) {
		var reqs []Request
		for len(reqs) < 2 {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			reqs = append(reqs, req)
		}
		for i := len(reqs) - 1; i >= 0; i-- {
			conn.WriteJSON(reply(reqs[i].ID, fmt.Sprintf("result-for-%d", reqs[i].ID))) //nolint:errcheck
		}
		echoServe(conn)
	})
	ws := dialWS(t, url)

	var wg sync.WaitGroup
	results := make([]string, 3)
	errs := make([]error, 3)
	for _, id := range []uint64{1, 2} {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			resp, err := ws.Send(context.Background(), NewRequest(id, "eth_call"))
			if err != nil {
				errs[id] = err
				return
			}
			errs[id] = json.Unmarshal(resp.Result, &results[id])
		}(id)
	}
	wg.Wait()

	require.NoError(t, errs[1])
	require.NoError(t, errs[2])
	assert.Equal(t, "result-for-1", results[1])
	assert.Equal(t, "result-for-2", results[2])
}

func TestWebSocketRequestTimeoutKeepsConnection(t *testing.T) {
	ws := dialWS(t, wsServer(t, echoServe), WithRequestTimeout(50*time.Millisecond))

	_, err := ws.Send(context.Background(), NewRequest(1, "slow"))
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, uint64(1), timeoutErr.ID)
	assert.Equal(t, 0, ws.pending.len(), "timed out call must leave the pending table")

	assert.True(t, ws.IsConnected())
	resp, err := ws.Send(context.Background(), NewRequest(2, "eth_blockNumber"))
	require.NoError(t, err)
	assert.JSONEq(t, `"eth_blockNumber"`, string(resp.Result))
}

func TestWebSocketCancel(t *testing.T) {
	ws := dialWS(t, wsServer(t, echoServe))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ws.Send(ctx, NewRequest(5, "slow"))
		done <- err
	}()

	require.Eventually(t, func() bool { return ws.pending.len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled call did not return")
	}
	assert.Equal(t, 0, ws.pending.len())
}

func TestWebSocketDuplicateID(t *testing.T) {
	ws := dialWS(t, wsServer(t, echoServe))

	go ws.Send(context.Background(), NewRequest(9, "slow")) //nolint:errcheck
	require.Eventually(t, func() bool { return ws.pending.len() == 1 }, time.Second, 5*time.Millisecond)

	_, err := ws.Send(context.Background(), NewRequest(9, "eth_chainId"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestWebSocketCloseFailsPending(t *testing.T) {
	ws := dialWS(t, wsServer(t, echoServe))

	done := make(chan error, 1)
	go func() {
		_, err := ws.Send(context.Background(), NewRequest(1, "slow"))
		done <- err
	}()
	require.Eventually(t, func() bool { return ws.pending.len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ws.Close())
	assert.False(t, ws.IsConnected())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnection)
	case <-time.After(time.Second):
		t.Fatal("pending call not released on close")
	}

	_, err := ws.Send(context.Background(), NewRequest(2, "eth_chainId"))
	assert.ErrorIs(t, err, ErrConnection)
	assert.NoError(t, ws.Close(), "second close is a no-op")
}

func TestWebSocketServerHangup(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		var req Request
		conn.ReadJSON(&req) //nolint:errcheck
		// return without answering: the deferred Close drops the connection
	})
	ws := dialWS(t, url)

	_, err := ws.Send(context.Background(), NewRequest(1, "eth_chainId"))
	assert.ErrorIs(t, err, ErrConnection)
	assert.Eventually(t, func() bool { return !ws.IsConnected() }, time.Second, 5*time.Millisecond)
}

func TestWebSocketSubscription(t *testing.T) {
	unsubscribed := make(chan string, 1)
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Method {
			case "eth_subscribe":
				conn.WriteJSON(reply(req.ID, "0xabc")) //nolint:errcheck
				for i := 1; i <= 3; i++ {
					conn.WriteJSON(map[string]any{ //nolint:errcheck
						"jsonrpc": "2.0",
						"method":  "eth_subscription",
						"params":  map[string]any{"subscription": "0xabc", "result": map[string]any{"number": i}},
					})
				}
				// Notifications for unknown subscriptions are ignored.
				conn.WriteJSON(map[string]any{ //nolint:errcheck
					"jsonrpc": "2.0",
					"method":  "eth_subscription",
					"params":  map[string]any{"subscription": "0xother", "result": 0},
				})
			case "eth_unsubscribe":
				unsubscribed <- req.Params[0].(string)
				conn.WriteJSON(reply(req.ID, true)) //nolint:errcheck
			}
		}
	})
	ws := dialWS(t, url)

	ch := make(chan json.RawMessage)
	sub, err := ws.Subscribe(context.Background(), NewRequest(1, "eth_subscribe", "newHeads"), ch)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", sub.ID)

	for i := 1; i <= 3; i++ {
		select {
		case raw := <-ch:
			assert.JSONEq(t, fmt.Sprintf(`{"number":%d}`, i), string(raw))
		case <-time.After(time.Second):
			t.Fatalf("notification %d not delivered", i)
		}
	}

	require.NoError(t, sub.Unsubscribe(context.Background()))
	assert.Equal(t, "0xabc", <-unsubscribed)
	_, open := <-sub.Err()
	assert.False(t, open)
}

func TestWebSocketSubscriptionEndsOnClose(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(reply(req.ID, "0x1")) //nolint:errcheck
		echoServe(conn)
	})
	ws := dialWS(t, url)

	sub, err := ws.Subscribe(context.Background(), NewRequest(1, "eth_subscribe", "logs"), make(chan json.RawMessage))
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	select {
	case err := <-sub.Err():
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("subscription not failed on close")
	}
}

func TestWebSocketSubscribeRejected(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{ //nolint:errcheck
			"jsonrpc": "2.0", "id": req.ID,
			"error": map[string]any{"code": -32601, "message": "notifications not supported"},
		})
		echoServe(conn)
	})
	ws := dialWS(t, url)

	_, err := ws.Subscribe(context.Background(), NewRequest(1, "eth_subscribe", "newHeads"), make(chan json.RawMessage))
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)

	_, err = ws.Subscribe(context.Background(), NewRequest(2, "subscribe"), make(chan json.RawMessage))
	assert.Error(t, err)
}

func TestDialWebSocketFailure(t *testing.T) {
	_, err := DialWebSocket(context.Background(), "ws://127.0.0.1:1")
	assert.ErrorIs(t, err, ErrConnection)
}

// ---------------------------------------------------------------------------
// IPC
// ---------------------------------------------------------------------------

func ipcServer(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "w3k")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "node.ipc")

	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				dec := json.NewDecoder(conn)
				enc := json.NewEncoder(conn)
				var pending []Request
				for {
					var req Request
					if err := dec.Decode(&req); err != nil {
						return
					}
					// Hold "eth_call" until a second one arrives, then answer both in reverse.
					if req.Method == "eth_call" {
						pending = append(pending, req)
						if len(pending) < 2 {
							continue
						}
						for i := len(pending) - 1; i >= 0; i-- {
							enc.Encode(reply(pending[i].ID, pending[i].Params[0])) //nolint:errcheck
						}
						pending = nil
						continue
					}
					enc.Encode(reply(req.ID, req.Method)) //nolint:errcheck
				}
			}(conn)
		}
	}()
	return path
}

func TestIPCSend(t *testing.T) {
	path := ipcServer(t)
	tr, err := Dial(context.Background(), "ipc://"+path)
	require.NoError(t, err)
	defer tr.Close()

	ipc, ok := tr.(*IPC)
	require.True(t, ok)

	resp, err := ipc.Send(context.Background(), NewRequest(1, "net_version"))
	require.NoError(t, err)
	assert.JSONEq(t, `"net_version"`, string(resp.Result))
}

func TestIPCConcurrentCorrelation(t *testing.T) {
	ipc, err := DialIPC(context.Background(), ipcServer(t))
	require.NoError(t, err)
	defer ipc.Close()

	var wg sync.WaitGroup
	got := map[uint64]string{}
	var mu sync.Mutex
	for _, id := range []uint64{11, 12} {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			resp, err := ipc.Send(context.Background(), NewRequest(id, "eth_call", fmt.Sprintf("payload-%d", id)))
			if !assert.NoError(t, err) {
				return
			}
			var s string
			json.Unmarshal(resp.Result, &s) //nolint:errcheck
			mu.Lock()
			got[id] = s
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	assert.Equal(t, map[uint64]string{11: "payload-11", 12: "payload-12"}, got)
}

func TestDialIPCMissingSocket(t *testing.T) {
	_, err := DialIPC(context.Background(), filepath.Join(t.TempDir(), "missing.ipc"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection))
}
