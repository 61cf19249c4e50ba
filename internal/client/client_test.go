package client

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3kit/internal/middleware"
	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// rpcNode serves JSON-RPC over HTTP. reply returns a result, or a
// *transport.RPCError to send an error envelope.
func rpcNode(t *testing.T, reply func(req transport.Request) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transport.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch v := reply(req).(type) {
		case *transport.RPCError:
			resp["error"] = v
		default:
			resp["result"] = v
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietOptions() Options {
	log, _ := test.NewNullLogger()
	return Options{Logger: log, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func dial(t *testing.T, url string, opts Options) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestClientDefaultChain(t *testing.T) {
	srv := rpcNode(t, func(req transport.Request) any { return "0x01" })
	c := dial(t, srv.URL, quietOptions())

	assert.Equal(t, middleware.DefaultOrder, c.Middleware())
	assert.NotNil(t, c.Cache())
	assert.Equal(t, srv.URL, c.Endpoint())

	raw, err := c.Call(context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x1"`, string(raw), "formatting canonicalizes quantities")
}

func TestClientSurfacesErrorEnvelopeWithoutFormatting(t *testing.T) {
	srv := rpcNode(t, func(req transport.Request) any {
		return &transport.RPCError{Code: -32601, Message: "the method does not exist"}
	})
	opts := quietOptions()
	opts.Middleware = []string{middleware.NameValidation}
	c := dial(t, srv.URL, opts)

	_, err := c.Call(context.Background(), "eth_foo")
	var rpcErr *transport.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)

	resp, err := c.Do(context.Background(), transport.NewRequest(c.NextID(), "eth_foo"))
	require.NoError(t, err, "Do hands back the raw envelope")
	assert.NotNil(t, resp.Error)
}

func TestClientRejectsUnknownStage(t *testing.T) {
	opts := quietOptions()
	opts.Middleware = []string{middleware.NameValidation, "compression"}
	_, err := New(transport.NewHTTP("http://127.0.0.1:1"), opts)
	assert.ErrorContains(t, err, `unknown middleware "compression"`)
}

func TestClientCustomStages(t *testing.T) {
	srv := rpcNode(t, func(req transport.Request) any { return "0x1" })
	var mu sync.Mutex
	var seen []string
	stamp := middleware.Func("stamp", func(ctx context.Context, req *transport.Request, next middleware.Handler) (*transport.Response, error) {
		mu.Lock()
		seen = append(seen, req.Method)
		mu.Unlock()
		return next(ctx, req)
	})

	opts := quietOptions()
	opts.Middleware = []string{"stamp", middleware.NameFormatting}
	opts.Stages = map[string]middleware.Middleware{"stamp": stamp}
	c := dial(t, srv.URL, opts)

	_, err := c.Call(context.Background(), "eth_blockNumber")
	require.NoError(t, err)
	assert.Equal(t, []string{"stamp", middleware.NameFormatting}, c.Middleware())
	assert.Equal(t, []string{"eth_blockNumber"}, seen)
	assert.Nil(t, c.Cache())
}

func TestClientFixtureAnswersOffline(t *testing.T) {
	opts := quietOptions()
	opts.Middleware = []string{middleware.NameFixture}
	opts.Fixtures = map[string]any{"eth_chainId": "0x539"}
	c, err := New(transport.NewHTTP("http://127.0.0.1:1"), opts)
	require.NoError(t, err)

	raw, err := c.Call(context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x539"`, string(raw))
}

type nopSigner struct{ addr common.Address }

func (s nopSigner) Address() common.Address { return s.addr }

func (s nopSigner) SignTx(*types.Transaction, *big.Int) ([]byte, error) {
	return nil, errors.New("not used")
}

func TestClientInsertsSigningAfterGasNonce(t *testing.T) {
	opts := quietOptions()
	opts.Signers = []middleware.TxSigner{nopSigner{}}
	opts.ChainID = big.NewInt(1)
	c, err := New(transport.NewHTTP("http://127.0.0.1:1"), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		middleware.NameValidation,
		middleware.NameGasNonce,
		middleware.NameSigning,
		middleware.NameCache,
		middleware.NameRetry,
		middleware.NameFormatting,
	}, c.Middleware())

	opts.ChainID = nil
	_, err = New(transport.NewHTTP("http://127.0.0.1:1"), opts)
	assert.ErrorContains(t, err, "chain id")
}

func TestClientUniqueIDs(t *testing.T) {
	var mu sync.Mutex
	ids := map[uint64]bool{}
	srv := rpcNode(t, func(req transport.Request) any {
		mu.Lock()
		defer mu.Unlock()
		ids[req.ID] = true
		return "0x1"
	})
	opts := quietOptions()
	opts.Middleware = []string{middleware.NameFormatting}
	c := dial(t, srv.URL, opts)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Call(context.Background(), "eth_blockNumber")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 20)
}

func TestClientReconnectClearsCache(t *testing.T) {
	mainnet := rpcNode(t, func(req transport.Request) any { return "0x1" })
	sepolia := rpcNode(t, func(req transport.Request) any { return "0xaa36a7" })
	c := dial(t, mainnet.URL, quietOptions())

	raw, err := c.Call(context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x1"`, string(raw))
	assert.Equal(t, 1, c.Cache().Len())

	require.NoError(t, c.Reconnect(context.Background(), sepolia.URL))
	assert.Equal(t, sepolia.URL, c.Endpoint())

	raw, err = c.Call(context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0xaa36a7"`, string(raw))
}

func TestClientSubscribeNeedsStream(t *testing.T) {
	srv := rpcNode(t, func(req transport.Request) any { return nil })
	c := dial(t, srv.URL, quietOptions())
	_, err := c.Subscribe(context.Background(), "eth", make(chan json.RawMessage), "newHeads")
	assert.ErrorIs(t, err, ErrNotStreaming)
}

func TestDialRejectsBadEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), "ftp://node", quietOptions())
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// executors
// ---------------------------------------------------------------------------

func TestBlockingExecutor(t *testing.T) {
	srv := rpcNode(t, func(req transport.Request) any { return "0x10" })
	b := NewBlocking(dial(t, srv.URL, quietOptions()))

	raw, err := b.Call(context.Background(), "eth_blockNumber")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x10"`, string(raw))
}

func TestAsyncBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := rpcNode(t, func(req transport.Request) any {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "0x1"
	})
	opts := quietOptions()
	opts.Middleware = []string{middleware.NameFormatting}
	a := NewAsync(dial(t, srv.URL, opts), 2)

	futures := make([]*Future, 6)
	for i := range futures {
		futures[i] = a.Go(context.Background(), "eth_blockNumber")
	}
	for _, f := range futures {
		raw, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, `"0x1"`, string(raw))
		select {
		case <-f.Done():
		default:
			t.Fatal("Done must be closed once Wait returns a result")
		}
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(2), peak.Load())
}

func TestFutureWaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := rpcNode(t, func(req transport.Request) any {
		<-release
		return "0x1"
	})
	defer close(release)
	opts := quietOptions()
	opts.Middleware = []string{middleware.NameFormatting}
	a := NewAsync(dial(t, srv.URL, opts), 1)

	f := a.Go(context.Background(), "eth_blockNumber")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAsyncQueuedCallCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := rpcNode(t, func(req transport.Request) any {
		<-release
		return "0x1"
	})
	defer close(release)
	opts := quietOptions()
	opts.Middleware = []string{middleware.NameFormatting}
	a := NewAsync(dial(t, srv.URL, opts), 1)

	a.Go(context.Background(), "eth_blockNumber")
	ctx, cancel := context.WithCancel(context.Background())
	queued := a.Go(ctx, "eth_chainId")
	cancel()

	<-queued.Done()
	_, err := queued.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
